package reviews

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"review-backend/internal/briefs"
	"review-backend/internal/shared/server/middleware"
	"review-backend/internal/shared/server/respond"
	"review-backend/internal/shared/storage/object"
)

// Handler wires HTTP handlers to the review service and history store.
type Handler struct {
	Svc     *Service
	History HistoryStore
	Usage   *Collector
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, history HistoryStore, usage *Collector) *Handler {
	return &Handler{Svc: svc, History: history, Usage: usage}
}

// RegisterRoutes attaches review routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reviews", h.runReview)
	rg.POST("/reviews/brief", h.uploadBrief)
	rg.POST("/consult/:persona", h.consultPersona)
	rg.GET("/reviews", h.listReviews)
	rg.GET("/reviews/latest", h.latestReviews)
	rg.GET("/reviews/stats", h.reviewStats)
	rg.GET("/reviews/:id", h.getReview)
	rg.GET("/reviews/:id/report", h.getReport)
	rg.GET("/metrics/summary", h.usageSummary)
	rg.GET("/methodology", h.methodology)
	rg.GET("/about", h.about)
}

type runReviewRequest struct {
	ConceptName        string `json:"concept_name"`
	ConceptDescription string `json:"concept_description"`
	Context            string `json:"context"`
	SaveToHistory      *bool  `json:"save_to_history"`
}

type consultRequest struct {
	ConceptName        string `json:"concept_name"`
	ConceptDescription string `json:"concept_description"`
	Context            string `json:"context"`
	PriorReasoning     string `json:"prior_reasoning"`
}

func (h *Handler) runReview(c *gin.Context) {
	var req runReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.ConceptName) == "" || strings.TrimSpace(req.ConceptDescription) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "concept_name and concept_description are required", nil)
		return
	}
	c.Set("concept", req.ConceptName)

	summary, err := h.Svc.Run(c.Request.Context(), RunInput{
		ConceptName:        req.ConceptName,
		ConceptDescription: req.ConceptDescription,
		Context:            req.Context,
		SaveToHistory:      req.SaveToHistory,
		Session:            sessionFromContext(c),
	})
	if err != nil {
		respond.JSON(c, http.StatusOK, runErrorPayload(req.ConceptName, err))
		return
	}
	c.Set("reviewId", summary.ReviewID)
	respond.JSON(c, http.StatusOK, summary)
}

func (h *Handler) uploadBrief(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, briefs.MaxBriefBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "name is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}

	text, err := briefs.ExtractText(c.Request.Context(), data, fileHeader.Header.Get("Content-Type"), fileHeader.Filename)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}
	c.Set("concept", name)

	var save *bool
	if raw := strings.TrimSpace(c.PostForm("save_to_history")); raw != "" {
		parsed, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "save_to_history must be a boolean", nil)
			return
		}
		save = &parsed
	}

	sourceKey := h.Svc.ArchiveBriefSource(c.Request.Context(), name, fileHeader.Filename, bytes.NewReader(data))

	summary, err := h.Svc.Run(c.Request.Context(), RunInput{
		ConceptName:        name,
		ConceptDescription: text,
		Context:            c.PostForm("context"),
		SaveToHistory:      save,
		Session:            sessionFromContext(c),
	})
	if err != nil {
		respond.JSON(c, http.StatusOK, runErrorPayload(name, err))
		return
	}
	summary.SourceDocumentKey = sourceKey
	c.Set("reviewId", summary.ReviewID)
	respond.JSON(c, http.StatusOK, summary)
}

func (h *Handler) consultPersona(c *gin.Context) {
	persona, err := ParsePersona(c.Param("persona"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	var req consultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.ConceptName) == "" || strings.TrimSpace(req.ConceptDescription) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "concept_name and concept_description are required", nil)
		return
	}
	c.Set("concept", req.ConceptName)

	in := ConsultInput{
		ConceptName:        req.ConceptName,
		ConceptDescription: req.ConceptDescription,
		Context:            req.Context,
		Session:            sessionFromContext(c),
	}

	switch persona {
	case PersonaEthics:
		in.PriorReasoning = req.PriorReasoning
		analysis, err := h.Svc.ConsultEthics(c.Request.Context(), in)
		if err != nil {
			respond.JSON(c, http.StatusOK, consultErrorPayload(persona, req.ConceptName, err))
			return
		}
		respond.JSON(c, http.StatusOK, ethicsPayload(req.ConceptName, analysis))
	case PersonaSecurity:
		in.PriorReasoning = req.PriorReasoning
		analysis, err := h.Svc.ConsultSecurity(c.Request.Context(), in)
		if err != nil {
			respond.JSON(c, http.StatusOK, consultErrorPayload(persona, req.ConceptName, err))
			return
		}
		respond.JSON(c, http.StatusOK, securityPayload(req.ConceptName, analysis))
	default:
		analysis, err := h.Svc.ConsultInnovation(c.Request.Context(), in)
		if err != nil {
			respond.JSON(c, http.StatusOK, consultErrorPayload(persona, req.ConceptName, err))
			return
		}
		respond.JSON(c, http.StatusOK, innovationPayload(req.ConceptName, analysis))
	}
}

func (h *Handler) latestReviews(c *gin.Context) {
	n := 10
	if v := c.Query("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			n = parsed
		}
	}
	if n < 0 {
		n = 0
	}

	entries, err := h.History.Latest(c.Request.Context(), n)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load history", nil)
		return
	}
	respond.JSON(c, http.StatusOK, stripFullResults(entries))
}

func (h *Handler) listReviews(c *gin.Context) {
	if concept := strings.TrimSpace(c.Query("concept")); concept != "" {
		entries, err := h.History.FindByConcept(c.Request.Context(), concept)
		if err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load history", nil)
			return
		}
		respond.JSON(c, http.StatusOK, stripFullResults(entries))
		return
	}

	doc, err := h.History.All(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load history", nil)
		return
	}
	respond.JSON(c, http.StatusOK, doc)
}

func (h *Handler) reviewStats(c *gin.Context) {
	stats, err := h.History.Stats(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to compute stats", nil)
		return
	}
	respond.JSON(c, http.StatusOK, stats)
}

func (h *Handler) getReview(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "review id is required", nil)
		return
	}

	result, err := h.Svc.GetByID(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "review not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch review", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, result)
}

func (h *Handler) getReport(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "review id is required", nil)
		return
	}

	reader, err := h.Svc.Report(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, object.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "report not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load report", nil)
		}
		return
	}
	defer reader.Close()

	c.Header("Content-Type", "application/json")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, reader)
}

func (h *Handler) usageSummary(c *gin.Context) {
	if h.Usage == nil {
		respond.JSON(c, http.StatusOK, UsageSummary{AvgLatencyMs: map[string]float64{}})
		return
	}
	respond.JSON(c, http.StatusOK, h.Usage.Summary())
}

func sessionFromContext(c *gin.Context) SessionConfig {
	return SessionConfig{
		Provider: middleware.ProviderFromContext(c),
		APIKey:   middleware.APIKeyFromContext(c),
	}
}

// stripFullResults drops the embedded full results from list responses;
// clients fetch them by ID.
func stripFullResults(entries []HistoryEntry) []HistoryEntry {
	for i := range entries {
		entries[i].FullResult = nil
	}
	return entries
}

func runErrorPayload(conceptName string, err error) gin.H {
	return gin.H{
		"status":  "error",
		"error":   sanitizeError(err),
		"concept": conceptName,
	}
}

func consultErrorPayload(p Persona, conceptName string, err error) gin.H {
	return gin.H{
		"agent":   p.Label(),
		"status":  "error",
		"error":   sanitizeError(err),
		"concept": conceptName,
	}
}

func stepSummaries(steps []ReasoningStep) []gin.H {
	out := make([]gin.H, 0, len(steps))
	for _, s := range steps {
		out = append(out, gin.H{"step": s.StepNumber, "thought": s.Thought, "confidence": s.Confidence})
	}
	return out
}

func innovationPayload(conceptName string, a InnovationAnalysis) gin.H {
	return gin.H{
		"agent":            InnovationAgentName,
		"concept":          conceptName,
		"reasoning_steps":  stepSummaries(a.ReasoningSteps),
		"innovation_score": a.InnovationScore,
		"strategic_value":  a.StrategicValue,
		"opportunities":    a.Opportunities,
		"risks":            a.Risks,
		"recommendation":   a.Recommendation,
		"confidence":       a.Confidence,
	}
}

func ethicsPayload(conceptName string, a EthicsAnalysis) gin.H {
	return gin.H{
		"agent":               EthicsAgentName,
		"concept":             conceptName,
		"reasoning_steps":     stepSummaries(a.ReasoningSteps),
		"ethics_score":        a.EthicsScore,
		"charter_compliance":  a.CharterCompliance,
		"ethical_concerns":    a.EthicalConcerns,
		"mitigation_measures": a.MitigationMeasures,
		"recommendation":      a.Recommendation,
		"veto_triggered":      a.VetoTriggered,
		"confidence":          a.Confidence,
	}
}

func securityPayload(conceptName string, a SecurityAnalysis) gin.H {
	return gin.H{
		"agent":                    SecurityAgentName,
		"concept":                  conceptName,
		"reasoning_steps":          stepSummaries(a.ReasoningSteps),
		"security_score":           a.SecurityScore,
		"vulnerabilities":          a.Vulnerabilities,
		"attack_vectors":           a.AttackVectors,
		"security_recommendations": a.SecurityRecommendations,
		"socratic_questions":       a.SocraticQuestions,
		"recommendation":           a.Recommendation,
		"confidence":               a.Confidence,
	}
}
