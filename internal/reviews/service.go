package reviews

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"review-backend/internal/llm"
	"review-backend/internal/shared/metrics"
	"review-backend/internal/shared/storage/object"
	"review-backend/internal/shared/telemetry"
)

// SessionConfig is a per-request provider override parsed from headers.
// Empty fields mean "use the server default".
type SessionConfig struct {
	Provider string
	APIKey   string
}

// ClientFactory builds a provider client for a session override. Rather than
// failing, implementations degrade to the stub client so a bad credential
// never takes down a request.
type ClientFactory func(ctx context.Context, provider, apiKey string) llm.Client

// Service orchestrates the three-persona review pipeline.
type Service struct {
	LLM       llm.Client // default provider client, already retry-wrapped
	Factory   ClientFactory
	History   HistoryStore
	Store     object.ObjectStore // optional archive for reports and brief originals
	Usage     *Collector
	Cache     *lru.Cache[string, ReviewResult]
	Synthesis SynthesisConfig
}

// RunInput is a full-review request.
type RunInput struct {
	ConceptName        string
	ConceptDescription string
	Context            string
	SaveToHistory      *bool // nil means true
	Session            SessionConfig
}

// ConsultInput is a single-persona request. PriorReasoning is optional
// free-text reasoning from earlier consultations.
type ConsultInput struct {
	ConceptName        string
	ConceptDescription string
	Context            string
	PriorReasoning     string
	Session            SessionConfig
}

// RunSummary is the condensed response for a completed full review. The full
// ReviewResult stays retrievable by ID.
type RunSummary struct {
	ReviewID              string            `json:"review_id"`
	ConceptName           string            `json:"concept_name"`
	Innovation            InnovationSummary `json:"innovation_analysis"`
	Ethics                EthicsSummary     `json:"ethics_analysis"`
	Security              SecuritySummary   `json:"security_analysis"`
	Synthesis             SynthesisSummary  `json:"synthesis"`
	HumanDecisionRequired bool              `json:"human_decision_required"`
	SavedToHistory        bool              `json:"saved_to_history"`
	SourceDocumentKey     string            `json:"source_document_key,omitempty"`
}

type InnovationSummary struct {
	InnovationScore float64 `json:"innovation_score"`
	StrategicValue  float64 `json:"strategic_value"`
	Recommendation  string  `json:"recommendation"`
	Confidence      float64 `json:"confidence"`
}

type EthicsSummary struct {
	EthicsScore       float64 `json:"ethics_score"`
	CharterCompliance bool    `json:"charter_compliance"`
	VetoTriggered     bool    `json:"veto_triggered"`
	Recommendation    string  `json:"recommendation"`
	Confidence        float64 `json:"confidence"`
}

type SecuritySummary struct {
	SecurityScore      float64 `json:"security_score"`
	VulnerabilityCount int     `json:"vulnerability_count"`
	Recommendation     string  `json:"recommendation"`
	Confidence         float64 `json:"confidence"`
}

type SynthesisSummary struct {
	OverallScore   float64  `json:"overall_score"`
	Recommendation string   `json:"recommendation"`
	VetoTriggered  bool     `json:"veto_triggered"`
	Strengths      []string `json:"strengths"`
	Concerns       []string `json:"concerns"`
	Confidence     float64  `json:"confidence"`
}

// Run executes the full innovation -> ethics -> security pipeline and
// synthesizes a verdict. The three consultations are strictly sequential;
// each persona sees the reasoning chains of the ones before it.
func (s *Service) Run(ctx context.Context, in RunInput) (RunSummary, error) {
	concept, err := buildConcept(in.ConceptName, in.ConceptDescription, in.Context)
	if err != nil {
		return RunSummary{}, err
	}

	client := s.client(ctx, in.Session)
	run := newRunMetrics(concept.Name)
	metrics.IncReviewStarted()
	startedAt := time.Now().UTC()

	innovation, err := consultInnovation(ctx, client, concept, nil, run)
	if err != nil {
		return RunSummary{}, s.failRun(run, concept.Name, PersonaInnovation, err)
	}
	chains := []ChainOfThought{innovation.Chain(concept.Name)}

	ethics, err := consultEthics(ctx, client, concept, chains, run)
	if err != nil {
		return RunSummary{}, s.failRun(run, concept.Name, PersonaEthics, err)
	}
	chains = append(chains, ethics.Chain(concept.Name))

	security, err := consultSecurity(ctx, client, concept, chains, run)
	if err != nil {
		return RunSummary{}, s.failRun(run, concept.Name, PersonaSecurity, err)
	}

	verdict := Synthesize(innovation, ethics, security, s.Synthesis)
	completedAt := time.Now().UTC()

	result := ReviewResult{
		ID:                    newReviewID(),
		ConceptName:           concept.Name,
		ConceptDescription:    concept.Description,
		Innovation:            innovation,
		Ethics:                ethics,
		Security:              security,
		Verdict:               verdict,
		HumanDecisionRequired: true,
		StartedAt:             startedAt,
		CompletedAt:           completedAt,
		DurationSeconds:       completedAt.Sub(startedAt).Seconds(),
	}

	run.ReviewID = result.ID
	run.OverallScore = verdict.OverallScore
	run.Verdict = verdict.Recommendation
	run.finishRun()
	s.record(run)

	metrics.IncReviewCompleted()
	metrics.ObserveReviewDurationMs(run.DurationMs)
	if verdict.VetoTriggered {
		metrics.IncReviewVetoed()
	}

	saved := s.appendHistory(ctx, result, in.SaveToHistory)
	s.archive(ctx, result)
	if s.Cache != nil {
		s.Cache.Add(result.ID, result)
	}

	telemetry.Info("review.completed", map[string]any{
		"review_id":      result.ID,
		"concept":        result.ConceptName,
		"recommendation": verdict.Recommendation,
		"overall_score":  verdict.OverallScore,
		"veto":           verdict.VetoTriggered,
		"duration_ms":    run.DurationMs,
		"provider":       client.Name(),
	})
	return buildRunSummary(result, saved), nil
}

// ConsultInnovation runs the innovation persona alone. Innovation opens the
// pipeline, so it never receives prior reasoning.
func (s *Service) ConsultInnovation(ctx context.Context, in ConsultInput) (InnovationAnalysis, error) {
	concept, err := buildConcept(in.ConceptName, in.ConceptDescription, in.Context)
	if err != nil {
		return InnovationAnalysis{}, err
	}
	run := newRunMetrics(concept.Name)
	analysis, err := consultInnovation(ctx, s.client(ctx, in.Session), concept, nil, run)
	s.finishConsult(run, PersonaInnovation, concept.Name, err)
	if err != nil {
		return InnovationAnalysis{}, err
	}
	return analysis, nil
}

// ConsultEthics runs the ethics persona alone. Free-text prior reasoning is
// attributed to the innovation persona, matching the pipeline order.
func (s *Service) ConsultEthics(ctx context.Context, in ConsultInput) (EthicsAnalysis, error) {
	concept, err := buildConcept(in.ConceptName, in.ConceptDescription, in.Context)
	if err != nil {
		return EthicsAnalysis{}, err
	}
	var prior []ChainOfThought
	if text := strings.TrimSpace(in.PriorReasoning); text != "" {
		prior = []ChainOfThought{freeTextChain(PersonaInnovation.ID(), InnovationAgentName, concept.Name, text)}
	}
	run := newRunMetrics(concept.Name)
	analysis, err := consultEthics(ctx, s.client(ctx, in.Session), concept, prior, run)
	s.finishConsult(run, PersonaEthics, concept.Name, err)
	if err != nil {
		return EthicsAnalysis{}, err
	}
	return analysis, nil
}

// ConsultSecurity runs the security persona alone. Free-text prior reasoning
// is attributed to the combined earlier personas.
func (s *Service) ConsultSecurity(ctx context.Context, in ConsultInput) (SecurityAnalysis, error) {
	concept, err := buildConcept(in.ConceptName, in.ConceptDescription, in.Context)
	if err != nil {
		return SecurityAnalysis{}, err
	}
	var prior []ChainOfThought
	if text := strings.TrimSpace(in.PriorReasoning); text != "" {
		prior = []ChainOfThought{freeTextChain("innovation+ethics", InnovationAgentName+" & "+EthicsAgentName, concept.Name, text)}
	}
	run := newRunMetrics(concept.Name)
	analysis, err := consultSecurity(ctx, s.client(ctx, in.Session), concept, prior, run)
	s.finishConsult(run, PersonaSecurity, concept.Name, err)
	if err != nil {
		return SecurityAnalysis{}, err
	}
	return analysis, nil
}

// GetByID returns a completed review from the cache or the history store.
func (s *Service) GetByID(ctx context.Context, id string) (ReviewResult, error) {
	if strings.TrimSpace(id) == "" {
		return ReviewResult{}, errors.New("review id is required")
	}
	if s.Cache != nil {
		if result, ok := s.Cache.Get(id); ok {
			return result, nil
		}
	}
	if s.History == nil {
		return ReviewResult{}, ErrNotFound
	}
	result, err := s.History.ByID(ctx, id)
	if err != nil {
		return ReviewResult{}, err
	}
	if s.Cache != nil {
		s.Cache.Add(id, result)
	}
	return result, nil
}

// Report opens the archived review JSON. Callers own the closer.
func (s *Service) Report(ctx context.Context, id string) (io.ReadCloser, error) {
	if s.Store == nil {
		return nil, ErrNotFound
	}
	return s.Store.Open(ctx, reportKey(id))
}

func buildConcept(name, description, contextText string) (Concept, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(description) == "" {
		return Concept{}, errors.New("concept_name and concept_description are required")
	}
	return Concept{
		Name:        name,
		Description: description,
		Context:     contextText,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// client resolves the provider for one request. A session override builds a
// dedicated client; everything else uses the server default.
func (s *Service) client(ctx context.Context, session SessionConfig) llm.Client {
	if session.Provider != "" && s.Factory != nil {
		if override := s.Factory(ctx, session.Provider, session.APIKey); override != nil {
			return override
		}
	}
	return s.LLM
}

func (s *Service) record(run *RunMetrics) {
	if s.Usage == nil || run == nil {
		return
	}
	s.Usage.Record(*run)
}

func (s *Service) failRun(run *RunMetrics, conceptName string, p Persona, err error) error {
	run.finishRun()
	s.record(run)
	metrics.IncReviewFailed()
	metrics.ObserveReviewDurationMs(run.DurationMs)
	telemetry.Error("review.failed", map[string]any{
		"concept":     conceptName,
		"persona":     p.ID(),
		"duration_ms": run.DurationMs,
		"error":       sanitizeError(err),
	})
	return err
}

func (s *Service) finishConsult(run *RunMetrics, p Persona, conceptName string, err error) {
	run.finishRun()
	s.record(run)
	fields := map[string]any{
		"persona":     p.ID(),
		"concept":     conceptName,
		"duration_ms": run.DurationMs,
	}
	if err != nil {
		fields["error"] = sanitizeError(err)
		telemetry.Error("consult.failed", fields)
		return
	}
	telemetry.Info("consult.completed", fields)
}

// appendHistory persists the result unless the caller opted out. Failures are
// logged and the review still succeeds.
func (s *Service) appendHistory(ctx context.Context, result ReviewResult, save *bool) bool {
	if save != nil && !*save {
		return false
	}
	if s.History == nil {
		return false
	}
	if err := s.History.Append(ctx, result); err != nil {
		telemetry.Error("history.append_failed", map[string]any{
			"review_id": result.ID,
			"concept":   result.ConceptName,
			"error":     sanitizeError(err),
		})
		return false
	}
	return true
}

// archive writes the full result under a deterministic key so Report can
// stream it back later. Failures are logged and the review still succeeds.
func (s *Service) archive(ctx context.Context, result ReviewResult) {
	if s.Store == nil {
		return
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		telemetry.Error("report.archive_failed", map[string]any{"review_id": result.ID, "error": err.Error()})
		return
	}
	if _, err := s.Store.SaveWithKey(ctx, reportKey(result.ID), bytes.NewReader(payload)); err != nil {
		telemetry.Error("report.archive_failed", map[string]any{"review_id": result.ID, "error": sanitizeError(err)})
	}
}

// ArchiveBriefSource stores the uploaded brief document next to the report
// archive and returns its storage key. Failures are logged and the review
// still proceeds; the caller gets an empty key.
func (s *Service) ArchiveBriefSource(ctx context.Context, conceptName, fileName string, r io.Reader) string {
	if s.Store == nil {
		return ""
	}
	key, size, mimeType, err := s.Store.Save(ctx, conceptName, fileName, r)
	if err != nil {
		telemetry.Error("brief.archive_failed", map[string]any{
			"concept": conceptName,
			"error":   sanitizeError(err),
		})
		return ""
	}
	telemetry.Info("brief.archived", map[string]any{
		"concept":     conceptName,
		"storage_key": key,
		"size_bytes":  size,
		"mime_type":   mimeType,
	})
	return key
}

func reportKey(id string) string { return "reviews/" + id + ".json" }

func newReviewID() string { return uuid.NewString()[:8] }

func buildRunSummary(result ReviewResult, saved bool) RunSummary {
	return RunSummary{
		ReviewID:    result.ID,
		ConceptName: result.ConceptName,
		Innovation: InnovationSummary{
			InnovationScore: result.Innovation.InnovationScore,
			StrategicValue:  result.Innovation.StrategicValue,
			Recommendation:  result.Innovation.Recommendation,
			Confidence:      result.Innovation.Confidence,
		},
		Ethics: EthicsSummary{
			EthicsScore:       result.Ethics.EthicsScore,
			CharterCompliance: result.Ethics.CharterCompliance,
			VetoTriggered:     result.Ethics.VetoTriggered,
			Recommendation:    result.Ethics.Recommendation,
			Confidence:        result.Ethics.Confidence,
		},
		Security: SecuritySummary{
			SecurityScore:      result.Security.SecurityScore,
			VulnerabilityCount: len(result.Security.Vulnerabilities),
			Recommendation:     result.Security.Recommendation,
			Confidence:         result.Security.Confidence,
		},
		Synthesis: SynthesisSummary{
			OverallScore:   result.Verdict.OverallScore,
			Recommendation: result.Verdict.Recommendation,
			VetoTriggered:  result.Verdict.VetoTriggered,
			Strengths:      capList(result.Verdict.Strengths, 3),
			Concerns:       capList(result.Verdict.Concerns, 3),
			Confidence:     result.Verdict.Confidence,
		},
		HumanDecisionRequired: true,
		SavedToHistory:        saved,
	}
}
