package reviews

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"review-backend/internal/shared/server/middleware"
	localstore "review-backend/internal/shared/storage/object/local"
)

func setupReviewRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := newStubService(t)
	handler := NewHandler(svc, svc.History, svc.Usage)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(middleware.Session())
	handler.RegisterRoutes(api)
	return router, svc
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func getPath(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRunReviewEndpoint(t *testing.T) {
	router, _ := setupReviewRouter(t)

	resp := postJSON(t, router, "/api/v1/reviews", map[string]string{
		"concept_name":        "AI Tutor",
		"concept_description": "Adaptive lesson plans for middle school math",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var summary RunSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(summary.ReviewID) != 8 {
		t.Fatalf("expected 8-char review id, got %q", summary.ReviewID)
	}
	if summary.Synthesis.Recommendation != "proceed_with_caution" {
		t.Fatalf("unexpected recommendation %q", summary.Synthesis.Recommendation)
	}
	if !summary.HumanDecisionRequired {
		t.Fatal("human decision must always be required")
	}
	if !summary.SavedToHistory {
		t.Fatal("expected review saved to history")
	}
}

func TestRunReviewEndpointValidation(t *testing.T) {
	router, _ := setupReviewRouter(t)

	resp := postJSON(t, router, "/api/v1/reviews", map[string]string{
		"concept_description": "missing the name",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %q", body.Error.Code)
	}
}

func TestRunReviewEndpointPipelineError(t *testing.T) {
	router, svc := setupReviewRouter(t)
	svc.LLM = errClient{err: errors.New("provider down")}

	resp := postJSON(t, router, "/api/v1/reviews", map[string]string{
		"concept_name":        "AI Tutor",
		"concept_description": "Adaptive lesson plans",
	})
	// Pipeline failures come back as structured payloads, never transport faults.
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var payload struct {
		Status  string `json:"status"`
		Error   string `json:"error"`
		Concept string `json:"concept"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "error" {
		t.Fatalf("expected status error, got %q", payload.Status)
	}
	if payload.Concept != "AI Tutor" {
		t.Fatalf("expected concept echoed, got %q", payload.Concept)
	}
	if !strings.Contains(payload.Error, "provider down") {
		t.Fatalf("expected provider error message, got %q", payload.Error)
	}
}

func TestConsultEndpoint(t *testing.T) {
	router, _ := setupReviewRouter(t)

	resp := postJSON(t, router, "/api/v1/consult/ethics", map[string]string{
		"concept_name":        "AI Tutor",
		"concept_description": "Adaptive lesson plans",
		"prior_reasoning":     "Innovation sees strong potential.",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var payload struct {
		Agent         string  `json:"agent"`
		Concept       string  `json:"concept"`
		EthicsScore   float64 `json:"ethics_score"`
		VetoTriggered bool    `json:"veto_triggered"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Agent != EthicsAgentName {
		t.Fatalf("expected agent %q, got %q", EthicsAgentName, payload.Agent)
	}
	if payload.Concept != "AI Tutor" {
		t.Fatalf("expected concept echoed, got %q", payload.Concept)
	}
	if payload.EthicsScore != 7.5 || payload.VetoTriggered {
		t.Fatalf("unexpected canned analysis: %+v", payload)
	}
}

func TestConsultEndpointUnknownPersona(t *testing.T) {
	router, _ := setupReviewRouter(t)

	resp := postJSON(t, router, "/api/v1/consult/astrology", map[string]string{
		"concept_name":        "AI Tutor",
		"concept_description": "Adaptive lesson plans",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestSessionOverrideRejectsUnknownProvider(t *testing.T) {
	router, _ := setupReviewRouter(t)

	body, _ := json.Marshal(map[string]string{
		"concept_name":        "AI Tutor",
		"concept_description": "Adaptive lesson plans",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-LLM-Provider", "skynet")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestLatestEndpointTruncates(t *testing.T) {
	router, svc := setupReviewRouter(t)
	for _, name := range []string{"First", "Second", "Third"} {
		if err := svc.History.Append(context.Background(), sampleResult("id-"+name, name, 6.0, RecommendWithCaution, false)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	resp := getPath(t, router, "/api/v1/reviews/latest?n=2")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var entries []HistoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ConceptName != "Third" || entries[1].ConceptName != "Second" {
		t.Fatalf("expected most-recent-first ordering, got %q then %q", entries[0].ConceptName, entries[1].ConceptName)
	}
	if entries[0].FullResult != nil {
		t.Fatal("list responses must not embed full results")
	}
}

func TestListByConceptEndpoint(t *testing.T) {
	router, svc := setupReviewRouter(t)
	if err := svc.History.Append(context.Background(), sampleResult("id-a", "Alpha", 6.0, RecommendWithCaution, false)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := svc.History.Append(context.Background(), sampleResult("id-b", "Beta", 8.0, RecommendProceed, false)); err != nil {
		t.Fatalf("append: %v", err)
	}

	resp := getPath(t, router, "/api/v1/reviews?concept=Beta")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var entries []HistoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 1 || entries[0].ConceptName != "Beta" {
		t.Fatalf("expected single Beta entry, got %+v", entries)
	}
}

func TestStatsEndpointEmpty(t *testing.T) {
	router, _ := setupReviewRouter(t)

	resp := getPath(t, router, "/api/v1/reviews/stats")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var stats HistoryStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.TotalReviews != 0 || stats.AverageScore != 0 || stats.VetoRate != 0 {
		t.Fatalf("expected zero-valued stats, got %+v", stats)
	}
	if stats.RecommendationDistribution == nil {
		t.Fatal("distribution must be an empty map, not null")
	}
}

func TestGetReviewByIDEndpoint(t *testing.T) {
	router, _ := setupReviewRouter(t)

	run := postJSON(t, router, "/api/v1/reviews", map[string]string{
		"concept_name":        "AI Tutor",
		"concept_description": "Adaptive lesson plans",
	})
	var summary RunSummary
	if err := json.NewDecoder(run.Body).Decode(&summary); err != nil {
		t.Fatalf("decode run: %v", err)
	}

	resp := getPath(t, router, "/api/v1/reviews/"+summary.ReviewID)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var result ReviewResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.ID != summary.ReviewID || result.ConceptName != "AI Tutor" {
		t.Fatalf("unexpected result: id=%q concept=%q", result.ID, result.ConceptName)
	}

	missing := getPath(t, router, "/api/v1/reviews/deadbeef")
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", missing.Code)
	}
}

func TestReportEndpointMissing(t *testing.T) {
	router, _ := setupReviewRouter(t)

	resp := getPath(t, router, "/api/v1/reviews/deadbeef/report")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestReportEndpointMissingFromStore(t *testing.T) {
	router, svc := setupReviewRouter(t)
	svc.Store = localstore.New(t.TempDir())

	// A configured store with no such object must still be a 404, not a 500.
	resp := getPath(t, router, "/api/v1/reviews/deadbeef/report")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestUsageSummaryEndpoint(t *testing.T) {
	router, _ := setupReviewRouter(t)

	postJSON(t, router, "/api/v1/reviews", map[string]string{
		"concept_name":        "AI Tutor",
		"concept_description": "Adaptive lesson plans",
	})

	resp := getPath(t, router, "/api/v1/metrics/summary")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var summary UsageSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalRuns != 1 || summary.SuccessfulRuns != 1 {
		t.Fatalf("unexpected usage summary: %+v", summary)
	}
}

func TestMethodologyEndpoint(t *testing.T) {
	router, _ := setupReviewRouter(t)

	resp := getPath(t, router, "/api/v1/methodology")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("expected markdown content type, got %q", ct)
	}
	if resp.Body.Len() == 0 {
		t.Fatal("expected methodology document body")
	}
}

func TestAboutEndpoint(t *testing.T) {
	router, _ := setupReviewRouter(t)

	resp := getPath(t, router, "/api/v1/about")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var about struct {
		Service  string                    `json:"service"`
		Personas map[string]map[string]any `json:"personas"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&about); err != nil {
		t.Fatalf("decode about: %v", err)
	}
	if about.Service != "review-backend" {
		t.Fatalf("unexpected service name %q", about.Service)
	}
	for _, p := range []string{"innovation", "ethics", "security"} {
		if _, ok := about.Personas[p]; !ok {
			t.Fatalf("missing persona %q in about payload", p)
		}
	}
}

func briefUpload(t *testing.T, fields map[string]string, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write %s field: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestBriefEndpointRunsReview(t *testing.T) {
	router, _ := setupReviewRouter(t)

	buf, contentType := briefUpload(t, map[string]string{"name": "AI Tutor"},
		"brief.txt", "An adaptive tutoring platform for middle school math.")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews/brief", buf)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var summary RunSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.ConceptName != "AI Tutor" {
		t.Fatalf("unexpected concept name %q", summary.ConceptName)
	}
}

func TestBriefEndpointArchivesOriginal(t *testing.T) {
	router, svc := setupReviewRouter(t)
	svc.Store = localstore.New(t.TempDir())

	original := "An adaptive tutoring platform for middle school math."
	buf, contentType := briefUpload(t, map[string]string{"name": "AI Tutor"}, "brief.txt", original)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews/brief", buf)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var summary RunSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.SourceDocumentKey == "" {
		t.Fatal("expected the uploaded brief to be archived")
	}

	rc, err := svc.Store.Open(context.Background(), summary.SourceDocumentKey)
	if err != nil {
		t.Fatalf("open archived brief: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read archived brief: %v", err)
	}
	if string(data) != original {
		t.Fatalf("archived brief does not match upload: %q", data)
	}
}

func TestBriefEndpointRejectsBadSaveFlag(t *testing.T) {
	router, _ := setupReviewRouter(t)

	buf, contentType := briefUpload(t, map[string]string{
		"name":            "AI Tutor",
		"save_to_history": "maybe",
	}, "brief.txt", "An adaptive tutoring platform.")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews/brief", buf)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %q", body.Error.Code)
	}
}

func TestBriefEndpointRequiresName(t *testing.T) {
	router, _ := setupReviewRouter(t)

	buf, contentType := briefUpload(t, nil, "brief.txt", "description only")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews/brief", buf)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}
