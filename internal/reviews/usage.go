package reviews

import (
	"strings"
	"sync"
	"time"

	"review-backend/internal/llm"
	"review-backend/internal/shared/telemetry"
)

// modelPricing is USD per 1M tokens. Entries are matched as substrings of
// the reported model name; the first match wins, so specific names come
// before their prefixes.
var modelPricing = []struct {
	match  string
	input  float64
	output float64
}{
	{"gpt-4-0613", 30.0, 60.0},
	{"gpt-4-turbo", 10.0, 30.0},
	{"gpt-4", 30.0, 60.0},
	{"claude-3-haiku", 0.25, 1.25},
	{"claude-3-5-sonnet", 3.0, 15.0},
	{"gemini-2.0-flash", 0, 0},
	{"gemini-1.5-pro", 1.25, 5.0},
	{"gemini-1.5-flash", 0.075, 0.30},
}

// CallMetrics captures one persona consultation against a provider.
type CallMetrics struct {
	Persona      string    `json:"persona"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	DurationMs   float64   `json:"duration_ms"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	Retries      int       `json:"retries"`
	ErrorCount   int       `json:"error_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Success      bool      `json:"success"`
}

func beginCall(p Persona, provider string) CallMetrics {
	return CallMetrics{
		Persona:   p.ID(),
		Provider:  provider,
		StartedAt: time.Now().UTC(),
	}
}

// finish closes the call. Token counts and cost are recorded only for fully
// successful calls; a failed call keeps its latency and the error.
func (m *CallMetrics) finish(out llm.GenerateOutput, err error) {
	m.FinishedAt = time.Now().UTC()
	m.DurationMs = float64(m.FinishedAt.Sub(m.StartedAt).Microseconds()) / 1000.0
	if err != nil {
		m.ErrorCount++
		m.ErrorMessage = sanitizeError(err)
		return
	}
	m.Success = true
	m.Model = out.Model
	m.InputTokens = out.Usage.InputTokens
	m.OutputTokens = out.Usage.OutputTokens
	m.TotalTokens = out.Usage.InputTokens + out.Usage.OutputTokens
	m.Retries = out.Retries
	m.calculateCost()
}

func (m *CallMetrics) calculateCost() {
	model := strings.ToLower(m.Model)
	for _, p := range modelPricing {
		if strings.Contains(model, p.match) {
			m.CostUSD = float64(m.InputTokens)/1e6*p.input + float64(m.OutputTokens)/1e6*p.output
			return
		}
	}
	telemetry.Warn("usage.unknown_model", map[string]any{
		"provider": m.Provider,
		"model":    m.Model,
	})
}

// RunMetrics aggregates the persona calls of one review run. Timestamp marks
// the start of the run and anchors the duration.
type RunMetrics struct {
	ReviewID     string        `json:"review_id,omitempty"`
	ConceptName  string        `json:"concept_name"`
	Timestamp    time.Time     `json:"timestamp"`
	Calls        []CallMetrics `json:"calls"`
	DurationMs   float64       `json:"duration_ms"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	TotalTokens  int           `json:"total_tokens"`
	CostUSD      float64       `json:"cost_usd"`
	Retries      int           `json:"retries"`
	Errors       int           `json:"errors"`
	Success      bool          `json:"success"`
	OverallScore float64       `json:"overall_score,omitempty"`
	Verdict      string        `json:"verdict,omitempty"`
}

func newRunMetrics(conceptName string) *RunMetrics {
	return &RunMetrics{
		ConceptName: conceptName,
		Timestamp:   time.Now().UTC(),
	}
}

func (m *RunMetrics) add(call CallMetrics) {
	if m == nil {
		return
	}
	m.Calls = append(m.Calls, call)
}

// finishRun aggregates per-call counters. A run succeeds only when every
// recorded call succeeded.
func (m *RunMetrics) finishRun() {
	m.DurationMs = float64(time.Since(m.Timestamp).Microseconds()) / 1000.0
	m.Success = len(m.Calls) > 0
	for _, c := range m.Calls {
		m.InputTokens += c.InputTokens
		m.OutputTokens += c.OutputTokens
		m.TotalTokens += c.TotalTokens
		m.CostUSD += c.CostUSD
		m.Retries += c.Retries
		m.Errors += c.ErrorCount
		if !c.Success {
			m.Success = false
		}
	}
}

// UsageSummary is the aggregate usage report served by the API.
type UsageSummary struct {
	TotalRuns      int                `json:"total_runs"`
	SuccessfulRuns int                `json:"successful_runs"`
	SuccessRate    float64            `json:"success_rate"`
	ErrorRate      float64            `json:"error_rate"`
	TotalErrors    int                `json:"total_errors"`
	TotalRetries   int                `json:"total_retries"`
	AvgDurationMs  float64            `json:"avg_duration_ms"`
	AvgTokens      float64            `json:"avg_tokens"`
	AvgCostUSD     float64            `json:"avg_cost_usd"`
	TotalCostUSD   float64            `json:"total_cost_usd"`
	AvgLatencyMs   map[string]float64 `json:"avg_latency_ms"`
}

// Collector accumulates run metrics for the lifetime of the process.
// Safe for concurrent use.
type Collector struct {
	mu   sync.Mutex
	runs []RunMetrics
}

// NewCollector constructs an empty Collector.
func NewCollector() *Collector { return &Collector{} }

// Record stores a finished run.
func (c *Collector) Record(run RunMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, run)
}

// Summary derives aggregate rates across all recorded runs. An empty
// collector yields a zero-valued summary.
func (c *Collector) Summary() UsageSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := UsageSummary{AvgLatencyMs: make(map[string]float64)}
	if len(c.runs) == 0 {
		return out
	}

	latencySums := make(map[string]float64)
	latencyCounts := make(map[string]int)
	var durationSum, tokenSum float64
	for _, run := range c.runs {
		out.TotalRuns++
		if run.Success {
			out.SuccessfulRuns++
		}
		out.TotalErrors += run.Errors
		out.TotalRetries += run.Retries
		out.TotalCostUSD += run.CostUSD
		durationSum += run.DurationMs
		tokenSum += float64(run.TotalTokens)
		for _, call := range run.Calls {
			latencySums[call.Persona] += call.DurationMs
			latencyCounts[call.Persona]++
		}
	}

	total := float64(out.TotalRuns)
	out.SuccessRate = float64(out.SuccessfulRuns) / total
	out.ErrorRate = float64(out.TotalErrors) / total
	out.AvgDurationMs = durationSum / total
	out.AvgTokens = tokenSum / total
	out.AvgCostUSD = out.TotalCostUSD / total
	for persona, sum := range latencySums {
		out.AvgLatencyMs[persona] = sum / float64(latencyCounts[persona])
	}
	return out
}
