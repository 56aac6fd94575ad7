package reviews

import "time"

// Verdict recommendation values, ordered from best to worst outcome.
const (
	RecommendProceed     = "proceed"
	RecommendWithCaution = "proceed_with_caution"
	RecommendRevise      = "revise"
	RecommendReject      = "reject"
)

// Concept is an idea submitted for review. Concepts are immutable and
// identified by name only; nothing enforces uniqueness.
type Concept struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Context      string    `json:"context,omitempty"`
	Domain       string    `json:"domain,omitempty"`
	Stakeholders []string  `json:"stakeholders,omitempty"`
	Constraints  []string  `json:"constraints,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReasoningStep is one link in a persona's reasoning chain.
type ReasoningStep struct {
	StepNumber int     `json:"step_number"`
	Thought    string  `json:"thought"`
	Evidence   string  `json:"evidence,omitempty"`
	Confidence float64 `json:"confidence"`
}

// InnovationAnalysis is the structured output of the innovation persona.
type InnovationAnalysis struct {
	Agent           string          `json:"agent"`
	ReasoningSteps  []ReasoningStep `json:"reasoning_steps"`
	InnovationScore float64         `json:"innovation_score"`
	StrategicValue  float64         `json:"strategic_value"`
	Opportunities   []string        `json:"opportunities"`
	Risks           []string        `json:"risks"`
	Recommendation  string          `json:"recommendation"`
	Confidence      float64         `json:"confidence"`
}

// EthicsAnalysis is the structured output of the ethics persona. It is the
// only analysis carrying a veto flag.
type EthicsAnalysis struct {
	Agent              string          `json:"agent"`
	ReasoningSteps     []ReasoningStep `json:"reasoning_steps"`
	EthicsScore        float64         `json:"ethics_score"`
	CharterCompliance  bool            `json:"charter_compliance"`
	EthicalConcerns    []string        `json:"ethical_concerns"`
	MitigationMeasures []string        `json:"mitigation_measures"`
	Recommendation     string          `json:"recommendation"`
	VetoTriggered      bool            `json:"veto_triggered"`
	Confidence         float64         `json:"confidence"`
}

// SecurityAnalysis is the structured output of the security persona.
type SecurityAnalysis struct {
	Agent                   string          `json:"agent"`
	ReasoningSteps          []ReasoningStep `json:"reasoning_steps"`
	SecurityScore           float64         `json:"security_score"`
	Vulnerabilities         []string        `json:"vulnerabilities"`
	AttackVectors           []string        `json:"attack_vectors"`
	SecurityRecommendations []string        `json:"security_recommendations"`
	SocraticQuestions       []string        `json:"socratic_questions"`
	Recommendation          string          `json:"recommendation"`
	Confidence              float64         `json:"confidence"`
}

// Verdict is the synthesized assessment across all three analyses.
// Derived deterministically; see Synthesize.
type Verdict struct {
	Summary         string   `json:"summary"`
	InnovationScore float64  `json:"innovation_score"`
	EthicsScore     float64  `json:"ethics_score"`
	SecurityScore   float64  `json:"security_score"`
	OverallScore    float64  `json:"overall_score"`
	Strengths       []string `json:"strengths"`
	Concerns        []string `json:"concerns"`
	Recommendations []string `json:"recommendations"`
	Recommendation  string   `json:"recommendation"`
	Confidence      float64  `json:"confidence"`
	VetoTriggered   bool     `json:"veto_triggered"`
	VetoReason      string   `json:"veto_reason,omitempty"`
}

// ReviewResult is the complete outcome of one full review run.
type ReviewResult struct {
	ID                    string             `json:"review_id"`
	ConceptName           string             `json:"concept_name"`
	ConceptDescription    string             `json:"concept_description"`
	Innovation            InnovationAnalysis `json:"innovation_analysis"`
	Ethics                EthicsAnalysis     `json:"ethics_analysis"`
	Security              SecurityAnalysis   `json:"security_analysis"`
	Verdict               Verdict            `json:"verdict"`
	HumanDecisionRequired bool               `json:"human_decision_required"`
	StartedAt             time.Time          `json:"started_at"`
	CompletedAt           time.Time          `json:"completed_at"`
	DurationSeconds       float64            `json:"duration_seconds"`
}

// HistoryEntry is the denormalized history row for one review.
type HistoryEntry struct {
	ID                 string        `json:"review_id"`
	ConceptName        string        `json:"concept_name"`
	ConceptDescription string        `json:"concept_description"`
	Recommendation     string        `json:"recommendation"`
	OverallScore       float64       `json:"overall_score"`
	VetoTriggered      bool          `json:"veto_triggered"`
	Timestamp          time.Time     `json:"timestamp"`
	FullResult         *ReviewResult `json:"full_result,omitempty"`
}

// newHistoryEntry flattens a result into its history row.
func newHistoryEntry(result ReviewResult) HistoryEntry {
	full := result
	return HistoryEntry{
		ID:                 result.ID,
		ConceptName:        result.ConceptName,
		ConceptDescription: result.ConceptDescription,
		Recommendation:     result.Verdict.Recommendation,
		OverallScore:       result.Verdict.OverallScore,
		VetoTriggered:      result.Verdict.VetoTriggered,
		Timestamp:          result.StartedAt,
		FullResult:         &full,
	}
}

// HistoryStats summarizes the stored history. Zero values and an empty
// distribution map describe an empty history.
type HistoryStats struct {
	TotalReviews               int            `json:"total_reviews"`
	AverageScore               float64        `json:"average_score"`
	VetoRate                   float64        `json:"veto_rate"`
	RecommendationDistribution map[string]int `json:"recommendation_distribution"`
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func normalizeSteps(steps []ReasoningStep) []ReasoningStep {
	if steps == nil {
		return []ReasoningStep{}
	}
	for i := range steps {
		if steps[i].StepNumber == 0 {
			steps[i].StepNumber = i + 1
		}
		steps[i].Confidence = clampConfidence(steps[i].Confidence)
	}
	return steps
}

// ensureList keeps optional list fields serializing as [] rather than null.
func ensureList(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func (a *InnovationAnalysis) normalize() {
	if a.Agent == "" {
		a.Agent = InnovationAgentName
	}
	a.InnovationScore = clampScore(a.InnovationScore)
	a.StrategicValue = clampScore(a.StrategicValue)
	a.Confidence = clampConfidence(a.Confidence)
	a.ReasoningSteps = normalizeSteps(a.ReasoningSteps)
	a.Opportunities = ensureList(a.Opportunities)
	a.Risks = ensureList(a.Risks)
}

func (a *EthicsAnalysis) normalize() {
	if a.Agent == "" {
		a.Agent = EthicsAgentName
	}
	a.EthicsScore = clampScore(a.EthicsScore)
	a.Confidence = clampConfidence(a.Confidence)
	a.ReasoningSteps = normalizeSteps(a.ReasoningSteps)
	a.EthicalConcerns = ensureList(a.EthicalConcerns)
	a.MitigationMeasures = ensureList(a.MitigationMeasures)
}

func (a *SecurityAnalysis) normalize() {
	if a.Agent == "" {
		a.Agent = SecurityAgentName
	}
	a.SecurityScore = clampScore(a.SecurityScore)
	a.Confidence = clampConfidence(a.Confidence)
	a.ReasoningSteps = normalizeSteps(a.ReasoningSteps)
	a.Vulnerabilities = ensureList(a.Vulnerabilities)
	a.AttackVectors = ensureList(a.AttackVectors)
	a.SecurityRecommendations = ensureList(a.SecurityRecommendations)
	a.SocraticQuestions = ensureList(a.SocraticQuestions)
}

// Chain converts the analysis into a reasoning chain for the next persona.
func (a InnovationAnalysis) Chain(conceptName string) ChainOfThought {
	return ChainOfThought{
		AgentID:           PersonaInnovation.ID(),
		AgentName:         a.Agent,
		ConceptName:       conceptName,
		ReasoningSteps:    a.ReasoningSteps,
		FinalConclusion:   a.Recommendation,
		OverallConfidence: a.Confidence,
	}
}

// Chain converts the analysis into a reasoning chain for the next persona.
// A triggered veto is surfaced in the conclusion so downstream personas see it.
func (a EthicsAnalysis) Chain(conceptName string) ChainOfThought {
	conclusion := a.Recommendation
	if a.VetoTriggered {
		conclusion = "VETO TRIGGERED: " + a.Recommendation
	}
	return ChainOfThought{
		AgentID:           PersonaEthics.ID(),
		AgentName:         a.Agent,
		ConceptName:       conceptName,
		ReasoningSteps:    a.ReasoningSteps,
		FinalConclusion:   conclusion,
		OverallConfidence: a.Confidence,
	}
}

// Chain converts the analysis into a reasoning chain.
func (a SecurityAnalysis) Chain(conceptName string) ChainOfThought {
	return ChainOfThought{
		AgentID:           PersonaSecurity.ID(),
		AgentName:         a.Agent,
		ConceptName:       conceptName,
		ReasoningSteps:    a.ReasoningSteps,
		FinalConclusion:   a.Recommendation,
		OverallConfidence: a.Confidence,
	}
}
