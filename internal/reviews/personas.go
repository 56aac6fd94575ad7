package reviews

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"review-backend/internal/llm"
)

// Persona identifies one of the three fixed reviewer roles.
type Persona string

const (
	PersonaInnovation Persona = "innovation"
	PersonaEthics     Persona = "ethics"
	PersonaSecurity   Persona = "security"
)

// Display labels for the three personas.
const (
	InnovationAgentName = "Innovation Analyst"
	EthicsAgentName     = "Ethics Guardian"
	SecurityAgentName   = "Security Analyst"
)

const (
	personaTemperature = 0.7
	personaMaxTokens   = 4096
)

var (
	//go:embed prompts/innovation.txt
	innovationPrompt string
	//go:embed prompts/ethics.txt
	ethicsPrompt string
	//go:embed prompts/security.txt
	securityPrompt string
)

const innovationSchemaHint = `{
  "reasoning_steps": [{"step_number": 1, "thought": "...", "evidence": "...", "confidence": 0.0-1.0}],
  "innovation_score": 0.0-10.0,
  "strategic_value": 0.0-10.0,
  "opportunities": ["..."],
  "risks": ["..."],
  "recommendation": "...",
  "confidence": 0.0-1.0
}`

const ethicsSchemaHint = `{
  "reasoning_steps": [{"step_number": 1, "thought": "...", "evidence": "...", "confidence": 0.0-1.0}],
  "ethics_score": 0.0-10.0,
  "charter_compliance": true/false,
  "ethical_concerns": ["..."],
  "mitigation_measures": ["..."],
  "recommendation": "...",
  "veto_triggered": true/false,
  "confidence": 0.0-1.0
}`

const securitySchemaHint = `{
  "reasoning_steps": [{"step_number": 1, "thought": "...", "evidence": "...", "confidence": 0.0-1.0}],
  "security_score": 0.0-10.0,
  "vulnerabilities": ["..."],
  "attack_vectors": ["..."],
  "security_recommendations": ["..."],
  "socratic_questions": ["..."],
  "recommendation": "...",
  "confidence": 0.0-1.0
}`

// ParsePersona maps a route or CLI name onto the closed persona set.
func ParsePersona(raw string) (Persona, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "innovation":
		return PersonaInnovation, nil
	case "ethics":
		return PersonaEthics, nil
	case "security":
		return PersonaSecurity, nil
	default:
		return "", fmt.Errorf("unknown persona: %s", raw)
	}
}

// ID returns the short identifier used in reasoning chains and metrics.
func (p Persona) ID() string { return string(p) }

// Label returns the persona's display name.
func (p Persona) Label() string {
	switch p {
	case PersonaEthics:
		return EthicsAgentName
	case PersonaSecurity:
		return SecurityAgentName
	default:
		return InnovationAgentName
	}
}

func (p Persona) template() string {
	switch p {
	case PersonaEthics:
		return ethicsPrompt
	case PersonaSecurity:
		return securityPrompt
	default:
		return innovationPrompt
	}
}

func (p Persona) schemaHint() string {
	switch p {
	case PersonaEthics:
		return ethicsSchemaHint
	case PersonaSecurity:
		return securitySchemaHint
	default:
		return innovationSchemaHint
	}
}

// BuildPrompt renders the persona's template for a concept with optional
// prior reasoning. An empty context renders a documented placeholder so the
// model never sees a dangling slot.
func BuildPrompt(p Persona, concept Concept, prior []ChainOfThought) string {
	contextText := strings.TrimSpace(concept.Context)
	if contextText == "" {
		contextText = "No additional context provided."
	}
	replacer := strings.NewReplacer(
		"{{PRIOR_REASONING}}", RenderPrior(prior),
		"{{CONCEPT_NAME}}", concept.Name,
		"{{CONCEPT_DESCRIPTION}}", concept.Description,
		"{{CONTEXT}}", contextText,
	)
	return replacer.Replace(p.template())
}

// analysisDoc is satisfied by the three persona output types.
type analysisDoc interface {
	validate() error
	normalize()
}

func (a *InnovationAnalysis) validate() error {
	if len(a.ReasoningSteps) == 0 {
		return errors.New("missing reasoning_steps")
	}
	if strings.TrimSpace(a.Recommendation) == "" {
		return errors.New("missing recommendation")
	}
	return nil
}

func (a *EthicsAnalysis) validate() error {
	if len(a.ReasoningSteps) == 0 {
		return errors.New("missing reasoning_steps")
	}
	if strings.TrimSpace(a.Recommendation) == "" {
		return errors.New("missing recommendation")
	}
	return nil
}

func (a *SecurityAnalysis) validate() error {
	if len(a.ReasoningSteps) == 0 {
		return errors.New("missing reasoning_steps")
	}
	if strings.TrimSpace(a.Recommendation) == "" {
		return errors.New("missing recommendation")
	}
	return nil
}

// decodeAnalysis maps a provider document onto the persona's output shape.
// A degraded raw_response wrapper or a missing required field is reported as
// ErrSchemaMismatch; transient provider failures never reach this point.
func decodeAnalysis(content json.RawMessage, doc analysisDoc) error {
	var degraded struct {
		RawResponse *string `json:"raw_response"`
		ParseError  string  `json:"parse_error"`
	}
	if err := json.Unmarshal(content, &degraded); err == nil && degraded.RawResponse != nil {
		reason := degraded.ParseError
		if reason == "" {
			reason = "non-JSON model output"
		}
		return fmt.Errorf("%w: %s", ErrSchemaMismatch, reason)
	}
	if err := json.Unmarshal(content, doc); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if err := doc.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}

func consult(ctx context.Context, client llm.Client, p Persona, concept Concept, prior []ChainOfThought, run *RunMetrics, doc analysisDoc) error {
	call := beginCall(p, client.Name())
	out, err := client.Generate(ctx, llm.GenerateInput{
		Prompt:      BuildPrompt(p, concept, prior),
		SchemaHint:  p.schemaHint(),
		Temperature: personaTemperature,
		MaxTokens:   personaMaxTokens,
	})
	if err == nil {
		err = decodeAnalysis(out.Content, doc)
	}
	call.finish(out, err)
	run.add(call)
	if err != nil {
		return err
	}
	doc.normalize()
	return nil
}

func consultInnovation(ctx context.Context, client llm.Client, concept Concept, prior []ChainOfThought, run *RunMetrics) (InnovationAnalysis, error) {
	var analysis InnovationAnalysis
	if err := consult(ctx, client, PersonaInnovation, concept, prior, run, &analysis); err != nil {
		return InnovationAnalysis{}, err
	}
	return analysis, nil
}

func consultEthics(ctx context.Context, client llm.Client, concept Concept, prior []ChainOfThought, run *RunMetrics) (EthicsAnalysis, error) {
	var analysis EthicsAnalysis
	if err := consult(ctx, client, PersonaEthics, concept, prior, run, &analysis); err != nil {
		return EthicsAnalysis{}, err
	}
	return analysis, nil
}

func consultSecurity(ctx context.Context, client llm.Client, concept Concept, prior []ChainOfThought, run *RunMetrics) (SecurityAnalysis, error) {
	var analysis SecurityAnalysis
	if err := consult(ctx, client, PersonaSecurity, concept, prior, run, &analysis); err != nil {
		return SecurityAnalysis{}, err
	}
	return analysis, nil
}
