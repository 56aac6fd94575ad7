package reviews

import (
	"fmt"
	"strings"
)

// ChainOfThought carries one persona's reasoning forward so later personas
// can build on it. It renders to markdown for inclusion in prompts.
type ChainOfThought struct {
	AgentID           string          `json:"agent_id"`
	AgentName         string          `json:"agent_name"`
	ConceptName       string          `json:"concept_name"`
	ReasoningSteps    []ReasoningStep `json:"reasoning_steps"`
	FinalConclusion   string          `json:"final_conclusion"`
	OverallConfidence float64         `json:"overall_confidence"`
}

// Format renders the chain as a markdown section for the next persona's prompt.
func (c ChainOfThought) Format() string {
	lines := []string{
		fmt.Sprintf("\n## Prior Analysis from %s (%s)\n", c.AgentName, c.AgentID),
		fmt.Sprintf("**Concept**: %s\n", c.ConceptName),
		"**Reasoning Chain**:\n",
	}

	for _, step := range c.ReasoningSteps {
		lines = append(lines, fmt.Sprintf("- Step %d (%d%% confidence): %s", step.StepNumber, percent(step.Confidence), step.Thought))
		if step.Evidence != "" {
			lines = append(lines, fmt.Sprintf("  - Evidence: %s", step.Evidence))
		}
	}

	lines = append(lines,
		fmt.Sprintf("\n**Conclusion**: %s", c.FinalConclusion),
		fmt.Sprintf("**Overall Confidence**: %d%%\n", percent(c.OverallConfidence)),
	)
	return strings.Join(lines, "\n")
}

// RenderPrior renders all prior chains under a shared header. An empty chain
// list renders to the empty string, which leaves the prompt slot blank.
func RenderPrior(chains []ChainOfThought) string {
	if len(chains) == 0 {
		return ""
	}

	lines := []string{
		"\n# PRIOR AGENT REASONING\n",
		"Consider the following analysis from previous agents:\n",
	}
	for _, chain := range chains {
		lines = append(lines, chain.Format())
	}
	lines = append(lines, "\nBuild upon this prior reasoning in your analysis.\n")
	return strings.Join(lines, "\n")
}

// freeTextChain wraps caller-supplied prior reasoning into a one-step chain
// so single-persona consults can feed it through the same prompt path.
func freeTextChain(agentID, agentName, conceptName, text string) ChainOfThought {
	return ChainOfThought{
		AgentID:     agentID,
		AgentName:   agentName,
		ConceptName: conceptName,
		ReasoningSteps: []ReasoningStep{
			{StepNumber: 1, Thought: text, Confidence: 0.8},
		},
		FinalConclusion:   "See prior reasoning above",
		OverallConfidence: 0.8,
	}
}

func percent(confidence float64) int {
	return int(confidence * 100)
}
