package reviews

import (
	"strings"
	"testing"
)

func TestChainFormat(t *testing.T) {
	chain := ChainOfThought{
		AgentID:     "innovation",
		AgentName:   "Innovation Analyst",
		ConceptName: "AI Tutor",
		ReasoningSteps: []ReasoningStep{
			{StepNumber: 1, Thought: "novel approach", Evidence: "no direct competitor", Confidence: 0.9},
			{StepNumber: 2, Thought: "large market", Confidence: 0.8},
		},
		FinalConclusion:   "proceed",
		OverallConfidence: 0.85,
	}

	out := chain.Format()

	if !strings.Contains(out, "## Prior Analysis from Innovation Analyst (innovation)") {
		t.Fatalf("expected header, got:\n%s", out)
	}
	if !strings.Contains(out, "**Concept**: AI Tutor") {
		t.Fatalf("expected concept line, got:\n%s", out)
	}
	if !strings.Contains(out, "- Step 1 (90% confidence): novel approach") {
		t.Fatalf("expected step line, got:\n%s", out)
	}
	if !strings.Contains(out, "  - Evidence: no direct competitor") {
		t.Fatalf("expected evidence line, got:\n%s", out)
	}
	if strings.Count(out, "- Evidence:") != 1 {
		t.Fatalf("expected a single evidence line, got:\n%s", out)
	}
	if !strings.Contains(out, "**Conclusion**: proceed") {
		t.Fatalf("expected conclusion, got:\n%s", out)
	}
	if !strings.Contains(out, "**Overall Confidence**: 85%") {
		t.Fatalf("expected overall confidence, got:\n%s", out)
	}
}

func TestRenderPriorEmpty(t *testing.T) {
	if out := RenderPrior(nil); out != "" {
		t.Fatalf("expected empty render for no chains, got %q", out)
	}
	if out := RenderPrior([]ChainOfThought{}); out != "" {
		t.Fatalf("expected empty render for empty slice, got %q", out)
	}
}

func TestRenderPriorWrapsChains(t *testing.T) {
	chains := []ChainOfThought{
		{AgentID: "innovation", AgentName: "Innovation Analyst", ConceptName: "c"},
		{AgentID: "ethics", AgentName: "Ethics Guardian", ConceptName: "c"},
	}

	out := RenderPrior(chains)

	if !strings.Contains(out, "# PRIOR AGENT REASONING") {
		t.Fatalf("expected shared header, got:\n%s", out)
	}
	if !strings.Contains(out, "Consider the following analysis from previous agents:") {
		t.Fatalf("expected preamble, got:\n%s", out)
	}
	if !strings.Contains(out, "(innovation)") || !strings.Contains(out, "(ethics)") {
		t.Fatalf("expected both chains rendered, got:\n%s", out)
	}
	if !strings.Contains(out, "Build upon this prior reasoning in your analysis.") {
		t.Fatalf("expected closing line, got:\n%s", out)
	}
	if strings.Index(out, "(innovation)") > strings.Index(out, "(ethics)") {
		t.Fatalf("expected chains rendered in order, got:\n%s", out)
	}
}

func TestFreeTextChain(t *testing.T) {
	chain := freeTextChain("innovation+ethics", "Innovation Analyst & Ethics Guardian", "AI Tutor", "prior notes")

	if chain.AgentID != "innovation+ethics" {
		t.Fatalf("unexpected agent id %q", chain.AgentID)
	}
	if len(chain.ReasoningSteps) != 1 {
		t.Fatalf("expected a single step, got %d", len(chain.ReasoningSteps))
	}
	step := chain.ReasoningSteps[0]
	if step.StepNumber != 1 || step.Thought != "prior notes" || step.Confidence != 0.8 {
		t.Fatalf("unexpected step %+v", step)
	}
	if chain.FinalConclusion != "See prior reasoning above" {
		t.Fatalf("unexpected conclusion %q", chain.FinalConclusion)
	}
	if chain.OverallConfidence != 0.8 {
		t.Fatalf("unexpected confidence %v", chain.OverallConfidence)
	}
}
