package stub

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"review-backend/internal/llm"
)

func TestGenerateIsDeterministic(t *testing.T) {
	client := NewClient()
	in := llm.GenerateInput{Prompt: "analyze this", SchemaHint: `{"ethics_score": "number"}`}

	first, err := client.Generate(context.Background(), in)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := client.Generate(context.Background(), in)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !bytes.Equal(first.Content, second.Content) {
		t.Fatalf("expected identical content across calls")
	}
	if first.Usage != second.Usage {
		t.Fatalf("expected identical usage across calls")
	}
}

func TestGenerateSwitchesOnSchemaHint(t *testing.T) {
	client := NewClient()

	cases := []struct {
		hint    string
		wantKey string
	}{
		{hint: `{"ethics_score": "number", "veto_triggered": "boolean"}`, wantKey: "ethics_score"},
		{hint: `{"security_score": "number"}`, wantKey: "security_score"},
		{hint: `{"innovation_score": "number"}`, wantKey: "innovation_score"},
		{hint: "", wantKey: "innovation_score"},
	}
	for _, tc := range cases {
		out, err := client.Generate(context.Background(), llm.GenerateInput{Prompt: "p", SchemaHint: tc.hint})
		if err != nil {
			t.Fatalf("Generate(%q): %v", tc.hint, err)
		}
		var parsed map[string]any
		if err := json.Unmarshal(out.Content, &parsed); err != nil {
			t.Fatalf("decode content: %v", err)
		}
		if _, ok := parsed[tc.wantKey]; !ok {
			t.Fatalf("hint %q: expected key %s in %s", tc.hint, tc.wantKey, out.Content)
		}
		if _, ok := parsed["reasoning_steps"]; !ok {
			t.Fatalf("hint %q: expected reasoning_steps", tc.hint)
		}
	}
}

func TestGenerateEthicsValues(t *testing.T) {
	client := NewClient()
	out, err := client.Generate(context.Background(), llm.GenerateInput{SchemaHint: "ethics_score"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var parsed struct {
		EthicsScore       float64  `json:"ethics_score"`
		CharterCompliance bool     `json:"charter_compliance"`
		VetoTriggered     bool     `json:"veto_triggered"`
		EthicalConcerns   []string `json:"ethical_concerns"`
	}
	if err := json.Unmarshal(out.Content, &parsed); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if parsed.EthicsScore != 7.5 {
		t.Fatalf("unexpected ethics_score: %v", parsed.EthicsScore)
	}
	if !parsed.CharterCompliance {
		t.Fatalf("expected charter_compliance true")
	}
	if parsed.VetoTriggered {
		t.Fatalf("expected veto_triggered false")
	}
	if len(parsed.EthicalConcerns) != 2 {
		t.Fatalf("expected 2 concerns, got %d", len(parsed.EthicalConcerns))
	}
}

func TestGenerateHonorsCancelledContext(t *testing.T) {
	client := NewClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Generate(ctx, llm.GenerateInput{}); err == nil {
		t.Fatalf("expected context error")
	}
}
