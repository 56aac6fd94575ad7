package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"review-backend/internal/briefs"
	"review-backend/internal/llm"
	"review-backend/internal/llm/anthropic"
	"review-backend/internal/llm/gemini"
	"review-backend/internal/llm/openai"
	"review-backend/internal/llm/stub"
	"review-backend/internal/reviews"
	"review-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	persona := flag.String("persona", "all", "Persona to consult (innovation, ethics, security, or all)")
	name := flag.String("name", "", "Concept name")
	description := flag.String("description", "", "Concept description text")
	briefPath := flag.String("brief", "", "Path to a concept brief file (pdf, docx, md, or txt)")
	contextText := flag.String("context", "", "Additional context (optional)")
	priorPath := flag.String("prior", "", "Path to prior reasoning text (optional)")
	provider := flag.String("provider", cfg.LLMProvider, "LLM provider")
	outPath := flag.String("out", "", "Path to write JSON output (optional)")
	flag.Parse()

	if strings.TrimSpace(*name) == "" {
		exitErr("concept name is required")
	}

	ctx := context.Background()

	desc := strings.TrimSpace(*description)
	if desc == "" && strings.TrimSpace(*briefPath) != "" {
		data, err := os.ReadFile(*briefPath)
		if err != nil {
			exitErr(fmt.Sprintf("read brief: %v", err))
		}
		desc, err = briefs.ExtractText(ctx, data, "", filepath.Base(*briefPath))
		if err != nil {
			exitErr(fmt.Sprintf("extract brief text: %v", err))
		}
	}
	if desc == "" {
		exitErr("concept description is required (use -description or -brief)")
	}

	prior := ""
	if strings.TrimSpace(*priorPath) != "" {
		data, err := os.ReadFile(*priorPath)
		if err != nil {
			exitErr(fmt.Sprintf("read prior reasoning: %v", err))
		}
		prior = string(data)
	}

	client, err := buildClient(ctx, cfg, *provider)
	if err != nil {
		exitErr(err.Error())
	}

	svc := &reviews.Service{
		LLM:   client,
		Usage: reviews.NewCollector(),
		Synthesis: reviews.SynthesisConfig{
			InnovationWeight: cfg.InnovationWeight,
			EthicsWeight:     cfg.EthicsWeight,
			SecurityWeight:   cfg.SecurityWeight,
			VetoCap:          cfg.VetoCap,
		},
	}

	consultIn := reviews.ConsultInput{
		ConceptName:        *name,
		ConceptDescription: desc,
		Context:            *contextText,
		PriorReasoning:     prior,
	}

	var payload any
	switch strings.ToLower(strings.TrimSpace(*persona)) {
	case "all":
		summary, err := svc.Run(ctx, reviews.RunInput{
			ConceptName:        *name,
			ConceptDescription: desc,
			Context:            *contextText,
		})
		if err != nil {
			exitErr(fmt.Sprintf("review: %v", err))
		}
		payload = summary
	case "innovation":
		analysis, err := svc.ConsultInnovation(ctx, consultIn)
		if err != nil {
			exitErr(fmt.Sprintf("innovation consult: %v", err))
		}
		payload = analysis
	case "ethics":
		analysis, err := svc.ConsultEthics(ctx, consultIn)
		if err != nil {
			exitErr(fmt.Sprintf("ethics consult: %v", err))
		}
		payload = analysis
	case "security":
		analysis, err := svc.ConsultSecurity(ctx, consultIn)
		if err != nil {
			exitErr(fmt.Sprintf("security consult: %v", err))
		}
		payload = analysis
	default:
		exitErr(fmt.Sprintf("unsupported persona: %s", *persona))
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		exitErr(fmt.Sprintf("encode result: %v", err))
	}

	pretty, err := prettyJSON(raw)
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}

	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
	if len(pretty) == 0 || pretty[len(pretty)-1] != '\n' {
		_, _ = os.Stdout.Write([]byte("\n"))
	}
}

func buildClient(ctx context.Context, cfg config.Config, provider string) (llm.Client, error) {
	retry := llm.RetryConfig{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		BackoffBase:  cfg.BackoffBase,
	}

	var (
		client llm.Client
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		client, err = openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMTimeout)
	case "anthropic":
		client, err = anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.LLMTimeout)
	case "gemini":
		client, err = gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "", "stub":
		client = stub.NewClient()
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}
	return llm.WithRetry(client, retry), nil
}

func prettyJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
