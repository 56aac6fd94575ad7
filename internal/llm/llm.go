package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Provider identifies a supported LLM backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderStub      Provider = "stub"
)

// ParseProvider normalizes a provider name.
func ParseProvider(raw string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return ProviderOpenAI, nil
	case "anthropic":
		return ProviderAnthropic, nil
	case "gemini":
		return ProviderGemini, nil
	case "stub", "mock", "":
		return ProviderStub, nil
	default:
		return "", fmt.Errorf("unknown LLM provider: %s", raw)
	}
}

// GenerateInput captures one structured-output generation request.
type GenerateInput struct {
	Prompt      string
	SchemaHint  string
	Temperature float32
	MaxTokens   int
}

// Usage captures provider-reported token counts for a single call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// GenerateOutput is a provider response carrying the extracted JSON document.
type GenerateOutput struct {
	Content json.RawMessage
	Usage   Usage
	Model   string
	Retries int
}

// Client abstracts LLM providers for structured JSON generation.
type Client interface {
	Name() string
	Generate(ctx context.Context, in GenerateInput) (GenerateOutput, error)
}

// APIError is a remote provider failure carrying the HTTP status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm api error: status %d: %s", e.StatusCode, e.Message)
}
