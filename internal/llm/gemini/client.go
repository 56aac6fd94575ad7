package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"review-backend/internal/llm"
)

// Client is a thin wrapper around the official genai client.
type Client struct {
	cli   *genai.Client
	model string
}

// NewClient constructs a new Gemini client.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{cli: cli, model: model}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return "gemini" }

// Generate sends the prompt with application/json response type and returns
// the extracted JSON document.
func (c *Client) Generate(ctx context.Context, in llm.GenerateInput) (llm.GenerateOutput, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if in.Temperature > 0 {
		cfg.Temperature = genai.Ptr(in.Temperature)
	}
	if in.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(in.MaxTokens)
	}
	prompt := in.Prompt
	if in.SchemaHint != "" {
		prompt += "\n\nRespond with valid JSON only, matching this schema:\n" + in.SchemaHint + "\n\nJSON Response:"
	}

	resp, err := c.cli.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		cfg,
	)
	if err != nil {
		return llm.GenerateOutput{}, toAPIError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return llm.GenerateOutput{}, fmt.Errorf("gemini response empty content")
	}

	text := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return llm.GenerateOutput{}, fmt.Errorf("gemini response empty content")
	}

	doc, ok := llm.ExtractJSON(text)
	if !ok {
		doc = llm.DegradedPayload(text, "no JSON object in response")
	}

	out := llm.GenerateOutput{
		Content: doc,
		Model:   c.model,
	}
	if resp.UsageMetadata != nil {
		out.Usage = llm.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

// toAPIError converts genai transport failures into llm.APIError so the retry
// policy can classify them by status code.
func toAPIError(err error) error {
	var ptr *genai.APIError
	if errors.As(err, &ptr) {
		return &llm.APIError{StatusCode: ptr.Code, Message: ptr.Message}
	}
	var val genai.APIError
	if errors.As(err, &val) {
		return &llm.APIError{StatusCode: val.Code, Message: val.Message}
	}
	return err
}

var _ llm.Client = (*Client)(nil)
