package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"review-backend/internal/llm"
)

var apiURL = "https://api.anthropic.com/v1/messages"

const (
	apiVersion = "2023-06-01"

	// The Messages API requires max_tokens on every request.
	defaultMaxTokens = 4096
)

// Client implements llm.Client using the Anthropic Messages API.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a new Anthropic client.
func NewClient(apiKey, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("ANTHROPIC_MODEL is required")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return "anthropic" }

type messageRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float32  `json:"temperature,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	StopReason string `json:"stop_reason"`
}

type errorResponse struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends the prompt and returns the extracted JSON document. The
// Messages API has no JSON mode, so the document is scanned out of the text.
func (c *Client) Generate(ctx context.Context, in llm.GenerateInput) (llm.GenerateOutput, error) {
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	prompt := in.Prompt
	if in.SchemaHint != "" {
		prompt += "\n\nRespond with valid JSON only, matching this schema:\n" + in.SchemaHint + "\n\nJSON Response:"
	}
	reqBody := messageRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	}
	if in.Temperature > 0 {
		temp := in.Temperature
		reqBody.Temperature = &temp
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return llm.GenerateOutput{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return llm.GenerateOutput{}, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return llm.GenerateOutput{}, fmt.Errorf("anthropic request timeout: %w", err)
		}
		return llm.GenerateOutput{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.GenerateOutput{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return llm.GenerateOutput{}, &llm.APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}

	var parsed messageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return llm.GenerateOutput{}, fmt.Errorf("anthropic response parse: %w", err)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return llm.GenerateOutput{}, fmt.Errorf("anthropic response empty content")
	}

	doc, ok := llm.ExtractJSON(text)
	if !ok {
		doc = llm.DegradedPayload(text, "no JSON object in response")
	}

	out := llm.GenerateOutput{
		Content: doc,
		Model:   parsed.Model,
	}
	if out.Model == "" {
		out.Model = c.model
	}
	if parsed.Usage != nil {
		out.Usage = llm.Usage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
		}
	}
	return out, nil
}

func errorMessage(body []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

var _ llm.Client = (*Client)(nil)
