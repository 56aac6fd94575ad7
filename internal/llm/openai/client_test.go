package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"review-backend/internal/llm"
)

func withTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	prev := apiURL
	apiURL = srv.URL
	t.Cleanup(func() { apiURL = prev })

	client, err := NewClient("sk-test", "gpt-4-turbo", 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("", "gpt-4-turbo", 0); err == nil {
		t.Fatalf("expected error for missing api key")
	}
	if _, err := NewClient("sk-test", " ", 0); err == nil {
		t.Fatalf("expected error for missing model")
	}
}

func TestGenerateParsesResponse(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("unexpected Authorization header: %q", got)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["model"] != "gpt-4-turbo" {
			t.Fatalf("unexpected model: %v", req["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-4-0613",
			"choices": [{"message": {"role": "assistant", "content": "{\"innovation_score\": 8.0}"}}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 40, "total_tokens": 160}
		}`))
	})

	out, err := client.Generate(context.Background(), llm.GenerateInput{Prompt: "p", Temperature: 0.7})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var parsed map[string]float64
	if err := json.Unmarshal(out.Content, &parsed); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if parsed["innovation_score"] != 8.0 {
		t.Fatalf("unexpected content: %s", out.Content)
	}
	if out.Model != "gpt-4-0613" {
		t.Fatalf("unexpected model: %q", out.Model)
	}
	if out.Usage.InputTokens != 120 || out.Usage.OutputTokens != 40 {
		t.Fatalf("unexpected usage: %+v", out.Usage)
	}
}

func TestGenerateMapsHTTPStatusToAPIError(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "Rate limit reached", "type": "rate_limit_error"}}`))
	})

	_, err := client.Generate(context.Background(), llm.GenerateInput{Prompt: "p"})
	var apiErr *llm.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Rate limit reached" {
		t.Fatalf("unexpected message: %q", apiErr.Message)
	}
}

func TestGenerateDegradesOnNonJSONContent(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "I am unable to produce a structured answer."}}]
		}`))
	})

	out, err := client.Generate(context.Background(), llm.GenerateInput{Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var parsed map[string]string
	if err := json.Unmarshal(out.Content, &parsed); err != nil {
		t.Fatalf("decode degraded content: %v", err)
	}
	if parsed["raw_response"] != "I am unable to produce a structured answer." {
		t.Fatalf("unexpected raw_response: %q", parsed["raw_response"])
	}
	if parsed["parse_error"] == "" {
		t.Fatalf("expected parse_error")
	}
}

func TestGenerateRejectsEmptyChoices(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": []}`))
	})

	if _, err := client.Generate(context.Background(), llm.GenerateInput{Prompt: "p"}); err == nil {
		t.Fatalf("expected error for missing choices")
	}
}
