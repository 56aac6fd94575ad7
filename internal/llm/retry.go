package llm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"review-backend/internal/shared/metrics"
	"review-backend/internal/shared/telemetry"
)

// RetryConfig controls the backoff schedule for transient provider failures.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	BackoffBase  float64
}

// DefaultRetryConfig returns the documented retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		BackoffBase:  2.0,
	}
}

type retryingClient struct {
	base   Client
	cfg    RetryConfig
	jitter func() float64
}

// WithRetry wraps a client with exponential backoff for transient API errors.
// Non-retryable errors surface immediately.
func WithRetry(base Client, cfg RetryConfig) Client {
	if base == nil {
		return nil
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}
	if cfg.BackoffBase <= 1 {
		cfg.BackoffBase = 2.0
	}
	return &retryingClient{
		base: base,
		cfg:  cfg,
		jitter: func() float64 {
			return 0.5 + rand.Float64()
		},
	}
}

func (r *retryingClient) Name() string {
	return r.base.Name()
}

func (r *retryingClient) Generate(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	for attempt := 0; ; attempt++ {
		metrics.IncLLMCall()
		start := time.Now()
		out, err := r.base.Generate(ctx, in)
		metrics.ObserveLLMCallDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)
		if err == nil {
			out.Retries = attempt
			metrics.AddLLMRetries(attempt)
			return out, nil
		}
		if !IsRetryable(err) || attempt >= r.cfg.MaxRetries {
			metrics.AddLLMRetries(attempt)
			return GenerateOutput{}, err
		}

		delay := r.delay(attempt)
		telemetry.Warn("llm.retry", map[string]any{
			"provider": r.base.Name(),
			"attempt":  attempt + 1,
			"delay_ms": delay.Milliseconds(),
			"error":    err.Error(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return GenerateOutput{}, ctx.Err()
		}
	}
}

// delay is min(initial * base^attempt, max) scaled by jitter in [0.5, 1.5).
func (r *retryingClient) delay(attempt int) time.Duration {
	base := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.BackoffBase, float64(attempt))
	if limit := float64(r.cfg.MaxDelay); base > limit {
		base = limit
	}
	return time.Duration(base * r.jitter())
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case 429, 500, 502, 503, 529:
		return true
	}
	return false
}
