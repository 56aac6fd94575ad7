package reviews

import (
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrSchemaMismatch marks a provider response that parsed as JSON but
	// does not fit the persona's output shape. Never retried.
	ErrSchemaMismatch = errors.New("llm schema mismatch")
)

const maxErrorMessageLen = 500

// sanitizeError flattens an error message for transport payloads. Newlines
// and runs of whitespace collapse to single spaces and the result is capped.
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.Join(strings.Fields(err.Error()), " ")
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}
