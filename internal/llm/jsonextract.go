package llm

import "encoding/json"

// ExtractJSON returns the first balanced JSON object embedded in text.
// Providers without a strict JSON mode wrap documents in prose or code fences.
func ExtractJSON(text string) (json.RawMessage, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if json.Valid([]byte(candidate)) {
					return json.RawMessage(candidate), true
				}
				// Malformed candidate; keep scanning from the next brace.
				start = -1
			}
		}
	}
	return nil, false
}

// DegradedPayload wraps provider text that could not be parsed as JSON into a
// structured document so callers can degrade instead of failing.
func DegradedPayload(raw, cause string) json.RawMessage {
	payload := map[string]string{
		"raw_response": raw,
		"parse_error":  cause,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return json.RawMessage(`{"raw_response":"","parse_error":"marshal failed"}`)
	}
	return data
}
