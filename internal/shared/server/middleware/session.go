package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"review-backend/internal/shared/server/respond"
)

const (
	llmProviderKey = "llmProvider"
	llmAPIKeyKey   = "llmAPIKey"

	providerHeader = "X-LLM-Provider"
	apiKeyHeader   = "X-LLM-API-Key"
)

// Session reads the optional per-request LLM provider override from headers
// and stores it in context. Requests without the headers use the server default.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		provider := strings.ToLower(strings.TrimSpace(c.GetHeader(providerHeader)))
		if provider == "" {
			c.Next()
			return
		}

		switch provider {
		case "openai", "anthropic", "gemini", "stub":
		default:
			respond.Error(c, http.StatusBadRequest, "invalid_provider", "unknown LLM provider: "+provider, nil)
			return
		}

		apiKey := strings.TrimSpace(c.GetHeader(apiKeyHeader))
		if apiKey == "" && provider != "stub" {
			respond.Error(c, http.StatusBadRequest, "missing_api_key", "provider override requires "+apiKeyHeader, nil)
			return
		}

		c.Set(llmProviderKey, provider)
		c.Set(llmAPIKeyKey, apiKey)
		c.Next()
	}
}

// ProviderFromContext fetches the provider override set by the session middleware.
func ProviderFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(llmProviderKey)
	if provider, ok := val.(string); ok {
		return provider
	}
	return ""
}

// APIKeyFromContext fetches the API key override set by the session middleware.
func APIKeyFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(llmAPIKeyKey)
	if key, ok := val.(string); ok {
		return key
	}
	return ""
}
