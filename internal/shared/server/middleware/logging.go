package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"review-backend/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		reqID := RequestIDFromContext(c)

		reviewID, _ := c.Get("reviewId")
		concept, _ := c.Get("concept")
		provider := ProviderFromContext(c)
		if provider == "" {
			provider = "default"
		}

		telemetry.Info("request.complete", map[string]any{
			"request_id":   reqID,
			"method":       c.Request.Method,
			"path":         c.Request.URL.Path,
			"status":       status,
			"duration_ms":  float64(latency.Microseconds()) / 1000.0,
			"review_id":    reviewID,
			"concept":      concept,
			"llm_provider": provider,
			"client_ip":    c.ClientIP(),
			"user_agent":   c.Request.UserAgent(),
		})
	}
}
