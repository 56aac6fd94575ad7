package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"review-backend/internal/services/health"
	"review-backend/internal/shared/metrics"
	"review-backend/internal/shared/server/respond"
)

const serviceVersion = "1.0.0"

// registerRootRoutes attaches the service descriptor, health, and metrics endpoints.
func registerRootRoutes(r *gin.Engine, healthSvc *health.Service) {
	r.GET("/", rootHandler)
	r.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, healthSvc.Status(c.Request.Context()))
	})
	r.GET("/metrics", metrics.Handler())
}

func rootHandler(c *gin.Context) {
	respond.JSON(c, http.StatusOK, gin.H{
		"service": "review-backend",
		"version": serviceVersion,
		"endpoints": gin.H{
			"review":       "POST /api/v1/reviews",
			"brief":        "POST /api/v1/reviews/brief",
			"consult":      "POST /api/v1/consult/{innovation|ethics|security}",
			"latest":       "GET /api/v1/reviews/latest?n=10",
			"by_concept":   "GET /api/v1/reviews?concept=<name>",
			"stats":        "GET /api/v1/reviews/stats",
			"review_by_id": "GET /api/v1/reviews/:id",
			"report":       "GET /api/v1/reviews/:id/report",
			"usage":        "GET /api/v1/metrics/summary",
			"methodology":  "GET /api/v1/methodology",
			"about":        "GET /api/v1/about",
			"health":       "GET /health",
			"metrics":      "GET /metrics",
		},
	})
}
