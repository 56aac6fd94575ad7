package server

import (
	"github.com/gin-gonic/gin"

	"review-backend/internal/reviews"
	"review-backend/internal/services/health"
	"review-backend/internal/shared/config"
	"review-backend/internal/shared/server/middleware"
)

// RouterDeps carries the wired dependencies the HTTP layer needs.
type RouterDeps struct {
	Config  config.Config
	Reviews *reviews.Handler
	Health  *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Session(),
	)

	registerRootRoutes(r, deps.Health)

	api := r.Group("/api/v1")
	if deps.Config.RateLimitRPS > 0 && deps.Config.RateLimitBurst > 0 {
		api.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {
					Rate:  deps.Config.RateLimitRPS,
					Burst: deps.Config.RateLimitBurst,
				},
			},
		}))
	}
	deps.Reviews.RegisterRoutes(api)

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
