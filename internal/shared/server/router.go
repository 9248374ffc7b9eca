package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"factcheck-backend/internal/analyses"
	"factcheck-backend/internal/chat"
	"factcheck-backend/internal/services/health"
	"factcheck-backend/internal/shared/config"
	"factcheck-backend/internal/shared/metrics"
	"factcheck-backend/internal/shared/server/middleware"
	"factcheck-backend/internal/shared/server/respond"
	"factcheck-backend/internal/uploads"
)

// RouterDeps carries the handlers the API exposes. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	Health          *health.Service
	AnalysisHandler *analyses.Handler
	ChatHandler     *chat.Handler
	UploadsHandler  *uploads.Handler
}

// Request budgets per principal. Submitting an analysis fans out to several
// paid model calls, so it gets the tightest group.
var rateLimitRules = map[string]middleware.RateLimitRule{
	"DEFAULT": {Rate: 5, Burst: 20},
	"ANALYZE": {Rate: 0.2, Burst: 5},
	"CHAT":    {Rate: 0.5, Burst: 10},
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})

	authed := api.Group("")
	authed.Use(
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    rateLimitRules,
			GroupFor: rateLimitGroup,
		}),
	)
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(authed)
	}
	if deps.ChatHandler != nil {
		deps.ChatHandler.RegisterRoutes(authed)
	}
	if deps.UploadsHandler != nil {
		deps.UploadsHandler.RegisterRoutes(authed)
	}

	return r
}

func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return "DEFAULT"
	}
	switch c.FullPath() {
	case "/api/v1/analyze", "/api/v1/analyses":
		return "ANALYZE"
	case "/api/v1/chat":
		return "CHAT"
	}
	return "DEFAULT"
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
