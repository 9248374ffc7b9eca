package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"factcheck-backend/internal/shared/metrics"
	"factcheck-backend/internal/shared/telemetry"
)

// quietPaths are counted but never logged; scrapers and probes hit them constantly.
var quietPaths = map[string]bool{
	"/metrics":       true,
	"/api/v1/health": true,
}

// Logging emits one request.complete event per request and counts it by
// route template. Preflight requests are skipped.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()

		metrics.IncHTTPRequest(route, c.Request.Method, status)
		if quietPaths[route] && status < http.StatusInternalServerError {
			return
		}

		fields := map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"route":             route,
			"status":            status,
			"status_transition": c.GetString("statusTransition"),
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"user_id":           c.GetString(userIDKey),
			"analysis_id":       c.GetString("analysisId"),
			"is_guest":          c.GetBool("isGuest"),
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}
		if status >= http.StatusInternalServerError {
			telemetry.Warn("request.complete", fields)
			return
		}
		telemetry.Info("request.complete", fields)
	}
}
