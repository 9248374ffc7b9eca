package respond

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"factcheck-backend/internal/shared/telemetry"
)

func TestErrorWithHintWritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	telemetry.SetLogger(zap.New(core))
	t.Cleanup(func() { telemetry.SetLogger(nil) })

	router := gin.New()
	router.POST("/analyze", func(c *gin.Context) {
		c.Set("requestId", "req-1")
		c.Set("analysisId", "job-1")
		ErrorWithHint(c, http.StatusGatewayTimeout, "job_timeout", "analysis did not finish in time", "try a smaller screenshot")
		c.JSON(http.StatusOK, gin.H{"unreachable": true})
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/analyze", nil))
	require.Equal(t, http.StatusGatewayTimeout, resp.Code)

	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Message string            `json:"message"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "job_timeout", body.Error.Code)
	assert.Equal(t, "try a smaller screenshot", body.Error.Details["hint"])

	entries := logs.FilterMessage("http.error").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "job-1", fields["analysis_id"])
}

func TestErrorOmitsEmptyDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/x", func(c *gin.Context) {
		Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.JSONEq(t, `{"error":{"code":"not_found","message":"analysis not found"}}`, resp.Body.String())
}
