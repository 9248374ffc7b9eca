package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInfoWritesSortedFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	Info("analysis.status", map[string]any{
		"status":  "completed",
		"job_id":  "job-1",
		"err_val": errors.New("boom"),
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "analysis.status", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "job-1", ctx["job_id"])
	assert.Equal(t, "completed", ctx["status"])
	assert.Equal(t, "boom", ctx["err_val"])
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, zap.InfoLevel, parseLevel(""))
	assert.Equal(t, zap.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zap.WarnLevel, parseLevel("warning"))
}
