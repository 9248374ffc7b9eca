package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusUnconfigured(t *testing.T) {
	r := NewService().Status(context.Background())
	assert.True(t, r.OK)
	assert.False(t, r.Ready)
	assert.Equal(t, "disabled", r.Search)
	assert.NotNil(t, r.Verifier.Seats)
	assert.Contains(t, r.Hint, "OPENAI_API_KEY")
}

func TestStatusReadyWithChecks(t *testing.T) {
	s := NewService()
	s.OCR = true
	s.VerifierSeats = []string{"gpt-4o", "gpt-4o-mini", "claude-haiku"}
	s.SearchProvider = "brave"
	s.Checks["database"] = PingFunc(func(ctx context.Context) error { return nil })

	r := s.Status(context.Background())
	assert.True(t, r.Ready)
	assert.Empty(t, r.Hint)
	assert.Equal(t, "ok", r.Checks["database"])
}

func TestStatusFailingCheck(t *testing.T) {
	s := NewService()
	s.OCR = true
	s.VerifierSeats = []string{"a"}
	s.Checks["redis"] = PingFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	r := s.Status(context.Background())
	assert.False(t, r.OK)
	assert.False(t, r.Ready)
	assert.Equal(t, "error: connection refused", r.Checks["redis"])
}
