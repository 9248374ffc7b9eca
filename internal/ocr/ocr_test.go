package ocr

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factcheck-backend/internal/llm"
)

func TestReadReturnsCleanText(t *testing.T) {
	var seen llm.Request
	client := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		seen = req
		return "```text\nVaccines cause autism   \r\nShare this!\n```", nil
	})
	r := NewVisionReader(client, "gpt-4o", 1, time.Second)

	text, err := r.Read(context.Background(), Image{URL: "https://img/1.png"})
	require.NoError(t, err)
	assert.Equal(t, "Vaccines cause autism\nShare this!", text)
	assert.Equal(t, "https://img/1.png", seen.ImageURL)
}

func TestReadTypedFailures(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		err   error
		want  error
	}{
		{"marker", "NO_TEXT_FOUND", nil, ErrNoTextFound},
		{"symbols only", " -- ", nil, ErrNoTextFound},
		{"empty", "", llm.ErrEmptyResponse, ErrNoTextFound},
		{"rate limited", "", llm.ErrRateLimited, ErrRateLimited},
		{"transport", "", llm.ErrTransport, ErrTransport},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
				return tc.reply, tc.err
			})
			_, err := NewVisionReader(client, "m", 1, 0).Read(context.Background(), Image{Data: []byte("x")})
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestReadRetriesRateLimit(t *testing.T) {
	var calls int32
	client := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", llm.ErrRateLimited
		}
		return "Breaking news", nil
	})
	r := NewVisionReader(client, "m", 2, 0)
	retry := r.client.(*llm.Retry)
	retry.BaseDelay = time.Millisecond

	text, err := r.Read(context.Background(), Image{URL: "u"})
	require.NoError(t, err)
	assert.Equal(t, "Breaking news", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestReadRequiresImageAndClient(t *testing.T) {
	_, err := NewVisionReader(nil, "m", 1, 0).Read(context.Background(), Image{URL: "u"})
	assert.True(t, errors.Is(err, ErrTransport))

	client := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) { return "x", nil })
	_, err = NewVisionReader(client, "m", 1, 0).Read(context.Background(), Image{})
	assert.True(t, errors.Is(err, ErrTransport))
}
