package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factcheck-backend/internal/llm"
)

func TestIsReasoningModel(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "uppercase", model: " GPT-5o ", want: true},
		{name: "o3", model: "o3-mini", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := isReasoningModel(tt.model); got != tt.want {
				t.Fatalf("isReasoningModel(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, func() map[string]any) {
	t.Helper()
	var mu sync.Mutex
	var last map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		last = payload
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, func() map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func TestCompleteReturnsContent(t *testing.T) {
	srv, last := newTestServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":" {\"verdict\":\"mixed\"} "}}]}`)
	client, err := NewClient("test-key", "gpt-4o-mini", srv.URL)
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), llm.Request{System: "sys", User: "claim", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"verdict":"mixed"}`, out)

	body := last()
	assert.Equal(t, "gpt-4o-mini", body["model"])
	rf, ok := body["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", rf["type"])
}

func TestCompleteSendsImageAsDataURL(t *testing.T) {
	srv, last := newTestServer(t, http.StatusOK, `{"choices":[{"message":{"content":"hello"}}]}`)
	client, err := NewClient("test-key", "gpt-4o", srv.URL)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), llm.Request{User: "read", ImageData: []byte("png"), ImageMIME: "image/png"})
	require.NoError(t, err)

	msgs := last()["messages"].([]any)
	user := msgs[len(msgs)-1].(map[string]any)
	parts := user["content"].([]any)
	img := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, "data:image/png;base64,cG5n", img["url"])
}

func TestCompleteClassifiesRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	client, err := NewClient("test-key", "gpt-4o-mini", srv.URL)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), llm.Request{User: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrRateLimited), err.Error())
}

func TestCompleteClassifiesServerError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`)
	client, err := NewClient("test-key", "gpt-4o-mini", srv.URL)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), llm.Request{User: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrTransport))
	assert.False(t, errors.Is(err, llm.ErrRateLimited))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("", "gpt-4o", "")
	assert.True(t, errors.Is(err, llm.ErrNotConfigured))
}
