package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factcheck-backend/internal/analyses"
	"factcheck-backend/internal/llm"
)

type fakeJobs map[string]analyses.Analysis

func (f fakeJobs) Get(ctx context.Context, id string) (analyses.Analysis, error) {
	a, ok := f[id]
	if !ok {
		return analyses.Analysis{}, analyses.ErrNotFound
	}
	return a, nil
}

func capture(reply string, err error) (llm.Completer, *llm.Request) {
	var seen llm.Request
	return llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		seen = req
		return reply, err
	}), &seen
}

func TestReplyUsesContextVerbatim(t *testing.T) {
	model, seen := capture("The claim was judged likely misleading.", nil)
	svc := &Service{Model: model, Name: "gpt-4o-mini"}
	ctxJSON := `{"jobId":"j1","claims":[{"id":1,"text":"Vaccines cause autism","verdict":"likely_misleading"}]}`

	reply, err := svc.Reply(context.Background(), "u1", Request{
		Message: "Why is this misleading?",
		Context: json.RawMessage(ctxJSON),
		Mode:    "Sources",
	})
	require.NoError(t, err)
	assert.Equal(t, "The claim was judged likely misleading.", reply)
	assert.Contains(t, seen.User, ctxJSON)
	assert.Contains(t, seen.User, "Question: Why is this misleading?")
	assert.Contains(t, seen.System, "Focus on the sources")
}

func TestReplyLoadsStoredJob(t *testing.T) {
	model, seen := capture("ok", nil)
	jobs := fakeJobs{
		"done":    {ID: "done", UserID: "u1", Status: analyses.StatusCompleted, Result: &analyses.AnalysisResult{JobID: "done", TrustLabel: "Likely True"}},
		"running": {ID: "running", UserID: "u1", Status: analyses.StatusProcessing},
	}
	svc := &Service{Model: model, Jobs: jobs}

	_, err := svc.Reply(context.Background(), "u1", Request{JobID: "done", Message: "summarize"})
	require.NoError(t, err)
	assert.Contains(t, seen.User, `"trustLabel":"Likely True"`)

	_, err = svc.Reply(context.Background(), "u1", Request{JobID: "running", Message: "summarize"})
	assert.ErrorIs(t, err, ErrJobNotFinished)

	_, err = svc.Reply(context.Background(), "intruder", Request{JobID: "done", Message: "summarize"})
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = svc.Reply(context.Background(), "u1", Request{JobID: "missing", Message: "summarize"})
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestReplyValidation(t *testing.T) {
	svc := &Service{}
	_, err := svc.Reply(context.Background(), "u1", Request{Context: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Reply(context.Background(), "u1", Request{Message: "hi", Mode: "poetry", Context: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Reply(context.Background(), "u1", Request{Message: "hi"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Reply(context.Background(), "u1", Request{Message: "hi", Context: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBuildPromptKeepsRecentHistory(t *testing.T) {
	history := make([]Turn, 0, 14)
	for i := 0; i < 14; i++ {
		history = append(history, Turn{Role: "user", Content: strings.Repeat("q", i+1)})
	}
	history = append(history, Turn{Role: "assistant", Content: "last answer"})
	p := buildPrompt("{}", history, "next?")
	assert.NotContains(t, p, "User: q\n")
	assert.Contains(t, p, "Assistant: last answer")
	assert.True(t, strings.HasSuffix(p, "Question: next?"))
}

func TestChatHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		model  llm.Completer
		body   string
		status int
	}{
		{"ok", llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) { return "answer", nil }), `{"message":"why?","context":{"claims":[]}}`, http.StatusOK},
		{"validation", nil, `{"message":""}`, http.StatusBadRequest},
		{"not configured", nil, `{"message":"why?","context":{}}`, http.StatusServiceUnavailable},
		{"rate limited", llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) { return "", llm.ErrRateLimited }), `{"message":"why?","context":{}}`, http.StatusTooManyRequests},
		{"transport", llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) { return "", llm.ErrTransport }), `{"message":"why?","context":{}}`, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			NewHandler(&Service{Model: tc.model}).RegisterRoutes(router.Group("/api/v1"))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			assert.Equal(t, tc.status, resp.Code, resp.Body.String())
			if tc.status == http.StatusOK {
				var body map[string]string
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, "answer", body["reply"])
			}
		})
	}
}
