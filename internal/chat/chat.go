package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"factcheck-backend/internal/analyses"
	"factcheck-backend/internal/llm"
	"factcheck-backend/internal/shared/metrics"
	"factcheck-backend/internal/shared/telemetry"
)

const (
	ModeExplain = "explain"
	ModeSources = "sources"
	ModeBias    = "bias"

	maxMessageLen = 2000
	maxContextLen = 24000
	maxHistory    = 10
)

var (
	ErrValidation     = errors.New("invalid chat request")
	ErrJobNotFound    = errors.New("job not found")
	ErrJobNotFinished = errors.New("job has no result yet")
	ErrNotConfigured  = errors.New("chat model not configured")
	ErrUnavailable    = errors.New("chat model unavailable")
)

var modeInstructions = map[string]string{
	ModeExplain: "Explain the verdicts and trust scores in plain language. Make clear that a trust score measures confidence in the verdict, not whether a claim is true.",
	ModeSources: "Focus on the sources: which ones support or contradict each claim and how credible they are.",
	ModeBias:    "Focus on the bias assessment: political lean, sensationalism, how much the perspectives agreed and the signals detected.",
}

// Turn is one earlier exchange the client wants the model to see. The server
// keeps no conversation state.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat question about one analysis. Context is the serialized
// AnalysisResult, passed through verbatim.
type Request struct {
	JobID   string          `json:"jobId"`
	Message string          `json:"message"`
	Context json.RawMessage `json:"context,omitempty"`
	Mode    string          `json:"mode,omitempty"`
	History []Turn          `json:"history,omitempty"`
}

// Jobs looks up stored analyses when the client sends only a job id.
type Jobs interface {
	Get(ctx context.Context, analysisID string) (analyses.Analysis, error)
}

// Service answers questions about an analysis result.
type Service struct {
	Model llm.Completer
	Name  string
	Jobs  Jobs
}

// NormalizeMode maps an empty mode to explain and rejects unknown modes.
func NormalizeMode(mode string) (string, error) {
	m := strings.ToLower(strings.TrimSpace(mode))
	if m == "" {
		return ModeExplain, nil
	}
	if _, ok := modeInstructions[m]; !ok {
		return "", fmt.Errorf("%w: unknown mode %q", ErrValidation, mode)
	}
	return m, nil
}

// Reply answers req. userID scopes stored-job lookups to their owner.
func (s *Service) Reply(ctx context.Context, userID string, req Request) (string, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return "", fmt.Errorf("%w: message is required", ErrValidation)
	}
	if len(message) > maxMessageLen {
		return "", fmt.Errorf("%w: message exceeds %d characters", ErrValidation, maxMessageLen)
	}
	mode, err := NormalizeMode(req.Mode)
	if err != nil {
		return "", err
	}
	report, err := s.report(ctx, userID, req)
	if err != nil {
		return "", err
	}
	if s.Model == nil {
		return "", ErrNotConfigured
	}

	out, err := s.Model.Complete(ctx, llm.Request{
		System:      llm.MustSystemPrompt(llm.PromptChat) + "\n\n" + modeInstructions[mode],
		User:        buildPrompt(report, req.History, message),
		Temperature: 0.3,
		MaxTokens:   400,
	})
	if err != nil {
		metrics.IncModelCall("chat", s.Name, "error")
		telemetry.Warn("model.call", map[string]any{
			"kind":    "chat",
			"backend": s.Name,
			"job_id":  req.JobID,
			"error":   err.Error(),
		})
		if errors.Is(err, llm.ErrNotConfigured) {
			return "", ErrNotConfigured
		}
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	reply := strings.TrimSpace(out)
	if reply == "" {
		metrics.IncModelCall("chat", s.Name, "empty")
		return "", fmt.Errorf("%w: %w", ErrUnavailable, llm.ErrEmptyResponse)
	}
	metrics.IncModelCall("chat", s.Name, "ok")
	return reply, nil
}

// report returns the JSON the model answers from: the client's context when
// present, else the stored result of the named job.
func (s *Service) report(ctx context.Context, userID string, req Request) (string, error) {
	if raw := strings.TrimSpace(string(req.Context)); raw != "" && raw != "null" {
		if !json.Valid([]byte(raw)) {
			return "", fmt.Errorf("%w: context must be JSON", ErrValidation)
		}
		return raw, nil
	}
	if strings.TrimSpace(req.JobID) == "" {
		return "", fmt.Errorf("%w: context or jobId is required", ErrValidation)
	}
	if s.Jobs == nil {
		return "", ErrJobNotFound
	}
	job, err := s.Jobs.Get(ctx, req.JobID)
	if err != nil {
		if errors.Is(err, analyses.ErrNotFound) {
			return "", ErrJobNotFound
		}
		return "", err
	}
	if job.UserID != "" && job.UserID != userID {
		return "", ErrJobNotFound
	}
	if job.Status != analyses.StatusCompleted || job.Result == nil {
		return "", ErrJobNotFinished
	}
	data, err := json.Marshal(job.Result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func buildPrompt(report string, history []Turn, message string) string {
	if len(report) > maxContextLen {
		report = report[:maxContextLen]
	}
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	var b strings.Builder
	b.WriteString("Fact-check report (JSON):\n")
	b.WriteString(report)
	b.WriteString("\n")
	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, t := range history {
			role := "User"
			if strings.EqualFold(t.Role, "assistant") {
				role = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, strings.TrimSpace(t.Content))
		}
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(message)
	return b.String()
}
