package bias

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"factcheck-backend/internal/llm"
	"factcheck-backend/internal/shared/metrics"
	"factcheck-backend/internal/shared/telemetry"
)

// Perspective is one ideological or geographic lens.
type Perspective struct {
	Key    string
	Prompt string
}

// DefaultPerspectives are the three lenses every job is read through.
var DefaultPerspectives = []Perspective{
	{Key: "left", Prompt: "Read the text as a media critic from a left-leaning outlet would, noting framing that a progressive reader would flag."},
	{Key: "right", Prompt: "Read the text as a media critic from a right-leaning outlet would, noting framing that a conservative reader would flag."},
	{Key: "international", Prompt: "Read the text as an international wire-service editor with no stake in domestic politics."},
}

// Model is one assessment backend.
type Model struct {
	Name   string
	Client llm.Completer
}

// Aggregator runs every perspective against every model concurrently.
type Aggregator struct {
	Perspectives []Perspective
	Models       []Model
}

func NewAggregator(models []Model) *Aggregator {
	return &Aggregator{Perspectives: DefaultPerspectives, Models: models}
}

// Assess returns the job-level signals for the claims. It never fails: each
// failed assessment is replaced by the neutral default and still counted.
func (a *Aggregator) Assess(ctx context.Context, claims []string, fullText string) Signals {
	if a == nil || len(a.Models) == 0 || len(a.Perspectives) == 0 {
		return Unassessed("Bias assessment was not configured.")
	}
	user := buildPrompt(claims, fullText)

	assessments := make([]Assessment, len(a.Perspectives)*len(a.Models))
	var wg sync.WaitGroup
	for pi, p := range a.Perspectives {
		for mi, m := range a.Models {
			wg.Add(1)
			go func(i int, p Perspective, m Model) {
				defer wg.Done()
				assessments[i] = assess(ctx, p, m, user)
			}(pi*len(a.Models)+mi, p, m)
		}
	}
	wg.Wait()
	return Aggregate(assessments)
}

func assess(ctx context.Context, p Perspective, m Model, user string) Assessment {
	neutral := Assessment{
		Perspective:    p.Key,
		Model:          m.Name,
		PoliticalBias:  defaultBias,
		Sensationalism: defaultSensationalism,
		Failed:         true,
	}
	if m.Client == nil {
		metrics.IncModelCall("bias", m.Name, "not_configured")
		return neutral
	}
	raw, err := m.Client.Complete(ctx, llm.Request{
		System: p.Prompt + "\n\n" + llm.MustSystemPrompt(llm.PromptBias),
		User:   user,
		JSON:   true,
	})
	if err == nil {
		var b, s float64
		var reasoning string
		b, s, reasoning, err = ParseAssessment(raw)
		if err == nil {
			metrics.IncModelCall("bias", m.Name, "ok")
			return Assessment{
				Perspective:    p.Key,
				Model:          m.Name,
				PoliticalBias:  b,
				Sensationalism: s,
				Reasoning:      reasoning,
			}
		}
	}
	metrics.IncModelCall("bias", m.Name, "error")
	telemetry.Warn("model.call", map[string]any{
		"kind":        "bias",
		"backend":     m.Name,
		"perspective": p.Key,
		"error":       err.Error(),
	})
	return neutral
}

func buildPrompt(claims []string, fullText string) string {
	var b strings.Builder
	b.WriteString("Claims:\n")
	for i, c := range claims {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(c))
	}
	if t := strings.TrimSpace(fullText); t != "" {
		b.WriteString("\nFull text:\n")
		b.WriteString(t)
		b.WriteString("\n")
	}
	return b.String()
}
