package verify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"factcheck-backend/internal/llm"
	"factcheck-backend/internal/shared/metrics"
	"factcheck-backend/internal/shared/telemetry"
	"factcheck-backend/internal/sources"
)

const maxSnippetLen = 400

// Result is the verification outcome for one claim.
type Result struct {
	Verdict        Verdict        `json:"verdict"`
	AvgConfidence  float64        `json:"avgConfidence"`
	ModelAgreement float64        `json:"modelAgreement"`
	Verdicts       []ModelVerdict `json:"modelVerdicts"`
}

// Verifier asks every backend about a claim concurrently and resolves the
// answers into a consensus. Backend failures never escape Verify.
type Verifier struct {
	Backends []Backend
}

func NewVerifier(backends []Backend) *Verifier {
	return &Verifier{Backends: backends}
}

// Verify returns exactly len(Backends) verdicts, in roster order.
func (v *Verifier) Verify(ctx context.Context, claim string, evidence []sources.Source) Result {
	verdicts := make([]ModelVerdict, len(v.Backends))
	user := buildPrompt(claim, evidence)

	var wg sync.WaitGroup
	for idx, backend := range v.Backends {
		wg.Add(1)
		go func(i int, b Backend) {
			defer wg.Done()
			verdicts[i] = ask(ctx, b, user)
		}(idx, backend)
	}
	wg.Wait()

	final, avg, agreement := Consensus(verdicts)
	return Result{
		Verdict:        final,
		AvgConfidence:  avg,
		ModelAgreement: agreement,
		Verdicts:       verdicts,
	}
}

// VerifyAll verifies every claim concurrently. evidence[i] belongs to
// claims[i]; results keep claim order.
func (v *Verifier) VerifyAll(ctx context.Context, claims []string, evidence [][]sources.Source) []Result {
	results := make([]Result, len(claims))
	var wg sync.WaitGroup
	for idx, claim := range claims {
		var ev []sources.Source
		if idx < len(evidence) {
			ev = evidence[idx]
		}
		wg.Add(1)
		go func(i int, c string, e []sources.Source) {
			defer wg.Done()
			results[i] = v.Verify(ctx, c, e)
		}(idx, claim, ev)
	}
	wg.Wait()
	return results
}

func ask(ctx context.Context, b Backend, user string) ModelVerdict {
	if b.Client == nil {
		metrics.IncModelCall("verify", b.Name, "not_configured")
		return neutralVerdict(b, llm.ErrNotConfigured)
	}
	system := llm.MustSystemPrompt(llm.PromptVerify)
	if b.Persona != "" {
		system = b.Persona + "\n\n" + system
	}
	raw, err := b.Client.Complete(ctx, llm.Request{System: system, User: user, JSON: true})
	if err != nil {
		metrics.IncModelCall("verify", b.Name, outcome(err))
		telemetry.Warn("model.call", map[string]any{
			"kind":    "verify",
			"backend": b.Name,
			"error":   err.Error(),
		})
		return neutralVerdict(b, err)
	}
	verdict, confidence, reasoning, err := ParseVerdict(raw)
	if err != nil {
		metrics.IncModelCall("verify", b.Name, "parse_error")
		telemetry.Warn("model.call", map[string]any{
			"kind":    "verify",
			"backend": b.Name,
			"error":   err.Error(),
		})
		return neutralVerdict(b, err)
	}
	metrics.IncModelCall("verify", b.Name, "ok")
	return ModelVerdict{
		Model:      b.Name,
		Verdict:    verdict,
		Confidence: confidence,
		Reasoning:  reasoning,
		Simulated:  b.Simulated(),
	}
}

func buildPrompt(claim string, evidence []sources.Source) string {
	var b strings.Builder
	b.WriteString("Claim:\n")
	b.WriteString(strings.TrimSpace(claim))
	b.WriteString("\n\nEvidence:\n")
	if len(evidence) == 0 {
		b.WriteString("(no external sources were found; rely on well-established knowledge and lower your confidence)\n")
	}
	for i, s := range evidence {
		date := "undated"
		if s.PublishedDate != nil {
			date = s.PublishedDate.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "[%d] %s (%s, credibility %.2f, %s)\n", i+1, s.Title, s.Domain, s.Credibility, date)
		if snippet := clip(s.Snippet, maxSnippetLen); snippet != "" {
			b.WriteString("    ")
			b.WriteString(snippet)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func outcome(err error) string {
	switch failureKind(err) {
	case "rate limited":
		return "rate_limited"
	default:
		return "error"
	}
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
