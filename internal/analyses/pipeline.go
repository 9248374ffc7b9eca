package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"factcheck-backend/internal/bias"
	"factcheck-backend/internal/claims"
	"factcheck-backend/internal/llm"
	"factcheck-backend/internal/ocr"
	"factcheck-backend/internal/shared/metrics"
	"factcheck-backend/internal/shared/telemetry"
	"factcheck-backend/internal/sources"
	"factcheck-backend/internal/trust"
	"factcheck-backend/internal/verify"
)

const (
	defaultJobTimeout  = 45 * time.Second
	defaultSearchLimit = 10
)

// Pipeline runs one fact-check job through OCR, extraction and search, the
// quality gate, verification and bias assessment, and scoring. Only OCR
// failure, missing configuration and the job deadline fail a run.
type Pipeline struct {
	OCR         ocr.Reader
	Extractor   claims.Extractor
	Sources     *sources.Aggregator
	Verifier    *verify.Verifier
	Bias        *bias.Aggregator
	Engine      trust.Engine
	SearchLimit int
	Timeout     time.Duration
	Now         func() time.Time
}

// Job identifies the image to check.
type Job struct {
	ID       string
	Image    ocr.Image
	ImageRef string
}

// Run executes the job. A failed quality gate is not an error: the result
// carries unable_to_verify claims instead. Partial results are never returned.
func (p *Pipeline) Run(ctx context.Context, job Job) (AnalysisResult, error) {
	if p == nil || p.OCR == nil {
		return AnalysisResult{}, fmt.Errorf("%w: no OCR backend", ErrNotConfigured)
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := p.OCR.Read(ctx, job.Image)
	if err != nil {
		return AnalysisResult{}, p.ocrFailure(ctx, err)
	}
	p.transition(ctx, job.ID, "ocr->extract_and_search", nil)

	var (
		claimList []string
		synthetic bool
		found     []sources.Source
		g         errgroup.Group
	)
	g.Go(func() error {
		claimList, synthetic = claims.ExtractOrFallback(ctx, p.Extractor, text)
		return nil
	})
	g.Go(func() error {
		if p.Sources != nil {
			found = p.Sources.Search(ctx, claims.SearchQuery(text), p.searchLimit())
		}
		return nil
	})
	_ = g.Wait()
	if ctx.Err() != nil {
		return AnalysisResult{}, ErrJobTimeout
	}

	gate := trust.CheckGate(found)
	metrics.IncQualityGate(gate.Passed)
	telemetry.Info("analysis.gate", map[string]any{
		"request_id":   RequestIDFromContext(ctx),
		"job_id":       job.ID,
		"passed":       gate.Passed,
		"high_quality": gate.HighQuality,
		"sources":      len(found),
		"claims":       len(claimList),
		"synthetic":    synthetic,
	})

	result := AnalysisResult{
		JobID:       job.ID,
		ImageURL:    job.ImageRef,
		OCRText:     text,
		GeneratedAt: p.now().UTC(),
	}

	if !gate.Passed {
		p.transition(ctx, job.ID, "gate_check->unable_to_verify", map[string]any{"high_quality": gate.HighQuality})
		result.Claims = unverifiedClaims(claimList, found, gate)
		result.AggregateTrustScore = 0
		result.TrustLabel = trust.LabelUnableToVerify
		result.Summary = gate.Explanation()
		return result, nil
	}
	if p.Verifier == nil || len(p.Verifier.Backends) == 0 {
		return AnalysisResult{}, fmt.Errorf("%w: no verification backends", ErrNotConfigured)
	}
	p.transition(ctx, job.ID, "gate_check->verify", nil)

	evidence := claimSources(found)
	perClaim := make([][]sources.Source, len(claimList))
	for i := range perClaim {
		perClaim[i] = evidence
	}

	var (
		verdicts []verify.Result
		signals  bias.Signals
	)
	g = errgroup.Group{}
	g.Go(func() error {
		verdicts = p.Verifier.VerifyAll(ctx, claimList, perClaim)
		return nil
	})
	g.Go(func() error {
		if p.Bias != nil {
			signals = p.Bias.Assess(ctx, claimList, text)
		} else {
			signals = bias.Unassessed("No bias assessment models are configured.")
		}
		return nil
	})
	_ = g.Wait()
	if ctx.Err() != nil {
		return AnalysisResult{}, ErrJobTimeout
	}
	p.transition(ctx, job.ID, "verify->synthesize", nil)

	engine := p.Engine
	if engine.Now == nil {
		engine.Now = p.now
	}
	penalty := signals.Penalty()
	shared := signals

	scores := make([]int, 0, len(claimList))
	result.Claims = make([]Claim, 0, len(claimList))
	for i, claimText := range claimList {
		v := verdicts[i]
		breakdown := engine.Compute(trust.Input{
			Sources:        perClaim[i],
			ModelConsensus: v.AvgConfidence,
			ModelAgreement: v.ModelAgreement,
			BiasPenalty:    penalty,
		})
		scores = append(scores, breakdown.Score)
		result.Claims = append(result.Claims, Claim{
			ID:            i + 1,
			Text:          claimText,
			Verdict:       v.Verdict,
			TrustScore:    breakdown.Score,
			Explanation:   explainClaim(v, breakdown, perClaim[i], synthetic),
			Sources:       perClaim[i],
			BiasSignals:   &shared,
			ModelVerdicts: v.Verdicts,
		})
	}

	result.AggregateTrustScore = trust.Aggregate(scores)
	result.TrustLabel = trust.Label(result.AggregateTrustScore)
	if len(result.Claims) == 0 {
		result.TrustLabel = trust.LabelUnableToVerify
	}
	result.Summary = summarize(result, signals)
	return result, nil
}

func (p *Pipeline) ocrFailure(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return ErrJobTimeout
	case errors.Is(err, llm.ErrNotConfigured):
		return fmt.Errorf("%w: %w", ErrNotConfigured, err)
	default:
		return fmt.Errorf("%w: %w", ErrOCRFailed, err)
	}
}

func (p *Pipeline) transition(ctx context.Context, jobID, step string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"job_id":            jobID,
		"status_transition": step,
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("analysis.status", fields)
}

func (p *Pipeline) searchLimit() int {
	if p.SearchLimit > 0 {
		return p.SearchLimit
	}
	return defaultSearchLimit
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// unverifiedClaims builds the gated result: no model was asked, so every claim
// is unable_to_verify with a zero score and neutral, unassessed bias signals.
func unverifiedClaims(claimList []string, found []sources.Source, gate trust.GateResult) []Claim {
	evidence := claimSources(found)
	skipped := bias.Unassessed("Bias assessment skipped: the quality gate failed.")
	out := make([]Claim, 0, len(claimList))
	for i, text := range claimList {
		out = append(out, Claim{
			ID:            i + 1,
			Text:          text,
			Verdict:       verify.UnableToVerify,
			TrustScore:    0,
			Explanation:   gate.Explanation(),
			Sources:       evidence,
			BiasSignals:   &skipped,
			ModelVerdicts: []verify.ModelVerdict{},
		})
	}
	return out
}

func explainClaim(v verify.Result, b trust.Breakdown, evidence []sources.Source, synthetic bool) string {
	agreeing := 0
	failed := 0
	for _, mv := range v.Verdicts {
		if mv.Verdict == v.Verdict {
			agreeing++
		}
		if mv.Failed {
			failed++
		}
	}
	high := 0
	for _, s := range evidence {
		if s.IsHighQuality() {
			high++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d models judged this claim %s (average confidence %.2f).",
		agreeing, len(v.Verdicts), verdictPhrase(v.Verdict), v.AvgConfidence)
	if failed > 0 {
		fmt.Fprintf(&sb, " %d model call(s) failed and counted as neutral.", failed)
	}
	fmt.Fprintf(&sb, " Evidence: %d source(s), %d high-credibility, mean credibility %.2f.",
		len(evidence), high, b.SourceQuality)
	fmt.Fprintf(&sb, " The trust score of %d measures confidence in this verdict, not whether the claim is true.", b.Score)
	if synthetic {
		sb.WriteString(" Claim extraction failed, so the first sentence of the text was checked instead.")
	}
	return sb.String()
}

func verdictPhrase(v verify.Verdict) string {
	return strings.ReplaceAll(string(v), "_", " ")
}

func summarize(r AnalysisResult, signals bias.Signals) string {
	counts := map[verify.Verdict]int{}
	for _, c := range r.Claims {
		counts[c.Verdict]++
	}
	parts := make([]string, 0, 3)
	for _, v := range []verify.Verdict{verify.LikelyTrue, verify.Mixed, verify.LikelyMisleading} {
		if n := counts[v]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, verdictPhrase(v)))
		}
	}
	if len(parts) == 0 {
		return "No verifiable claims were found in the text."
	}
	return fmt.Sprintf("Checked %d claim(s): %s. Overall trust %d (%s). Framing reads %s with sensationalism %.2f.",
		len(r.Claims), strings.Join(parts, ", "), r.AggregateTrustScore, r.TrustLabel,
		strings.ReplaceAll(signals.Label, "_", " "), signals.Sensationalism)
}
