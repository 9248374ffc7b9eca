package analyses

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"factcheck-backend/internal/bias"
	"factcheck-backend/internal/llm"
	"factcheck-backend/internal/ocr"
	"factcheck-backend/internal/sources"
	"factcheck-backend/internal/trust"
	"factcheck-backend/internal/verify"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeReader struct {
	text string
	err  error
}

func (f fakeReader) Read(ctx context.Context, img ocr.Image) (string, error) {
	return f.text, f.err
}

type fakeExtractor struct {
	claims []string
	err    error
}

func (f fakeExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	return f.claims, f.err
}

type fakeSearcher struct {
	results []sources.RawResult
}

func (f fakeSearcher) Search(ctx context.Context, query string, limit int) ([]sources.RawResult, error) {
	return f.results, nil
}

// credTable assigns each test domain a fixed credibility.
var credTable = sources.NewCredibilityTable(map[string]float64{
	"who.int":        0.95,
	"cdc.gov":        0.92,
	"nature.com":     0.88,
	"blog-a.example": 0.3,
	"blog-b.example": 0.3,
})

func rawFor(domains ...string) []sources.RawResult {
	out := make([]sources.RawResult, 0, len(domains))
	for i, d := range domains {
		out = append(out, sources.RawResult{
			Title:   fmt.Sprintf("Result %d", i+1),
			URL:     "https://" + d + "/article",
			Snippet: "No link between vaccines and autism.",
		})
	}
	return out
}

func verdictReply(verdict string, confidence float64) llm.Completer {
	return llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return fmt.Sprintf(`{"verdict": %q, "confidence": %.2f, "reasoning": "checked against sources"}`, verdict, confidence), nil
	})
}

func countingVerifier(calls *int32, c llm.Completer) llm.Completer {
	return llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		atomic.AddInt32(calls, 1)
		return c.Complete(ctx, req)
	})
}

var neutralBias = llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
	return `{"politicalBias": 0, "sensationalism": 0.2, "reasoning": "measured tone"}`, nil
})

type pipelineOpts struct {
	ocrText  string
	ocrErr   error
	claims   []string
	domains  []string
	backends []verify.Backend
	timeout  time.Duration
}

func newTestPipeline(o pipelineOpts) *Pipeline {
	if o.ocrText == "" && o.ocrErr == nil {
		o.ocrText = "Vaccines cause autism"
	}
	if o.claims == nil {
		o.claims = []string{"Vaccines cause autism"}
	}
	return &Pipeline{
		OCR:       fakeReader{text: o.ocrText, err: o.ocrErr},
		Extractor: fakeExtractor{claims: o.claims},
		Sources: &sources.Aggregator{
			Searcher: fakeSearcher{results: rawFor(o.domains...)},
			Table:    credTable,
			Now:      func() time.Time { return fixedNow },
		},
		Verifier: verify.NewVerifier(o.backends),
		Bias: bias.NewAggregator([]bias.Model{
			{Name: "b1", Client: neutralBias},
			{Name: "b2", Client: neutralBias},
			{Name: "b3", Client: neutralBias},
		}),
		Engine:  trust.Engine{},
		Timeout: o.timeout,
		Now:     func() time.Time { return fixedNow },
	}
}

func misleadingRoster() []verify.Backend {
	return []verify.Backend{
		{Name: "gpt-4o", Client: verdictReply("likely_misleading", 0.95)},
		{Name: "gpt-4o-mini", Client: verdictReply("likely_misleading", 0.92)},
		{Name: "claude", Client: verdictReply("likely_misleading", 0.90)},
	}
}

var fiveDomains = []string{"who.int", "cdc.gov", "nature.com", "blog-a.example", "blog-b.example"}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
