package claims

import (
	"context"
	"fmt"
	"strings"

	"factcheck-backend/internal/llm"
	"factcheck-backend/internal/shared/metrics"
	"factcheck-backend/internal/shared/telemetry"
)

const (
	// MaxClaims caps the claims checked per job.
	MaxClaims = 5
	// maxSentence caps fallback claims and search queries, in runes.
	maxSentence = 200
)

// Extractor pulls factual claims out of OCR text.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

// ModelExtractor asks a chat model for a JSON list of claims.
type ModelExtractor struct {
	client llm.Completer
	name   string
}

func NewModelExtractor(client llm.Completer, name string) *ModelExtractor {
	return &ModelExtractor{client: client, name: name}
}

func (e *ModelExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	if e == nil || e.client == nil {
		return nil, llm.ErrNotConfigured
	}
	raw, err := e.client.Complete(ctx, llm.Request{
		System: llm.MustSystemPrompt(llm.PromptExtract),
		User:   text,
		JSON:   true,
	})
	if err != nil {
		metrics.IncModelCall("extract", e.name, "error")
		return nil, err
	}
	out, err := ParseClaims(raw)
	if err != nil {
		metrics.IncModelCall("extract", e.name, "parse_error")
		return nil, err
	}
	metrics.IncModelCall("extract", e.name, "ok")
	return out, nil
}

// ParseClaims reads {"claims": [...]} tolerantly. Duplicates and blanks are
// dropped and the list is capped at MaxClaims.
func ParseClaims(raw string) ([]string, error) {
	obj, err := llm.DecodeObject(raw)
	if err != nil {
		return nil, err
	}
	list := llm.StringsField(obj, "claims", "factual_claims", "statements", "items")
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, c := range list {
		c = collapse(c)
		key := strings.ToLower(c)
		if c == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
		if len(out) == MaxClaims {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no claims", llm.ErrParse)
	}
	return out, nil
}

// ExtractOrFallback never fails: when extraction errors or yields nothing, the
// first sentence of the text becomes a single synthetic claim.
func ExtractOrFallback(ctx context.Context, ex Extractor, text string) (list []string, synthetic bool) {
	if ex != nil {
		got, err := ex.Extract(ctx, text)
		if err == nil && len(got) > 0 {
			if len(got) > MaxClaims {
				got = got[:MaxClaims]
			}
			return got, false
		}
		if err != nil {
			telemetry.Warn("claims.extract", map[string]any{"error": err.Error(), "fallback": true})
		}
	}
	if f := FirstSentence(text); f != "" {
		return []string{f}, true
	}
	return []string{}, true
}

// FirstSentence returns the first sentence or line of text, whitespace
// collapsed and capped at 200 runes.
func FirstSentence(text string) string {
	s := strings.TrimSpace(text)
	if line, _, ok := strings.Cut(s, "\n"); ok && strings.TrimSpace(line) != "" {
		s = line
	}
	s = collapse(s)
	if i := sentenceEnd(s); i > 0 {
		s = s[:i]
	}
	return capRunes(s, maxSentence)
}

// SearchQuery derives the web-search query from OCR text so search can start
// before claim extraction finishes.
func SearchQuery(text string) string {
	return FirstSentence(text)
}

var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "st": {}, "vs": {}, "etc": {}, "jr": {}, "sr": {}, "no": {}, "prof": {},
}

func sentenceEnd(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i+1 < len(s) && s[i+1] != ' ' {
				continue
			}
			if s[i] == '.' && isAbbreviation(s[:i]) {
				continue
			}
			return i + 1
		}
	}
	return -1
}

// isAbbreviation reports whether the word ending the prefix looks like "U.S"
// or "Dr", whose trailing dot does not end a sentence.
func isAbbreviation(prefix string) bool {
	word := prefix[strings.LastIndexByte(prefix, ' ')+1:]
	if strings.Contains(word, ".") {
		return true
	}
	_, ok := abbreviations[strings.ToLower(word)]
	return ok
}

func capRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var _ Extractor = (*ModelExtractor)(nil)
