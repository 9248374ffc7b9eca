package verify

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"factcheck-backend/internal/llm"
)

// Verdict is the categorical judgment on a claim.
type Verdict string

const (
	LikelyTrue       Verdict = "likely_true"
	Mixed            Verdict = "mixed"
	LikelyMisleading Verdict = "likely_misleading"
	UnableToVerify   Verdict = "unable_to_verify"
)

// defaultConfidence is used when a model names a verdict but no confidence.
const defaultConfidence = 0.5

// ModelVerdict is one backend's opinion on one claim.
type ModelVerdict struct {
	Model      string  `json:"model"`
	Verdict    Verdict `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Simulated  bool    `json:"simulated,omitempty"`
	Failed     bool    `json:"failed,omitempty"`
}

var verdictSynonyms = map[string]Verdict{
	"likely_true":       LikelyTrue,
	"true":              LikelyTrue,
	"mostly_true":       LikelyTrue,
	"accurate":          LikelyTrue,
	"mostly_accurate":   LikelyTrue,
	"correct":           LikelyTrue,
	"supported":         LikelyTrue,
	"verified":          LikelyTrue,
	"mixed":             Mixed,
	"mixture":           Mixed,
	"half_true":         Mixed,
	"partly_true":       Mixed,
	"partially_true":    Mixed,
	"unverified":        Mixed,
	"unproven":          Mixed,
	"inconclusive":      Mixed,
	"uncertain":         Mixed,
	"needs_context":     Mixed,
	"missing_context":   Mixed,
	"likely_misleading": LikelyMisleading,
	"misleading":        LikelyMisleading,
	"false":             LikelyMisleading,
	"mostly_false":      LikelyMisleading,
	"likely_false":      LikelyMisleading,
	"inaccurate":        LikelyMisleading,
	"incorrect":         LikelyMisleading,
	"unsupported":       LikelyMisleading,
	"fabricated":        LikelyMisleading,
	"pants_on_fire":     LikelyMisleading,
	"refuted":           LikelyMisleading,
}

// NormalizeVerdict maps free-form model labels onto the three model verdicts.
func NormalizeVerdict(raw string) (Verdict, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_", "/", "_").Replace(key)
	key = strings.Trim(key, "_.!")
	v, ok := verdictSynonyms[key]
	return v, ok
}

// ParseVerdict turns raw model output into a verdict. Recognized shapes use
// verdict/rating/status for the label, confidence/confidence_score/score for
// certainty (0-1 or 0-100), and reasoning/explanation/rationale for text.
func ParseVerdict(raw string) (Verdict, float64, string, error) {
	obj, err := llm.DecodeObject(raw)
	if err != nil {
		return "", 0, "", err
	}
	label, ok := llm.StringField(obj, "verdict", "rating", "status", "label", "classification")
	if !ok {
		return "", 0, "", fmt.Errorf("%w: missing verdict", llm.ErrParse)
	}
	verdict, ok := NormalizeVerdict(label)
	if !ok {
		return "", 0, "", fmt.Errorf("%w: unknown verdict %q", llm.ErrParse, label)
	}

	confidence := defaultConfidence
	if c, ok := llm.NumberField(obj, "confidence", "confidence_score", "confidenceScore", "score", "certainty"); ok {
		confidence = normalizeConfidence(c)
	}
	reasoning, _ := llm.StringField(obj, "reasoning", "explanation", "rationale", "justification", "analysis")
	return verdict, confidence, reasoning, nil
}

func normalizeConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 && c <= 100 {
		c /= 100
	}
	if c > 1 {
		return 1
	}
	return c
}

// neutralVerdict substitutes for a failed or unparseable backend call.
func neutralVerdict(b Backend, err error) ModelVerdict {
	return ModelVerdict{
		Model:      b.Name,
		Verdict:    Mixed,
		Confidence: 0,
		Reasoning:  "No usable answer from this model (" + failureKind(err) + "); counted as a neutral vote.",
		Simulated:  b.Persona != "",
		Failed:     true,
	}
}

func failureKind(err error) string {
	switch {
	case err == nil:
		return "empty response"
	case errors.Is(err, llm.ErrRateLimited):
		return "rate limited"
	case errors.Is(err, llm.ErrParse):
		return "unparseable output"
	default:
		return "call failed"
	}
}
