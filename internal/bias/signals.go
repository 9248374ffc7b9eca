package bias

import (
	"fmt"
	"math"
	"strings"

	"factcheck-backend/internal/trust"
)

const (
	defaultBias           = 0.0
	defaultSensationalism = 0.3

	maxKeySignals  = 5
	fallbackSignal = "neutral_framing"
)

// Agreement levels derived from the spread of political-bias estimates.
const (
	AgreementHigh   = "high"
	AgreementMedium = "medium"
	AgreementLow    = "low"
)

// Assessment is one perspective x model judgment.
type Assessment struct {
	Perspective    string  `json:"perspective"`
	Model          string  `json:"model"`
	PoliticalBias  float64 `json:"politicalBias"`
	Sensationalism float64 `json:"sensationalism"`
	Reasoning      string  `json:"reasoning"`
	Failed         bool    `json:"failed,omitempty"`
}

// PerspectiveSummary aggregates the models of one perspective.
type PerspectiveSummary struct {
	Perspective    string  `json:"perspective"`
	PoliticalBias  float64 `json:"politicalBias"`
	Sensationalism float64 `json:"sensationalism"`
	Consensus      float64 `json:"consensus"`
}

// Signals is the job-level bias assessment. Confidence and Agreement are set
// together by Aggregate and are both absent otherwise.
type Signals struct {
	PoliticalBias  float64              `json:"politicalBias"`
	Sensationalism float64              `json:"sensationalism"`
	Label          string               `json:"label"`
	Explanation    string               `json:"explanation"`
	Confidence     *float64             `json:"confidence,omitempty"`
	Agreement      string               `json:"agreement,omitempty"`
	Breakdown      []PerspectiveSummary `json:"breakdown,omitempty"`
	KeySignals     []string             `json:"keySignals,omitempty"`
}

// Penalty folds the signals into the Trust Score Engine's bias penalty.
func (s Signals) Penalty() float64 {
	return trust.BiasPenalty(s.PoliticalBias, s.Sensationalism)
}

// Unassessed is used when no assessment ran at all.
func Unassessed(reason string) Signals {
	return Signals{
		PoliticalBias:  defaultBias,
		Sensationalism: defaultSensationalism,
		Label:          LabelFor(defaultBias),
		Explanation:    reason,
	}
}

// LabelFor thresholds a mean political bias.
func LabelFor(bias float64) string {
	switch {
	case bias < -0.5:
		return "left"
	case bias < -0.15:
		return "slight_left"
	case bias > 0.5:
		return "right"
	case bias > 0.15:
		return "slight_right"
	default:
		return "center"
	}
}

// AgreementFor thresholds the standard deviation of bias estimates.
func AgreementFor(stddev float64) string {
	switch {
	case stddev < 0.2:
		return AgreementHigh
	case stddev < 0.4:
		return AgreementMedium
	default:
		return AgreementLow
	}
}

// Aggregate combines assessments. It is a pure function of its input: failed
// assessments must already carry the neutral defaults and are counted.
func Aggregate(assessments []Assessment) Signals {
	if len(assessments) == 0 {
		return Unassessed("No bias assessments were available.")
	}
	if allFailed(assessments) {
		return Unassessed(fmt.Sprintf("All %d bias assessments failed; framing defaults to neutral.", len(assessments)))
	}

	order := make([]string, 0, 3)
	groups := make(map[string][]Assessment, 3)
	all := make([]float64, 0, len(assessments))
	var sensSum float64
	failed := 0
	for _, a := range assessments {
		if _, ok := groups[a.Perspective]; !ok {
			order = append(order, a.Perspective)
		}
		groups[a.Perspective] = append(groups[a.Perspective], a)
		all = append(all, a.PoliticalBias)
		sensSum += a.Sensationalism
		if a.Failed {
			failed++
		}
	}

	breakdown := make([]PerspectiveSummary, 0, len(order))
	for _, p := range order {
		group := groups[p]
		biases := make([]float64, len(group))
		var sens float64
		for i, a := range group {
			biases[i] = a.PoliticalBias
			sens += a.Sensationalism
		}
		breakdown = append(breakdown, PerspectiveSummary{
			Perspective:    p,
			PoliticalBias:  mean(biases),
			Sensationalism: sens / float64(len(group)),
			Consensus:      consensus(stddev(biases)),
		})
	}

	meanBias := mean(all)
	sd := stddev(all)
	confidence := consensus(sd)
	out := Signals{
		PoliticalBias:  meanBias,
		Sensationalism: sensSum / float64(len(assessments)),
		Label:          LabelFor(meanBias),
		Confidence:     &confidence,
		Agreement:      AgreementFor(sd),
		Breakdown:      breakdown,
		KeySignals:     ExtractKeySignals(assessments),
	}
	out.Explanation = explain(out, len(assessments), failed)
	return out
}

func allFailed(assessments []Assessment) bool {
	for _, a := range assessments {
		if !a.Failed {
			return false
		}
	}
	return true
}

func explain(s Signals, total, failed int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Framing reads as %s (mean bias %+.2f, sensationalism %.2f) with %s agreement across %d assessments.",
		strings.ReplaceAll(s.Label, "_", " "), s.PoliticalBias, s.Sensationalism, s.Agreement, total)
	if failed > 0 {
		fmt.Fprintf(&b, " %d assessment(s) failed and were counted as neutral.", failed)
	}
	return b.String()
}

var signalVocabulary = []struct {
	tag     string
	phrases []string
}{
	{"emotional_language", []string{"emotional", "emotive", "inflammatory", "outrage"}},
	{"loaded_terminology", []string{"loaded", "charged language", "pejorative", "derogatory"}},
	{"selective_framing", []string{"selective", "cherry-pick", "cherry pick", "one-sided", "slanted"}},
	{"exaggeration", []string{"exaggerat", "hyperbol", "overstat", "sweeping generaliz"}},
	{"omission", []string{"omit", "omission", "missing context", "lacks context", "without context"}},
	{"fear_appeal", []string{"fear", "alarmist", "panic"}},
	{"us_vs_them", []string{"us versus them", "us vs", "us-versus-them", "divisive", "tribal"}},
	{"unverified_claims", []string{"unverified", "anecdot", "unsourced", "no source"}},
	{"clickbait", []string{"clickbait", "sensational headline", "all caps"}},
}

// ExtractKeySignals scans the reasoning of every assessment for bias
// indicators. Tags come out in vocabulary order, capped, with a fallback.
func ExtractKeySignals(assessments []Assessment) []string {
	var text strings.Builder
	for _, a := range assessments {
		if a.Failed {
			continue
		}
		text.WriteString(strings.ToLower(a.Reasoning))
		text.WriteString("\n")
	}
	corpus := text.String()

	out := make([]string, 0, maxKeySignals)
	for _, entry := range signalVocabulary {
		if len(out) == maxKeySignals {
			break
		}
		for _, phrase := range entry.phrases {
			if strings.Contains(corpus, phrase) {
				out = append(out, entry.tag)
				break
			}
		}
	}
	if len(out) == 0 {
		out = append(out, fallbackSignal)
	}
	return out
}

func consensus(sd float64) float64 {
	return clamp(1-sd/2, 0, 1)
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// stddev is the population standard deviation.
func stddev(vs []float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	m := mean(vs)
	var acc float64
	for _, v := range vs {
		d := v - m
		acc += d * d
	}
	return math.Sqrt(acc / float64(len(vs)))
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return lo
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
