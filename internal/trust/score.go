package trust

import (
	"math"
	"time"

	"factcheck-backend/internal/sources"
)

// Weights is one weight set of the Trust Score Engine. Bias is subtracted.
type Weights struct {
	SourceQuality        float64 `json:"sourceQuality"`
	ModelConsensus       float64 `json:"modelConsensus"`
	Recency              float64 `json:"recency"`
	IndependentAgreement float64 `json:"independentAgreement"`
	Bias                 float64 `json:"bias"`
}

var (
	// WeightsWithSources applies when at least one source exists.
	WeightsWithSources = Weights{SourceQuality: 0.45, ModelConsensus: 0.30, Recency: 0.10, IndependentAgreement: 0.10, Bias: 0.05}
	// WeightsNoSources shifts weight onto model opinion when there is no evidence.
	WeightsNoSources = Weights{SourceQuality: 0.20, ModelConsensus: 0.50, Recency: 0.05, IndependentAgreement: 0.05, Bias: 0.05}
)

const (
	// NoSourceDefault stands in for source quality and independent agreement
	// when no sources exist.
	NoSourceDefault = 0.3

	// AgreementFloor and AgreementBoost blend model agreement into consensus:
	// effective = avgConfidence * (AgreementFloor + AgreementBoost*agreement).
	AgreementFloor = 0.7
	AgreementBoost = 0.3
)

// Input carries the signals for one claim.
type Input struct {
	Sources        []sources.Source
	ModelConsensus float64
	ModelAgreement float64
	BiasPenalty    float64
}

// Breakdown exposes every term that went into a score.
type Breakdown struct {
	SourceQuality        float64 `json:"sourceQuality"`
	Recency              float64 `json:"recency"`
	IndependentAgreement float64 `json:"independentAgreement"`
	EffectiveConsensus   float64 `json:"effectiveConsensus"`
	BiasPenalty          float64 `json:"biasPenalty"`
	Weighted             float64 `json:"weighted"`
	Weights              Weights `json:"weights"`
	Score                int     `json:"score"`
}

// Engine computes trust scores. The zero value uses the default weight sets
// and wall-clock time.
type Engine struct {
	WithSources *Weights
	NoSources   *Weights
	Now         func() time.Time
}

// Compute returns the score and its breakdown. Inputs outside [0,1] are
// clamped, so the score is always an integer in [0,100].
func (e Engine) Compute(in Input) Breakdown {
	now := time.Now().UTC()
	if e.Now != nil {
		now = e.Now()
	}

	b := Breakdown{
		EffectiveConsensus: EffectiveConsensus(in.ModelConsensus, in.ModelAgreement),
		BiasPenalty:        clamp01(in.BiasPenalty),
	}
	if len(in.Sources) == 0 {
		b.Weights = WeightsNoSources
		if e.NoSources != nil {
			b.Weights = *e.NoSources
		}
		b.SourceQuality = NoSourceDefault
		b.Recency = 0
		b.IndependentAgreement = NoSourceDefault
	} else {
		b.Weights = WeightsWithSources
		if e.WithSources != nil {
			b.Weights = *e.WithSources
		}
		m := sources.Summarize(in.Sources, now)
		b.SourceQuality = clamp01(m.MeanCredibility)
		b.Recency = clamp01(m.MeanRecency)
		b.IndependentAgreement = float64(m.HighQuality) / float64(m.Count)
	}

	w := b.Weights
	b.Weighted = w.SourceQuality*b.SourceQuality +
		w.ModelConsensus*b.EffectiveConsensus +
		w.Recency*b.Recency +
		w.IndependentAgreement*b.IndependentAgreement -
		w.Bias*b.BiasPenalty
	b.Score = toScore(b.Weighted)
	return b
}

// Score is the plain-function form of Engine.Compute with default weights.
func Score(list []sources.Source, modelConsensus, biasPenalty, modelAgreement float64, now time.Time) int {
	e := Engine{Now: func() time.Time { return now }}
	return e.Compute(Input{
		Sources:        list,
		ModelConsensus: modelConsensus,
		ModelAgreement: modelAgreement,
		BiasPenalty:    biasPenalty,
	}).Score
}

// EffectiveConsensus applies the model-agreement boost to average confidence.
func EffectiveConsensus(avgConfidence, agreement float64) float64 {
	return clamp01(clamp01(avgConfidence) * (AgreementFloor + AgreementBoost*clamp01(agreement)))
}

// BiasPenalty folds political lean and sensationalism into [0,1].
func BiasPenalty(politicalBias, sensationalism float64) float64 {
	return clamp01(0.5*math.Abs(clampRange(politicalBias, -1, 1)) + 0.5*clamp01(sensationalism))
}

// toScore maps the weighted sum onto [0,100]. The sum is first snapped to six
// decimals so float noise (0.5249999...) cannot flip a half-point rounding.
func toScore(weighted float64) int {
	v := clamp01(weighted)
	snapped := math.Round(v*1e6) / 1e4
	return int(math.Round(snapped))
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
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
