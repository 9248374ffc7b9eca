package bias

import (
	"fmt"
	"math"
	"strings"

	"factcheck-backend/internal/llm"
)

var leanLabels = map[string]float64{
	"far_left":     -0.9,
	"left":         -0.7,
	"center_left":  -0.3,
	"slight_left":  -0.3,
	"lean_left":    -0.3,
	"center":       0,
	"centre":       0,
	"neutral":      0,
	"none":         0,
	"center_right": 0.3,
	"slight_right": 0.3,
	"lean_right":   0.3,
	"right":        0.7,
	"far_right":    0.9,
}

// ParseAssessment extracts (politicalBias, sensationalism, reasoning) from raw
// model output. A missing half falls back to its neutral default; missing
// both is a parse error.
func ParseAssessment(raw string) (float64, float64, string, error) {
	obj, err := llm.DecodeObject(raw)
	if err != nil {
		return 0, 0, "", err
	}

	bias, hasBias := llm.NumberField(obj, "politicalBias", "political_bias", "bias", "bias_score", "lean")
	if hasBias {
		bias = scaleSigned(bias)
	} else if label, ok := llm.StringField(obj, "politicalBias", "political_bias", "bias", "lean", "label"); ok {
		key := strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(label))
		bias, hasBias = leanLabels[key]
	}

	sens, hasSens := llm.NumberField(obj, "sensationalism", "sensationalism_score", "sensational", "sensationalismScore")
	if hasSens {
		sens = scaleUnit(sens)
	}

	if !hasBias && !hasSens {
		return 0, 0, "", fmt.Errorf("%w: missing politicalBias and sensationalism", llm.ErrParse)
	}
	if !hasBias {
		bias = defaultBias
	}
	if !hasSens {
		sens = defaultSensationalism
	}
	reasoning, _ := llm.StringField(obj, "reasoning", "explanation", "rationale", "analysis")
	return bias, sens, reasoning, nil
}

// scaleSigned maps -10..10 and -100..100 scales onto -1..1.
func scaleSigned(v float64) float64 {
	a := math.Abs(v)
	switch {
	case a > 10 && a <= 100:
		v /= 100
	case a > 1 && a <= 10:
		v /= 10
	}
	return clamp(v, -1, 1)
}

// scaleUnit maps 0..10 and 0..100 scales onto 0..1.
func scaleUnit(v float64) float64 {
	switch {
	case v > 10 && v <= 100:
		v /= 100
	case v > 1 && v <= 10:
		v /= 10
	}
	return clamp(v, 0, 1)
}
