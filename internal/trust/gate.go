package trust

import (
	"fmt"

	"factcheck-backend/internal/sources"
)

// MinHighQualitySources is the evidence floor below which verification is
// skipped entirely.
const MinHighQualitySources = 3

// GateResult is the Quality Gate decision for one job.
type GateResult struct {
	Passed      bool `json:"passed"`
	HighQuality int  `json:"highQuality"`
	Required    int  `json:"required"`
}

// CheckGate counts sources at or above the high-quality threshold. It is a
// pure predicate over the job's sources.
func CheckGate(list []sources.Source) GateResult {
	n := 0
	for _, s := range list {
		if s.IsHighQuality() {
			n++
		}
	}
	return GateResult{
		Passed:      n >= MinHighQualitySources,
		HighQuality: n,
		Required:    MinHighQualitySources,
	}
}

// Shortfall is how many more high-quality sources the gate needed.
func (g GateResult) Shortfall() int {
	if g.HighQuality >= g.Required {
		return 0
	}
	return g.Required - g.HighQuality
}

// Explanation describes a failed gate for the unable-to-verify claims.
func (g GateResult) Explanation() string {
	if g.Passed {
		return ""
	}
	return fmt.Sprintf(
		"Unable to verify: found %d high-credibility source(s) but %d are required (%d short). No model verdict was requested.",
		g.HighQuality, g.Required, g.Shortfall(),
	)
}
