package analyses

import (
	"sort"
	"time"

	"factcheck-backend/internal/bias"
	"factcheck-backend/internal/sources"
	"factcheck-backend/internal/verify"
)

// maxClaimSources caps the evidence embedded in each claim.
const maxClaimSources = 5

// AnalysisResult is the job-level output returned to clients. Its JSON shape is
// the wire contract with the app and the chat endpoint.
type AnalysisResult struct {
	JobID               string    `json:"jobId"`
	ImageURL            string    `json:"imageUrl"`
	OCRText             string    `json:"ocrText"`
	Claims              []Claim   `json:"claims"`
	AggregateTrustScore int       `json:"aggregateTrustScore"`
	TrustLabel          string    `json:"trustLabel"`
	Summary             string    `json:"summary"`
	GeneratedAt         time.Time `json:"generatedAt"`
}

// Claim is one verified assertion. Verdict unable_to_verify always pairs with
// TrustScore 0 and an empty ModelVerdicts list.
type Claim struct {
	ID            int                   `json:"id"`
	Text          string                `json:"text"`
	Verdict       verify.Verdict        `json:"verdict"`
	TrustScore    int                   `json:"trustScore"`
	Explanation   string                `json:"explanation"`
	Sources       []sources.Source      `json:"sources"`
	BiasSignals   *bias.Signals         `json:"biasSignals"`
	ModelVerdicts []verify.ModelVerdict `json:"modelVerdicts"`
}

// claimSources returns at most maxClaimSources sources, most credible first and
// newest first among equals. The input is not modified.
func claimSources(list []sources.Source) []sources.Source {
	out := make([]sources.Source, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Credibility != out[j].Credibility {
			return out[i].Credibility > out[j].Credibility
		}
		return newer(out[i].PublishedDate, out[j].PublishedDate)
	})
	if len(out) > maxClaimSources {
		out = out[:maxClaimSources]
	}
	return out
}

func newer(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.After(*b)
	}
}
