package trust

const (
	LabelLikelyTrue       = "Likely True"
	LabelMixed            = "Unverified / Mixed"
	LabelLikelyMisleading = "Likely Misleading"
	LabelUnableToVerify   = "Unable to Verify"
)

// Label thresholds a 0-100 score. Claims and the job aggregate share it.
func Label(score int) string {
	switch {
	case score >= 75:
		return LabelLikelyTrue
	case score >= 40:
		return LabelMixed
	default:
		return LabelLikelyMisleading
	}
}

// Aggregate is the arithmetic mean of claim scores, rounded; 0 with no claims.
func Aggregate(scores []int) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return toScore(float64(sum) / float64(len(scores)) / 100)
}
