package verify

// Consensus resolves N model verdicts: a strict majority of likely_true or
// likely_misleading wins, anything else is mixed. Failed calls count toward N.
// Agreement is the share of verdicts matching the final verdict.
func Consensus(verdicts []ModelVerdict) (final Verdict, avgConfidence, agreement float64) {
	n := len(verdicts)
	if n == 0 {
		return Mixed, 0, 0
	}
	tally := make(map[Verdict]int, 3)
	var sum float64
	for _, v := range verdicts {
		tally[v.Verdict]++
		sum += v.Confidence
	}

	final = Mixed
	switch {
	case tally[LikelyTrue]*2 > n:
		final = LikelyTrue
	case tally[LikelyMisleading]*2 > n:
		final = LikelyMisleading
	}
	return final, sum / float64(n), float64(tally[final]) / float64(n)
}
