package geocode

// Candidate pairs a provider name with the result it produced.
type Candidate struct {
	Provider string
	Result   *Result
}

// SelectBest picks the winning result from one or more providers. Ranking:
// quality rank ascending, then confidence descending (nil confidence counts
// as 0), then input declaration order (first listed wins). The comparison is
// strictly ordered over any input, so repeated calls with the same candidates
// always return the same winner. Empty input returns nil.
func SelectBest(candidates []Candidate) *Candidate {
	var best *Candidate
	for i := range candidates {
		c := &candidates[i]
		if c.Result == nil {
			continue
		}
		if best == nil || better(c.Result, best.Result) {
			best = c
		}
	}
	return best
}

// better reports whether a strictly outranks b. Equal quality and confidence
// is not better, which preserves the earlier candidate.
func better(a, b *Result) bool {
	ar, br := a.Quality.Rank(), b.Quality.Rank()
	if ar != br {
		return ar < br
	}
	return confidence(a) > confidence(b)
}

func confidence(r *Result) float64 {
	if r.Confidence == nil {
		return 0
	}
	return *r.Confidence
}
