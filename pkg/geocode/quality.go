package geocode

// Quality ranks how precise a geocoding match is. The ordering is total:
// Exact < Interpolated < Approximate < NoMatch < Failed, with unknown quality
// strings slotted between Approximate and NoMatch.
type Quality string

const (
	QualityExact        Quality = "exact"
	QualityInterpolated Quality = "interpolated"
	QualityApproximate  Quality = "approximate"
	QualityNoMatch      Quality = "no_match"
	QualityFailed       Quality = "failed"
)

// qualityRanks is the fixed ordinal table. Lower is better.
var qualityRanks = map[Quality]int{
	QualityExact:        0,
	QualityInterpolated: 1,
	QualityApproximate:  2,
	QualityNoMatch:      4,
	QualityFailed:       5,
}

// Rank returns the ordinal rank for selection. Qualities not in the table
// (including the empty string) rank worse than Approximate but better than
// NoMatch.
func (q Quality) Rank() int {
	if r, ok := qualityRanks[q]; ok {
		return r
	}
	return 3
}

// Matched reports whether this quality represents a usable coordinate.
func (q Quality) Matched() bool {
	return q.Rank() < QualityNoMatch.Rank()
}
