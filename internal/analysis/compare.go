// Package analysis reconciles spatially determined boundary assignments
// against each resident's registered assignments.
package analysis

import (
	"sort"

	"github.com/civicworks/boundary-audit/internal/boundary"
)

// MatchStatus classifies one resident's comparison outcome.
type MatchStatus string

const (
	StatusMatch            MatchStatus = "match"
	StatusMismatchDistrict MatchStatus = "mismatch-district"
	StatusMismatchPrecinct MatchStatus = "mismatch-precinct"
	StatusMismatchBoth     MatchStatus = "mismatch-both"
	StatusUnableToAnalyze  MatchStatus = "unable-to-analyze"
)

// Mismatch records one boundary type where the registered identifier differs
// from the spatially determined one.
type Mismatch struct {
	BoundaryType string `json:"boundary_type"`
	Registered   string `json:"registered"`
	Determined   string `json:"determined"`
}

// ComparisonResult is the immutable outcome of comparing one resident.
type ComparisonResult struct {
	Status     MatchStatus
	Determined map[string]string
	Registered map[string]string
	Mismatches []Mismatch
}

// Compare reconciles determined against registered boundary assignments.
// Only boundary types present in both maps are compared; a type one side is
// missing is not evidence of mismatch. An empty determined map means the
// resident could not be spatially resolved at all.
func Compare(determined, registered map[string]string) ComparisonResult {
	result := ComparisonResult{
		Determined: determined,
		Registered: registered,
	}

	if len(determined) == 0 {
		result.Status = StatusUnableToAnalyze
		return result
	}

	comparable := make([]string, 0, len(determined))
	for btype := range determined {
		if _, ok := registered[btype]; ok {
			comparable = append(comparable, btype)
		}
	}
	sort.Strings(comparable)

	var district, precinct bool
	for _, btype := range comparable {
		if registered[btype] == determined[btype] {
			continue
		}
		result.Mismatches = append(result.Mismatches, Mismatch{
			BoundaryType: btype,
			Registered:   registered[btype],
			Determined:   determined[btype],
		})
		if boundary.Classify(btype) == boundary.ClassPrecinct {
			precinct = true
		} else {
			district = true
		}
	}

	switch {
	case len(result.Mismatches) == 0:
		result.Status = StatusMatch
	case district && precinct:
		result.Status = StatusMismatchBoth
	case precinct:
		result.Status = StatusMismatchPrecinct
	default:
		result.Status = StatusMismatchDistrict
	}
	return result
}
