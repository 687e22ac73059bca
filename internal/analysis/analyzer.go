package analysis

import (
	"context"

	"github.com/civicworks/boundary-audit/internal/boundary"
	"github.com/civicworks/boundary-audit/internal/resident"
)

// ContainmentResolver is the spatial lookup the analyzer depends on.
type ContainmentResolver interface {
	FindContainingScoped(ctx context.Context, pt boundary.Point, county string) (map[string]string, error)
}

// ComparisonWriter persists comparison outcomes.
type ComparisonWriter interface {
	SaveComparison(ctx context.Context, residentID int64, result ComparisonResult) error
}

// Analyzer runs the containment-then-compare step for single residents.
type Analyzer struct {
	resolver ContainmentResolver
	store    ComparisonWriter
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(resolver ContainmentResolver, store ComparisonWriter) *Analyzer {
	return &Analyzer{resolver: resolver, store: store}
}

// AnalyzeOne determines the boundaries containing a resident's coordinate,
// compares them to the resident's registered assignments, and persists the
// outcome. A resident without a coordinate yields unable-to-analyze rather
// than an error. Spatial query or persistence failures propagate.
func (a *Analyzer) AnalyzeOne(ctx context.Context, r resident.Resident) (ComparisonResult, error) {
	if !r.HasCoordinate() {
		result := ComparisonResult{
			Status:     StatusUnableToAnalyze,
			Registered: r.Registered,
		}
		if err := a.store.SaveComparison(ctx, r.ID, result); err != nil {
			return ComparisonResult{}, err
		}
		return result, nil
	}

	pt, err := boundary.NewPoint(*r.Latitude, *r.Longitude)
	if err != nil {
		return ComparisonResult{}, err
	}

	determined, err := a.resolver.FindContainingScoped(ctx, pt, r.County)
	if err != nil {
		return ComparisonResult{}, err
	}

	result := Compare(determined, r.Registered)
	if err := a.store.SaveComparison(ctx, r.ID, result); err != nil {
		return ComparisonResult{}, err
	}
	return result, nil
}
