// Package pipeline wires the resident store, the geocoding orchestrator, and
// the analyzer into runnable batch jobs.
package pipeline

import (
	"context"

	"github.com/civicworks/boundary-audit/internal/analysis"
	"github.com/civicworks/boundary-audit/internal/job"
	"github.com/civicworks/boundary-audit/internal/resident"
	"github.com/civicworks/boundary-audit/pkg/geocode"
)

// ResidentLister is the resident read surface the pipelines iterate over.
type ResidentLister interface {
	Count(ctx context.Context) (int64, error)
	ListBatch(ctx context.Context, offset, limit int64) ([]resident.Resident, error)
}

// CoordinateWriter persists newly resolved coordinates.
type CoordinateWriter interface {
	UpdateCoordinate(ctx context.Context, id int64, lat, lng float64, provider, quality string) error
}

// residentSource adapts the resident store to the runner's Source contract.
type residentSource struct {
	residents ResidentLister
}

func (s residentSource) Total(ctx context.Context) (int64, error) {
	return s.residents.Count(ctx)
}

func (s residentSource) Fetch(ctx context.Context, offset, limit int64) ([]resident.Resident, error) {
	return s.residents.ListBatch(ctx, offset, limit)
}

func residentID(r resident.Resident) int64 { return r.ID }

// GeocodeOptions control a geocoding job.
type GeocodeOptions struct {
	Provider string
	Force    bool
}

// Resolver is the slice of the geocoding orchestrator a job uses.
type Resolver interface {
	ResolveOne(ctx context.Context, raw, providerName string, force bool) (*geocode.Result, bool, error)
}

// NewGeocodeRunner builds a runner that resolves each resident's address and
// writes back the coordinate. Residents already carrying a coordinate are
// left alone unless Force is set. A provider no-match counts as failed
// without an error log entry; provider and validation errors are logged per
// record.
func NewGeocodeRunner(store job.StateStore, residents ResidentLister, writer CoordinateWriter, resolver Resolver, opts GeocodeOptions) *job.Runner[resident.Resident] {
	process := func(ctx context.Context, r resident.Resident) (job.Outcome, error) {
		if r.HasCoordinate() && !opts.Force {
			return job.OutcomeSucceeded, nil
		}

		result, cached, err := resolver.ResolveOne(ctx, r.FullAddress(), opts.Provider, opts.Force)
		if err != nil {
			return job.OutcomeFailed, err
		}
		if result == nil {
			return job.OutcomeFailed, nil
		}

		if err := writer.UpdateCoordinate(ctx, r.ID, result.Latitude, result.Longitude,
			result.Provider, string(result.Quality)); err != nil {
			return job.OutcomeFailed, err
		}

		if cached {
			return job.OutcomeCacheHit, nil
		}
		return job.OutcomeSucceeded, nil
	}

	return job.NewRunner[resident.Resident](store, residentSource{residents}, process, residentID)
}

// Comparer is the slice of the analyzer a job uses.
type Comparer interface {
	AnalyzeOne(ctx context.Context, r resident.Resident) (analysis.ComparisonResult, error)
}

// NewAnalysisRunner builds a runner that compares each resident's registered
// boundaries against the spatially determined ones. An unable-to-analyze
// outcome is a processed success; only query or persistence errors count as
// failures.
func NewAnalysisRunner(store job.StateStore, residents ResidentLister, analyzer Comparer) *job.Runner[resident.Resident] {
	process := func(ctx context.Context, r resident.Resident) (job.Outcome, error) {
		if _, err := analyzer.AnalyzeOne(ctx, r); err != nil {
			return job.OutcomeFailed, err
		}
		return job.OutcomeSucceeded, nil
	}

	return job.NewRunner[resident.Resident](store, residentSource{residents}, process, residentID)
}
