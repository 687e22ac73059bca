package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/boundary-audit/internal/analysis"
	"github.com/civicworks/boundary-audit/internal/job"
	"github.com/civicworks/boundary-audit/internal/resident"
	"github.com/civicworks/boundary-audit/pkg/geocode"
)

type memResidents struct {
	residents []resident.Resident
	updated   map[int64][2]float64
}

func newMemResidents(rs ...resident.Resident) *memResidents {
	return &memResidents{residents: rs, updated: make(map[int64][2]float64)}
}

func (m *memResidents) Count(context.Context) (int64, error) {
	return int64(len(m.residents)), nil
}

func (m *memResidents) ListBatch(_ context.Context, offset, limit int64) ([]resident.Resident, error) {
	if offset >= int64(len(m.residents)) {
		return nil, nil
	}
	end := offset + limit
	if end > int64(len(m.residents)) {
		end = int64(len(m.residents))
	}
	return m.residents[offset:end], nil
}

func (m *memResidents) UpdateCoordinate(_ context.Context, id int64, lat, lng float64, _, _ string) error {
	m.updated[id] = [2]float64{lat, lng}
	return nil
}

type memJobStore struct {
	completed bool
	failed    bool
}

func (s *memJobStore) MarkRunning(context.Context, uuid.UUID) error { return nil }
func (s *memJobStore) Checkpoint(context.Context, uuid.UUID, int64, job.Counters, []job.ErrorEntry) error {
	return nil
}
func (s *memJobStore) Complete(context.Context, uuid.UUID) error { s.completed = true; return nil }
func (s *memJobStore) Fail(context.Context, uuid.UUID) error     { s.failed = true; return nil }

type scriptedResolver struct {
	results map[string]*geocode.Result
	cached  map[string]bool
	errs    map[string]error
}

func (r *scriptedResolver) ResolveOne(_ context.Context, raw, _ string, _ bool) (*geocode.Result, bool, error) {
	if err := r.errs[raw]; err != nil {
		return nil, false, err
	}
	return r.results[raw], r.cached[raw], nil
}

func unresolved(id int64, addr string) resident.Resident {
	return resident.Resident{ID: id, Address: addr}
}

func TestGeocodeRunner(t *testing.T) {
	lat, lng := 35.04, -85.31
	residents := newMemResidents(
		unresolved(1, "101 Oak St"),
		unresolved(2, "5 Pine Ave"),
		unresolved(3, "99 Ghost Rd"),
		unresolved(4, "broken"),
		resident.Resident{ID: 5, Address: "7 Elm St", Latitude: &lat, Longitude: &lng},
	)
	resolver := &scriptedResolver{
		results: map[string]*geocode.Result{
			"101 Oak St": {Latitude: 35.04, Longitude: -85.31, Quality: geocode.QualityExact, Provider: "census"},
			"5 Pine Ave": {Latitude: 35.05, Longitude: -85.32, Quality: geocode.QualityInterpolated, Provider: "census"},
		},
		cached: map[string]bool{"5 Pine Ave": true},
		errs: map[string]error{
			"broken": &geocode.ProviderError{Provider: "census", Message: "upstream 502", StatusCode: 502},
		},
	}
	store := &memJobStore{}

	runner := NewGeocodeRunner(store, residents, residents, resolver, GeocodeOptions{Provider: "census"})
	j := &job.Job{ID: uuid.New(), Kind: job.KindGeocoding, Status: job.StatusPending, TotalRecords: 5}

	require.NoError(t, runner.Run(context.Background(), j, 2))

	assert.Equal(t, job.StatusCompleted, j.Status)
	assert.Equal(t, int64(5), j.Processed)
	// Resident 5 already had a coordinate, resident 1 resolved fresh.
	assert.Equal(t, int64(2), j.Succeeded)
	assert.Equal(t, int64(1), j.CacheHits, "cached hit for resident 2")
	assert.Equal(t, int64(2), j.Failed, "no-match and provider error both count failed")
	require.Len(t, j.ErrorLog, 1, "only the provider error is logged")
	assert.Equal(t, int64(4), j.ErrorLog[0].RecordID)

	assert.Contains(t, residents.updated, int64(1))
	assert.Contains(t, residents.updated, int64(2))
	assert.NotContains(t, residents.updated, int64(5), "existing coordinates untouched without force")
}

type scriptedAnalyzer struct {
	errIDs map[int64]error
	calls  int
}

func (a *scriptedAnalyzer) AnalyzeOne(_ context.Context, r resident.Resident) (analysis.ComparisonResult, error) {
	a.calls++
	if err := a.errIDs[r.ID]; err != nil {
		return analysis.ComparisonResult{}, err
	}
	if !r.HasCoordinate() {
		return analysis.ComparisonResult{Status: analysis.StatusUnableToAnalyze}, nil
	}
	return analysis.ComparisonResult{Status: analysis.StatusMatch}, nil
}

func TestAnalysisRunner(t *testing.T) {
	lat, lng := 35.04, -85.31
	residents := newMemResidents(
		resident.Resident{ID: 1, Latitude: &lat, Longitude: &lng},
		resident.Resident{ID: 2}, // never geocoded
		resident.Resident{ID: 3, Latitude: &lat, Longitude: &lng},
	)
	analyzer := &scriptedAnalyzer{errIDs: map[int64]error{3: errors.New("query timeout")}}
	store := &memJobStore{}

	runner := NewAnalysisRunner(store, residents, analyzer)
	j := &job.Job{ID: uuid.New(), Kind: job.KindAnalysis, Status: job.StatusPending, TotalRecords: 3}

	require.NoError(t, runner.Run(context.Background(), j, 10))

	assert.Equal(t, job.StatusCompleted, j.Status)
	assert.Equal(t, int64(3), j.Processed)
	assert.Equal(t, int64(2), j.Succeeded, "unable-to-analyze is still a processed success")
	assert.Equal(t, int64(1), j.Failed)
	require.Len(t, j.ErrorLog, 1)
	assert.Equal(t, int64(3), j.ErrorLog[0].RecordID)
	assert.Equal(t, 3, analyzer.calls)
}
