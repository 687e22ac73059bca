package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/boundary-audit/internal/boundary"
	"github.com/civicworks/boundary-audit/internal/resident"
	"github.com/civicworks/boundary-audit/pkg/geocode"
)

type fakeResolver struct {
	containing map[string]string
	err        error
	lastCounty string
	calls      int
}

func (f *fakeResolver) FindContainingScoped(_ context.Context, _ boundary.Point, county string) (map[string]string, error) {
	f.calls++
	f.lastCounty = county
	return f.containing, f.err
}

type fakeWriter struct {
	saved map[int64]ComparisonResult
	err   error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{saved: make(map[int64]ComparisonResult)}
}

func (f *fakeWriter) SaveComparison(_ context.Context, residentID int64, result ComparisonResult) error {
	if f.err != nil {
		return f.err
	}
	f.saved[residentID] = result
	return nil
}

func geocoded(id int64, lat, lng float64, county string, registered map[string]string) resident.Resident {
	return resident.Resident{
		ID:         id,
		County:     county,
		Latitude:   &lat,
		Longitude:  &lng,
		Registered: registered,
	}
}

func TestAnalyzeOne(t *testing.T) {
	resolver := &fakeResolver{containing: map[string]string{"congressional": "05", "county_precinct": "12"}}
	writer := newFakeWriter()
	a := NewAnalyzer(resolver, writer)

	r := geocoded(41, 35.04, -85.31, "Hamilton", map[string]string{"congressional": "06", "county_precinct": "12"})
	result, err := a.AnalyzeOne(context.Background(), r)

	require.NoError(t, err)
	assert.Equal(t, StatusMismatchDistrict, result.Status)
	assert.Equal(t, "Hamilton", resolver.lastCounty)
	assert.Equal(t, result, writer.saved[41], "outcome is persisted as computed")
}

func TestAnalyzeOneNoCoordinate(t *testing.T) {
	resolver := &fakeResolver{}
	writer := newFakeWriter()
	a := NewAnalyzer(resolver, writer)

	r := resident.Resident{ID: 7, Registered: map[string]string{"congressional": "03"}}
	result, err := a.AnalyzeOne(context.Background(), r)

	require.NoError(t, err, "an ungeocoded resident is an outcome, not a failure")
	assert.Equal(t, StatusUnableToAnalyze, result.Status)
	assert.Equal(t, 0, resolver.calls, "no spatial query without a coordinate")
	assert.Equal(t, result, writer.saved[7])
}

func TestAnalyzeOneBadCoordinate(t *testing.T) {
	a := NewAnalyzer(&fakeResolver{}, newFakeWriter())

	r := geocoded(9, 95.0, -85.0, "", nil)
	_, err := a.AnalyzeOne(context.Background(), r)

	var ve *geocode.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "latitude", ve.Field)
}

func TestAnalyzeOneResolverError(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("query timeout")}
	writer := newFakeWriter()
	a := NewAnalyzer(resolver, writer)

	_, err := a.AnalyzeOne(context.Background(), geocoded(3, 35.0, -85.0, "Hamilton", nil))
	require.Error(t, err)
	assert.Empty(t, writer.saved, "nothing persisted on a failed spatial query")
}

func TestAnalyzeOnePersistError(t *testing.T) {
	resolver := &fakeResolver{containing: map[string]string{"congressional": "03"}}
	writer := newFakeWriter()
	writer.err = errors.New("connection reset")
	a := NewAnalyzer(resolver, writer)

	_, err := a.AnalyzeOne(context.Background(), geocoded(3, 35.0, -85.0, "Hamilton", nil))
	require.Error(t, err)
}
