package geocode

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheColumns() []string {
	return []string{"latitude", "longitude", "confidence", "quality", "matched_address", "matched", "raw", "cached_at"}
}

func TestPostgresCache_Hit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	conf := 0.9
	matchedAddr := "123 MAIN ST, MEMPHIS, TN"
	mock.ExpectQuery(`SELECT latitude, longitude, confidence`).
		WithArgs("census", "123 MAIN ST").
		WillReturnRows(pgxmock.NewRows(cacheColumns()).
			AddRow(35.14, -90.05, &conf, "exact", &matchedAddr, true, []byte(`{}`), time.Now()))

	cache := NewPostgresCache(mock)
	entry, err := cache.Lookup(context.Background(), "census", "123 MAIN ST")

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Matched)
	require.NotNil(t, entry.Result)
	assert.InDelta(t, 35.14, entry.Result.Latitude, 0.001)
	assert.Equal(t, QualityExact, entry.Result.Quality)
	assert.Equal(t, matchedAddr, entry.Result.MatchedAddress)
	require.NotNil(t, entry.Result.Confidence)
	assert.InDelta(t, 0.9, *entry.Result.Confidence, 0.001)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCache_Miss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT latitude, longitude, confidence`).
		WithArgs("census", "999 NOWHERE LN").
		WillReturnError(pgx.ErrNoRows)

	cache := NewPostgresCache(mock)
	entry, err := cache.Lookup(context.Background(), "census", "999 NOWHERE LN")

	assert.NoError(t, err, "a miss is not an error")
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCache_NegativeEntry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT latitude, longitude, confidence`).
		WithArgs("census", "999 NOWHERE LN").
		WillReturnRows(pgxmock.NewRows(cacheColumns()).
			AddRow(0.0, 0.0, nil, "no_match", nil, false, nil, time.Now()))

	cache := NewPostgresCache(mock)
	entry, err := cache.Lookup(context.Background(), "census", "999 NOWHERE LN")

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.False(t, entry.Matched)
	assert.Nil(t, entry.Result, "a cached no-match carries no result")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCache_StoreMatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	result, err := NewResult("census", 35.14, -90.05, QualityExact)
	require.NoError(t, err)
	result.MatchedAddress = "123 MAIN ST"

	mock.ExpectExec(`INSERT INTO geo.geocode_cache`).
		WithArgs("census", "123 MAIN ST", 35.14, -90.05, (*float64)(nil), "exact", "123 MAIN ST", true, []byte(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	cache := NewPostgresCache(mock)
	require.NoError(t, cache.Store(context.Background(), "census", "123 MAIN ST", result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCache_StoreNoMatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO geo.geocode_cache`).
		WithArgs("census", "999 NOWHERE LN", 0.0, 0.0, (*float64)(nil), "no_match", nil, false, []byte(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	cache := NewPostgresCache(mock)
	require.NoError(t, cache.Store(context.Background(), "census", "999 NOWHERE LN", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteCache_RoundTrip(t *testing.T) {
	cache, err := NewSQLiteCache(t.TempDir() + "/cache.db")
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()

	// Miss before store.
	entry, err := cache.Lookup(ctx, "census", "123 MAIN ST")
	require.NoError(t, err)
	assert.Nil(t, entry)

	result, err := NewResult("census", 35.14, -90.05, QualityExact)
	require.NoError(t, err)
	result.MatchedAddress = "123 MAIN ST, MEMPHIS, TN"
	result.Confidence = floatPtr(0.8)
	require.NoError(t, cache.Store(ctx, "census", "123 MAIN ST", result))

	entry, err = cache.Lookup(ctx, "census", "123 MAIN ST")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Matched)
	assert.InDelta(t, 35.14, entry.Result.Latitude, 0.001)
	assert.Equal(t, QualityExact, entry.Result.Quality)
	require.NotNil(t, entry.Result.Confidence)
	assert.InDelta(t, 0.8, *entry.Result.Confidence, 0.001)

	// Upsert overwrites the single entry for the key.
	result2, err := NewResult("census", 36.0, -91.0, QualityInterpolated)
	require.NoError(t, err)
	require.NoError(t, cache.Store(ctx, "census", "123 MAIN ST", result2))

	entry, err = cache.Lookup(ctx, "census", "123 MAIN ST")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.InDelta(t, 36.0, entry.Result.Latitude, 0.001)
	assert.Equal(t, QualityInterpolated, entry.Result.Quality)
}

func TestSQLiteCache_NegativeEntry(t *testing.T) {
	cache, err := NewSQLiteCache(t.TempDir() + "/cache.db")
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	require.NoError(t, cache.Store(ctx, "nominatim", "999 NOWHERE LN", nil))

	entry, err := cache.Lookup(ctx, "nominatim", "999 NOWHERE LN")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.False(t, entry.Matched)
	assert.Nil(t, entry.Result)

	// Keys are per provider.
	other, err := cache.Lookup(ctx, "census", "999 NOWHERE LN")
	require.NoError(t, err)
	assert.Nil(t, other)
}
