package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/boundary-audit/internal/config"
)

func TestBuildProviders(t *testing.T) {
	providers, err := buildProviders(config.GeocodeConfig{
		Providers:      []string{"census", "google", "nominatim"},
		GoogleAPIKey:   "test-key",
		NominatimEmail: "ops@example.org",
	})
	require.NoError(t, err)
	require.Len(t, providers, 3)

	// Declaration order is preserved for selection tie-breaks.
	assert.Equal(t, "census", providers[0].Name())
	assert.Equal(t, "google", providers[1].Name())
	assert.Equal(t, "nominatim", providers[2].Name())
}

func TestBuildProvidersCensusDelay(t *testing.T) {
	providers, err := buildProviders(config.GeocodeConfig{
		Providers: []string{"census"},
		CensusRPS: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, providers[0].RateLimitDelay())
}

func TestBuildProvidersErrors(t *testing.T) {
	_, err := buildProviders(config.GeocodeConfig{Providers: []string{"mapbox"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown geocode provider")

	_, err = buildProviders(config.GeocodeConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no geocode providers")
}

func TestOpenCacheSQLite(t *testing.T) {
	cache, closeCache, err := openCache(nil, config.CacheConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "cache.db"),
	})
	require.NoError(t, err)
	require.NotNil(t, cache)
	assert.NoError(t, closeCache())
}

func TestOpenCacheUnknownDriver(t *testing.T) {
	_, _, err := openCache(nil, config.CacheConfig{Driver: "redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cache driver")
}
