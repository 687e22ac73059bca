package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/civicworks/boundary-audit/internal/config"
	"github.com/civicworks/boundary-audit/internal/db"
	"github.com/civicworks/boundary-audit/pkg/geocode"
)

// openPool connects to Postgres using the configured URL.
func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, eris.Wrap(err, "connect to database")
	}
	return pool, nil
}

// openCache builds the configured geocode cache. The returned close func is
// a no-op for the Postgres cache, which shares the pool's lifecycle.
func openCache(pool db.Pool, c config.CacheConfig) (geocode.Cache, func() error, error) {
	switch c.Driver {
	case "sqlite":
		sc, err := geocode.NewSQLiteCache(c.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return sc, sc.Close, nil
	case "", "postgres":
		return geocode.NewPostgresCache(pool), func() error { return nil }, nil
	default:
		return nil, nil, eris.Errorf("unknown cache driver %q", c.Driver)
	}
}

// buildProviders constructs the configured provider list in declaration
// order. The order matters: it is the tie-break order for multi-provider
// result selection.
func buildProviders(c config.GeocodeConfig) ([]geocode.Provider, error) {
	var providers []geocode.Provider
	for _, name := range c.Providers {
		switch name {
		case "census":
			var opts []geocode.CensusOption
			if c.CensusRPS > 0 {
				opts = append(opts, geocode.WithCensusDelay(time.Duration(float64(time.Second)/c.CensusRPS)))
			}
			providers = append(providers, geocode.NewCensusProvider(opts...))
		case "google":
			providers = append(providers, geocode.NewGoogleProvider(c.GoogleAPIKey))
		case "nominatim":
			providers = append(providers, geocode.NewNominatimProvider(c.NominatimEmail,
				geocode.WithNominatimBaseURL(c.NominatimBaseURL)))
		default:
			return nil, eris.Errorf("unknown geocode provider %q", name)
		}
	}
	if len(providers) == 0 {
		return nil, eris.New("no geocode providers configured")
	}
	return providers, nil
}

// buildOrchestrator assembles the cache and providers into an orchestrator.
func buildOrchestrator(pool db.Pool) (*geocode.Orchestrator, func() error, error) {
	cache, closeCache, err := openCache(pool, cfg.Cache)
	if err != nil {
		return nil, nil, err
	}

	providers, err := buildProviders(cfg.Geocode)
	if err != nil {
		_ = closeCache()
		return nil, nil, err
	}

	return geocode.NewOrchestrator(cache, providers), closeCache, nil
}
