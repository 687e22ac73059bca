package geocode

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civicworks/boundary-audit/internal/db"
)

// Entry is a cached geocode outcome for a (provider, normalized address) key.
// Matched=false records a successful provider call that found nothing; Result
// is nil in that case.
type Entry struct {
	Result   *Result
	Matched  bool
	CachedAt time.Time
}

// Cache memoizes provider results keyed by (provider, normalized address).
// Lookup returns (nil, nil) on a miss. Store is an idempotent upsert: a
// re-geocode overwrites the single entry for the key, it does not version it.
type Cache interface {
	Lookup(ctx context.Context, provider, normalized string) (*Entry, error)
	Store(ctx context.Context, provider, normalized string, result *Result) error
}

// PostgresCache implements Cache over geo.geocode_cache.
type PostgresCache struct {
	pool db.Pool
}

// NewPostgresCache creates a PostgresCache.
func NewPostgresCache(pool db.Pool) *PostgresCache {
	return &PostgresCache{pool: pool}
}

// Lookup implements Cache.
func (c *PostgresCache) Lookup(ctx context.Context, provider, normalized string) (*Entry, error) {
	var (
		lat, lng   float64
		confidence *float64
		quality    string
		matchedAdr *string
		matched    bool
		raw        []byte
		cachedAt   time.Time
	)

	err := c.pool.QueryRow(ctx, `
		SELECT latitude, longitude, confidence, quality, matched_address, matched, raw, cached_at
		FROM geo.geocode_cache
		WHERE provider = $1 AND address_key = $2`,
		provider, normalized,
	).Scan(&lat, &lng, &confidence, &quality, &matchedAdr, &matched, &raw, &cachedAt)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "geocode cache: lookup")
	}

	entry := &Entry{Matched: matched, CachedAt: cachedAt}
	if matched {
		entry.Result = &Result{
			Latitude:   lat,
			Longitude:  lng,
			Confidence: confidence,
			Quality:    Quality(quality),
			Raw:        json.RawMessage(raw),
			Provider:   provider,
		}
		if matchedAdr != nil {
			entry.Result.MatchedAddress = *matchedAdr
		}
	}

	zap.L().Debug("geocode cache hit",
		zap.String("provider", provider),
		zap.Bool("matched", matched),
	)
	return entry, nil
}

// Store implements Cache. A nil result records a no-match for the key.
func (c *PostgresCache) Store(ctx context.Context, provider, normalized string, result *Result) error {
	var (
		lat, lng   float64
		confidence *float64
		quality    = string(QualityNoMatch)
		matchedAdr any
		matched    bool
		raw        []byte
	)
	if result != nil {
		lat, lng = result.Latitude, result.Longitude
		confidence = result.Confidence
		quality = string(result.Quality)
		matched = true
		raw = result.Raw
		if result.MatchedAddress != "" {
			matchedAdr = result.MatchedAddress
		}
	}

	_, err := c.pool.Exec(ctx, `
		INSERT INTO geo.geocode_cache (provider, address_key, latitude, longitude, confidence, quality, matched_address, matched, raw, cached_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (provider, address_key) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			confidence = EXCLUDED.confidence,
			quality = EXCLUDED.quality,
			matched_address = EXCLUDED.matched_address,
			matched = EXCLUDED.matched,
			raw = EXCLUDED.raw,
			cached_at = now()`,
		provider, normalized, lat, lng, confidence, quality, matchedAdr, matched, raw,
	)
	return eris.Wrap(err, "geocode cache: store")
}
