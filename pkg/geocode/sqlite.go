package geocode

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

const sqliteCacheMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	provider        TEXT NOT NULL,
	address_key     TEXT NOT NULL,
	latitude        REAL NOT NULL DEFAULT 0,
	longitude       REAL NOT NULL DEFAULT 0,
	confidence      REAL,
	quality         TEXT NOT NULL,
	matched_address TEXT,
	matched         INTEGER NOT NULL DEFAULT 0,
	raw             TEXT,
	cached_at       INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (provider, address_key)
);
`

// SQLiteCache implements Cache over a local SQLite file. It serves local and
// offline runs with the same contract as PostgresCache.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (and migrates) a SQLite cache at the given path.
func NewSQLiteCache(dsn string) (*SQLiteCache, error) {
	database, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "geocode cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := database.Exec(pragma); err != nil {
			database.Close()
			return nil, eris.Wrapf(err, "geocode cache: exec %s", pragma)
		}
	}
	if _, err := database.Exec(sqliteCacheMigration); err != nil {
		database.Close()
		return nil, eris.Wrap(err, "geocode cache: migrate sqlite")
	}
	return &SQLiteCache{db: database}, nil
}

// Close releases the underlying database handle.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Lookup implements Cache.
func (c *SQLiteCache) Lookup(ctx context.Context, provider, normalized string) (*Entry, error) {
	var (
		lat, lng   float64
		confidence sql.NullFloat64
		quality    string
		matchedAdr sql.NullString
		matched    bool
		raw        sql.NullString
		cachedAt   int64
	)

	err := c.db.QueryRowContext(ctx, `
		SELECT latitude, longitude, confidence, quality, matched_address, matched, raw, cached_at
		FROM geocode_cache
		WHERE provider = ? AND address_key = ?`,
		provider, normalized,
	).Scan(&lat, &lng, &confidence, &quality, &matchedAdr, &matched, &raw, &cachedAt)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "geocode cache: sqlite lookup")
	}

	entry := &Entry{Matched: matched, CachedAt: time.Unix(cachedAt, 0).UTC()}
	if matched {
		entry.Result = &Result{
			Latitude:  lat,
			Longitude: lng,
			Quality:   Quality(quality),
			Provider:  provider,
		}
		if confidence.Valid {
			conf := confidence.Float64
			entry.Result.Confidence = &conf
		}
		if matchedAdr.Valid {
			entry.Result.MatchedAddress = matchedAdr.String
		}
		if raw.Valid {
			entry.Result.Raw = json.RawMessage(raw.String)
		}
	}
	return entry, nil
}

// Store implements Cache.
func (c *SQLiteCache) Store(ctx context.Context, provider, normalized string, result *Result) error {
	var (
		lat, lng   float64
		confidence any
		quality    = string(QualityNoMatch)
		matchedAdr any
		matched    bool
		raw        any
	)
	if result != nil {
		lat, lng = result.Latitude, result.Longitude
		if result.Confidence != nil {
			confidence = *result.Confidence
		}
		quality = string(result.Quality)
		matched = true
		if result.MatchedAddress != "" {
			matchedAdr = result.MatchedAddress
		}
		if len(result.Raw) > 0 {
			raw = string(result.Raw)
		}
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (provider, address_key, latitude, longitude, confidence, quality, matched_address, matched, raw, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, address_key) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			confidence = excluded.confidence,
			quality = excluded.quality,
			matched_address = excluded.matched_address,
			matched = excluded.matched,
			raw = excluded.raw,
			cached_at = excluded.cached_at`,
		provider, normalized, lat, lng, confidence, quality, matchedAdr, matched, raw, time.Now().UTC().Unix(),
	)
	return eris.Wrap(err, "geocode cache: sqlite store")
}
