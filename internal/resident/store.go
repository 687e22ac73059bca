package resident

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/civicworks/boundary-audit/internal/db"
)

// Store reads and updates resident rows in Postgres.
type Store struct {
	pool db.Pool
}

// NewStore creates a Store over the given pool.
func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// Count returns the total number of resident rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM residents`).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "resident: count")
	}
	return n, nil
}

// CountMissingCoordinates returns how many residents have not been geocoded.
func (s *Store) CountMissingCoordinates(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM residents WHERE latitude IS NULL`).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "resident: count missing coordinates")
	}
	return n, nil
}

// ListBatch returns residents ordered by id starting at offset. The fixed
// ordering is what makes a persisted batch offset meaningful across
// invocations.
func (s *Store) ListBatch(ctx context.Context, offset, limit int64) ([]Resident, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, address, city, state, zip, county, latitude, longitude, COALESCE(registered, '{}'::jsonb)
		FROM residents
		ORDER BY id
		OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "resident: list batch")
	}
	defer rows.Close()

	var out []Resident
	for rows.Next() {
		var r Resident
		if err := rows.Scan(&r.ID, &r.Address, &r.City, &r.State, &r.Zip, &r.County,
			&r.Latitude, &r.Longitude, &r.Registered); err != nil {
			return nil, eris.Wrap(err, "resident: scan row")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "resident: iterate rows")
	}
	return out, nil
}

// UpdateCoordinate writes a newly resolved coordinate and its provenance.
func (s *Store) UpdateCoordinate(ctx context.Context, id int64, lat, lng float64, provider, quality string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE residents
		SET latitude = $2, longitude = $3, geocode_provider = $4, geocode_quality = $5, geocoded_at = now()
		WHERE id = $1`,
		id, lat, lng, provider, quality,
	)
	if err != nil {
		return eris.Wrapf(err, "resident: update coordinate for %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("resident: no row with id %d", id)
	}
	return nil
}
