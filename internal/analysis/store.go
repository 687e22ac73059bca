package analysis

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/civicworks/boundary-audit/internal/db"
)

// Store persists comparison outcomes, one row per resident.
type Store struct {
	pool db.Pool
}

// NewStore creates a Store over the given pool.
func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// SaveComparison upserts the comparison row for a resident. Re-analyzing a
// resident replaces the previous outcome.
func (s *Store) SaveComparison(ctx context.Context, residentID int64, result ComparisonResult) error {
	mismatches, err := json.Marshal(result.Mismatches)
	if err != nil {
		return eris.Wrap(err, "analysis: marshal mismatches")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO boundary_comparisons (resident_id, match_status, determined, registered, mismatches, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (resident_id) DO UPDATE SET
			match_status = EXCLUDED.match_status,
			determined = EXCLUDED.determined,
			registered = EXCLUDED.registered,
			mismatches = EXCLUDED.mismatches,
			analyzed_at = now()`,
		residentID, string(result.Status), result.Determined, result.Registered, mismatches,
	)
	if err != nil {
		return eris.Wrapf(err, "analysis: save comparison for resident %d", residentID)
	}
	return nil
}

// CountByStatus returns comparison row counts grouped by match status.
func (s *Store) CountByStatus(ctx context.Context) (map[MatchStatus]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT match_status, COUNT(*)
		FROM boundary_comparisons
		GROUP BY match_status`)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: count by status")
	}
	defer rows.Close()

	counts := make(map[MatchStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "analysis: scan status count")
		}
		counts[MatchStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "analysis: iterate status counts")
	}
	return counts, nil
}
