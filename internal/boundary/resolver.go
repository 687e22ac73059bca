package boundary

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/civicworks/boundary-audit/internal/db"
)

// Resolver answers point-in-polygon queries against geo.boundaries.
type Resolver struct {
	pool db.Pool
}

// NewResolver creates a Resolver over the given pool.
func NewResolver(pool db.Pool) *Resolver {
	return &Resolver{pool: pool}
}

// FindContaining returns the boundary identifier for each boundary type whose
// polygon contains the point. When more than one same-type polygon contains
// the point (shared-edge cases), the lexicographically smallest identifier is
// selected, so repeated calls always produce the same assignment.
func (r *Resolver) FindContaining(ctx context.Context, pt Point) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT boundary_type, identifier
		FROM geo.boundaries
		WHERE ST_Contains(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))`,
		pt.Lng, pt.Lat,
	)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: containment query")
	}
	defer rows.Close()

	return collectByType(rows.Next, rows.Scan, rows.Err)
}

// FindContainingScoped is FindContaining restricted to one county's boundary
// rows, using an intersects predicate. Districts spanning multiple counties
// store one row per county slice; scoping keeps a point near a county line
// from matching a neighbor county's slice.
func (r *Resolver) FindContainingScoped(ctx context.Context, pt Point, county string) (map[string]string, error) {
	if county == "" {
		return r.FindContaining(ctx, pt)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT boundary_type, identifier
		FROM geo.boundaries
		WHERE county = $3
		  AND ST_Intersects(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))`,
		pt.Lng, pt.Lat, county,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: scoped containment query for county %s", county)
	}
	defer rows.Close()

	return collectByType(rows.Next, rows.Scan, rows.Err)
}

// FindContainingBatch resolves each point independently. Results are
// positionally aligned with the input; a per-point query error aborts the
// batch.
func (r *Resolver) FindContainingBatch(ctx context.Context, pts []Point) ([]map[string]string, error) {
	out := make([]map[string]string, len(pts))
	for i, pt := range pts {
		m, err := r.FindContaining(ctx, pt)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

// collectByType drains (boundary_type, identifier) rows into a map with the
// deterministic per-type tie-break applied.
func collectByType(next func() bool, scan func(...any) error, rowsErr func() error) (map[string]string, error) {
	candidates := make(map[string][]string)
	for next() {
		var btype, ident string
		if err := scan(&btype, &ident); err != nil {
			return nil, eris.Wrap(err, "boundary: scan containment row")
		}
		candidates[btype] = append(candidates[btype], ident)
	}
	if err := rowsErr(); err != nil {
		return nil, eris.Wrap(err, "boundary: iterate containment rows")
	}

	result := make(map[string]string, len(candidates))
	for btype, idents := range candidates {
		sort.Strings(idents)
		result[btype] = idents[0]
	}
	return result, nil
}
