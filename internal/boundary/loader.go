package boundary

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/civicworks/boundary-audit/internal/db"
)

// Layer describes one shapefile source in the layer map: which boundary type
// it loads and which attribute carries the boundary identifier. County comes
// from a fixed value or a per-record attribute.
type Layer struct {
	Type            string `yaml:"type"`
	Shapefile       string `yaml:"shapefile"`
	IdentifierField string `yaml:"identifier_field"`
	County          string `yaml:"county,omitempty"`
	CountyField     string `yaml:"county_field,omitempty"`
	EffectiveDate   string `yaml:"effective_date,omitempty"`
}

// LayerMap is the YAML ingestion manifest.
type LayerMap struct {
	Layers []Layer `yaml:"layers"`
}

// LoadLayerMap reads and validates a layer map file.
func LoadLayerMap(path string) (*LayerMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: read layer map %s", path)
	}

	var lm LayerMap
	if err := yaml.Unmarshal(data, &lm); err != nil {
		return nil, eris.Wrapf(err, "boundary: parse layer map %s", path)
	}
	if len(lm.Layers) == 0 {
		return nil, eris.Errorf("boundary: layer map %s has no layers", path)
	}

	for i, layer := range lm.Layers {
		if layer.Type == "" {
			return nil, eris.Errorf("boundary: layer %d: missing type", i)
		}
		if layer.Shapefile == "" {
			return nil, eris.Errorf("boundary: layer %s: missing shapefile", layer.Type)
		}
		if layer.IdentifierField == "" {
			return nil, eris.Errorf("boundary: layer %s: missing identifier_field", layer.Type)
		}
		if layer.County == "" && layer.CountyField == "" {
			return nil, eris.Errorf("boundary: layer %s: needs county or county_field", layer.Type)
		}
		if !KnownType(layer.Type) {
			zap.L().Warn("boundary: layer type not in classification table",
				zap.String("type", layer.Type),
			)
		}
	}

	return &lm, nil
}

// Loader ingests shapefile layers into geo.boundaries.
type Loader struct {
	pool db.Pool
}

// NewLoader creates a Loader over the given pool.
func NewLoader(pool db.Pool) *Loader {
	return &Loader{pool: pool}
}

var boundaryColumns = []string{"boundary_type", "identifier", "county", "effective_date", "properties", "geom"}

// LoadLayer parses one shapefile layer and upserts its polygons. Returns the
// number of rows written. Records without an identifier or a usable polygon
// are skipped, not fatal.
func (l *Loader) LoadLayer(ctx context.Context, baseDir string, layer Layer) (int64, error) {
	shpPath := layer.Shapefile
	if !filepath.IsAbs(shpPath) {
		shpPath = filepath.Join(baseDir, shpPath)
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return 0, eris.Wrapf(err, "boundary: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	fieldNames := make([]string, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
		fieldNames[i] = name
	}

	identIdx, ok := fieldIdx[strings.ToLower(layer.IdentifierField)]
	if !ok {
		return 0, eris.Errorf("boundary: layer %s: shapefile has no field %s", layer.Type, layer.IdentifierField)
	}

	var effectiveDate any
	if layer.EffectiveDate != "" {
		d, parseErr := time.Parse("2006-01-02", layer.EffectiveDate)
		if parseErr != nil {
			return 0, eris.Wrapf(parseErr, "boundary: layer %s: bad effective_date", layer.Type)
		}
		effectiveDate = d
	}

	var rows [][]any
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		ident := attribute(reader, identIdx)
		if ident == "" {
			skipped++
			continue
		}

		county := layer.County
		if county == "" {
			idx, hasField := fieldIdx[strings.ToLower(layer.CountyField)]
			if hasField {
				county = attribute(reader, idx)
			}
		}
		if county == "" {
			skipped++
			continue
		}

		wkb, encErr := encodePolygonWKB(shape)
		if encErr != nil || wkb == nil {
			skipped++
			continue
		}

		props := make(map[string]string, len(fieldNames))
		for i, name := range fieldNames {
			if v := attribute(reader, i); v != "" {
				props[name] = v
			}
		}
		propsJSON, jsonErr := json.Marshal(props)
		if jsonErr != nil {
			skipped++
			continue
		}

		rows = append(rows, []any{layer.Type, ident, county, effectiveDate, propsJSON, wkb})
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped shapefile records",
			zap.String("type", layer.Type),
			zap.Int("skipped", skipped),
		)
	}

	n, err := db.BulkUpsert(ctx, l.pool, db.UpsertConfig{
		Table:        "geo.boundaries",
		Columns:      boundaryColumns,
		ConflictKeys: []string{"boundary_type", "identifier", "county"},
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "boundary: upsert layer %s", layer.Type)
	}

	zap.L().Info("boundary: loaded layer",
		zap.String("type", layer.Type),
		zap.Int64("rows", n),
		zap.Int("skipped", skipped),
	)
	return n, nil
}

// LoadAll loads the map's layers, a few at a time. Layers are independent
// tables of rows, so ordering does not matter; the first failure cancels the
// remaining loads.
func (l *Loader) LoadAll(ctx context.Context, baseDir string, lm *LayerMap) (int64, error) {
	var total atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, layer := range lm.Layers {
		g.Go(func() error {
			n, err := l.LoadLayer(ctx, baseDir, layer)
			if err != nil {
				return err
			}
			total.Add(n)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return total.Load(), err
	}
	return total.Load(), nil
}

// attribute reads a trimmed shapefile attribute value.
func attribute(r *shp.Reader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(r.Attribute(idx), "\x00"))
}
