package resident

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civicworks/boundary-audit/internal/boundary"
	"github.com/civicworks/boundary-audit/internal/db"
)

// importColumns are the resident columns populated by a CSV import.
// Coordinates are left NULL; geocoding fills them in later.
var importColumns = []string{"address", "city", "state", "zip", "county", "registered"}

// coreColumns maps CSV headers to resident fields directly. Every other
// header is treated as a registered district assignment keyed by boundary
// type.
var coreColumns = map[string]bool{
	"address": true,
	"city":    true,
	"state":   true,
	"zip":     true,
	"county":  true,
}

// ParseCSV reads a voter roll export. The address column is required; rows
// without one are skipped. Headers outside the core set that name a known
// boundary type become registered assignments; unrecognized headers are
// ignored with a warning.
func ParseCSV(path string) ([]Resident, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "resident: open csv")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "resident: read csv")
	}

	if len(records) < 2 {
		return nil, eris.New("resident: csv has no data rows")
	}

	header := records[0]
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[strings.ToLower(strings.TrimSpace(col))] = i
	}

	if _, ok := colIdx["address"]; !ok {
		return nil, eris.New(`resident: missing required column "address"`)
	}

	// Registered assignment columns are whatever is left after the core set.
	var registeredCols []string
	for col := range colIdx {
		if coreColumns[col] {
			continue
		}
		if !boundary.KnownType(col) {
			zap.L().Warn("resident: ignoring unrecognized csv column", zap.String("column", col))
			continue
		}
		registeredCols = append(registeredCols, col)
	}

	var residents []Resident
	for _, row := range records[1:] {
		addr := getCol(row, colIdx, "address")
		if addr == "" {
			continue
		}

		r := Resident{
			Address: addr,
			City:    getCol(row, colIdx, "city"),
			State:   getCol(row, colIdx, "state"),
			Zip:     getCol(row, colIdx, "zip"),
			County:  getCol(row, colIdx, "county"),
		}

		for _, col := range registeredCols {
			if v := getCol(row, colIdx, col); v != "" {
				if r.Registered == nil {
					r.Registered = make(map[string]string)
				}
				r.Registered[col] = v
			}
		}

		residents = append(residents, r)
	}

	return residents, nil
}

// Import bulk-inserts residents via the COPY protocol. Returns the number of
// rows written.
func Import(ctx context.Context, pool db.Pool, residents []Resident) (int64, error) {
	rows := make([][]any, 0, len(residents))
	for i := range residents {
		r := &residents[i]

		var registered any
		if len(r.Registered) > 0 {
			data, err := json.Marshal(r.Registered)
			if err != nil {
				return 0, eris.Wrapf(err, "resident: marshal registered for %s", r.Address)
			}
			registered = data
		}

		rows = append(rows, []any{r.Address, r.City, r.State, r.Zip, r.County, registered})
	}

	return db.CopyFrom(ctx, pool, "public", "residents", importColumns, rows)
}

// getCol returns the trimmed cell at the named column, or "" if absent.
func getCol(row []string, colIdx map[string]int, col string) string {
	i, ok := colIdx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
