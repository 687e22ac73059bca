package resident

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "residents.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCSV(t *testing.T) {
	path := writeCSV(t, `Address,City,State,Zip,County,Congressional,County_Precinct,Favorite Color
123 Main St,Memphis,TN,38103,Shelby,09,12-1,blue
,Memphis,TN,38103,Shelby,09,12-1,
456 Oak Ave,Bartlett,TN,38134,Shelby,,,
`)

	residents, err := ParseCSV(path)
	require.NoError(t, err)
	require.Len(t, residents, 2, "rows without an address are skipped")

	first := residents[0]
	assert.Equal(t, "123 Main St", first.Address)
	assert.Equal(t, "Memphis", first.City)
	assert.Equal(t, "TN", first.State)
	assert.Equal(t, "38103", first.Zip)
	assert.Equal(t, "Shelby", first.County)
	assert.Equal(t, map[string]string{
		"congressional":   "09",
		"county_precinct": "12-1",
	}, first.Registered, "unrecognized columns are dropped")

	second := residents[1]
	assert.Equal(t, "456 Oak Ave", second.Address)
	assert.Nil(t, second.Registered, "empty assignment cells produce no entries")
}

func TestParseCSV_MissingAddressColumn(t *testing.T) {
	path := writeCSV(t, "City,State\nMemphis,TN\n")

	_, err := ParseCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"address"`)
}

func TestParseCSV_NoDataRows(t *testing.T) {
	path := writeCSV(t, "Address,City\n")

	_, err := ParseCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data rows")
}

func TestImport(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"public", "residents"}, importColumns).WillReturnResult(2)

	residents := []Resident{
		{Address: "123 Main St", City: "Memphis", State: "TN", Zip: "38103", County: "Shelby",
			Registered: map[string]string{"congressional": "09"}},
		{Address: "456 Oak Ave", City: "Bartlett", State: "TN", Zip: "38134", County: "Shelby"},
	}

	n, err := Import(context.Background(), mock, residents)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
