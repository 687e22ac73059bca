package geocode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"simple", "123 Main Street", "123 MAIN ST"},
		{"directional", "45 North Oak Avenue", "45 N OAK AVE"},
		{"post directional", "100 Elm St. S.E.", "100 ELM ST S E"},
		{"punctuation and case", "  789  oak   BOULEVARD,  Springfield ", "789 OAK BLVD SPRINGFIELD"},
		{"unit", "12 Pine Dr Apartment 4B", "12 PINE DR APT 4B"},
		{"diacritics", "5 Peña Boulevard", "5 PENA BLVD"},
		{"already normalized", "123 MAIN ST", "123 MAIN ST"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"123 Main Street, Springfield, IL 62704",
		"45 North Oak Avenue Suite 200",
		"5 Peña Blvd",
		"1600 Pennsylvania Avenue NW",
	}
	for _, raw := range inputs {
		once := Normalize(raw)
		assert.Equal(t, once, Normalize(once), "Normalize must be idempotent for %q", raw)
	}
}

func TestParse_StreetComponents(t *testing.T) {
	addr := Parse("123 N Main Street, Springfield, IL 62704")

	assert.Equal(t, "123", addr.Number)
	assert.Equal(t, "N", addr.PreDir)
	assert.Equal(t, "MAIN", addr.StreetName)
	assert.Equal(t, "ST", addr.StreetType)
	assert.Equal(t, "SPRINGFIELD", addr.City)
	assert.Equal(t, "IL", addr.State)
	assert.Equal(t, "62704", addr.Zip)
}

func TestParse_PostDirAndUnit(t *testing.T) {
	addr := Parse("1600 Pennsylvania Ave NW Apt 2")

	assert.Equal(t, "1600", addr.Number)
	assert.Equal(t, "PENNSYLVANIA", addr.StreetName)
	assert.Equal(t, "AVE", addr.StreetType)
	assert.Equal(t, "NW", addr.PostDir)
	assert.Equal(t, "2", addr.Unit)
}

func TestParse_NoNumber(t *testing.T) {
	addr := Parse("Broadway, New York, NY 10001")

	assert.Empty(t, addr.Number)
	assert.Equal(t, "BROADWAY", addr.StreetName)
	assert.Equal(t, "NEW YORK", addr.City)
	assert.Equal(t, "NY", addr.State)
	assert.Equal(t, "10001", addr.Zip)
}
