// Package boundary resolves geographic coordinates to the political and
// administrative boundaries that contain them, and loads boundary polygons
// from shapefile sources.
package boundary

import (
	"time"

	"github.com/civicworks/boundary-audit/pkg/geocode"
)

// Boundary classes.
const (
	ClassDistrict = "district"
	ClassPrecinct = "precinct"
)

// districtTypes and precinctTypes form the static classification table used
// by discrepancy analysis. A type appearing in neither table is treated as
// the district class.
var (
	districtTypes = map[string]bool{
		"congressional":          true,
		"state_senate":           true,
		"state_house":            true,
		"judicial":               true,
		"county_commission":      true,
		"school_board":           true,
		"city_council":           true,
		"municipal_school_board": true,
		"water_board":            true,
		"super_council":          true,
		"super_commissioner":     true,
		"super_school_board":     true,
		"fire":                   true,
	}

	precinctTypes = map[string]bool{
		"county_precinct":    true,
		"municipal_precinct": true,
	}
)

// Classify returns the class for a boundary type.
func Classify(boundaryType string) string {
	if precinctTypes[boundaryType] {
		return ClassPrecinct
	}
	return ClassDistrict
}

// KnownType reports whether a boundary type appears in the classification
// table.
func KnownType(boundaryType string) bool {
	return districtTypes[boundaryType] || precinctTypes[boundaryType]
}

// Boundary is one named polygon row in geo.boundaries.
type Boundary struct {
	ID            int64
	Type          string
	Identifier    string
	County        string
	EffectiveDate *time.Time
	Properties    map[string]string
}

// Point is a WGS84 coordinate.
type Point struct {
	Lng float64
	Lat float64
}

// NewPoint validates coordinate ranges and returns a Point.
func NewPoint(lat, lng float64) (Point, error) {
	if lat < -90 || lat > 90 {
		return Point{}, &geocode.ValidationError{Field: "latitude", Message: "latitude out of range [-90, 90]"}
	}
	if lng < -180 || lng > 180 {
		return Point{}, &geocode.ValidationError{Field: "longitude", Message: "longitude out of range [-180, 180]"}
	}
	return Point{Lng: lng, Lat: lat}, nil
}
