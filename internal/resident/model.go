// Package resident stores the resident records audited by the geocoding and
// analysis pipelines.
package resident

import "fmt"

// Resident is one registered-resident row. Registered maps boundary type to
// the identifier the resident is registered under. Latitude and Longitude are
// nil until a geocoding run resolves the address.
type Resident struct {
	ID         int64
	Address    string
	City       string
	State      string
	Zip        string
	County     string
	Latitude   *float64
	Longitude  *float64
	Registered map[string]string
}

// FullAddress assembles the single-line address form used for geocoding.
func (r Resident) FullAddress() string {
	s := r.Address
	if r.City != "" {
		s = fmt.Sprintf("%s, %s", s, r.City)
	}
	if r.State != "" {
		s = fmt.Sprintf("%s, %s", s, r.State)
	}
	if r.Zip != "" {
		s = fmt.Sprintf("%s %s", s, r.Zip)
	}
	return s
}

// HasCoordinate reports whether the resident has been geocoded.
func (r Resident) HasCoordinate() bool {
	return r.Latitude != nil && r.Longitude != nil
}
