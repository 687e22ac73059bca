package geocode

import (
	"encoding/json"
	"fmt"
)

// Result holds the geocoding output for an address.
type Result struct {
	Latitude       float64         `json:"latitude"`
	Longitude      float64         `json:"longitude"`
	Confidence     *float64        `json:"confidence,omitempty"`
	Quality        Quality         `json:"quality"`
	MatchedAddress string          `json:"matched_address,omitempty"`
	Raw            json.RawMessage `json:"raw,omitempty"`
	Provider       string          `json:"provider"`
	Cached         bool            `json:"cached,omitempty"`
}

// NewResult constructs a Result, validating the coordinate ranges. An
// out-of-range latitude or longitude is a construction error; it is never
// stored.
func NewResult(provider string, lat, lng float64, quality Quality) (*Result, error) {
	if lat < -90 || lat > 90 {
		return nil, &ValidationError{Field: "latitude", Message: fmt.Sprintf("out of range: %v", lat)}
	}
	if lng < -180 || lng > 180 {
		return nil, &ValidationError{Field: "longitude", Message: fmt.Sprintf("out of range: %v", lng)}
	}
	return &Result{
		Latitude:  lat,
		Longitude: lng,
		Quality:   quality,
		Provider:  provider,
	}, nil
}

// ProviderError signals a transport or service failure calling an external
// resolver. It is distinct from a no-match, which is a nil Result with a nil
// error.
type ProviderError struct {
	Provider   string
	Message    string
	StatusCode int
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("geocode: provider %s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("geocode: provider %s: %s", e.Provider, e.Message)
}

// ValidationError signals malformed input: bad coordinates, an empty address,
// or a request missing required data.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("geocode: invalid %s: %s", e.Field, e.Message)
}
