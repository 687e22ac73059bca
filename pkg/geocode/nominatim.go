package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// nominatimPlace is one entry of the Nominatim search response.
type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	AddressType string  `json:"addresstype"`
	Importance  float64 `json:"importance"`
}

// NominatimProvider resolves addresses via an OSM Nominatim instance. The
// public instance requires at most one request per second and an identifying
// email, so the provider advertises a one-second rate-limit delay.
type NominatimProvider struct {
	baseURL    string
	email      string
	httpClient *http.Client
}

// NominatimOption configures the NominatimProvider.
type NominatimOption func(*NominatimProvider)

// WithNominatimHTTPClient sets a custom HTTP client.
func WithNominatimHTTPClient(hc *http.Client) NominatimOption {
	return func(p *NominatimProvider) { p.httpClient = hc }
}

// WithNominatimBaseURL points the provider at a self-hosted instance.
func WithNominatimBaseURL(u string) NominatimOption {
	return func(p *NominatimProvider) { p.baseURL = u }
}

// NewNominatimProvider creates a NominatimProvider. The email identifies the
// caller to the public instance per its usage policy.
func NewNominatimProvider(email string, opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		baseURL:    "https://nominatim.openstreetmap.org",
		email:      email,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// ServiceType implements Provider.
func (p *NominatimProvider) ServiceType() ServiceType { return ServiceIndividual }

// Configured implements Provider.
func (p *NominatimProvider) Configured() bool { return p.email != "" }

// RateLimitDelay implements Provider.
func (p *NominatimProvider) RateLimitDelay() time.Duration { return time.Second }

// Resolve implements Provider.
func (p *NominatimProvider) Resolve(ctx context.Context, address string) (*Result, error) {
	params := url.Values{
		"q":      {address},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	if p.email != "" {
		params.Set("email", p.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "build request: " + err.Error()}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "request: " + err.Error()}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.Name(), Message: "unexpected status", StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "read body: " + err.Error()}
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "unparseable response: " + err.Error()}
	}
	if len(places) == 0 {
		return nil, nil
	}

	place := places[0]
	lat, latErr := strconv.ParseFloat(place.Lat, 64)
	lon, lonErr := strconv.ParseFloat(place.Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "unparseable coordinates"}
	}

	result, err := NewResult(p.Name(), lat, lon, nominatimQuality(place.AddressType))
	if err != nil {
		return nil, err
	}
	result.MatchedAddress = place.DisplayName
	result.Raw = json.RawMessage(body)

	conf := place.Importance
	if conf < 0 {
		conf = 0
	} else if conf > 1 {
		conf = 1
	}
	result.Confidence = &conf

	return result, nil
}

// ResolveBatch implements Provider by resolving sequentially, respecting the
// one-request-per-second etiquette via the orchestrator's limiter.
func (p *NominatimProvider) ResolveBatch(ctx context.Context, addresses []string) ([]BatchItem, error) {
	return SequentialBatch(ctx, p, addresses)
}

// nominatimQuality maps OSM address types to the quality taxonomy.
func nominatimQuality(addressType string) Quality {
	switch addressType {
	case "building", "house":
		return QualityExact
	case "road", "residential":
		return QualityInterpolated
	default:
		return QualityApproximate
	}
}
