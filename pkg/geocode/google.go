package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// GoogleProvider resolves addresses via the Google Geocoding API. It is an
// individual-service provider gated on an API key.
type GoogleProvider struct {
	apiKey     string
	httpClient *http.Client
	delay      time.Duration
}

// GoogleOption configures the GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithGoogleHTTPClient sets a custom HTTP client.
func WithGoogleHTTPClient(hc *http.Client) GoogleOption {
	return func(p *GoogleProvider) { p.httpClient = hc }
}

// NewGoogleProvider creates a GoogleProvider with the given API key. An empty
// key leaves the provider unconfigured.
func NewGoogleProvider(apiKey string, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		delay:      20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// ServiceType implements Provider.
func (p *GoogleProvider) ServiceType() ServiceType { return ServiceIndividual }

// Configured implements Provider.
func (p *GoogleProvider) Configured() bool { return p.apiKey != "" }

// RateLimitDelay implements Provider.
func (p *GoogleProvider) RateLimitDelay() time.Duration { return p.delay }

// Resolve implements Provider.
func (p *GoogleProvider) Resolve(ctx context.Context, address string) (*Result, error) {
	if p.apiKey == "" {
		return nil, &ValidationError{Field: "provider", Message: "google api key not configured"}
	}

	params := url.Values{
		"address": {address},
		"key":     {p.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleGeocodeURL+"?"+params.Encode(), nil)
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

	var googleResp googleGeocodeResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "unparseable response: " + err.Error()}
	}

	switch googleResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, &ProviderError{Provider: p.Name(), Message: "status " + googleResp.Status}
	}
	if len(googleResp.Results) == 0 {
		return nil, nil
	}

	first := googleResp.Results[0]
	result, err := NewResult(p.Name(), first.Geometry.Location.Lat, first.Geometry.Location.Lng, googleQuality(first.Geometry.LocationType))
	if err != nil {
		return nil, err
	}
	result.MatchedAddress = first.FormattedAddress
	result.Raw = json.RawMessage(body)
	return result, nil
}

// ResolveBatch implements Provider by resolving sequentially.
func (p *GoogleProvider) ResolveBatch(ctx context.Context, addresses []string) ([]BatchItem, error) {
	return SequentialBatch(ctx, p, addresses)
}

// googleQuality maps Google's location_type to the quality taxonomy.
func googleQuality(locType string) Quality {
	switch strings.ToUpper(locType) {
	case "ROOFTOP":
		return QualityExact
	case "RANGE_INTERPOLATED":
		return QualityInterpolated
	default:
		return QualityApproximate
	}
}
