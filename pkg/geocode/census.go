package geocode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	censusOneLineURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	censusBatchURL   = "https://geocoding.geo.census.gov/geocoder/locations/addressbatch"
	censusBenchmark  = "Public_AR_Current"
)

// censusOneLineResponse is the JSON response from the Census single-address API.
type censusOneLineResponse struct {
	Result struct {
		AddressMatches []censusAddressMatch `json:"addressMatches"`
	} `json:"result"`
}

type censusAddressMatch struct {
	Coordinates struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	MatchedAddress string `json:"matchedAddress"`
}

// CensusProvider resolves addresses via the US Census Geocoder. It has a
// native batch endpoint accepting up to 10,000 addresses per call.
type CensusProvider struct {
	httpClient *http.Client
	delay      time.Duration
}

// CensusOption configures the CensusProvider.
type CensusOption func(*CensusProvider)

// WithCensusHTTPClient sets a custom HTTP client.
func WithCensusHTTPClient(hc *http.Client) CensusOption {
	return func(p *CensusProvider) { p.httpClient = hc }
}

// WithCensusDelay sets the minimum delay between consecutive calls.
func WithCensusDelay(d time.Duration) CensusOption {
	return func(p *CensusProvider) { p.delay = d }
}

// NewCensusProvider creates a CensusProvider.
func NewCensusProvider(opts ...CensusOption) *CensusProvider {
	p := &CensusProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		delay:      20 * time.Millisecond, // Census allows ~50 req/s
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *CensusProvider) Name() string { return "census" }

// ServiceType implements Provider.
func (p *CensusProvider) ServiceType() ServiceType { return ServiceBatch }

// Configured implements Provider. The Census geocoder needs no credentials.
func (p *CensusProvider) Configured() bool { return true }

// RateLimitDelay implements Provider.
func (p *CensusProvider) RateLimitDelay() time.Duration { return p.delay }

// Resolve implements Provider using the one-line address endpoint.
func (p *CensusProvider) Resolve(ctx context.Context, address string) (*Result, error) {
	params := url.Values{
		"address":   {address},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}

	body, err := p.get(ctx, censusOneLineURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp censusOneLineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "unparseable response: " + err.Error()}
	}

	if len(resp.Result.AddressMatches) == 0 {
		return nil, nil
	}

	match := resp.Result.AddressMatches[0]
	result, err := NewResult(p.Name(), match.Coordinates.Y, match.Coordinates.X, QualityExact)
	if err != nil {
		return nil, err
	}
	result.MatchedAddress = match.MatchedAddress
	result.Raw = json.RawMessage(body)
	return result, nil
}

// ResolveBatch implements Provider via the Census batch CSV endpoint. Input
// order is preserved; a malformed response row yields a no-match slot.
func (p *CensusProvider) ResolveBatch(ctx context.Context, addresses []string) ([]BatchItem, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	// Build CSV content: id,street,city,state,zip
	var csv strings.Builder
	for i, raw := range addresses {
		addr := Parse(raw)
		street := strings.TrimSpace(strings.Join([]string{addr.Number, addr.PreDir, addr.StreetName, addr.StreetType, addr.PostDir}, " "))
		fmt.Fprintf(&csv, "%d,%s,%s,%s,%s\n", i, street, addr.City, addr.State, addr.Zip)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("benchmark", censusBenchmark); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "write benchmark: " + err.Error()}
	}
	part, err := writer.CreateFormFile("addressFile", "addresses.csv")
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "create form file: " + err.Error()}
	}
	if _, err := part.Write([]byte(csv.String())); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "write csv: " + err.Error()}
	}
	if err := writer.Close(); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "close writer: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, censusBatchURL, &buf)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "build request: " + err.Error()}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "request: " + err.Error()}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.Name(), Message: "batch endpoint", StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "read body: " + err.Error()}
	}

	return p.parseBatchResponse(string(body), len(addresses)), nil
}

// parseBatchResponse parses the Census batch CSV response.
// Format: "id","input address","match","exact/non_exact","matched address","lon,lat",tigerlineid,side
func (p *CensusProvider) parseBatchResponse(body string, total int) []BatchItem {
	items := make([]BatchItem, total)

	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := splitCSVLine(line)
		if len(fields) < 6 {
			continue
		}

		idx, err := strconv.Atoi(strings.Trim(fields[0], "\""))
		if err != nil || idx < 0 || idx >= total {
			continue
		}

		matchType := strings.Trim(fields[2], "\"")
		if !strings.EqualFold(matchType, "Match") {
			continue
		}

		quality := QualityExact
		if !strings.EqualFold(strings.Trim(fields[3], "\""), "exact") {
			quality = QualityInterpolated
		}

		lon, lat, parseErr := parseCensusCoords(strings.Trim(fields[5], "\""))
		if parseErr != nil {
			continue
		}

		result, err := NewResult(p.Name(), lat, lon, quality)
		if err != nil {
			items[idx] = BatchItem{Err: err}
			continue
		}
		result.MatchedAddress = strings.Trim(fields[4], "\"")
		items[idx] = BatchItem{Result: result}
	}

	return items
}

// get performs a GET request and returns the body, mapping failures to
// ProviderError.
func (p *CensusProvider) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
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
	return body, nil
}

// parseCensusCoords parses "lon,lat" from the Census batch response.
func parseCensusCoords(coords string) (lon, lat float64, err error) {
	parts := strings.SplitN(coords, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid coords %q", coords)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return lon, lat, nil
}

// splitCSVLine splits a CSV line handling quoted fields.
func splitCSVLine(line string) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
			current.WriteRune(ch)
		case ch == ',' && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	fields = append(fields, current.String())
	return fields
}
