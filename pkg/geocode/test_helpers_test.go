package geocode

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// newRewriteClient creates an HTTP client that rewrites requests to a test
// server URL. All requests matching the target prefix are redirected to the
// test server.
func newRewriteClient(testServerURL, targetPrefix string) *http.Client {
	return &http.Client{
		Transport: &rewriteTransport{
			base:         http.DefaultTransport,
			testServer:   testServerURL,
			targetPrefix: targetPrefix,
		},
	}
}

type rewriteTransport struct {
	base         http.RoundTripper
	testServer   string
	targetPrefix string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	if strings.HasPrefix(origURL, t.targetPrefix) {
		suffix := origURL[len(t.targetPrefix):]
		newURL := t.testServer + suffix
		newReq := req.Clone(req.Context())
		parsed, err := req.URL.Parse(newURL)
		if err != nil {
			return nil, err
		}
		newReq.URL = parsed
		newReq.Host = parsed.Host
		return t.base.RoundTrip(newReq)
	}
	return t.base.RoundTrip(req)
}

// mockProvider implements Provider for orchestrator and selector tests.
type mockProvider struct {
	name       string
	configured bool
	delay      time.Duration
	result     *Result
	err        error

	mu    sync.Mutex
	calls int
}

func (m *mockProvider) Name() string                  { return m.name }
func (m *mockProvider) ServiceType() ServiceType      { return ServiceIndividual }
func (m *mockProvider) Configured() bool              { return m.configured }
func (m *mockProvider) RateLimitDelay() time.Duration { return m.delay }

func (m *mockProvider) Resolve(_ context.Context, _ string) (*Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.result, m.err
}

func (m *mockProvider) ResolveBatch(ctx context.Context, addrs []string) ([]BatchItem, error) {
	return SequentialBatch(ctx, m, addrs)
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// memCache is an in-memory Cache for orchestrator tests.
type memCache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	lookups int
	stores  int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*Entry)}
}

func (c *memCache) Lookup(_ context.Context, provider, normalized string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	return c.entries[provider+"|"+normalized], nil
}

func (c *memCache) Store(_ context.Context, provider, normalized string, result *Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores++
	entry := &Entry{Matched: result != nil, CachedAt: time.Now()}
	if result != nil {
		r := *result
		entry.Result = &r
	}
	c.entries[provider+"|"+normalized] = entry
	return nil
}

func floatPtr(f float64) *float64 { return &f }
