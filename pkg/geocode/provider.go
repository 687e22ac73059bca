// Package geocode provides pluggable address resolution with per-provider
// caching and quality-ranked result selection.
package geocode

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ServiceType distinguishes providers with native batch endpoints from
// one-address-at-a-time services.
type ServiceType string

const (
	ServiceIndividual ServiceType = "individual"
	ServiceBatch      ServiceType = "batch"
)

// Provider represents a single geocoding backend.
//
// Resolve returns (nil, nil) when the call succeeded but no match was found;
// that is not a failure. Failures (timeout, transport error, non-2xx,
// unparseable payload) are returned as *ProviderError.
type Provider interface {
	Name() string
	ServiceType() ServiceType
	Configured() bool
	RateLimitDelay() time.Duration
	Resolve(ctx context.Context, address string) (*Result, error)
	ResolveBatch(ctx context.Context, addresses []string) ([]BatchItem, error)
}

// BatchItem is a single slot of a batch resolution, preserving input order.
// Exactly one of Result and Err is meaningful; both nil means no match.
type BatchItem struct {
	Result *Result
	Err    error
}

// SequentialBatch resolves addresses one at a time in input order. A failing
// address yields a per-item error without aborting the rest of the batch. It
// is the default ResolveBatch for individual-service providers.
func SequentialBatch(ctx context.Context, p Provider, addresses []string) ([]BatchItem, error) {
	items := make([]BatchItem, len(addresses))
	for i, addr := range addresses {
		r, err := p.Resolve(ctx, addr)
		if err != nil {
			zap.L().Warn("geocode: batch item failed",
				zap.String("provider", p.Name()),
				zap.Int("index", i),
				zap.Error(err),
			)
			items[i] = BatchItem{Err: err}
			continue
		}
		items[i] = BatchItem{Result: r}

		if ctx.Err() != nil {
			return items, ctx.Err()
		}
	}
	return items, nil
}
