package geocode

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Orchestrator composes the cache, a declared provider list, and the result
// selector behind single resolve operations. Providers are consulted
// cache-first; calls to one rate-limited provider are serialized through that
// provider's limiter, while independent providers are unconstrained.
type Orchestrator struct {
	cache     Cache
	providers []Provider
	byName    map[string]Provider

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewOrchestrator creates an Orchestrator over the given cache and providers.
// The provider slice order is the declaration order used for selection
// tie-breaks.
func NewOrchestrator(cache Cache, providers []Provider) *Orchestrator {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Orchestrator{
		cache:     cache,
		providers: providers,
		byName:    byName,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Providers returns the declared provider list in order.
func (o *Orchestrator) Providers() []Provider {
	return o.providers
}

// limiter returns the rate limiter for a provider, creating it on first use
// from the provider's advertised delay.
func (o *Orchestrator) limiter(p Provider) *rate.Limiter {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.limiters[p.Name()]
	if !ok {
		delay := p.RateLimitDelay()
		if delay <= 0 {
			l = rate.NewLimiter(rate.Inf, 1)
		} else {
			l = rate.NewLimiter(rate.Every(delay), 1)
		}
		o.limiters[p.Name()] = l
	}
	return l
}

// ResolveOne resolves a single raw address against one provider. The address
// is normalized first; the cache is consulted unless force is set, and a
// fresh provider result (match or no-match) overwrites the cache entry. The
// returned bool reports whether the outcome was served from the cache. A nil
// result with nil error means no match. Provider errors propagate and are
// never cached.
func (o *Orchestrator) ResolveOne(ctx context.Context, raw, providerName string, force bool) (*Result, bool, error) {
	key := Normalize(raw)
	if key == "" {
		return nil, false, &ValidationError{Field: "address", Message: "empty after normalization"}
	}

	p := o.byName[providerName]
	if p == nil {
		return nil, false, &ValidationError{Field: "provider", Message: "unknown provider " + providerName}
	}
	if !p.Configured() {
		return nil, false, &ValidationError{Field: "provider", Message: providerName + " not configured"}
	}

	if !force {
		entry, err := o.cache.Lookup(ctx, p.Name(), key)
		if err != nil {
			return nil, false, err
		}
		if entry != nil {
			if !entry.Matched {
				return nil, true, nil
			}
			r := *entry.Result
			r.Cached = true
			return &r, true, nil
		}
	}

	if err := o.limiter(p).Wait(ctx); err != nil {
		return nil, false, err
	}

	result, err := p.Resolve(ctx, key)
	if err != nil {
		return nil, false, err
	}

	if storeErr := o.cache.Store(ctx, p.Name(), key, result); storeErr != nil {
		zap.L().Warn("geocode: cache store failed",
			zap.String("provider", p.Name()),
			zap.Error(storeErr),
		)
	}

	return result, false, nil
}

// ResolveAll resolves an address against every configured provider
// (cache-first per provider) and applies the selector to return one winning
// result. Used when higher confidence is required than any single provider's
// match. A provider failure contributes a Failed-quality candidate rather
// than aborting the other providers; nil is returned when no provider
// produced a usable match.
func (o *Orchestrator) ResolveAll(ctx context.Context, raw string) (*Result, error) {
	key := Normalize(raw)
	if key == "" {
		return nil, &ValidationError{Field: "address", Message: "empty after normalization"}
	}

	var candidates []Candidate
	for _, p := range o.providers {
		if !p.Configured() {
			continue
		}

		result, _, err := o.ResolveOne(ctx, key, p.Name(), false)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, err
			}
			zap.L().Warn("geocode: provider failed during multi-resolve",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			candidates = append(candidates, Candidate{Provider: p.Name(), Result: &Result{Quality: QualityFailed, Provider: p.Name()}})
		case result == nil:
			candidates = append(candidates, Candidate{Provider: p.Name(), Result: &Result{Quality: QualityNoMatch, Provider: p.Name()}})
		default:
			candidates = append(candidates, Candidate{Provider: p.Name(), Result: result})
		}
	}

	best := SelectBest(candidates)
	if best == nil || !best.Result.Quality.Matched() {
		return nil, nil
	}
	return best.Result, nil
}
