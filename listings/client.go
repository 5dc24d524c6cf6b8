package listings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ermey-enterprises/marketalert/backoff"
	"github.com/ermey-enterprises/marketalert/breaker"
	"github.com/ermey-enterprises/marketalert/cache"
)

// TTLs tunes cache lifetimes per query shape. Single-address lookups are
// cached longest relative to their cost; region-wide scans carry a TTL
// proportional to dataset volatility.
type TTLs struct {
	Address time.Duration
	City    time.Duration
	Region  time.Duration
}

// DefaultTTLs returns the production cache tuning.
func DefaultTTLs() TTLs {
	return TTLs{
		Address: 24 * time.Hour,
		City:    4 * time.Hour,
		Region:  1 * time.Hour,
	}
}

// ttlFor returns the TTL for a query shape.
func (t TTLs) ttlFor(s Shape) time.Duration {
	switch s {
	case ShapeAddress:
		return t.Address
	case ShapeCity:
		return t.City
	default:
		return t.Region
	}
}

// Client shields callers from upstream instability. Every read is
// wrapped by bounded retries with backoff, a circuit breaker, and a TTL
// cache keyed by the normalized query signature.
//
// Any unresolved failure — exhausted retries, open circuit, malformed
// payload — degrades to an empty result plus a logged warning. Callers
// treat "no data" and "provider unreachable" as the same dispatchable
// outcome; a Client read never aborts the caller's loop.
type Client struct {
	provider Provider
	cache    cache.Cache
	breaker  *breaker.Breaker
	strategy backoff.Strategy
	logger   *slog.Logger

	maxRetries int
	ttls       TTLs

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMaxRetries bounds retries per call (default 3).
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackoff sets the retry delay strategy.
func WithBackoff(s backoff.Strategy) ClientOption {
	return func(c *Client) { c.strategy = s }
}

// WithBreaker sets the circuit breaker.
func WithBreaker(b *breaker.Breaker) ClientOption {
	return func(c *Client) { c.breaker = b }
}

// WithTTLs sets the per-shape cache TTLs.
func WithTTLs(t TTLs) ClientOption {
	return func(c *Client) { c.ttls = t }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient wraps a provider with the resilience stack.
func NewClient(provider Provider, store cache.Cache, opts ...ClientOption) *Client {
	c := &Client{
		provider:   provider,
		cache:      store,
		breaker:    breaker.New(5, 2*time.Minute),
		strategy:   backoff.DefaultStrategy(),
		logger:     slog.Default(),
		maxRetries: 3,
		ttls:       DefaultTTLs(),
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchByAddress fetches listings for a single address.
func (c *Client) SearchByAddress(ctx context.Context, q AddressQuery) []Listing {
	return c.resilient(ctx, q, func(ctx context.Context) ([]Listing, error) {
		return c.provider.SearchByAddress(ctx, q)
	})
}

// SearchByCity fetches listings for a city within a lookback window.
func (c *Client) SearchByCity(ctx context.Context, q CityQuery) []Listing {
	return c.resilient(ctx, q, func(ctx context.Context) ([]Listing, error) {
		return c.provider.SearchByCity(ctx, q)
	})
}

// SearchByRegion fetches all current listings in a region.
func (c *Client) SearchByRegion(ctx context.Context, q RegionQuery) []Listing {
	return c.resilient(ctx, q, func(ctx context.Context) ([]Listing, error) {
		return c.provider.SearchByRegion(ctx, q)
	})
}

// SearchByRegionSince fetches listings in a region listed since a date.
func (c *Client) SearchByRegionSince(ctx context.Context, q RegionSinceQuery) []Listing {
	return c.resilient(ctx, q, func(ctx context.Context) ([]Listing, error) {
		return c.provider.SearchByRegionSince(ctx, q)
	})
}

// resilient runs one provider call under the cache, breaker and retry
// policy. It always returns a usable (possibly empty) slice.
func (c *Client) resilient(ctx context.Context, q Query, fetch func(context.Context) ([]Listing, error)) []Listing {
	sig := q.Signature()

	if cached, ok := c.cacheGet(ctx, sig); ok {
		return cached
	}

	for attempt := 0; ; attempt++ {
		// Re-checked every attempt: a failure can trip the circuit
		// mid-call, and the remaining retries must not hit the network.
		if !c.breaker.Allow() {
			c.logger.Warn("listings: circuit open, failing fast",
				slog.String("provider", c.provider.Name()),
				slog.String("query", sig),
			)
			return []Listing{}
		}

		results, err := fetch(ctx)
		switch {
		case err == nil:
			c.breaker.Success()
			c.cacheSet(ctx, sig, q.Shape(), results)
			if results == nil {
				results = []Listing{}
			}
			return results

		case isNotFound(err):
			// A valid empty answer, not a failure.
			c.breaker.Success()
			c.cacheSet(ctx, sig, q.Shape(), []Listing{})
			return []Listing{}

		case IsTransient(err) && attempt < c.maxRetries:
			c.breaker.Failure()
			c.logger.Warn("listings: transient failure, retrying",
				slog.String("provider", c.provider.Name()),
				slog.String("query", sig),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			if sleepErr := c.sleep(ctx, c.strategy.Delay(attempt+1)); sleepErr != nil {
				// Cancelled mid-backoff; degrade without further attempts.
				return []Listing{}
			}

		default:
			c.breaker.Failure()
			c.logger.Warn("listings: unresolved failure, degrading to empty result",
				slog.String("provider", c.provider.Name()),
				slog.String("query", sig),
				slog.Int("attempts", attempt+1),
				slog.String("error", err.Error()),
			)
			return []Listing{}
		}
	}
}

// cacheGet returns the cached result for sig, if present and decodable.
func (c *Client) cacheGet(ctx context.Context, sig string) ([]Listing, bool) {
	raw, ok, err := c.cache.Get(ctx, sig)
	if err != nil {
		c.logger.Warn("listings: cache read failed",
			slog.String("query", sig),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var results []Listing
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false
	}
	if results == nil {
		results = []Listing{}
	}
	return results, true
}

// cacheSet stores a successful result. Never called on a failed or
// degraded call.
func (c *Client) cacheSet(ctx context.Context, sig string, shape Shape, results []Listing) {
	if results == nil {
		results = []Listing{}
	}

	raw, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, sig, raw, c.ttls.ttlFor(shape)); err != nil {
		c.logger.Warn("listings: cache write failed",
			slog.String("query", sig),
			slog.String("error", err.Error()),
		)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// sleepCtx waits for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
