package listings_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ermey-enterprises/marketalert/backoff"
	"github.com/ermey-enterprises/marketalert/breaker"
	"github.com/ermey-enterprises/marketalert/cache"
	"github.com/ermey-enterprises/marketalert/listings"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// scriptProvider returns queued outcomes in order, then repeats the last.
type scriptProvider struct {
	mu      sync.Mutex
	results [][]listings.Listing
	errs    []error
	calls   int
}

func (p *scriptProvider) Name() string { return "script" }

func (p *scriptProvider) next() ([]listings.Listing, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	if i >= len(p.errs) {
		i = len(p.errs) - 1
	}
	return p.results[i], p.errs[i]
}

func (p *scriptProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *scriptProvider) SearchByAddress(context.Context, listings.AddressQuery) ([]listings.Listing, error) {
	return p.next()
}
func (p *scriptProvider) SearchByCity(context.Context, listings.CityQuery) ([]listings.Listing, error) {
	return p.next()
}
func (p *scriptProvider) SearchByRegion(context.Context, listings.RegionQuery) ([]listings.Listing, error) {
	return p.next()
}
func (p *scriptProvider) SearchByRegionSince(context.Context, listings.RegionSinceQuery) ([]listings.Listing, error) {
	return p.next()
}

func script(outcomes ...any) *scriptProvider {
	p := &scriptProvider{}
	for _, o := range outcomes {
		switch v := o.(type) {
		case []listings.Listing:
			p.results = append(p.results, v)
			p.errs = append(p.errs, nil)
		case error:
			p.results = append(p.results, nil)
			p.errs = append(p.errs, v)
		default:
			panic("script: unsupported outcome type")
		}
	}
	return p
}

func sample(region string) []listings.Listing {
	return []listings.Listing{{
		ListingID: "L-1",
		Street:    "123 Main St",
		City:      "Sacramento",
		Region:    region,
		Price:     500_000,
		Status:    "for_sale",
		ListedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
}

func newClient(p listings.Provider, store cache.Cache, clock *fakeClock, opts ...listings.ClientOption) *listings.Client {
	base := []listings.ClientOption{
		listings.WithBackoff(backoff.NewConstant(0)),
		listings.WithBreaker(breaker.New(3, time.Minute, breaker.WithClock(clock.Now))),
	}
	return listings.NewClient(p, store, append(base, opts...)...)
}

func TestClient_SuccessPassesThrough(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := script(sample("CA"))
	c := newClient(p, cache.NewMemory(cache.WithClock(clock.Now)), clock)

	got := c.SearchByRegion(context.Background(), listings.RegionQuery{Region: "CA"})
	if len(got) != 1 || got[0].ListingID != "L-1" {
		t.Fatalf("SearchByRegion = %+v, want the sample listing", got)
	}
}

func TestClient_CacheHitSkipsUpstream(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := script(sample("CA"))
	c := newClient(p, cache.NewMemory(cache.WithClock(clock.Now)), clock)
	ctx := context.Background()

	q := listings.RegionQuery{Region: "CA"}
	c.SearchByRegion(ctx, q)
	got := c.SearchByRegion(ctx, q)

	if p.Calls() != 1 {
		t.Errorf("upstream calls = %d, want 1 (second read served from cache)", p.Calls())
	}
	if len(got) != 1 {
		t.Errorf("cached result = %+v, want 1 listing", got)
	}
}

func TestClient_CacheExpiryCausesSecondUpstreamCall(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := script(sample("CA"))
	c := newClient(p, cache.NewMemory(cache.WithClock(clock.Now)), clock,
		listings.WithTTLs(listings.TTLs{Region: time.Hour, City: time.Hour, Address: time.Hour}))
	ctx := context.Background()

	q := listings.RegionQuery{Region: "CA"}
	c.SearchByRegion(ctx, q)
	clock.Advance(61 * time.Minute)
	c.SearchByRegion(ctx, q)

	if p.Calls() != 2 {
		t.Errorf("upstream calls = %d, want 2 (TTL expired)", p.Calls())
	}
}

func TestClient_NormalizedQueriesShareCacheEntry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := script(sample("CA"))
	c := newClient(p, cache.NewMemory(cache.WithClock(clock.Now)), clock)
	ctx := context.Background()

	c.SearchByAddress(ctx, listings.AddressQuery{Street: "123 Main St", City: "Sacramento", Region: "CA"})
	c.SearchByAddress(ctx, listings.AddressQuery{Street: "  123  MAIN st ", City: "sacramento", Region: "ca"})

	if p.Calls() != 1 {
		t.Errorf("upstream calls = %d, want 1 (signatures normalize identically)", p.Calls())
	}
}

func TestClient_NotFoundIsEmptyNotRetried(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := script(listings.ErrNotFound)
	c := newClient(p, cache.NewMemory(cache.WithClock(clock.Now)), clock)

	got := c.SearchByAddress(context.Background(), listings.AddressQuery{Street: "9 Elm", City: "Reno", Region: "NV"})
	if got == nil || len(got) != 0 {
		t.Errorf("result = %v, want non-nil empty slice", got)
	}
	if p.Calls() != 1 {
		t.Errorf("upstream calls = %d, want 1 (not-found never retries)", p.Calls())
	}
}

func TestClient_NotFoundIsCached(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := script(listings.ErrNotFound)
	c := newClient(p, cache.NewMemory(cache.WithClock(clock.Now)), clock)
	ctx := context.Background()

	q := listings.AddressQuery{Street: "9 Elm", City: "Reno", Region: "NV"}
	c.SearchByAddress(ctx, q)
	c.SearchByAddress(ctx, q)

	if p.Calls() != 1 {
		t.Errorf("upstream calls = %d, want 1 (empty answer cached)", p.Calls())
	}
}

func TestClient_TransientFailureRetriesThenSucceeds(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := script(
		listings.Transient(errors.New("timeout")),
		listings.Transient(errors.New("timeout")),
		sample("CA"),
	)
	c := newClient(p, cache.NewMemory(cache.WithClock(clock.Now)), clock)

	got := c.SearchByRegion(context.Background(), listings.RegionQuery{Region: "CA"})
	if len(got) != 1 {
		t.Errorf("result = %+v, want the sample listing after retries", got)
	}
	if p.Calls() != 3 {
		t.Errorf("upstream calls = %d, want 3", p.Calls())
	}
}

func TestClient_ExhaustedRetriesDegradeToEmpty(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := script(listings.Transient(errors.New("connection refused")))
	c := newClient(p, cache.NewMemory(cache.WithClock(clock.Now)), clock,
		listings.WithMaxRetries(2))

	got := c.SearchByRegion(context.Background(), listings.RegionQuery{Region: "CA"})
	if got == nil || len(got) != 0 {
		t.Errorf("result = %v, want non-nil empty slice", got)
	}
	if p.Calls() != 3 {
		t.Errorf("upstream calls = %d, want 3 (initial + 2 retries)", p.Calls())
	}
}

func TestClient_FailureNeverCached(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := script(
		listings.Transient(errors.New("boom")),
		listings.Transient(errors.New("boom")),
		listings.Transient(errors.New("boom")),
		listings.Transient(errors.New("boom")),
		sample("CA"),
	)
	mem := cache.NewMemory(cache.WithClock(clock.Now))
	c := newClient(p, mem, clock, listings.WithMaxRetries(3))
	ctx := context.Background()

	q := listings.RegionQuery{Region: "CA"}
	if got := c.SearchByRegion(ctx, q); len(got) != 0 {
		t.Fatalf("degraded result = %+v, want empty", got)
	}
	if mem.Len() != 0 {
		t.Errorf("cache entries after degraded call = %d, want 0", mem.Len())
	}
}

func TestClient_CircuitOpensAndFailsFast(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := script(listings.Transient(errors.New("boom")))
	// Threshold 3 trips during the first call's retries.
	c := newClient(p, cache.NewMemory(cache.WithClock(clock.Now)), clock,
		listings.WithMaxRetries(3))
	ctx := context.Background()

	c.SearchByRegion(ctx, listings.RegionQuery{Region: "CA"})
	before := p.Calls()

	// Circuit is open: distinct queries fail fast with no network attempt.
	got := c.SearchByRegion(ctx, listings.RegionQuery{Region: "NV"})
	if len(got) != 0 {
		t.Errorf("fail-fast result = %+v, want empty", got)
	}
	if p.Calls() != before {
		t.Errorf("upstream calls while open = %d, want %d (no attempt)", p.Calls(), before)
	}
}

func TestClient_BreakerTripMidCallStopsRetries(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := script(listings.Transient(errors.New("boom")))
	// Threshold 1: the first failure opens the circuit, so the
	// remaining retry budget must not be spent against an open circuit.
	c := newClient(p, cache.NewMemory(cache.WithClock(clock.Now)), clock,
		listings.WithBreaker(breaker.New(1, time.Minute, breaker.WithClock(clock.Now))),
		listings.WithMaxRetries(3))

	got := c.SearchByRegion(context.Background(), listings.RegionQuery{Region: "CA"})
	if got == nil || len(got) != 0 {
		t.Errorf("result = %v, want non-nil empty slice", got)
	}
	if p.Calls() != 1 {
		t.Errorf("upstream calls = %d, want 1 (circuit tripped after the first failure)", p.Calls())
	}
}

func TestClient_CircuitClosesAfterCooldownProbe(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := script(
		listings.Transient(errors.New("boom")),
		listings.Transient(errors.New("boom")),
		listings.Transient(errors.New("boom")),
		sample("NV"),
	)
	c := newClient(p, cache.NewMemory(cache.WithClock(clock.Now)), clock,
		listings.WithMaxRetries(3))
	ctx := context.Background()

	c.SearchByRegion(ctx, listings.RegionQuery{Region: "CA"}) // trips the breaker on the third failure
	clock.Advance(2 * time.Minute)                            // past cooldown

	got := c.SearchByRegion(ctx, listings.RegionQuery{Region: "NV"})
	if len(got) != 1 {
		t.Fatalf("probe result = %+v, want success after cooldown", got)
	}

	// Circuit closed again: normal calls proceed.
	before := p.Calls()
	c.SearchByRegion(ctx, listings.RegionQuery{Region: "AZ"})
	if p.Calls() != before+1 {
		t.Errorf("upstream calls after close = %d, want %d", p.Calls(), before+1)
	}
}
