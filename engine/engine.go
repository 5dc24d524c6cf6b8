package engine

import (
	"context"
	"fmt"

	"github.com/ermey-enterprises/marketalert"
	"github.com/ermey-enterprises/marketalert/breaker"
	"github.com/ermey-enterprises/marketalert/cache"
	"github.com/ermey-enterprises/marketalert/ext"
	"github.com/ermey-enterprises/marketalert/institution"
	"github.com/ermey-enterprises/marketalert/listings"
	"github.com/ermey-enterprises/marketalert/match"
	"github.com/ermey-enterprises/marketalert/scan"
	"github.com/ermey-enterprises/marketalert/schedule"
	"github.com/ermey-enterprises/marketalert/target"
)

// Option configures the engine build.
type Option func(*buildConfig)

type buildConfig struct {
	extensions []ext.Extension
	principal  string
}

// WithExtension registers an extension with the engine's registry.
// May be passed multiple times; extensions fire in registration order.
func WithExtension(e ext.Extension) Option {
	return func(c *buildConfig) {
		c.extensions = append(c.extensions, e)
	}
}

// WithPrincipal overrides the actor name minted into scan scopes.
func WithPrincipal(name string) Option {
	return func(c *buildConfig) {
		c.principal = name
	}
}

// Engine holds the fully wired components behind a Monitor. Build
// assembles it from the monitor's store, provider and cache, applying
// the monitor's Config throughout.
type Engine struct {
	monitor    *marketalert.Monitor
	client     *listings.Client
	resolver   *target.Resolver
	scanner    *scan.RegionScanner
	scheduler  *scan.Scheduler
	extensions *ext.Registry
}

// Build wires a Monitor's components together.
//
// The monitor's store must implement the schedule, institution and
// match store interfaces (both bundled backends do). A nil cache falls
// back to an in-process memory cache.
func Build(m *marketalert.Monitor, opts ...Option) (*Engine, error) {
	cfg := m.Config()

	bc := buildConfig{principal: scan.DefaultPrincipal}
	for _, opt := range opts {
		opt(&bc)
	}

	st := m.Store()
	if st == nil {
		return nil, marketalert.ErrNoStore
	}
	schedStore, ok := st.(schedule.Store)
	if !ok {
		return nil, fmt.Errorf("engine: store %T does not support schedules", st)
	}
	instStore, ok := st.(institution.Store)
	if !ok {
		return nil, fmt.Errorf("engine: store %T does not support institutions", st)
	}
	matchStore, ok := st.(match.Store)
	if !ok {
		return nil, fmt.Errorf("engine: store %T does not support matches", st)
	}

	provider := m.Provider()
	if provider == nil {
		return nil, marketalert.ErrNoProvider
	}

	listingCache := m.Cache()
	if listingCache == nil {
		listingCache = cache.NewMemory()
	}

	brk := breaker.New(cfg.BreakerThreshold, cfg.BreakerCooldown)
	client := listings.NewClient(provider, listingCache,
		listings.WithMaxRetries(cfg.MaxRetries),
		listings.WithBreaker(brk),
		listings.WithTTLs(listings.TTLs{
			Address: cfg.AddressCacheTTL,
			City:    cfg.CityCacheTTL,
			Region:  cfg.RegionCacheTTL,
		}),
		listings.WithLogger(m.Logger()),
	)

	scanner := scan.NewRegionScanner(client, instStore, matchStore,
		scan.WithLookback(cfg.LookbackWindow),
		scan.WithScannerLogger(m.Logger()),
	)

	resolver := target.NewResolver(instStore,
		target.WithPageSize(cfg.PageSize),
	)

	registry := ext.NewRegistry(m.Logger())
	for _, e := range bc.extensions {
		registry.Register(e)
	}

	scheduler := scan.NewScheduler(schedStore, resolver, scanner, registry,
		scan.WithTickInterval(cfg.TickInterval),
		scan.WithConcurrency(cfg.Concurrency),
		scan.WithPrincipal(bc.principal),
		scan.WithLogger(m.Logger()),
	)

	m.SetScheduler(scheduler)
	m.SetExtensions(registry)

	return &Engine{
		monitor:    m,
		client:     client,
		resolver:   resolver,
		scanner:    scanner,
		scheduler:  scheduler,
		extensions: registry,
	}, nil
}

// Monitor returns the wired monitor.
func (e *Engine) Monitor() *marketalert.Monitor { return e.monitor }

// Client returns the resilient listings client.
func (e *Engine) Client() *listings.Client { return e.client }

// Scheduler returns the scan scheduler.
func (e *Engine) Scheduler() *scan.Scheduler { return e.scheduler }

// Extensions returns the extension registry.
func (e *Engine) Extensions() *ext.Registry { return e.extensions }

// RunPass evaluates the schedule once and dispatches a scan pass if it
// is due.
func (e *Engine) RunPass(ctx context.Context) error {
	return e.scheduler.RunPass(ctx)
}

// RunNow dispatches a scan pass immediately regardless of the schedule.
func (e *Engine) RunNow(ctx context.Context) error {
	return e.scheduler.RunNow(ctx)
}
