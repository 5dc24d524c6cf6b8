package marketalert

import (
	"context"
	"log/slog"
	"time"

	"github.com/ermey-enterprises/marketalert/cache"
	"github.com/ermey-enterprises/marketalert/listings"
)

// Option configures a Monitor.
type Option func(*Monitor) error

// Storer is the minimal store interface held by the Monitor.
// It covers lifecycle operations only. The full composite interface
// (store.Store) is used in subsystem layers that don't create import
// cycles. Implementations satisfy store.Store which embeds all
// subsystem stores.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// schedulerRunner is an internal interface for scan scheduler lifecycle.
type schedulerRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Monitor is the central coordinator for scheduled listing scans.
//
// Create one with New() and functional options. The Monitor holds
// references to subsystem components via internal interfaces to avoid
// import cycles. Use Build() from the engine package to wire everything
// together.
type Monitor struct {
	config   Config
	logger   *slog.Logger
	store    Storer
	provider listings.Provider
	cache    cache.Cache

	scheduler  schedulerRunner
	extensions extensionEmitter

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Monitor with the given options.
func New(opts ...Option) (*Monitor, error) {
	m := &Monitor{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Logger returns the monitor's logger.
func (m *Monitor) Logger() *slog.Logger { return m.logger }

// Store returns the monitor's store.
func (m *Monitor) Store() Storer { return m.store }

// Provider returns the configured listings provider.
func (m *Monitor) Provider() listings.Provider { return m.provider }

// Cache returns the configured listings cache, or nil.
func (m *Monitor) Cache() cache.Cache { return m.cache }

// Config returns a copy of the monitor's configuration.
func (m *Monitor) Config() Config { return m.config }

// SetScheduler sets the scan scheduler (called by the engine package).
func (m *Monitor) SetScheduler(s schedulerRunner) { m.scheduler = s }

// SetExtensions sets the extension emitter (called by the engine package).
func (m *Monitor) SetExtensions(e extensionEmitter) { m.extensions = e }

// Start begins scheduled scanning.
func (m *Monitor) Start(ctx context.Context) error {
	if m.scheduler == nil {
		return ErrNotBuilt
	}
	if err := m.scheduler.Start(ctx); err != nil {
		return err
	}
	m.started = true
	return nil
}

// Stop gracefully shuts down the monitor.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.ShutdownTimeout)
		defer cancel()
	}
	if m.scheduler != nil && m.started {
		if err := m.scheduler.Stop(ctx); err != nil {
			m.logger.Error("scheduler stop error", "error", err)
		}
		m.started = false
	}
	if m.extensions != nil {
		m.extensions.EmitShutdown(ctx)
	}
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// WithStore sets the persistence backend.
func WithStore(s Storer) Option {
	return func(m *Monitor) error {
		m.store = s
		return nil
	}
}

// WithProvider sets the external listings provider.
func WithProvider(p listings.Provider) Option {
	return func(m *Monitor) error {
		m.provider = p
		return nil
	}
}

// WithCache sets the listings cache backend. When unset, the engine
// falls back to an in-process memory cache.
func WithCache(c cache.Cache) Option {
	return func(m *Monitor) error {
		m.cache = c
		return nil
	}
}

// WithConfig replaces the entire configuration.
func WithConfig(cfg Config) Option {
	return func(m *Monitor) error {
		m.config = cfg
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) error {
		m.logger = l
		return nil
	}
}

// WithTickInterval sets how often the scheduler re-evaluates the
// schedule.
func WithTickInterval(d time.Duration) Option {
	return func(m *Monitor) error {
		m.config.TickInterval = d
		return nil
	}
}

// WithConcurrency bounds how many targets scan in parallel per pass.
func WithConcurrency(n int) Option {
	return func(m *Monitor) error {
		m.config.Concurrency = n
		return nil
	}
}

// WithLookback sets how far back region-wide listing queries reach.
func WithLookback(d time.Duration) Option {
	return func(m *Monitor) error {
		m.config.LookbackWindow = d
		return nil
	}
}
