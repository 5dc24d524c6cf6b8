package marketalert

import "time"

// Config holds configuration for the Monitor.
type Config struct {
	// TickInterval is how often the scheduler re-evaluates whether the
	// scan schedule is due. It may be much shorter than the cron
	// interval; the due-check prevents double-firing.
	TickInterval time.Duration

	// Concurrency is the maximum number of scan targets dispatched
	// concurrently within one pass. 1 means sequential dispatch.
	Concurrency int

	// PageSize is the institution page size used during target
	// resolution.
	PageSize int

	// LookbackWindow is how far back region-wide listing queries reach.
	LookbackWindow time.Duration

	// MaxRetries bounds retries per listings-provider call.
	MaxRetries int

	// BreakerThreshold is the consecutive-failure count that trips the
	// provider circuit breaker.
	BreakerThreshold int

	// BreakerCooldown is how long the breaker holds open before probing.
	BreakerCooldown time.Duration

	// AddressCacheTTL, CityCacheTTL and RegionCacheTTL tune listing
	// cache lifetimes per query shape. Region-wide payloads are larger
	// and change more slowly, so they carry an independent TTL.
	AddressCacheTTL time.Duration
	CityCacheTTL    time.Duration
	RegionCacheTTL  time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:     1 * time.Minute,
		Concurrency:      1,
		PageSize:         100,
		LookbackWindow:   7 * 24 * time.Hour,
		MaxRetries:       3,
		BreakerThreshold: 5,
		BreakerCooldown:  2 * time.Minute,
		AddressCacheTTL:  24 * time.Hour,
		CityCacheTTL:     4 * time.Hour,
		RegionCacheTTL:   1 * time.Hour,
		ShutdownTimeout:  30 * time.Second,
	}
}
