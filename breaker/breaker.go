// Package breaker provides a consecutive-failure circuit breaker for the
// external listings provider.
//
// The breaker trips open after a configurable number of consecutive
// failures and holds open for a cooldown window, during which calls fail
// fast without touching the network. After the cooldown a single probe
// call is allowed through (half-open); its outcome closes or re-opens
// the circuit.
package breaker

import (
	"sync"
	"time"
)

// State is the circuit state.
type State int

const (
	// Closed allows all calls.
	Closed State = iota
	// Open fails all calls fast until the cooldown elapses.
	Open
	// HalfOpen allows a single probe call.
	HalfOpen
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a consecutive-failure circuit breaker.
// Safe for concurrent use.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New creates a Breaker that opens after threshold consecutive failures
// and holds open for the cooldown window.
func New(threshold int, cooldown time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether a call may proceed. In the open state it returns
// false until the cooldown elapses, then admits exactly one probe at a
// time (half-open).
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = HalfOpen
		b.probing = true
		return true
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return false
	}
}

// Success records a successful call. In half-open it closes the circuit;
// in closed it resets the consecutive-failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	b.state = Closed
}

// Failure records a failed call. In half-open it re-opens the circuit
// immediately; in closed it opens once the consecutive-failure count
// reaches the threshold.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false

	if b.state == HalfOpen {
		b.trip()
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.trip()
	}
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// trip opens the circuit. Caller holds b.mu.
func (b *Breaker) trip() {
	b.state = Open
	b.failures = 0
	b.openedAt = b.now()
}
