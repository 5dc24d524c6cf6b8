// Package cache provides the TTL byte cache used by the resilient
// listings client. Keys are normalized query signatures; values are
// serialized listing payloads.
//
// Two backends exist: [Memory] (in-process, for single-instance
// deployments and tests) and the Redis backend in cache/redis (shared
// across instances).
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is a byte cache with per-entry TTL.
type Cache interface {
	// Get returns the cached value for key and whether it was present
	// and unexpired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key for the given TTL. A non-positive TTL
	// stores nothing.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// entry is a value with its expiry instant.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Cache with lazy TTL eviction: expired entries
// are dropped on read and swept opportunistically on write.
// Safe for concurrent use.
type Memory struct {
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	writes  int
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// sweepEvery is how many writes occur between full expiry sweeps.
const sweepEvery = 256

// NewMemory returns an empty in-process cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if m.now().After(e.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; Set may have refreshed it.
		if cur, still := m.entries[key]; still && m.now().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{value: value, expiresAt: m.now().Add(ttl)}

	m.writes++
	if m.writes%sweepEvery == 0 {
		now := m.now()
		for k, e := range m.entries {
			if now.After(e.expiresAt) {
				delete(m.entries, k)
			}
		}
	}
	return nil
}

// Len returns the number of entries currently held, including entries
// that have expired but not yet been swept.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
