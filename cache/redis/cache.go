// Package redis provides a Redis-backed implementation of cache.Cache
// for deployments where several service instances share one listings
// cache. Values are msgpack-encoded envelopes; expiry is delegated to
// Redis per-key TTLs.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ermey-enterprises/marketalert/cache"
)

// Compile-time interface check.
var _ cache.Cache = (*Cache)(nil)

// keyPrefix namespaces all cache keys in the shared Redis instance.
const keyPrefix = "marketalert:listings:"

// envelope is the stored record. CapturedAt travels with the payload so
// downstream consumers can report data age.
type envelope struct {
	Value      []byte    `msgpack:"v"`
	CapturedAt time.Time `msgpack:"at"`
}

// Cache is a Redis-backed cache.Cache. The caller owns the client
// lifecycle; Cache never closes it.
type Cache struct {
	client *goredis.Client
}

// New creates a Redis cache on an existing client.
func New(client *goredis.Client) *Cache {
	return &Cache{client: client}
}

// Get implements cache.Cache. A Redis error is returned to the caller;
// the listings client treats it like a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("marketalert/redis: get %q: %w", key, err)
	}

	var env envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		// A corrupt entry behaves as a miss; the next Set overwrites it.
		return nil, false, nil
	}
	return env.Value, true, nil
}

// Set implements cache.Cache.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	raw, err := msgpack.Marshal(envelope{Value: value, CapturedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marketalert/redis: marshal %q: %w", key, err)
	}

	if err := c.client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("marketalert/redis: set %q: %w", key, err)
	}
	return nil
}
