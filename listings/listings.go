package listings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Listing is one real-estate-for-sale record returned by the external
// provider.
type Listing struct {
	ListingID string    `json:"listing_id"`
	Street    string    `json:"street"`
	City      string    `json:"city"`
	Region    string    `json:"region"`
	Price     int64     `json:"price"`
	Status    string    `json:"status"`
	ListedAt  time.Time `json:"listed_at"`
	URL       string    `json:"url,omitempty"`
}

// ErrNotFound is returned by a Provider when the upstream reports no
// data for the query. It is a valid empty result, never a retry trigger.
var ErrNotFound = errors.New("listings: not found")

// transientError marks a failure worth retrying: timeouts, connection
// failures, 5xx-class responses.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// ──────────────────────────────────────────────────
// Query shapes
// ──────────────────────────────────────────────────

// Shape identifies a query's cache-TTL class.
type Shape int

const (
	// ShapeAddress is a single-address lookup (cached longest).
	ShapeAddress Shape = iota
	// ShapeCity is a city+region lookback query.
	ShapeCity
	// ShapeRegion is a region-wide query (largest payload, shortest TTL).
	ShapeRegion
)

// Query is a normalized listings query. Signature is the cache key;
// Shape selects the TTL class.
type Query interface {
	Signature() string
	Shape() Shape
}

// AddressQuery looks up listings for a single street address.
type AddressQuery struct {
	Street string
	City   string
	Region string
}

// Signature implements Query.
func (q AddressQuery) Signature() string {
	return "addr:" + norm(q.Street) + "|" + norm(q.City) + "|" + norm(q.Region)
}

// Shape implements Query.
func (q AddressQuery) Shape() Shape { return ShapeAddress }

// CityQuery looks up listings in a city within a lookback window.
type CityQuery struct {
	City     string
	Region   string
	Lookback time.Duration
}

// Signature implements Query.
func (q CityQuery) Signature() string {
	return fmt.Sprintf("city:%s|%s|%dh", norm(q.City), norm(q.Region), int(q.Lookback.Hours()))
}

// Shape implements Query.
func (q CityQuery) Shape() Shape { return ShapeCity }

// RegionQuery looks up all current listings in a region.
type RegionQuery struct {
	Region string
}

// Signature implements Query.
func (q RegionQuery) Signature() string { return "region:" + norm(q.Region) }

// Shape implements Query.
func (q RegionQuery) Shape() Shape { return ShapeRegion }

// RegionSinceQuery looks up listings in a region listed since a date.
type RegionSinceQuery struct {
	Region string
	Since  time.Time
}

// Signature implements Query.
func (q RegionSinceQuery) Signature() string {
	return "region:" + norm(q.Region) + "|since:" + q.Since.UTC().Format("2006-01-02")
}

// Shape implements Query.
func (q RegionSinceQuery) Shape() Shape { return ShapeRegion }

// norm lowercases, trims, and collapses interior whitespace so that
// cosmetic differences produce identical cache signatures.
func norm(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ──────────────────────────────────────────────────
// Provider
// ──────────────────────────────────────────────────

// Provider is the raw external listings API. Implementations are
// selected by configuration: HTTPProvider against the live service,
// MockProvider for development and dry runs.
//
// Providers return ErrNotFound for a "no data" upstream answer and wrap
// retryable failures with Transient. They do not retry, cache, or
// circuit-break — that is the Client's job.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string

	SearchByAddress(ctx context.Context, q AddressQuery) ([]Listing, error)
	SearchByCity(ctx context.Context, q CityQuery) ([]Listing, error)
	SearchByRegion(ctx context.Context, q RegionQuery) ([]Listing, error)
	SearchByRegionSince(ctx context.Context, q RegionSinceQuery) ([]Listing, error)
}
