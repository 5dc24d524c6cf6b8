// Package match defines listing matches: a monitored address that
// appeared in a real-estate-for-sale listing. Matches are produced by
// the scan orchestrator and consumed by the alerting surface outside
// this module.
package match

import (
	"context"
	"time"

	"github.com/ermey-enterprises/marketalert"
	"github.com/ermey-enterprises/marketalert/id"
)

// Match records one listing hit against a monitored address.
type Match struct {
	marketalert.Entity

	ID            id.MatchID       `json:"id"`
	TenantID      id.TenantID      `json:"tenant_id"`
	InstitutionID id.InstitutionID `json:"institution_id"`
	AddressID     id.AddressID     `json:"address_id"`
	ListingID     string           `json:"listing_id"`
	Region        string           `json:"region"`
	Price         int64            `json:"price"`
	ListingURL    string           `json:"listing_url,omitempty"`
	DetectedAt    time.Time        `json:"detected_at"`
}

// Store defines the persistence contract for matches.
type Store interface {
	// SaveMatch persists a match. Re-detection of the same
	// (address, listing) pair overwrites the prior record; the scan
	// path tolerates re-evaluation rather than promising exactly-once.
	SaveMatch(ctx context.Context, m *Match) error

	// ListMatches returns all matches for a tenant, newest first.
	ListMatches(ctx context.Context, tenant id.TenantID) ([]*Match, error)
}
