// Package institution defines the financial institutions whose members'
// properties are monitored, and their monitored addresses. The CRUD
// surface that mutates these entities lives outside this module; the
// scheduler consumes them read-only through [Store].
package institution

import (
	"context"

	"github.com/ermey-enterprises/marketalert"
	"github.com/ermey-enterprises/marketalert/id"
)

// Institution is one financial institution inside a tenant boundary.
type Institution struct {
	marketalert.Entity

	ID       id.InstitutionID `json:"id"`
	TenantID id.TenantID      `json:"tenant_id"`
	Name     string           `json:"name"`
	Active   bool             `json:"active"`
}

// Address is a member-owned street address monitored for an institution.
type Address struct {
	marketalert.Entity

	ID            id.AddressID     `json:"id"`
	InstitutionID id.InstitutionID `json:"institution_id"`
	Street        string           `json:"street"`
	City          string           `json:"city"`
	// Region is the state/province-level grouping used to batch
	// provider queries. Empty means the address cannot be scanned.
	Region  string   `json:"region,omitempty"`
	Geocode *Geocode `json:"geocode,omitempty"`
	Active  bool     `json:"active"`
}

// Geocode is an optional lat/long for an address.
type Geocode struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Store defines the read contract the scheduler needs.
type Store interface {
	// ListInstitutions returns one page of institutions (all tenants)
	// and whether more pages remain. page is 1-based. This is a
	// cross-tenant read; implementations require a system scope on
	// the context and return marketalert.ErrSystemScopeRequired
	// otherwise.
	ListInstitutions(ctx context.Context, page, pageSize int) (items []*Institution, hasMore bool, err error)

	// ListAddresses returns all monitored addresses of an institution.
	// The caller's scope must cover the institution's tenant.
	ListAddresses(ctx context.Context, institutionID id.InstitutionID) ([]*Address, error)
}
