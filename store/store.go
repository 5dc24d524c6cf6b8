// Package store defines the aggregate persistence interface. Each
// subsystem (schedule, institution, match) defines its own store
// interface; the composite Store composes them all plus lifecycle and
// management operations. Backends: Postgres and Memory.
package store

import (
	"context"

	"github.com/ermey-enterprises/marketalert/id"
	"github.com/ermey-enterprises/marketalert/institution"
	"github.com/ermey-enterprises/marketalert/match"
	"github.com/ermey-enterprises/marketalert/schedule"
)

// Store is the aggregate persistence interface.
// A single backend (postgres, memory) implements all of it.
type Store interface {
	schedule.Store
	institution.Store
	match.Store

	// ── Management operations ───────────────────────

	// CreateInstitution persists a new institution.
	// Returns marketalert.ErrInstitutionExists on ID collision.
	CreateInstitution(ctx context.Context, inst *institution.Institution) error

	// UpdateInstitution replaces an existing institution.
	// Returns marketalert.ErrInstitutionNotFound if absent.
	UpdateInstitution(ctx context.Context, inst *institution.Institution) error

	// GetInstitution returns one institution by ID.
	GetInstitution(ctx context.Context, instID id.InstitutionID) (*institution.Institution, error)

	// CreateAddress adds a monitored address to an institution.
	CreateAddress(ctx context.Context, addr *institution.Address) error

	// UpdateAddress replaces an existing monitored address.
	UpdateAddress(ctx context.Context, addr *institution.Address) error

	// ── Lifecycle ───────────────────────────────────

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
