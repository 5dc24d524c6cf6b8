package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ermey-enterprises/marketalert"
	"github.com/ermey-enterprises/marketalert/id"
	"github.com/ermey-enterprises/marketalert/institution"
	"github.com/ermey-enterprises/marketalert/match"
	"github.com/ermey-enterprises/marketalert/schedule"
	"github.com/ermey-enterprises/marketalert/scope"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle); verify each subsystem.
var (
	_ schedule.Store    = (*Store)(nil)
	_ institution.Store = (*Store)(nil)
	_ match.Store       = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	def          *schedule.Definition
	institutions map[string]*institution.Institution
	addresses    map[string]*institution.Address
	matches      map[string]*match.Match // key: addressID|listingID
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		institutions: make(map[string]*institution.Institution),
		addresses:    make(map[string]*institution.Address),
		matches:      make(map[string]*match.Match),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Schedule Store
// ──────────────────────────────────────────────────

// LoadSchedule returns the current schedule definition.
func (m *Store) LoadSchedule(_ context.Context) (*schedule.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.def == nil {
		return nil, marketalert.ErrScheduleNotFound
	}
	cp := *m.def
	if m.def.LastRunAt != nil {
		last := *m.def.LastRunAt
		cp.LastRunAt = &last
	}
	return &cp, nil
}

// SaveSchedule persists the schedule definition.
func (m *Store) SaveSchedule(_ context.Context, d *schedule.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *d
	if d.LastRunAt != nil {
		last := *d.LastRunAt
		cp.LastRunAt = &last
	}
	m.def = &cp
	return nil
}

// ──────────────────────────────────────────────────
// Institution Store
// ──────────────────────────────────────────────────

// ListInstitutions returns one page of institutions across all tenants.
// Requires a system scope; a tenant-bounded caller is refused.
func (m *Store) ListInstitutions(ctx context.Context, page, pageSize int) ([]*institution.Institution, bool, error) {
	if !scope.IsSystem(ctx) {
		return nil, false, marketalert.ErrSystemScopeRequired
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*institution.Institution, 0, len(m.institutions))
	for _, inst := range m.institutions {
		cp := *inst
		all = append(all, &cp)
	}
	// IDs are K-sortable, so this is creation order.
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID.String() < all[j].ID.String()
	})

	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, false, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], end < len(all), nil
}

// ListAddresses returns all monitored addresses of an institution. The
// caller's scope must cover the institution's tenant.
func (m *Store) ListAddresses(ctx context.Context, institutionID id.InstitutionID) ([]*institution.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.institutions[institutionID.String()]
	if !ok {
		return nil, marketalert.ErrInstitutionNotFound
	}
	if err := allowed(ctx, inst.TenantID); err != nil {
		return nil, err
	}

	out := make([]*institution.Address, 0)
	for _, a := range m.addresses {
		if a.InstitutionID.String() != institutionID.String() {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// CreateInstitution persists a new institution.
func (m *Store) CreateInstitution(_ context.Context, inst *institution.Institution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := inst.ID.String()
	if _, exists := m.institutions[key]; exists {
		return marketalert.ErrInstitutionExists
	}
	cp := *inst
	m.institutions[key] = &cp
	return nil
}

// UpdateInstitution replaces an existing institution.
func (m *Store) UpdateInstitution(_ context.Context, inst *institution.Institution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := inst.ID.String()
	if _, exists := m.institutions[key]; !exists {
		return marketalert.ErrInstitutionNotFound
	}
	cp := *inst
	cp.Touch()
	m.institutions[key] = &cp
	return nil
}

// GetInstitution returns one institution by ID.
func (m *Store) GetInstitution(_ context.Context, instID id.InstitutionID) (*institution.Institution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.institutions[instID.String()]
	if !ok {
		return nil, marketalert.ErrInstitutionNotFound
	}
	cp := *inst
	return &cp, nil
}

// CreateAddress adds a monitored address to an existing institution.
func (m *Store) CreateAddress(_ context.Context, addr *institution.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.institutions[addr.InstitutionID.String()]; !ok {
		return marketalert.ErrInstitutionNotFound
	}
	key := addr.ID.String()
	if _, exists := m.addresses[key]; exists {
		return marketalert.ErrAddressExists
	}
	cp := *addr
	m.addresses[key] = &cp
	return nil
}

// UpdateAddress replaces an existing monitored address.
func (m *Store) UpdateAddress(_ context.Context, addr *institution.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := addr.ID.String()
	if _, exists := m.addresses[key]; !exists {
		return marketalert.ErrAddressNotFound
	}
	cp := *addr
	cp.Touch()
	m.addresses[key] = &cp
	return nil
}

// ──────────────────────────────────────────────────
// Match Store
// ──────────────────────────────────────────────────

// SaveMatch persists a match. Re-detection of the same (address,
// listing) pair overwrites the prior record.
func (m *Store) SaveMatch(_ context.Context, mt *match.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := mt.AddressID.String() + "|" + mt.ListingID
	cp := *mt
	if prior, exists := m.matches[key]; exists {
		// Keep the original identity so re-detection is an update.
		cp.ID = prior.ID
		cp.CreatedAt = prior.CreatedAt
		cp.Touch()
	}
	m.matches[key] = &cp
	return nil
}

// ListMatches returns all matches for a tenant, newest first. The
// caller's scope must cover the tenant.
func (m *Store) ListMatches(ctx context.Context, tenant id.TenantID) ([]*match.Match, error) {
	if err := allowed(ctx, tenant); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*match.Match, 0)
	for _, mt := range m.matches {
		if mt.TenantID.String() != tenant.String() {
			continue
		}
		cp := *mt
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].DetectedAt.After(out[j].DetectedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}

// allowed checks that the context scope covers the tenant.
func allowed(ctx context.Context, tenant id.TenantID) error {
	sc, ok := scope.FromContext(ctx)
	if !ok || !sc.Allows(tenant) {
		return marketalert.ErrScopeDenied
	}
	return nil
}
