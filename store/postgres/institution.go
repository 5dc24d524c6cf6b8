package postgres

import (
	"context"
	"fmt"

	"github.com/ermey-enterprises/marketalert"
	"github.com/ermey-enterprises/marketalert/id"
	"github.com/ermey-enterprises/marketalert/institution"
	"github.com/ermey-enterprises/marketalert/scope"
)

// ListInstitutions returns one page of institutions across all tenants.
// Requires a system scope; a tenant-bounded caller is refused.
func (s *Store) ListInstitutions(ctx context.Context, page, pageSize int) ([]*institution.Institution, bool, error) {
	if !scope.IsSystem(ctx) {
		return nil, false, marketalert.ErrSystemScopeRequired
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	var models []institutionModel
	// Fetch one extra row to learn whether more pages remain.
	err := s.db.NewSelect().Model(&models).
		Order("id ASC").
		Limit(pageSize + 1).
		Offset((page - 1) * pageSize).
		Scan(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("marketalert/postgres: list institutions: %w", err)
	}

	hasMore := len(models) > pageSize
	if hasMore {
		models = models[:pageSize]
	}

	items := make([]*institution.Institution, 0, len(models))
	for i := range models {
		inst, convErr := fromInstitutionModel(&models[i])
		if convErr != nil {
			return nil, false, fmt.Errorf("marketalert/postgres: list institutions convert: %w", convErr)
		}
		items = append(items, inst)
	}
	return items, hasMore, nil
}

// ListAddresses returns all monitored addresses of an institution. The
// caller's scope must cover the institution's tenant.
func (s *Store) ListAddresses(ctx context.Context, institutionID id.InstitutionID) ([]*institution.Address, error) {
	inst, err := s.GetInstitution(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	if sc, ok := scope.FromContext(ctx); !ok || !sc.Allows(inst.TenantID) {
		return nil, marketalert.ErrScopeDenied
	}

	var models []addressModel
	err = s.db.NewSelect().Model(&models).
		Where("institution_id = ?", institutionID.String()).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("marketalert/postgres: list addresses: %w", err)
	}

	addrs := make([]*institution.Address, 0, len(models))
	for i := range models {
		a, convErr := fromAddressModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("marketalert/postgres: list addresses convert: %w", convErr)
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}

// GetInstitution retrieves one institution by ID.
func (s *Store) GetInstitution(ctx context.Context, institutionID id.InstitutionID) (*institution.Institution, error) {
	m := new(institutionModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", institutionID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, marketalert.ErrInstitutionNotFound
		}
		return nil, fmt.Errorf("marketalert/postgres: get institution: %w", err)
	}
	return fromInstitutionModel(m)
}

// CreateInstitution persists a new institution.
func (s *Store) CreateInstitution(ctx context.Context, inst *institution.Institution) error {
	m := toInstitutionModel(inst)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return marketalert.ErrInstitutionExists
		}
		return fmt.Errorf("marketalert/postgres: create institution: %w", err)
	}
	return nil
}

// UpdateInstitution replaces an existing institution.
func (s *Store) UpdateInstitution(ctx context.Context, inst *institution.Institution) error {
	m := toInstitutionModel(inst)
	res, err := s.db.NewUpdate().Model(m).
		WherePK().
		Set("tenant_id = ?", m.TenantID).
		Set("name = ?", m.Name).
		Set("active = ?", m.Active).
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("marketalert/postgres: update institution: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return marketalert.ErrInstitutionNotFound
	}
	return nil
}

// CreateAddress adds a monitored address to an existing institution.
func (s *Store) CreateAddress(ctx context.Context, addr *institution.Address) error {
	exists, err := s.db.NewSelect().
		TableExpr("marketalert_institutions").
		Where("id = ?", addr.InstitutionID.String()).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("marketalert/postgres: check institution: %w", err)
	}
	if !exists {
		return marketalert.ErrInstitutionNotFound
	}

	m := toAddressModel(addr)
	_, err = s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return marketalert.ErrAddressExists
		}
		return fmt.Errorf("marketalert/postgres: create address: %w", err)
	}
	return nil
}

// UpdateAddress replaces an existing monitored address.
func (s *Store) UpdateAddress(ctx context.Context, addr *institution.Address) error {
	m := toAddressModel(addr)
	res, err := s.db.NewUpdate().Model(m).
		WherePK().
		Set("street = ?", m.Street).
		Set("city = ?", m.City).
		Set("region = ?", m.Region).
		Set("latitude = ?", m.Latitude).
		Set("longitude = ?", m.Longitude).
		Set("active = ?", m.Active).
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("marketalert/postgres: update address: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return marketalert.ErrAddressNotFound
	}
	return nil
}
