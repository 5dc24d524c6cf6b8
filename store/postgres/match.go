package postgres

import (
	"context"
	"fmt"

	"github.com/ermey-enterprises/marketalert"
	"github.com/ermey-enterprises/marketalert/id"
	"github.com/ermey-enterprises/marketalert/match"
	"github.com/ermey-enterprises/marketalert/scope"
)

// SaveMatch persists a match. Re-detection of the same (address,
// listing) pair updates the prior row in place.
func (s *Store) SaveMatch(ctx context.Context, mt *match.Match) error {
	m := toMatchModel(mt)
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (address_id, listing_id) DO UPDATE").
		Set("price = EXCLUDED.price").
		Set("listing_url = EXCLUDED.listing_url").
		Set("region = EXCLUDED.region").
		Set("detected_at = EXCLUDED.detected_at").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("marketalert/postgres: save match: %w", err)
	}
	return nil
}

// ListMatches returns all matches for a tenant, newest first. The
// caller's scope must cover the tenant.
func (s *Store) ListMatches(ctx context.Context, tenant id.TenantID) ([]*match.Match, error) {
	if sc, ok := scope.FromContext(ctx); !ok || !sc.Allows(tenant) {
		return nil, marketalert.ErrScopeDenied
	}

	var models []matchModel
	err := s.db.NewSelect().Model(&models).
		Where("tenant_id = ?", tenant.String()).
		Order("detected_at DESC").
		Order("id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("marketalert/postgres: list matches: %w", err)
	}

	matches := make([]*match.Match, 0, len(models))
	for i := range models {
		mt, convErr := fromMatchModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("marketalert/postgres: list matches convert: %w", convErr)
		}
		matches = append(matches, mt)
	}
	return matches, nil
}
