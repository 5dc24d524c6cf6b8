package listings

import (
	"context"
	"strings"
	"time"
)

// Compile-time interface check.
var _ Provider = (*MockProvider)(nil)

// MockProvider serves deterministic synthetic listings from an in-memory
// table. It backs development environments and config-selected dry runs,
// where scans must exercise the full dispatch path without touching the
// live provider.
type MockProvider struct {
	byRegion map[string][]Listing
}

// NewMockProvider creates a provider seeded with the given listings,
// indexed by normalized region.
func NewMockProvider(seed []Listing) *MockProvider {
	p := &MockProvider{byRegion: make(map[string][]Listing)}
	for _, l := range seed {
		key := norm(l.Region)
		p.byRegion[key] = append(p.byRegion[key], l)
	}
	return p
}

// Name implements Provider.
func (p *MockProvider) Name() string { return "mock" }

// SearchByAddress implements Provider.
func (p *MockProvider) SearchByAddress(_ context.Context, q AddressQuery) ([]Listing, error) {
	var out []Listing
	for _, l := range p.byRegion[norm(q.Region)] {
		if norm(l.Street) == norm(q.Street) && norm(l.City) == norm(q.City) {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// SearchByCity implements Provider.
func (p *MockProvider) SearchByCity(_ context.Context, q CityQuery) ([]Listing, error) {
	cutoff := time.Now().UTC().Add(-q.Lookback)
	var out []Listing
	for _, l := range p.byRegion[norm(q.Region)] {
		if strings.EqualFold(strings.TrimSpace(l.City), strings.TrimSpace(q.City)) && !l.ListedAt.Before(cutoff) {
			out = append(out, l)
		}
	}
	return out, nil
}

// SearchByRegion implements Provider.
func (p *MockProvider) SearchByRegion(_ context.Context, q RegionQuery) ([]Listing, error) {
	return p.byRegion[norm(q.Region)], nil
}

// SearchByRegionSince implements Provider.
func (p *MockProvider) SearchByRegionSince(_ context.Context, q RegionSinceQuery) ([]Listing, error) {
	var out []Listing
	for _, l := range p.byRegion[norm(q.Region)] {
		if !l.ListedAt.Before(q.Since) {
			out = append(out, l)
		}
	}
	return out, nil
}
