package scan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ermey-enterprises/marketalert"
	"github.com/ermey-enterprises/marketalert/id"
	"github.com/ermey-enterprises/marketalert/institution"
	"github.com/ermey-enterprises/marketalert/listings"
	"github.com/ermey-enterprises/marketalert/match"
	"github.com/ermey-enterprises/marketalert/target"
)

// Orchestrator executes one scan for one target. Implementations run
// under a tenant-bounded scope minted by the Scheduler and report how
// many matches the scan produced.
type Orchestrator interface {
	StartScan(ctx context.Context, t target.Target) (matches int, err error)
}

// OrchestratorFunc adapts a function to the Orchestrator interface.
type OrchestratorFunc func(ctx context.Context, t target.Target) (int, error)

func (f OrchestratorFunc) StartScan(ctx context.Context, t target.Target) (int, error) {
	return f(ctx, t)
}

// ListingSource is the slice of the listings client the scanner needs.
// *listings.Client satisfies it.
type ListingSource interface {
	SearchByRegionSince(ctx context.Context, q listings.RegionSinceQuery) []listings.Listing
}

// DefaultLookback bounds how far back a region scan looks for listings.
const DefaultLookback = 7 * 24 * time.Hour

// RegionScanner is the default Orchestrator. It fetches all listings
// published in the target's region within the lookback window, then
// matches them against the monitored addresses of the target's
// institutions by normalized street and city.
//
// One region-wide fetch serves every institution in the target; the
// per-target dedup upstream makes this the only provider call the
// region needs, cache permitting.
type RegionScanner struct {
	source   ListingSource
	insts    institution.Store
	matches  match.Store
	lookback time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

var _ Orchestrator = (*RegionScanner)(nil)

// ScannerOption configures a RegionScanner.
type ScannerOption func(*RegionScanner)

// WithLookback sets the listing lookback window.
func WithLookback(d time.Duration) ScannerOption {
	return func(s *RegionScanner) { s.lookback = d }
}

// WithScannerLogger sets the structured logger.
func WithScannerLogger(l *slog.Logger) ScannerOption {
	return func(s *RegionScanner) { s.logger = l }
}

// WithScannerClock overrides the wall clock, for tests.
func WithScannerClock(now func() time.Time) ScannerOption {
	return func(s *RegionScanner) { s.now = now }
}

// NewRegionScanner creates the default scan orchestrator.
func NewRegionScanner(source ListingSource, insts institution.Store, matches match.Store, opts ...ScannerOption) *RegionScanner {
	s := &RegionScanner{
		source:   source,
		insts:    insts,
		matches:  matches,
		lookback: DefaultLookback,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// monitored is one active address under watch, with its owners.
type monitored struct {
	institutionID id.InstitutionID
	addressID     id.AddressID
}

// StartScan implements Orchestrator.
func (s *RegionScanner) StartScan(ctx context.Context, t target.Target) (int, error) {
	index, err := s.buildAddressIndex(ctx, t)
	if err != nil {
		return 0, err
	}
	if len(index) == 0 {
		return 0, nil
	}

	since := s.now().Add(-s.lookback)
	results := s.source.SearchByRegionSince(ctx, listings.RegionSinceQuery{
		Region: t.Region,
		Since:  since,
	})

	detected := 0
	for _, l := range results {
		hits, ok := index[addressKey(l.Street, l.City)]
		if !ok {
			continue
		}
		for _, m := range hits {
			if err := s.record(ctx, t, m, l); err != nil {
				s.logger.Error("scan: failed to save match",
					"tenant_id", t.TenantID,
					"address_id", m.addressID,
					"listing_id", l.ListingID,
					"error", err,
				)
				continue
			}
			detected++
		}
	}
	return detected, nil
}

// buildAddressIndex maps normalized street|city keys to the monitored
// addresses of the target's institutions. Inactive addresses and
// addresses outside the target region are excluded.
func (s *RegionScanner) buildAddressIndex(ctx context.Context, t target.Target) (map[string][]monitored, error) {
	index := make(map[string][]monitored)
	for _, instID := range t.InstitutionIDs {
		addrs, err := s.insts.ListAddresses(ctx, instID)
		if err != nil {
			return nil, fmt.Errorf("scan: list addresses for %s: %w", instID, err)
		}
		for _, a := range addrs {
			if !a.Active {
				continue
			}
			if !strings.EqualFold(strings.TrimSpace(a.Region), t.Region) {
				continue
			}
			key := addressKey(a.Street, a.City)
			index[key] = append(index[key], monitored{
				institutionID: instID,
				addressID:     a.ID,
			})
		}
	}
	return index, nil
}

// record persists one detected match.
func (s *RegionScanner) record(ctx context.Context, t target.Target, m monitored, l listings.Listing) error {
	return s.matches.SaveMatch(ctx, &match.Match{
		Entity:        marketalert.NewEntity(),
		ID:            id.NewMatchID(),
		TenantID:      t.TenantID,
		InstitutionID: m.institutionID,
		AddressID:     m.addressID,
		ListingID:     l.ListingID,
		Region:        t.Region,
		Price:         l.Price,
		ListingURL:    l.URL,
		DetectedAt:    s.now().UTC(),
	})
}

// addressKey normalizes a street+city pair for matching. Case and
// surplus whitespace are insignificant.
func addressKey(street, city string) string {
	n := func(v string) string {
		return strings.Join(strings.Fields(strings.ToLower(v)), " ")
	}
	return n(street) + "|" + n(city)
}
