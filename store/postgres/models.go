package postgres

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/ermey-enterprises/marketalert"
	"github.com/ermey-enterprises/marketalert/id"
	"github.com/ermey-enterprises/marketalert/institution"
	"github.com/ermey-enterprises/marketalert/match"
	"github.com/ermey-enterprises/marketalert/schedule"
)

// ── Schedule model ────────────────────────────────────────────────

// scheduleModel is a single-row table; the fixed key keeps it that way.
const scheduleRowID = 1

type scheduleModel struct {
	bun.BaseModel `bun:"table:marketalert_schedule"`

	ID         int        `bun:"id,pk"`
	Expression string     `bun:"expression,notnull"`
	Timezone   string     `bun:"timezone,notnull,default:'UTC'"`
	LastRunAt  *time.Time `bun:"last_run_at"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func toScheduleModel(d *schedule.Definition) *scheduleModel {
	m := &scheduleModel{
		ID:         scheduleRowID,
		Expression: d.Expression,
		Timezone:   d.Timezone,
		UpdatedAt:  time.Now().UTC(),
	}
	if d.LastRunAt != nil {
		last := d.LastRunAt.UTC()
		m.LastRunAt = &last
	}
	return m
}

func fromScheduleModel(m *scheduleModel) *schedule.Definition {
	d := &schedule.Definition{
		Expression: m.Expression,
		Timezone:   m.Timezone,
	}
	if m.LastRunAt != nil {
		last := m.LastRunAt.UTC()
		d.LastRunAt = &last
	}
	return d
}

// ── Institution model ─────────────────────────────────────────────

type institutionModel struct {
	bun.BaseModel `bun:"table:marketalert_institutions"`

	ID        string    `bun:"id,pk"`
	TenantID  string    `bun:"tenant_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Active    bool      `bun:"active,notnull,default:true"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toInstitutionModel(inst *institution.Institution) *institutionModel {
	return &institutionModel{
		ID:        inst.ID.String(),
		TenantID:  inst.TenantID.String(),
		Name:      inst.Name,
		Active:    inst.Active,
		CreatedAt: inst.CreatedAt,
		UpdatedAt: inst.UpdatedAt,
	}
}

func fromInstitutionModel(m *institutionModel) (*institution.Institution, error) {
	instID, err := id.ParseInstitutionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("marketalert/postgres: parse institution id %q: %w", m.ID, err)
	}
	tenantID, err := id.ParseTenantID(m.TenantID)
	if err != nil {
		return nil, fmt.Errorf("marketalert/postgres: parse tenant id %q: %w", m.TenantID, err)
	}

	return &institution.Institution{
		Entity: marketalert.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:       instID,
		TenantID: tenantID,
		Name:     m.Name,
		Active:   m.Active,
	}, nil
}

// ── Address model ─────────────────────────────────────────────────

type addressModel struct {
	bun.BaseModel `bun:"table:marketalert_addresses"`

	ID            string    `bun:"id,pk"`
	InstitutionID string    `bun:"institution_id,notnull"`
	Street        string    `bun:"street,notnull"`
	City          string    `bun:"city,notnull"`
	Region        string    `bun:"region,notnull"`
	Latitude      *float64  `bun:"latitude"`
	Longitude     *float64  `bun:"longitude"`
	Active        bool      `bun:"active,notnull,default:true"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toAddressModel(a *institution.Address) *addressModel {
	m := &addressModel{
		ID:            a.ID.String(),
		InstitutionID: a.InstitutionID.String(),
		Street:        a.Street,
		City:          a.City,
		Region:        a.Region,
		Active:        a.Active,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
	if a.Geocode != nil {
		lat, lng := a.Geocode.Latitude, a.Geocode.Longitude
		m.Latitude = &lat
		m.Longitude = &lng
	}
	return m
}

func fromAddressModel(m *addressModel) (*institution.Address, error) {
	addrID, err := id.ParseAddressID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("marketalert/postgres: parse address id %q: %w", m.ID, err)
	}
	instID, err := id.ParseInstitutionID(m.InstitutionID)
	if err != nil {
		return nil, fmt.Errorf("marketalert/postgres: parse institution id %q: %w", m.InstitutionID, err)
	}

	a := &institution.Address{
		Entity: marketalert.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            addrID,
		InstitutionID: instID,
		Street:        m.Street,
		City:          m.City,
		Region:        m.Region,
		Active:        m.Active,
	}
	if m.Latitude != nil && m.Longitude != nil {
		a.Geocode = &institution.Geocode{Latitude: *m.Latitude, Longitude: *m.Longitude}
	}
	return a, nil
}

// ── Match model ───────────────────────────────────────────────────

type matchModel struct {
	bun.BaseModel `bun:"table:marketalert_matches"`

	ID            string    `bun:"id,pk"`
	TenantID      string    `bun:"tenant_id,notnull"`
	InstitutionID string    `bun:"institution_id,notnull"`
	AddressID     string    `bun:"address_id,notnull"`
	ListingID     string    `bun:"listing_id,notnull"`
	Region        string    `bun:"region,notnull"`
	Price         int64     `bun:"price,notnull,default:0"`
	ListingURL    string    `bun:"listing_url"`
	DetectedAt    time.Time `bun:"detected_at,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toMatchModel(mt *match.Match) *matchModel {
	return &matchModel{
		ID:            mt.ID.String(),
		TenantID:      mt.TenantID.String(),
		InstitutionID: mt.InstitutionID.String(),
		AddressID:     mt.AddressID.String(),
		ListingID:     mt.ListingID,
		Region:        mt.Region,
		Price:         mt.Price,
		ListingURL:    mt.ListingURL,
		DetectedAt:    mt.DetectedAt,
		CreatedAt:     mt.CreatedAt,
		UpdatedAt:     mt.UpdatedAt,
	}
}

func fromMatchModel(m *matchModel) (*match.Match, error) {
	matchID, err := id.ParseWithPrefix(m.ID, id.PrefixMatch)
	if err != nil {
		return nil, fmt.Errorf("marketalert/postgres: parse match id %q: %w", m.ID, err)
	}
	tenantID, err := id.ParseTenantID(m.TenantID)
	if err != nil {
		return nil, fmt.Errorf("marketalert/postgres: parse tenant id %q: %w", m.TenantID, err)
	}
	instID, err := id.ParseInstitutionID(m.InstitutionID)
	if err != nil {
		return nil, fmt.Errorf("marketalert/postgres: parse institution id %q: %w", m.InstitutionID, err)
	}
	addrID, err := id.ParseAddressID(m.AddressID)
	if err != nil {
		return nil, fmt.Errorf("marketalert/postgres: parse address id %q: %w", m.AddressID, err)
	}

	return &match.Match{
		Entity: marketalert.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            matchID,
		TenantID:      tenantID,
		InstitutionID: instID,
		AddressID:     addrID,
		ListingID:     m.ListingID,
		Region:        m.Region,
		Price:         m.Price,
		ListingURL:    m.ListingURL,
		DetectedAt:    m.DetectedAt,
	}, nil
}
