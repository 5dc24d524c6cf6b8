// Package id defines TypeID-based identity types for marketalert entities.
//
// Every entity uses a single ID struct with a prefix that identifies the
// entity type. IDs are K-sortable (UUIDv7-based), globally unique, and
// URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all marketalert entity types.
const (
	PrefixTenant      Prefix = "tnt"
	PrefixInstitution Prefix = "inst"
	PrefixAddress     Prefix = "addr"
	PrefixMatch       Prefix = "match"
	PrefixEvent       Prefix = "evt"
)

// ID is the primary identifier type for all marketalert entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "inst_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// TenantID is a type-safe identifier for tenants (prefix: "tnt").
type TenantID = ID

// InstitutionID is a type-safe identifier for institutions (prefix: "inst").
type InstitutionID = ID

// AddressID is a type-safe identifier for monitored addresses (prefix: "addr").
type AddressID = ID

// MatchID is a type-safe identifier for listing matches (prefix: "match").
type MatchID = ID

// EventID is a type-safe identifier for stream events (prefix: "evt").
type EventID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewTenantID generates a new unique tenant ID.
func NewTenantID() ID { return New(PrefixTenant) }

// NewInstitutionID generates a new unique institution ID.
func NewInstitutionID() ID { return New(PrefixInstitution) }

// NewAddressID generates a new unique address ID.
func NewAddressID() ID { return New(PrefixAddress) }

// NewMatchID generates a new unique match ID.
func NewMatchID() ID { return New(PrefixMatch) }

// NewEventID generates a new unique stream event ID.
func NewEventID() ID { return New(PrefixEvent) }

// ──────────────────────────────────────────────────
// Parse convenience wrappers
// ──────────────────────────────────────────────────

// ParseTenantID parses a string expecting the "tnt" prefix.
func ParseTenantID(s string) (TenantID, error) { return ParseWithPrefix(s, PrefixTenant) }

// ParseInstitutionID parses a string expecting the "inst" prefix.
func ParseInstitutionID(s string) (InstitutionID, error) { return ParseWithPrefix(s, PrefixInstitution) }

// ParseAddressID parses a string expecting the "addr" prefix.
func ParseAddressID(s string) (AddressID, error) { return ParseWithPrefix(s, PrefixAddress) }

// ParseMatchID parses a string expecting the "match" prefix.
func ParseMatchID(s string) (MatchID, error) { return ParseWithPrefix(s, PrefixMatch) }

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Prefix returns the entity-type prefix of the ID.
func (i ID) Prefix() Prefix {
	return Prefix(i.inner.Prefix())
}

// String returns the full "prefix_suffix" representation.
// The zero value renders as the empty string.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// IsNil reports whether the ID is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// ──────────────────────────────────────────────────
// Encoding interfaces
// ──────────────────────────────────────────────────

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed
	return nil
}

// Value implements driver.Valuer for database storage.
func (i ID) Value() (driver.Value, error) {
	return i.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		if v == "" {
			*i = Nil
			return nil
		}
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*i = parsed
		return nil
	case []byte:
		return i.Scan(string(v))
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
