package marketalert

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("marketalert: no store configured")
	ErrNotBuilt        = errors.New("marketalert: monitor not built")
	ErrNoProvider      = errors.New("marketalert: no listings provider configured")
	ErrStoreClosed     = errors.New("marketalert: store closed")
	ErrMigrationFailed = errors.New("marketalert: migration failed")

	// Not found errors.
	ErrScheduleNotFound    = errors.New("marketalert: scan schedule not found")
	ErrInstitutionNotFound = errors.New("marketalert: institution not found")
	ErrAddressNotFound     = errors.New("marketalert: address not found")
	ErrMatchNotFound       = errors.New("marketalert: match not found")

	// Configuration errors.
	ErrInvalidSchedule = errors.New("marketalert: invalid scan schedule")
	ErrInvalidTimezone = errors.New("marketalert: invalid schedule timezone")

	// Scope errors.
	ErrSystemScopeRequired = errors.New("marketalert: system scope required")
	ErrScopeDenied         = errors.New("marketalert: scope does not permit tenant")

	// Conflict errors.
	ErrInstitutionExists = errors.New("marketalert: institution already exists")
	ErrAddressExists     = errors.New("marketalert: address already exists")
	ErrMatchExists       = errors.New("marketalert: match already exists")
)
