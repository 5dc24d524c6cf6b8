package schedule

import "context"

// Store defines the persistence contract for the scan schedule.
// One definition exists per deployment, seeded at provisioning time.
type Store interface {
	// LoadSchedule returns the current schedule definition.
	// Returns marketalert.ErrScheduleNotFound if none has been seeded.
	LoadSchedule(ctx context.Context) (*Definition, error)

	// SaveSchedule persists the definition. Called by the scan
	// scheduler after a completed pass.
	SaveSchedule(ctx context.Context, d *Definition) error
}
