package schedule

import (
	"fmt"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/ermey-enterprises/marketalert"
)

// parser accepts 5-field cron, 6-field cron with a leading seconds field,
// and descriptors like "@every 30s". Production schedules are 6-field
// (e.g. "0 */5 * * * *").
var parser = cronlib.NewParser(
	cronlib.SecondOptional | cronlib.Minute | cronlib.Hour | cronlib.Dom |
		cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// parsedCache caches parsed cron expressions across definitions.
var parsedCache sync.Map // expression → cronlib.Schedule

// ParseExpression parses a cron expression through the package parser.
func ParseExpression(expr string) (cronlib.Schedule, error) {
	if cached, ok := parsedCache.Load(expr); ok {
		return cached.(cronlib.Schedule), nil
	}

	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %q: %v", marketalert.ErrInvalidSchedule, expr, err)
	}

	parsedCache.Store(expr, sched)
	return sched, nil
}

// Definition is the scan schedule: a cron expression, the IANA timezone
// it is interpreted in, and the last recorded run.
//
// The scan scheduler is the sole writer of LastRunAt; every other reader
// (e.g. the admin surface) treats the definition as read-only.
type Definition struct {
	// Expression is a cron expression, 5- or 6-field (leading seconds).
	Expression string `json:"expression"`

	// Timezone is an IANA timezone identifier. Empty means UTC.
	Timezone string `json:"timezone,omitempty"`

	// LastRunAt is the UTC trigger time of the last completed pass.
	// Nil means the schedule has never run.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
}

// Validate checks that the expression parses and the timezone resolves.
// An invalid definition must surface loudly; it never silently degrades
// to always-due or never-due.
func (d *Definition) Validate() error {
	if _, err := ParseExpression(d.Expression); err != nil {
		return err
	}
	if _, err := d.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the definition's timezone. Empty means UTC.
func (d *Definition) Location() (*time.Location, error) {
	if d.Timezone == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", marketalert.ErrInvalidTimezone, d.Timezone, err)
	}
	return loc, nil
}

// NextOccurrence returns the first occurrence of the expression strictly
// after the given instant, interpreted in the definition's timezone.
// ok is false when the expression can never fire again; callers treat
// that as a configuration error.
func (d *Definition) NextOccurrence(after time.Time) (next time.Time, ok bool, err error) {
	sched, err := ParseExpression(d.Expression)
	if err != nil {
		return time.Time{}, false, err
	}

	loc, err := d.Location()
	if err != nil {
		return time.Time{}, false, err
	}

	next = sched.Next(after.In(loc))
	if next.IsZero() {
		return time.Time{}, false, nil
	}
	return next.UTC(), true, nil
}

// IsDue reports whether a pass is due at the given trigger time.
//
// A run is due when there is no recorded last run (first-ever run), or
// when the next occurrence after the last run is at or before now. A
// missed window is therefore caught on the next tick rather than lost,
// and a timer firing more often than the cron interval cannot
// double-fire within one interval.
//
// IsDue is read-only and idempotent: two calls with the same trigger
// time return the same answer.
func (d *Definition) IsDue(now time.Time) (bool, error) {
	if d.LastRunAt == nil {
		// Still surface configuration errors on the first-ever check.
		if err := d.Validate(); err != nil {
			return false, err
		}
		return true, nil
	}

	next, ok, err := d.NextOccurrence(*d.LastRunAt)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: %q will never fire again", marketalert.ErrInvalidSchedule, d.Expression)
	}

	return !next.After(now), nil
}

// RecordRun sets LastRunAt to the given trigger time (stored UTC).
// Pure mutation; persistence is the caller's responsibility through
// [Store.SaveSchedule].
func (d *Definition) RecordRun(at time.Time) {
	t := at.UTC()
	d.LastRunAt = &t
}
