// Package ext defines the extension system for the scan scheduler.
// Extensions are notified of pass and scan lifecycle events and can
// react to them — writing audit records, feeding the live log stream,
// recording metrics.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/ermey-enterprises/marketalert/target"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Pass lifecycle hooks
// ──────────────────────────────────────────────────

// PassStarted is called when a due pass begins dispatching.
type PassStarted interface {
	OnPassStarted(ctx context.Context, triggeredAt time.Time, targets int) error
}

// PassCompleted is called after every target has been attempted.
type PassCompleted interface {
	OnPassCompleted(ctx context.Context, triggeredAt time.Time, succeeded, failed int, elapsed time.Duration) error
}

// ScheduleRecorded is called after the schedule's last-run advances.
type ScheduleRecorded interface {
	OnScheduleRecorded(ctx context.Context, lastRunAt time.Time) error
}

// ──────────────────────────────────────────────────
// Scan (per-target) lifecycle hooks
// ──────────────────────────────────────────────────

// ScanTriggered is called before a target is dispatched.
type ScanTriggered interface {
	OnScanTriggered(ctx context.Context, t target.Target) error
}

// ScanSucceeded is called after a target's scan completes, carrying the
// number of listing matches found.
type ScanSucceeded interface {
	OnScanSucceeded(ctx context.Context, t target.Target, matches int, elapsed time.Duration) error
}

// ScanFailed is called when the orchestrator reports a failure for a
// target.
type ScanFailed interface {
	OnScanFailed(ctx context.Context, t target.Target, reason string) error
}

// ScanPanicked is called when a target's dispatch panicked. The
// scheduler recovers and continues with the next target.
type ScanPanicked interface {
	OnScanPanicked(ctx context.Context, t target.Target, detail string) error
}

// ──────────────────────────────────────────────────
// Other hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
