package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/ermey-enterprises/marketalert/target"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type passStartedEntry struct {
	name string
	hook PassStarted
}

type passCompletedEntry struct {
	name string
	hook PassCompleted
}

type scheduleRecordedEntry struct {
	name string
	hook ScheduleRecorded
}

type scanTriggeredEntry struct {
	name string
	hook ScanTriggered
}

type scanSucceededEntry struct {
	name string
	hook ScanSucceeded
}

type scanFailedEntry struct {
	name string
	hook ScanFailed
}

type scanPanickedEntry struct {
	name string
	hook ScanPanicked
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry fans lifecycle events out to registered extensions. Hook
// errors are logged, never propagated: observability must not affect
// scheduling correctness.
type Registry struct {
	logger *slog.Logger

	passStarted      []passStartedEntry
	passCompleted    []passCompletedEntry
	scheduleRecorded []scheduleRecordedEntry
	scanTriggered    []scanTriggeredEntry
	scanSucceeded    []scanSucceededEntry
	scanFailed       []scanFailedEntry
	scanPanicked     []scanPanickedEntry
	shutdown         []shutdownEntry
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register inspects which hook interfaces e implements and subscribes
// it to those events. Registration is not safe for concurrent use;
// register everything during wiring, before the scheduler starts.
func (r *Registry) Register(e Extension) {
	name := e.Name()

	if h, ok := e.(PassStarted); ok {
		r.passStarted = append(r.passStarted, passStartedEntry{name, h})
	}
	if h, ok := e.(PassCompleted); ok {
		r.passCompleted = append(r.passCompleted, passCompletedEntry{name, h})
	}
	if h, ok := e.(ScheduleRecorded); ok {
		r.scheduleRecorded = append(r.scheduleRecorded, scheduleRecordedEntry{name, h})
	}
	if h, ok := e.(ScanTriggered); ok {
		r.scanTriggered = append(r.scanTriggered, scanTriggeredEntry{name, h})
	}
	if h, ok := e.(ScanSucceeded); ok {
		r.scanSucceeded = append(r.scanSucceeded, scanSucceededEntry{name, h})
	}
	if h, ok := e.(ScanFailed); ok {
		r.scanFailed = append(r.scanFailed, scanFailedEntry{name, h})
	}
	if h, ok := e.(ScanPanicked); ok {
		r.scanPanicked = append(r.scanPanicked, scanPanickedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// logHookErr logs a hook error with the extension and event names.
func (r *Registry) logHookErr(event, extension string, err error) {
	if err == nil {
		return
	}
	r.logger.Warn("extension hook error",
		slog.String("event", event),
		slog.String("extension", extension),
		slog.String("error", err.Error()),
	)
}

// EmitPassStarted notifies PassStarted hooks.
func (r *Registry) EmitPassStarted(ctx context.Context, triggeredAt time.Time, targets int) {
	for _, e := range r.passStarted {
		r.logHookErr("pass_started", e.name, e.hook.OnPassStarted(ctx, triggeredAt, targets))
	}
}

// EmitPassCompleted notifies PassCompleted hooks.
func (r *Registry) EmitPassCompleted(ctx context.Context, triggeredAt time.Time, succeeded, failed int, elapsed time.Duration) {
	for _, e := range r.passCompleted {
		r.logHookErr("pass_completed", e.name, e.hook.OnPassCompleted(ctx, triggeredAt, succeeded, failed, elapsed))
	}
}

// EmitScheduleRecorded notifies ScheduleRecorded hooks.
func (r *Registry) EmitScheduleRecorded(ctx context.Context, lastRunAt time.Time) {
	for _, e := range r.scheduleRecorded {
		r.logHookErr("schedule_recorded", e.name, e.hook.OnScheduleRecorded(ctx, lastRunAt))
	}
}

// EmitScanTriggered notifies ScanTriggered hooks.
func (r *Registry) EmitScanTriggered(ctx context.Context, t target.Target) {
	for _, e := range r.scanTriggered {
		r.logHookErr("scan_triggered", e.name, e.hook.OnScanTriggered(ctx, t))
	}
}

// EmitScanSucceeded notifies ScanSucceeded hooks.
func (r *Registry) EmitScanSucceeded(ctx context.Context, t target.Target, matches int, elapsed time.Duration) {
	for _, e := range r.scanSucceeded {
		r.logHookErr("scan_succeeded", e.name, e.hook.OnScanSucceeded(ctx, t, matches, elapsed))
	}
}

// EmitScanFailed notifies ScanFailed hooks.
func (r *Registry) EmitScanFailed(ctx context.Context, t target.Target, reason string) {
	for _, e := range r.scanFailed {
		r.logHookErr("scan_failed", e.name, e.hook.OnScanFailed(ctx, t, reason))
	}
}

// EmitScanPanicked notifies ScanPanicked hooks.
func (r *Registry) EmitScanPanicked(ctx context.Context, t target.Target, detail string) {
	for _, e := range r.scanPanicked {
		r.logHookErr("scan_panicked", e.name, e.hook.OnScanPanicked(ctx, t, detail))
	}
}

// EmitShutdown notifies Shutdown hooks.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		r.logHookErr("shutdown", e.name, e.hook.OnShutdown(ctx))
	}
}
