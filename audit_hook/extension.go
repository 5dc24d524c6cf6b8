package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ermey-enterprises/marketalert/ext"
	"github.com/ermey-enterprises/marketalert/target"
)

// Compile-time interface checks.
var (
	_ ext.Extension        = (*Extension)(nil)
	_ ext.PassStarted      = (*Extension)(nil)
	_ ext.PassCompleted    = (*Extension)(nil)
	_ ext.ScheduleRecorded = (*Extension)(nil)
	_ ext.ScanTriggered    = (*Extension)(nil)
	_ ext.ScanSucceeded    = (*Extension)(nil)
	_ ext.ScanFailed       = (*Extension)(nil)
	_ ext.ScanPanicked     = (*Extension)(nil)
)

// Recorder is the interface audit backends implement. Recording is
// fire-and-forget, best-effort: a failed Record never affects the pass.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event. Callers
// provide a RecorderFunc adapter bridging to their audit backend
// (Application Insights, a database table, ...).
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges scan-pass lifecycle events to an audit trail
// backend. Each lifecycle hook emits a structured audit event through
// the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided
// Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Pass lifecycle hooks ────────────────────────────

// OnPassStarted implements ext.PassStarted.
func (e *Extension) OnPassStarted(ctx context.Context, triggeredAt time.Time, targets int) error {
	return e.record(ctx, ActionPassStarted, SeverityInfo, OutcomeSuccess,
		ResourcePass, triggeredAt.Format(time.RFC3339), CategoryPass, nil,
		"targets", targets,
	)
}

// OnPassCompleted implements ext.PassCompleted.
func (e *Extension) OnPassCompleted(ctx context.Context, triggeredAt time.Time, succeeded, failed int, elapsed time.Duration) error {
	outcome := OutcomeSuccess
	severity := SeverityInfo
	if failed > 0 {
		outcome = OutcomeFailure
		severity = SeverityWarning
	}
	return e.record(ctx, ActionPassCompleted, severity, outcome,
		ResourcePass, triggeredAt.Format(time.RFC3339), CategoryPass, nil,
		"succeeded", succeeded,
		"failed", failed,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnScheduleRecorded implements ext.ScheduleRecorded.
func (e *Extension) OnScheduleRecorded(ctx context.Context, lastRunAt time.Time) error {
	return e.record(ctx, ActionScheduleRecorded, SeverityInfo, OutcomeSuccess,
		ResourceSchedule, "scan-schedule", CategorySchedule, nil,
		"last_run_at", lastRunAt.Format(time.RFC3339),
	)
}

// ── Scan lifecycle hooks ────────────────────────────

// OnScanTriggered implements ext.ScanTriggered.
func (e *Extension) OnScanTriggered(ctx context.Context, t target.Target) error {
	return e.record(ctx, ActionScanTriggered, SeverityInfo, OutcomeSuccess,
		ResourceScan, scanResourceID(t), CategoryScan, nil,
		"tenant_id", t.TenantID.String(),
		"region", t.Region,
		"institution_ids", institutionIDs(t),
	)
}

// OnScanSucceeded implements ext.ScanSucceeded.
func (e *Extension) OnScanSucceeded(ctx context.Context, t target.Target, matches int, elapsed time.Duration) error {
	return e.record(ctx, ActionScanSucceeded, SeverityInfo, OutcomeSuccess,
		ResourceScan, scanResourceID(t), CategoryScan, nil,
		"tenant_id", t.TenantID.String(),
		"region", t.Region,
		"institution_ids", institutionIDs(t),
		"matches", matches,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnScanFailed implements ext.ScanFailed.
func (e *Extension) OnScanFailed(ctx context.Context, t target.Target, reason string) error {
	return e.record(ctx, ActionScanFailed, SeverityWarning, OutcomeFailure,
		ResourceScan, scanResourceID(t), CategoryScan, errors.New(reason),
		"tenant_id", t.TenantID.String(),
		"region", t.Region,
		"institution_ids", institutionIDs(t),
	)
}

// OnScanPanicked implements ext.ScanPanicked.
func (e *Extension) OnScanPanicked(ctx context.Context, t target.Target, detail string) error {
	return e.record(ctx, ActionScanPanicked, SeverityCritical, OutcomeFailure,
		ResourceScan, scanResourceID(t), CategoryScan, errors.New(detail),
		"tenant_id", t.TenantID.String(),
		"region", t.Region,
		"institution_ids", institutionIDs(t),
	)
}

// ── Internal helpers ────────────────────────────────

// scanResourceID correlates all events of one target within a pass.
func scanResourceID(t target.Target) string {
	return t.TenantID.String() + ":" + t.Region
}

// institutionIDs renders the full institution-id list for the event.
func institutionIDs(t target.Target) []string {
	out := make([]string, len(t.InstitutionIDs))
	for i, instID := range t.InstitutionIDs {
		out[i] = instID.String()
	}
	return out
}

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
