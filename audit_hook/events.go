package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle
// hook and becomes the Action field of the audit event.
const (
	ActionPassStarted      = "pass.started"
	ActionPassCompleted    = "pass.completed"
	ActionScheduleRecorded = "schedule.recorded"
	ActionScanTriggered    = "scan.triggered"
	ActionScanSucceeded    = "scan.succeeded"
	ActionScanFailed       = "scan.failed"
	ActionScanPanicked     = "scan.panicked"
)

// Audit event categories group related actions.
const (
	CategoryPass     = "marketalert.pass"
	CategoryScan     = "marketalert.scan"
	CategorySchedule = "marketalert.schedule"
)

// Resource types used as the Resource field in audit events.
const (
	ResourcePass     = "scheduler_pass"
	ResourceScan     = "scan_target"
	ResourceSchedule = "scan_schedule"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionPassStarted,
		ActionPassCompleted,
		ActionScheduleRecorded,
		ActionScanTriggered,
		ActionScanSucceeded,
		ActionScanFailed,
		ActionScanPanicked,
	}
}
