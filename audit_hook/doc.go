// Package audithook bridges scan-pass lifecycle events to an audit
// trail backend.
//
// It implements the ext hook interfaces and converts each event into a
// structured [AuditEvent] delivered through a caller-supplied
// [Recorder]. Delivery is best-effort: recording failures are logged
// and never affect the scheduler pass.
//
// Every scan event is tagged with the tenant, the region, and the full
// institution-id list of the target, so downstream consumers can fan
// alerts out per institution.
package audithook
