// Package scan runs the listing scan passes.
//
// The Scheduler owns the pass lifecycle. Each pass walks a fixed
// sequence of phases: evaluate the cron schedule, resolve the scan
// targets, dispatch a scan per target under a tenant-bounded scope,
// and record the run back on the schedule. Per-target failures are
// isolated; one tenant's bad data or panicking scan never blocks the
// others.
//
// The RegionScanner is the default [Orchestrator]: it pulls recent
// listings for the target's region through the resilient listings
// client and matches them against the institutions' monitored
// addresses.
package scan
