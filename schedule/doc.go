// Package schedule holds the cron schedule definition for the scan
// scheduler and its due-check math.
//
// A [Definition] pairs a cron expression with an IANA timezone and the
// last recorded run. The due-check policy makes the scheduler
// self-healing after downtime: a run is due when no run was ever
// recorded, or when the next occurrence computed from the last run is at
// or before the current trigger time. The polling timer may fire far
// more often than the cron interval without double-firing.
package schedule
