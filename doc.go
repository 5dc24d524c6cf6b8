// Package marketalert is the scan-scheduling core of the Member Property
// Market Alert service. It monitors member-owned street addresses on
// behalf of financial institutions and raises alerts when those
// properties appear in real-estate-for-sale listings.
//
// The package wires together the subsystems that carry the system's
// temporal-state and failure-handling design:
//
//   - schedule — cron schedule definition and due-check math
//   - target — (tenant, region) scan target resolution and deduplication
//   - listings — resilient external listings client (retries, circuit
//     breaking, TTL caching, degrade-to-empty)
//   - scan — the timer-driven pass controller and region scan
//     orchestration
//   - scope — explicit tenant/system impersonation contexts
//   - ext, audit_hook, stream — lifecycle hooks, audit trail, live log
//     stream
//
// # Quick Start
//
//	m, err := marketalert.New(
//	    marketalert.WithStore(memory.New()),
//	    marketalert.WithProvider(provider),
//	)
//
// # Architecture
//
// Marketalert follows a composable store pattern where each subsystem
// (schedule, institution, match) defines its own store interface.
// A single backend implements all of them.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package marketalert
