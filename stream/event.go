// Package stream provides a real-time event broker for scan lifecycle
// events. It bridges the ext.Extension system to connected clients via
// topic-based pub/sub.
package stream

import (
	"encoding/json"
	"time"

	"github.com/ermey-enterprises/marketalert/id"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Pass events.
	EventPassStarted   EventType = "pass.started"
	EventPassCompleted EventType = "pass.completed"

	// Scan events.
	EventScanTriggered EventType = "scan.triggered"
	EventScanSucceeded EventType = "scan.succeeded"
	EventScanFailed    EventType = "scan.failed"
	EventScanPanicked  EventType = "scan.panicked"

	// Schedule events.
	EventScheduleRecorded EventType = "schedule.recorded"
)

// Event is the envelope sent to subscribers on a topic channel.
type Event struct {
	// ID uniquely identifies this event.
	ID id.EventID `json:"id"`

	// Type identifies the lifecycle event.
	Type EventType `json:"type"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"ts"`

	// Topic is the channel this event was published on.
	Topic string `json:"topic"`

	// Data is the event-specific payload.
	Data json.RawMessage `json:"data"`
}

// PassEventData is the payload for pass lifecycle events.
type PassEventData struct {
	TriggeredAt string `json:"triggered_at"`
	Targets     int    `json:"targets,omitempty"`
	Succeeded   int    `json:"succeeded,omitempty"`
	Failed      int    `json:"failed,omitempty"`
	ElapsedMs   int64  `json:"elapsed_ms,omitempty"`
}

// ScanEventData is the payload for scan lifecycle events.
type ScanEventData struct {
	TenantID       string   `json:"tenant_id"`
	Region         string   `json:"region"`
	InstitutionIDs []string `json:"institution_ids"`
	Matches        int      `json:"matches,omitempty"`
	ElapsedMs      int64    `json:"elapsed_ms,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// ScheduleEventData is the payload for schedule lifecycle events.
type ScheduleEventData struct {
	LastRunAt string `json:"last_run_at"`
}
