// Package mqtt publishes zone and system events for dashboards. The real
// publisher talks to a broker; the fake records events for tests; the nop
// publisher is used when no broker is configured.
package mqtt

import (
	"encoding/json"
	"time"
)

// TopicZoneEvents carries per-zone activation events.
const TopicZoneEvents = "irrigation/zones/events"

// TopicSystemEvents carries process lifecycle and emergency events.
const TopicSystemEvents = "irrigation/system/events"

// Zone event kinds.
const (
	EventStarted     = "STARTED"
	EventStopped     = "STOPPED"
	EventAutoStopped = "AUTO_STOPPED"
)

// System event kinds.
const (
	EventStartup       = "STARTUP"
	EventShutdown      = "SHUTDOWN"
	EventEmergencyStop = "EMERGENCY_STOP"
)

// ZoneEvent describes one zone state change.
type ZoneEvent struct {
	Timestamp time.Time
	Event     string // STARTED, STOPPED, AUTO_STOPPED
	ZoneID    int
	ZoneName  string
	Minutes   int    // requested duration for starts, actual runtime for stops
	Trigger   string // manual, scheduled, group
	GroupRun  string // group run id, empty for single-zone activations
}

// SystemEvent describes a process-level event.
type SystemEvent struct {
	Timestamp time.Time
	Event     string // STARTUP, SHUTDOWN, EMERGENCY_STOP
	Detail    string
}

// Publisher publishes events to the broker. Failures must never crash the
// controller; callers log and continue.
type Publisher interface {
	PublishZone(event ZoneEvent) error
	PublishSystem(event SystemEvent) error
	Close() error
}

type zonePayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	ZoneID    int    `json:"zone_id"`
	ZoneName  string `json:"zone_name"`
	Minutes   int    `json:"minutes"`
	Trigger   string `json:"trigger"`
	GroupRun  string `json:"group_run,omitempty"`
}

type systemPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Detail    string `json:"detail,omitempty"`
}

// FormatZonePayload creates the JSON payload for a zone event.
func FormatZonePayload(event ZoneEvent) ([]byte, error) {
	return json.Marshal(zonePayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     event.Event,
		ZoneID:    event.ZoneID,
		ZoneName:  event.ZoneName,
		Minutes:   event.Minutes,
		Trigger:   event.Trigger,
		GroupRun:  event.GroupRun,
	})
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	return json.Marshal(systemPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     event.Event,
		Detail:    event.Detail,
	})
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) PublishZone(ZoneEvent) error     { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }
func (NopPublisher) Close() error                    { return nil }
