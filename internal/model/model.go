package model

import "time"

// Trigger records why a zone activation started.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerGroup     Trigger = "group"
)

type GPIOPin struct {
	Number     int
	ActiveHigh bool
}

// Zone is a single controllable irrigation valve. The ID to pin mapping is
// fixed for the lifetime of the zone.
type Zone struct {
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	Pin             GPIOPin   `json:"-"`
	DefaultDuration int       `json:"default_duration"` // minutes
	TotalRuntime    int       `json:"total_runtime"`    // lifetime minutes
	LastRun         time.Time `json:"last_run"`
}

// Group is an ordered set of zones run back to back as one unit.
type Group struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	DefaultDuration int    `json:"default_duration"` // minutes per member
}

type GroupMember struct {
	ZoneID        int    `json:"zone_id"`
	ZoneName      string `json:"zone_name"`
	SequenceOrder int    `json:"sequence_order"`
}

// Schedule targets exactly one zone or one group, never both.
type Schedule struct {
	ID        int            `json:"id"`
	ZoneID    *int           `json:"zone_id,omitempty"`
	GroupID   *int           `json:"group_id,omitempty"`
	StartTime string         `json:"start_time"` // "HH:MM", 24h
	Duration  int            `json:"duration"`   // minutes
	Days      []time.Weekday `json:"days"`
	Enabled   bool           `json:"enabled"`

	// Resolved target names, for logging and API responses.
	ZoneName  string `json:"zone_name,omitempty"`
	GroupName string `json:"group_name,omitempty"`
}

// TargetName returns the resolved name of whichever target the schedule has.
func (s Schedule) TargetName() string {
	if s.ZoneID != nil {
		return s.ZoneName
	}
	return s.GroupName
}

type HistoryRecord struct {
	ID         int64     `json:"id"`
	ZoneID     int       `json:"zone_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"` // zero while the run is in progress
	Duration   int       `json:"duration"` // actual minutes, set at finalize
	Trigger    Trigger   `json:"trigger"`
	ScheduleID *int      `json:"schedule_id,omitempty"`
}

// SafetyLimits is operator-adjustable at runtime; callers must re-read it on
// every start decision rather than caching a copy.
type SafetyLimits struct {
	MaxConcurrentZones int
	MinDurationMinutes int
	MaxDurationMinutes int
	StabilizationMs    int
}
