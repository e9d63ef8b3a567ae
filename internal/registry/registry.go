// Package registry holds the in-memory record of running and queued zones.
// It is not safe for concurrent use on its own: every mutation happens inside
// the safety coordinator's critical sections, which is what makes the
// check-then-act sequences in the coordinator atomic.
package registry

import (
	"fmt"
	"sort"
	"time"

	"github.com/sprinksync/irrigation-controller/internal/model"
	"github.com/sprinksync/irrigation-controller/internal/zoneerrors"
)

// Entry is the ephemeral record of an active zone. It exists exactly while
// the hardware output for the zone is ON.
type Entry struct {
	ZoneID     int
	ZoneName   string
	StartTime  time.Time
	Duration   int // requested minutes
	Trigger    model.Trigger
	ScheduleID *int
	GroupRunID string // empty unless started as a group member
	Position   int
	Timer      *time.Timer // pending auto-stop
	HistoryID  int64
}

// QueuedEntry reserves a zone as an upcoming member of a group run.
type QueuedEntry struct {
	ZoneID         int
	ZoneName       string
	GroupID        int
	GroupName      string
	GroupRunID     string
	Position       int // 1-based
	TotalInGroup   int
	ScheduledStart time.Time
	Timer          *time.Timer // pending delayed start, nil for the first member
}

// RunningStatus is a snapshot row with elapsed/remaining derived from the
// wall clock at snapshot time, never stored.
type RunningStatus struct {
	ZoneID           int           `json:"zone_id"`
	ZoneName         string        `json:"zone_name"`
	StartTime        time.Time     `json:"start_time"`
	Duration         int           `json:"duration"`
	ElapsedMinutes   int           `json:"elapsed_minutes"`
	RemainingMinutes int           `json:"remaining_minutes"`
	Trigger          model.Trigger `json:"trigger"`
}

// QueuedStatus is a snapshot row for a reserved group member.
type QueuedStatus struct {
	ZoneID         int       `json:"zone_id"`
	ZoneName       string    `json:"zone_name"`
	GroupID        int       `json:"group_id"`
	GroupName      string    `json:"group_name"`
	Position       int       `json:"position"`
	TotalInGroup   int       `json:"total_in_group"`
	ScheduledStart time.Time `json:"scheduled_start"`
}

type Registry struct {
	running map[int]*Entry
	queued  map[int]*QueuedEntry
}

// New returns an empty registry. All outputs are assumed OFF at boot, so the
// registry always starts empty and is never persisted.
func New() *Registry {
	return &Registry{
		running: make(map[int]*Entry),
		queued:  make(map[int]*QueuedEntry),
	}
}

func (r *Registry) IsRunning(zoneID int) bool {
	_, ok := r.running[zoneID]
	return ok
}

func (r *Registry) RunningCount() int {
	return len(r.running)
}

func (r *Registry) Get(zoneID int) *Entry {
	return r.running[zoneID]
}

// Insert adds a running entry. At most one entry per zone can exist.
func (r *Registry) Insert(e *Entry) error {
	if _, ok := r.running[e.ZoneID]; ok {
		return fmt.Errorf("zone %d: %w", e.ZoneID, zoneerrors.ErrAlreadyRunning)
	}
	r.running[e.ZoneID] = e
	return nil
}

// Remove deletes and returns the running entry, or nil if absent.
func (r *Registry) Remove(zoneID int) *Entry {
	e := r.running[zoneID]
	delete(r.running, zoneID)
	return e
}

// RunningIDs returns the running zone ids in ascending order.
func (r *Registry) RunningIDs() []int {
	ids := make([]int, 0, len(r.running))
	for id := range r.running {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Snapshot returns the running set with elapsed and remaining minutes
// computed against now.
func (r *Registry) Snapshot(now time.Time) []RunningStatus {
	statuses := make([]RunningStatus, 0, len(r.running))
	for _, id := range r.RunningIDs() {
		e := r.running[id]
		elapsed := int(now.Sub(e.StartTime).Minutes())
		remaining := e.Duration - elapsed
		if remaining < 0 {
			remaining = 0
		}
		statuses = append(statuses, RunningStatus{
			ZoneID:           e.ZoneID,
			ZoneName:         e.ZoneName,
			StartTime:        e.StartTime,
			Duration:         e.Duration,
			ElapsedMinutes:   elapsed,
			RemainingMinutes: remaining,
			Trigger:          e.Trigger,
		})
	}
	return statuses
}

func (r *Registry) IsQueued(zoneID int) bool {
	_, ok := r.queued[zoneID]
	return ok
}

func (r *Registry) GetQueued(zoneID int) *QueuedEntry {
	return r.queued[zoneID]
}

// Queue reserves a zone as an upcoming group member, replacing any stale
// reservation for the same zone.
func (r *Registry) Queue(e *QueuedEntry) {
	r.queued[e.ZoneID] = e
}

// Dequeue removes and returns a reservation, or nil if absent.
func (r *Registry) Dequeue(zoneID int) *QueuedEntry {
	e := r.queued[zoneID]
	delete(r.queued, zoneID)
	return e
}

// QueuedForGroup returns the reservations belonging to a group, in sequence
// position order.
func (r *Registry) QueuedForGroup(groupID int) []*QueuedEntry {
	var entries []*QueuedEntry
	for _, e := range r.queued {
		if e.GroupID == groupID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })
	return entries
}

// QueuedSnapshot returns all reservations ordered by scheduled start.
func (r *Registry) QueuedSnapshot() []QueuedStatus {
	statuses := make([]QueuedStatus, 0, len(r.queued))
	for _, e := range r.queued {
		statuses = append(statuses, QueuedStatus{
			ZoneID:         e.ZoneID,
			ZoneName:       e.ZoneName,
			GroupID:        e.GroupID,
			GroupName:      e.GroupName,
			Position:       e.Position,
			TotalInGroup:   e.TotalInGroup,
			ScheduledStart: e.ScheduledStart,
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ScheduledStart.Before(statuses[j].ScheduledStart) })
	return statuses
}
