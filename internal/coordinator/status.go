package coordinator

import (
	"time"

	"github.com/sprinksync/irrigation-controller/internal/model"
	"github.com/sprinksync/irrigation-controller/internal/registry"
)

// IsRunning reports whether the zone currently has a registry entry.
func (c *Coordinator) IsRunning(zoneID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.IsRunning(zoneID)
}

// RunningCount returns the number of zones currently open.
func (c *Coordinator) RunningCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.RunningCount()
}

// Running snapshots the running zones with derived elapsed/remaining minutes.
func (c *Coordinator) Running() []registry.RunningStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.Snapshot(time.Now())
}

// Queued snapshots the zones reserved as upcoming group members.
func (c *Coordinator) Queued() []registry.QueuedStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.QueuedSnapshot()
}

// ZoneState describes one zone's runtime state for status endpoints.
type ZoneState struct {
	IsRunning        bool      `json:"is_running"`
	RemainingMinutes int       `json:"remaining_time"`
	StartTime        time.Time `json:"start_time,omitempty"`
	Duration         int       `json:"duration,omitempty"`
}

// State returns the runtime state of a single zone.
func (c *Coordinator) State(zoneID int) ZoneState {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.reg.Get(zoneID)
	if entry == nil {
		return ZoneState{}
	}
	elapsed := int(time.Since(entry.StartTime).Minutes())
	remaining := entry.Duration - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return ZoneState{
		IsRunning:        true,
		RemainingMinutes: remaining,
		StartTime:        entry.StartTime,
		Duration:         entry.Duration,
	}
}

// Queue registers an upcoming group member so observers can see what's
// coming. Called only by the group sequencer.
func (c *Coordinator) Queue(entry *registry.QueuedEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reg.Queue(entry)
}

// Dequeue abandons a reservation, cancelling its pending start if armed.
func (c *Coordinator) Dequeue(zoneID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q := c.reg.Dequeue(zoneID); q != nil && q.Timer != nil {
		q.Timer.Stop()
	}
}

// IsQueuedForRun reports whether the zone still holds a reservation from the
// given group run. Delayed member starts check this at fire time so a
// cancelled or superseded run cannot resurrect a start.
func (c *Coordinator) IsQueuedForRun(zoneID int, runID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.reg.GetQueued(zoneID)
	return q != nil && q.GroupRunID == runID
}

// StartQueuedMember starts a zone only if it still holds a reservation from
// the given group run. The reservation check and the start share one critical
// section so a cancelled run cannot slip a member in. Returns reserved=false
// when the reservation is gone; when the start itself fails, the reservation
// is dropped so the sequence never retries the member.
func (c *Coordinator) StartQueuedMember(zoneID int, runID string, durationMinutes int, trigger model.Trigger, scheduleID *int) (*StartResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.reg.GetQueued(zoneID)
	if q == nil || q.GroupRunID != runID {
		return nil, false, nil
	}

	res, err := c.startLocked(zoneID, durationMinutes, trigger, scheduleID)
	if err != nil {
		if e := c.reg.Dequeue(zoneID); e != nil && e.Timer != nil {
			e.Timer.Stop()
		}
		return nil, true, err
	}
	return res, true, nil
}

// CancelGroup abandons every pending reservation for a group. Used when a
// group is deleted mid-run.
func (c *Coordinator) CancelGroup(groupID int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cancelled := 0
	for _, q := range c.reg.QueuedForGroup(groupID) {
		if e := c.reg.Dequeue(q.ZoneID); e != nil {
			if e.Timer != nil {
				e.Timer.Stop()
			}
			cancelled++
		}
	}
	return cancelled
}
