// Package sequencer runs zone groups: an ordered list of zones opened back to
// back with a buffer between members. The initiating call returns the full
// roster immediately; later members start from one-shot timers that re-check
// the live concurrency ceiling at fire time.
package sequencer

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sprinksync/irrigation-controller/db"
	"github.com/sprinksync/irrigation-controller/internal/coordinator"
	"github.com/sprinksync/irrigation-controller/internal/model"
	"github.com/sprinksync/irrigation-controller/internal/registry"
	"github.com/sprinksync/irrigation-controller/internal/zoneerrors"
)

type Sequencer struct {
	conn  *sql.DB
	coord *coordinator.Coordinator

	// buffer is the gap between one member's scheduled end and the next
	// member's start.
	buffer time.Duration

	// minute mirrors the coordinator's duration unit so member offsets line
	// up with auto-stop timers. Tests shrink both together.
	minute time.Duration
}

func New(conn *sql.DB, coord *coordinator.Coordinator, bufferSeconds int) *Sequencer {
	return &Sequencer{
		conn:   conn,
		coord:  coord,
		buffer: time.Duration(bufferSeconds) * time.Second,
		minute: time.Minute,
	}
}

// NewForTest builds a sequencer with both time units scaled down, paired
// with a coordinator built the same way.
func NewForTest(conn *sql.DB, coord *coordinator.Coordinator, buffer, minute time.Duration) *Sequencer {
	return &Sequencer{
		conn:   conn,
		coord:  coord,
		buffer: buffer,
		minute: minute,
	}
}

// MemberStatus is one roster row in a run result.
type MemberStatus struct {
	ZoneID         int    `json:"zone_id"`
	ZoneName       string `json:"zone_name"`
	Position       int    `json:"position"` // 1-based
	Status         string `json:"status"`   // "running" or "queued"
	Duration       int    `json:"duration"`
	StartInMinutes int    `json:"start_in_minutes"`
}

// RunResult is the intended roster returned to the initiating caller. Later
// members may still be abandoned at fire time; those failures are logged, not
// surfaced here.
type RunResult struct {
	GroupID    int            `json:"group_id"`
	GroupName  string         `json:"group_name"`
	RunID      string         `json:"run_id"`
	Duration   int            `json:"duration"`
	TotalZones int            `json:"total_zones"`
	Members    []MemberStatus `json:"zones"`
}

// Run starts a group. durationOverride <= 0 means the group default. The
// first member starts synchronously; each later member gets a reservation and
// a one-shot timer at its computed offset.
func (s *Sequencer) Run(groupID int, durationOverride int, trigger model.Trigger, scheduleID *int) (*RunResult, error) {
	group, err := db.GetGroupByID(s.conn, groupID)
	if err != nil {
		return nil, err
	}

	members, err := db.GetGroupMembers(s.conn, groupID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("group %d: %w", groupID, zoneerrors.ErrEmptyGroup)
	}

	duration := durationOverride
	if duration <= 0 {
		duration = group.DefaultDuration
	}

	for _, m := range members {
		if s.coord.IsRunning(m.ZoneID) {
			return nil, &zoneerrors.MemberAlreadyRunningError{ZoneID: m.ZoneID, ZoneName: m.ZoneName}
		}
	}

	runID := uuid.NewString()
	now := time.Now()

	log.Info().
		Int("group_id", groupID).
		Str("group", group.Name).
		Str("run_id", runID).
		Int("zones", len(members)).
		Int("duration", duration).
		Msg("Starting zone group")

	// Reserve every member up front so observers can see the whole sequence,
	// arming the delayed start for everything after the first member.
	entries := make([]*registry.QueuedEntry, len(members))
	for i, m := range members {
		delay := s.memberOffset(i, duration)
		entry := &registry.QueuedEntry{
			ZoneID:         m.ZoneID,
			ZoneName:       m.ZoneName,
			GroupID:        groupID,
			GroupName:      group.Name,
			GroupRunID:     runID,
			Position:       i + 1,
			TotalInGroup:   len(members),
			ScheduledStart: now.Add(delay),
		}
		if i > 0 {
			member := m
			position := i + 1
			entry.Timer = time.AfterFunc(delay, func() {
				s.fireMember(member, runID, position, len(members), duration, trigger, scheduleID)
			})
		}
		entries[i] = entry
		s.coord.Queue(entry)
	}

	if _, err := s.coord.Start(members[0].ZoneID, duration, trigger, scheduleID); err != nil {
		// Nothing fired yet; abandon the whole sequence.
		for _, e := range entries {
			s.coord.Dequeue(e.ZoneID)
		}
		return nil, fmt.Errorf("failed to start first group zone %q: %w", members[0].ZoneName, err)
	}

	result := &RunResult{
		GroupID:    groupID,
		GroupName:  group.Name,
		RunID:      runID,
		Duration:   duration,
		TotalZones: len(members),
	}
	for i, m := range members {
		status := "queued"
		if i == 0 {
			status = "running"
		}
		result.Members = append(result.Members, MemberStatus{
			ZoneID:         m.ZoneID,
			ZoneName:       m.ZoneName,
			Position:       i + 1,
			Status:         status,
			Duration:       duration,
			StartInMinutes: int(s.memberOffset(i, duration) / s.minute),
		})
	}
	return result, nil
}

// memberOffset computes when member i starts relative to the run beginning:
// the combined runtime of everything before it plus one buffer per gap.
func (s *Sequencer) memberOffset(i int, duration int) time.Duration {
	return time.Duration(i) * (time.Duration(duration)*s.minute + s.buffer)
}

// fireMember attempts a delayed member start. The reservation check and the
// start happen atomically inside the coordinator, which re-reads the live
// concurrency ceiling; a member refused at capacity is abandoned, never
// retried.
func (s *Sequencer) fireMember(m model.GroupMember, runID string, position, total int, duration int, trigger model.Trigger, scheduleID *int) {
	_, reserved, err := s.coord.StartQueuedMember(m.ZoneID, runID, duration, trigger, scheduleID)
	if !reserved {
		log.Debug().
			Int("zone_id", m.ZoneID).
			Str("run_id", runID).
			Msg("Group member reservation gone before fire, skipping")
		return
	}
	if err != nil {
		var limitErr *zoneerrors.ConcurrencyLimitError
		if errors.As(err, &limitErr) {
			log.Warn().
				Int("zone_id", m.ZoneID).
				Str("zone", m.ZoneName).
				Int("limit", limitErr.Limit).
				Msg("Cannot start group member: max concurrent zones reached")
			return
		}
		log.Error().Err(err).
			Int("zone_id", m.ZoneID).
			Str("zone", m.ZoneName).
			Msg("Failed to start group member")
		return
	}

	log.Info().
		Int("zone_id", m.ZoneID).
		Str("zone", m.ZoneName).
		Str("position", fmt.Sprintf("%d/%d", position, total)).
		Msg("Group member started")
}

// CancelGroup abandons any pending members of the group, for group deletion
// mid-run. Running members are untouched; they stop on their own timers.
func (s *Sequencer) CancelGroup(groupID int) {
	if n := s.coord.CancelGroup(groupID); n > 0 {
		log.Info().Int("group_id", groupID).Int("cancelled", n).Msg("Cancelled pending group members")
	}
}
