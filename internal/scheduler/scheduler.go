// Package scheduler arms cron jobs for enabled schedules and fires them
// against the coordinator (single zones) or the sequencer (groups). A
// schedule whose target is already running is skipped with a warning, never
// queued.
package scheduler

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/sprinksync/irrigation-controller/db"
	"github.com/sprinksync/irrigation-controller/internal/coordinator"
	"github.com/sprinksync/irrigation-controller/internal/datadog"
	"github.com/sprinksync/irrigation-controller/internal/model"
	"github.com/sprinksync/irrigation-controller/internal/sequencer"
	"github.com/sprinksync/irrigation-controller/internal/zoneerrors"
)

type Engine struct {
	conn  *sql.DB
	coord *coordinator.Coordinator
	seq   *sequencer.Sequencer
	cron  *cron.Cron

	mu      sync.Mutex
	entries map[int]cron.EntryID // schedule id -> armed cron entry
}

func New(conn *sql.DB, coord *coordinator.Coordinator, seq *sequencer.Sequencer, loc *time.Location) *Engine {
	return &Engine{
		conn:    conn,
		coord:   coord,
		seq:     seq,
		cron:    cron.New(cron.WithLocation(loc)),
		entries: make(map[int]cron.EntryID),
	}
}

// Load drops every armed job and re-arms all enabled schedules from the
// database. Called at boot and after bulk edits.
func (e *Engine) Load() error {
	schedules, err := db.GetEnabledSchedules(e.conn)
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for id, entryID := range e.entries {
		e.cron.Remove(entryID)
		delete(e.entries, id)
	}

	for _, s := range schedules {
		if err := e.armLocked(s); err != nil {
			log.Error().Err(err).Int("schedule_id", s.ID).Msg("Failed to arm schedule")
		}
	}

	log.Info().Int("armed", len(e.entries)).Msg("Schedules loaded")
	datadog.Gauge("schedules.armed", float64(len(e.entries)), "component:scheduler")
	return nil
}

// Arm registers a cron job for the schedule. A schedule with no days is left
// inert with a warning; it stays in the database but never fires.
func (e *Engine) Arm(s model.Schedule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.armLocked(s)
}

func (e *Engine) armLocked(s model.Schedule) error {
	if existing, ok := e.entries[s.ID]; ok {
		e.cron.Remove(existing)
		delete(e.entries, s.ID)
	}

	if len(s.Days) == 0 {
		log.Warn().Int("schedule_id", s.ID).Str("target", s.TargetName()).Msg("Schedule has no days configured, not arming")
		return nil
	}

	spec, err := cronSpec(s)
	if err != nil {
		return err
	}

	sched := s
	entryID, err := e.cron.AddFunc(spec, func() {
		e.execute(sched)
	})
	if err != nil {
		return fmt.Errorf("failed to arm schedule %d (%q): %w", s.ID, spec, err)
	}

	e.entries[s.ID] = entryID
	log.Debug().
		Int("schedule_id", s.ID).
		Str("spec", spec).
		Str("target", s.TargetName()).
		Msg("Schedule armed")
	return nil
}

// cronSpec translates a schedule's HH:MM start time and weekday set into a
// five-field cron expression.
func cronSpec(s model.Schedule) (string, error) {
	parts := strings.Split(s.StartTime, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("schedule %d: malformed start time %q", s.ID, s.StartTime)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("schedule %d: malformed start time %q", s.ID, s.StartTime)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("schedule %d: malformed start time %q", s.ID, s.StartTime)
	}

	days := make([]string, len(s.Days))
	for i, d := range s.Days {
		days[i] = strconv.Itoa(int(d))
	}
	return fmt.Sprintf("%d %d * * %s", minute, hour, strings.Join(days, ",")), nil
}

// execute fires one schedule occurrence. A target that is already running is
// skipped for this occurrence only; the job stays armed for the next one.
func (e *Engine) execute(s model.Schedule) {
	scheduleID := s.ID
	datadog.Count("schedule.fired", 1)

	switch {
	case s.ZoneID != nil:
		zoneID := *s.ZoneID
		if e.coord.IsRunning(zoneID) {
			log.Warn().
				Int("schedule_id", s.ID).
				Int("zone_id", zoneID).
				Str("zone", s.ZoneName).
				Msg("Scheduled zone is already running, skipping this occurrence")
			datadog.Count("schedule.skipped", 1, "reason:already_running")
			return
		}
		if _, err := e.coord.Start(zoneID, s.Duration, model.TriggerScheduled, &scheduleID); err != nil {
			log.Error().Err(err).
				Int("schedule_id", s.ID).
				Int("zone_id", zoneID).
				Msg("Scheduled zone start failed")
			return
		}
		log.Info().
			Int("schedule_id", s.ID).
			Int("zone_id", zoneID).
			Str("zone", s.ZoneName).
			Int("duration", s.Duration).
			Msg("Scheduled zone started")

	case s.GroupID != nil:
		groupID := *s.GroupID
		if _, err := e.seq.Run(groupID, s.Duration, model.TriggerScheduled, &scheduleID); err != nil {
			var memberErr *zoneerrors.MemberAlreadyRunningError
			if errors.As(err, &memberErr) {
				log.Warn().
					Int("schedule_id", s.ID).
					Int("group_id", groupID).
					Str("zone", memberErr.ZoneName).
					Msg("Scheduled group has a running member, skipping this occurrence")
				datadog.Count("schedule.skipped", 1, "reason:already_running")
				return
			}
			log.Error().Err(err).
				Int("schedule_id", s.ID).
				Int("group_id", groupID).
				Msg("Scheduled group start failed")
			return
		}
		log.Info().
			Int("schedule_id", s.ID).
			Int("group_id", groupID).
			Str("group", s.GroupName).
			Msg("Scheduled group started")

	default:
		log.Error().Int("schedule_id", s.ID).Msg("Schedule has no target")
	}
}

// Disarm removes a schedule's cron job if armed. Safe to call for schedules
// that were never armed.
func (e *Engine) Disarm(scheduleID int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if entryID, ok := e.entries[scheduleID]; ok {
		e.cron.Remove(entryID)
		delete(e.entries, scheduleID)
		log.Debug().Int("schedule_id", scheduleID).Msg("Schedule disarmed")
	}
}

// Rearm re-reads a schedule from the database and replaces its cron job.
// Disabled or deleted schedules end up disarmed.
func (e *Engine) Rearm(scheduleID int) error {
	s, err := db.GetScheduleByID(e.conn, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			e.Disarm(scheduleID)
			return nil
		}
		return err
	}
	if !s.Enabled {
		e.Disarm(scheduleID)
		return nil
	}
	return e.Arm(*s)
}

// Start begins firing armed schedules.
func (e *Engine) Start() {
	e.cron.Start()
	log.Info().Msg("Schedule engine started")
}

// Stop halts the cron runner and waits for any in-flight job to return.
func (e *Engine) Stop() {
	ctx := e.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Schedule engine stopped")
}

func (e *Engine) ArmedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

func (e *Engine) IsArmed(scheduleID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.entries[scheduleID]
	return ok
}
