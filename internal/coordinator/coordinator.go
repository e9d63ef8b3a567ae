// Package coordinator is the single serialization point for zone state
// changes. Manual control, the schedule engine, and the group sequencer all
// come through here; nothing else touches the registry or the actuator.
package coordinator

import (
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sprinksync/irrigation-controller/db"
	"github.com/sprinksync/irrigation-controller/internal/datadog"
	"github.com/sprinksync/irrigation-controller/internal/hardware"
	"github.com/sprinksync/irrigation-controller/internal/model"
	"github.com/sprinksync/irrigation-controller/internal/mqtt"
	"github.com/sprinksync/irrigation-controller/internal/notifications"
	"github.com/sprinksync/irrigation-controller/internal/registry"
	"github.com/sprinksync/irrigation-controller/internal/zoneerrors"
)

type Coordinator struct {
	mu   sync.Mutex
	conn *sql.DB
	hw   hardware.Actuator
	reg  *registry.Registry
	pub  mqtt.Publisher

	// minute is the wall-clock length of one "minute" of requested duration.
	// Production uses time.Minute; tests shrink it to run in milliseconds.
	minute time.Duration
}

func New(conn *sql.DB, hw hardware.Actuator, pub mqtt.Publisher) *Coordinator {
	if pub == nil {
		pub = mqtt.NopPublisher{}
	}
	return &Coordinator{
		conn:   conn,
		hw:     hw,
		reg:    registry.New(),
		pub:    pub,
		minute: time.Minute,
	}
}

// NewForTest builds a coordinator whose duration unit is scaled down so
// timer behavior can be exercised in milliseconds.
func NewForTest(conn *sql.DB, hw hardware.Actuator, pub mqtt.Publisher, minute time.Duration) *Coordinator {
	c := New(conn, hw, pub)
	c.minute = minute
	return c
}

// StartResult reports a successful zone start.
type StartResult struct {
	ZoneID    int       `json:"zone_id"`
	ZoneName  string    `json:"zone_name"`
	Duration  int       `json:"duration"`
	StartTime time.Time `json:"start_time"`
	StopAt    time.Time `json:"will_stop_at"`
}

// StopResult reports a successful zone stop.
type StopResult struct {
	ZoneID   int    `json:"zone_id"`
	ZoneName string `json:"zone_name"`
	Runtime  int    `json:"runtime"` // actual minutes
}

// StopAllResult lists the zones the emergency stop managed to close cleanly.
type StopAllResult struct {
	Stopped []int `json:"stopped_zones"`
	Count   int   `json:"count"`
}

// Start opens a zone for durationMinutes, arming an auto-stop timer.
// Preconditions are checked in order under the coordinator lock: zone exists,
// not already running, concurrency ceiling (re-read live from settings),
// duration bounds. First failure wins.
func (c *Coordinator) Start(zoneID int, durationMinutes int, trigger model.Trigger, scheduleID *int) (*StartResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(zoneID, durationMinutes, trigger, scheduleID)
}

func (c *Coordinator) startLocked(zoneID int, durationMinutes int, trigger model.Trigger, scheduleID *int) (*StartResult, error) {
	zone, err := db.GetZoneByID(c.conn, zoneID)
	if err != nil {
		return nil, err
	}

	if c.reg.IsRunning(zoneID) {
		c.refused(trigger, "already_running")
		return nil, fmt.Errorf("zone %d: %w", zoneID, zoneerrors.ErrAlreadyRunning)
	}

	limits, err := db.GetSafetyLimits(c.conn)
	if err != nil {
		return nil, err
	}
	if c.reg.RunningCount() >= limits.MaxConcurrentZones {
		c.refused(trigger, "concurrency_limit")
		return nil, &zoneerrors.ConcurrencyLimitError{Limit: limits.MaxConcurrentZones}
	}

	if durationMinutes < limits.MinDurationMinutes || durationMinutes > limits.MaxDurationMinutes {
		c.refused(trigger, "invalid_duration")
		return nil, &zoneerrors.InvalidDurationError{
			Minutes: durationMinutes,
			Min:     limits.MinDurationMinutes,
			Max:     limits.MaxDurationMinutes,
		}
	}

	now := time.Now()
	historyID, err := db.BeginHistoryRecord(c.conn, zoneID, now, trigger, scheduleID)
	if err != nil {
		return nil, err
	}

	if err := c.hw.Open(zoneID); err != nil {
		// Finalize the record with zero runtime so the fault stays visible
		// in history without leaving a dangling open entry.
		if ferr := db.FinalizeHistoryRecord(c.conn, historyID, now, 0); ferr != nil {
			log.Error().Err(ferr).Int64("history_id", historyID).Msg("Failed to finalize history record after hardware fault")
		}
		log.Error().Err(err).Int("zone_id", zoneID).Msg("Hardware open failed")
		if nerr := notifications.Send("Irrigation hardware fault", fmt.Sprintf("Failed to open valve for zone %s: %v", zone.Name, err)); nerr != nil {
			log.Warn().Err(nerr).Msg("Failed to send hardware fault notification")
		}
		return nil, &zoneerrors.HardwareError{Op: "open", ZoneID: zoneID, Err: err}
	}

	entry := &registry.Entry{
		ZoneID:     zoneID,
		ZoneName:   zone.Name,
		StartTime:  now,
		Duration:   durationMinutes,
		Trigger:    trigger,
		ScheduleID: scheduleID,
		HistoryID:  historyID,
	}

	// Promote a pending group reservation, if any, and make sure its
	// delayed-start timer can never fire against the new run.
	if q := c.reg.Dequeue(zoneID); q != nil {
		if q.Timer != nil {
			q.Timer.Stop()
		}
		entry.GroupRunID = q.GroupRunID
		entry.Position = q.Position
	}

	entry.Timer = time.AfterFunc(time.Duration(durationMinutes)*c.minute, func() {
		c.autoStop(zoneID, historyID)
	})

	if err := c.reg.Insert(entry); err != nil {
		// Unreachable while the lock is held; close the valve rather than
		// leave it energized without a registry entry.
		entry.Timer.Stop()
		c.hw.Close(zoneID)
		return nil, err
	}

	stopAt := now.Add(time.Duration(durationMinutes) * c.minute)

	datadog.Gauge("zones.running", float64(c.reg.RunningCount()), "component:coordinator")
	datadog.Count("zone.start", 1, fmt.Sprintf("trigger:%s", trigger))

	if err := c.pub.PublishZone(mqtt.ZoneEvent{
		Timestamp: now,
		Event:     mqtt.EventStarted,
		ZoneID:    zoneID,
		ZoneName:  zone.Name,
		Minutes:   durationMinutes,
		Trigger:   string(trigger),
		GroupRun:  entry.GroupRunID,
	}); err != nil {
		log.Warn().Err(err).Int("zone_id", zoneID).Msg("Failed to publish zone start event")
	}

	log.Info().
		Int("zone_id", zoneID).
		Str("zone", zone.Name).
		Int("duration", durationMinutes).
		Str("trigger", string(trigger)).
		Msg("Zone started")

	return &StartResult{
		ZoneID:    zoneID,
		ZoneName:  zone.Name,
		Duration:  durationMinutes,
		StartTime: now,
		StopAt:    stopAt,
	}, nil
}

// Stop closes a running zone, finalizes its history record, and accumulates
// the actual runtime onto the zone.
func (c *Coordinator) Stop(zoneID int) (*StopResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked(zoneID, mqtt.EventStopped, false)
}

func (c *Coordinator) stopLocked(zoneID int, event string, force bool) (*StopResult, error) {
	entry := c.reg.Get(zoneID)
	if entry == nil {
		return nil, fmt.Errorf("zone %d: %w", zoneID, zoneerrors.ErrNotRunning)
	}

	hwErr := c.hw.Close(zoneID)
	if hwErr != nil {
		log.Error().Err(hwErr).Int("zone_id", zoneID).Msg("Hardware close failed")
		if nerr := notifications.Send("Irrigation hardware fault", fmt.Sprintf("Failed to close valve for zone %s: %v", entry.ZoneName, hwErr)); nerr != nil {
			log.Warn().Err(nerr).Msg("Failed to send hardware fault notification")
		}
		if !force {
			// The zone is still physically on, so the entry and its auto-stop
			// timer stay armed. The caller can retry, or the emergency path
			// will force the issue.
			return nil, &zoneerrors.HardwareError{Op: "close", ZoneID: zoneID, Err: hwErr}
		}
	}

	if entry.Timer != nil {
		entry.Timer.Stop()
	}

	now := time.Now()
	elapsed := int(math.Round(float64(now.Sub(entry.StartTime)) / float64(c.minute)))

	c.reg.Remove(zoneID)

	// A zone can be both queued to start later and stopped early; drop the
	// reservation and its pending start.
	if q := c.reg.Dequeue(zoneID); q != nil {
		if q.Timer != nil {
			q.Timer.Stop()
		}
	}

	// Persistence happens last: a crash here leaves registry and hardware
	// consistent with each other even if the history row lags.
	if err := db.FinalizeHistoryRecord(c.conn, entry.HistoryID, now, elapsed); err != nil {
		log.Error().Err(err).Int64("history_id", entry.HistoryID).Msg("Failed to finalize history record")
	}
	if err := db.AccumulateZoneRuntime(c.conn, zoneID, elapsed, now); err != nil {
		log.Error().Err(err).Int("zone_id", zoneID).Msg("Failed to accumulate zone runtime")
	}

	datadog.Gauge("zones.running", float64(c.reg.RunningCount()), "component:coordinator")
	if event == mqtt.EventAutoStopped {
		datadog.Count("zone.auto_stop", 1)
	} else {
		datadog.Count("zone.stop", 1)
	}

	if err := c.pub.PublishZone(mqtt.ZoneEvent{
		Timestamp: now,
		Event:     event,
		ZoneID:    zoneID,
		ZoneName:  entry.ZoneName,
		Minutes:   elapsed,
		Trigger:   string(entry.Trigger),
		GroupRun:  entry.GroupRunID,
	}); err != nil {
		log.Warn().Err(err).Int("zone_id", zoneID).Msg("Failed to publish zone stop event")
	}

	log.Info().
		Int("zone_id", zoneID).
		Str("zone", entry.ZoneName).
		Int("runtime", elapsed).
		Bool("forced", hwErr != nil).
		Msg("Zone stopped")

	if hwErr != nil {
		return nil, &zoneerrors.HardwareError{Op: "close", ZoneID: zoneID, Err: hwErr}
	}
	return &StopResult{ZoneID: zoneID, ZoneName: entry.ZoneName, Runtime: elapsed}, nil
}

// StopAll is the emergency and shutdown path. It stops every running zone,
// force-clearing registry entries even when an individual close fails, then
// slams every output shut as a last resort. It never returns an error;
// partial success is success.
func (c *Coordinator) StopAll() *StopAllResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.reg.RunningIDs()
	stopped := make([]int, 0, len(ids))
	anyFailed := false

	for _, zoneID := range ids {
		if _, err := c.stopLocked(zoneID, mqtt.EventStopped, true); err != nil {
			log.Error().Err(err).Int("zone_id", zoneID).Msg("Error stopping zone during stop-all")
			anyFailed = true
			continue
		}
		stopped = append(stopped, zoneID)
	}

	// Cancel every pending group reservation; an emergency stop abandons the
	// rest of any sequence in flight.
	for _, q := range c.reg.QueuedSnapshot() {
		if e := c.reg.Dequeue(q.ZoneID); e != nil && e.Timer != nil {
			e.Timer.Stop()
		}
	}

	if anyFailed {
		if err := c.hw.CloseAll(); err != nil {
			log.Error().Err(err).Msg("Close-all sweep reported errors after failed stops")
		}
	}

	now := time.Now()
	if err := c.pub.PublishSystem(mqtt.SystemEvent{
		Timestamp: now,
		Event:     mqtt.EventEmergencyStop,
		Detail:    fmt.Sprintf("%d zones stopped", len(stopped)),
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to publish emergency stop event")
	}

	if len(ids) > 0 {
		if nerr := notifications.Send("Irrigation emergency stop", fmt.Sprintf("%d of %d running zones stopped", len(stopped), len(ids))); nerr != nil {
			log.Warn().Err(nerr).Msg("Failed to send emergency stop notification")
		}
	}

	log.Warn().Ints("zones", stopped).Msg("Emergency stop: all zones stopped")
	return &StopAllResult{Stopped: stopped, Count: len(stopped)}
}

// autoStop is the timer-fired safety stop. The history id guards against a
// stale timer racing a stop-and-restart of the same zone.
func (c *Coordinator) autoStop(zoneID int, historyID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.reg.Get(zoneID)
	if entry == nil || entry.HistoryID != historyID {
		return
	}

	log.Warn().Int("zone_id", zoneID).Msg("Zone auto-stop triggered (max runtime reached)")
	if _, err := c.stopLocked(zoneID, mqtt.EventAutoStopped, false); err != nil {
		log.Error().Err(err).Int("zone_id", zoneID).Msg("Auto-stop failed")
	}
}

func (c *Coordinator) refused(trigger model.Trigger, reason string) {
	datadog.Count("zone.start_refused", 1, fmt.Sprintf("trigger:%s", trigger), fmt.Sprintf("reason:%s", reason))
}
