package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sprinksync/irrigation-controller/internal/model"
)

// BeginHistoryRecord appends an in-progress activation record and returns its
// id. The record has no end time until FinalizeHistoryRecord.
func BeginHistoryRecord(conn *sql.DB, zoneID int, start time.Time, trigger model.Trigger, scheduleID *int) (int64, error) {
	res, err := conn.Exec(`INSERT INTO history (zone_id, start_time, trigger_type, schedule_id) VALUES (?, ?, ?, ?)`,
		zoneID, start.Format(time.RFC3339), string(trigger), scheduleID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert history record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read history record id: %w", err)
	}
	return id, nil
}

// FinalizeHistoryRecord sets the end time and actual duration. Records are
// immutable once finalized; callers must not finalize twice.
func FinalizeHistoryRecord(conn *sql.DB, id int64, end time.Time, durationMinutes int) error {
	_, err := conn.Exec(`UPDATE history SET end_time = ?, duration = ? WHERE id = ? AND end_time IS NULL`,
		end.Format(time.RFC3339), durationMinutes, id)
	if err != nil {
		return fmt.Errorf("failed to finalize history record %d: %w", id, err)
	}
	return nil
}

// AccumulateZoneRuntime adds the elapsed minutes to the zone's lifetime total
// and stamps its last run.
func AccumulateZoneRuntime(conn *sql.DB, zoneID int, minutes int, lastRun time.Time) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`UPDATE zones SET total_runtime = total_runtime + ?, last_run = ? WHERE id = ?`,
		minutes, lastRun.Format(time.RFC3339), zoneID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update zone runtime: %w", err)
	}
	return tx.Commit()
}

// UpdateZone edits the operator-mutable zone fields. The pin mapping is
// immutable and deliberately not touched here.
func UpdateZone(conn *sql.DB, zoneID int, name string, defaultDuration int) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`UPDATE zones SET name = ?, default_duration = ? WHERE id = ?`, name, defaultDuration, zoneID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update zone: %w", err)
	}
	return tx.Commit()
}

// UpdateSafetyLimits replaces the operator-configurable safety limits.
func UpdateSafetyLimits(conn *sql.DB, l model.SafetyLimits) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`UPDATE system_settings SET max_concurrent_zones = ?, min_duration_minutes = ?, max_duration_minutes = ?, stabilization_ms = ? WHERE id = 1`,
		l.MaxConcurrentZones, l.MinDurationMinutes, l.MaxDurationMinutes, l.StabilizationMs)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update safety limits: %w", err)
	}
	return tx.Commit()
}

// CreateGroup inserts a group and its ordered members.
func CreateGroup(conn *sql.DB, name string, defaultDuration int, zoneIDs []int) (int, error) {
	tx, err := conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("start transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO zone_groups (name, default_duration) VALUES (?, ?)`, name, defaultDuration)
	if err != nil {
		return 0, fmt.Errorf("insert group: %w", err)
	}
	groupID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read group id: %w", err)
	}
	for i, zoneID := range zoneIDs {
		_, err = tx.Exec(`INSERT INTO zone_group_members (group_id, zone_id, sequence_order) VALUES (?, ?, ?)`,
			groupID, zoneID, i)
		if err != nil {
			return 0, fmt.Errorf("insert group member %d: %w", zoneID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit group: %w", err)
	}
	return int(groupID), nil
}

// DeleteGroup removes a group; membership rows cascade.
func DeleteGroup(conn *sql.DB, groupID int) error {
	_, err := conn.Exec(`DELETE FROM zone_groups WHERE id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// CreateSchedule inserts a schedule targeting a zone or a group and returns
// its id. Exactly one of zoneID/groupID must be non-nil (enforced by the
// schema CHECK).
func CreateSchedule(conn *sql.DB, s model.Schedule) (int, error) {
	res, err := conn.Exec(`INSERT INTO schedules (zone_id, group_id, start_time, duration, days, enabled) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ZoneID, s.GroupID, s.StartTime, s.Duration, marshalJSON(s.Days), s.Enabled)
	if err != nil {
		return 0, fmt.Errorf("insert schedule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read schedule id: %w", err)
	}
	return int(id), nil
}

// UpdateSchedule replaces a schedule's timing fields and target.
func UpdateSchedule(conn *sql.DB, s model.Schedule) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`UPDATE schedules SET zone_id = ?, group_id = ?, start_time = ?, duration = ?, days = ?, enabled = ? WHERE id = ?`,
		s.ZoneID, s.GroupID, s.StartTime, s.Duration, marshalJSON(s.Days), s.Enabled, s.ID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update schedule: %w", err)
	}
	return tx.Commit()
}

// SetScheduleEnabled toggles a schedule without touching its timing.
func SetScheduleEnabled(conn *sql.DB, id int, enabled bool) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`UPDATE schedules SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("toggle schedule: %w", err)
	}
	return tx.Commit()
}

// DeleteSchedule removes a schedule.
func DeleteSchedule(conn *sql.DB, id int) error {
	_, err := conn.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}
