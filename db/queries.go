package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sprinksync/irrigation-controller/internal/model"
	"github.com/sprinksync/irrigation-controller/internal/zoneerrors"
)

// GetAllZones retrieves the full zone catalog ordered by id.
func GetAllZones(conn *sql.DB) ([]model.Zone, error) {
	rows, err := conn.Query(`SELECT id, name, gpio_pin, active_high, default_duration, total_runtime, last_run FROM zones ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones: %w", err)
	}
	defer rows.Close()

	var zones []model.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// GetZoneByID retrieves a specific zone. Returns zoneerrors.ErrZoneNotFound
// for an unknown id.
func GetZoneByID(conn *sql.DB, id int) (*model.Zone, error) {
	row := conn.QueryRow(`SELECT id, name, gpio_pin, active_high, default_duration, total_runtime, last_run FROM zones WHERE id = ?`, id)
	z, err := scanZone(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("zone %d: %w", id, zoneerrors.ErrZoneNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &z, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanZone(row rowScanner) (model.Zone, error) {
	var z model.Zone
	var lastRun sql.NullString
	err := row.Scan(&z.ID, &z.Name, &z.Pin.Number, &z.Pin.ActiveHigh, &z.DefaultDuration, &z.TotalRuntime, &lastRun)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return z, err
		}
		return z, fmt.Errorf("failed to scan zone: %w", err)
	}
	if lastRun.Valid {
		z.LastRun, _ = time.Parse(time.RFC3339, lastRun.String)
	}
	return z, nil
}

// GetGroupByID retrieves a zone group. Returns zoneerrors.ErrGroupNotFound
// for an unknown id.
func GetGroupByID(conn *sql.DB, id int) (*model.Group, error) {
	var g model.Group
	err := conn.QueryRow(`SELECT id, name, default_duration FROM zone_groups WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.DefaultDuration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %d: %w", id, zoneerrors.ErrGroupNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group %d: %w", id, err)
	}
	return &g, nil
}

// GetAllGroups retrieves every zone group ordered by id.
func GetAllGroups(conn *sql.DB) ([]model.Group, error) {
	rows, err := conn.Query(`SELECT id, name, default_duration FROM zone_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.DefaultDuration); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GetGroupMembers returns a group's zones in sequence order.
func GetGroupMembers(conn *sql.DB, groupID int) ([]model.GroupMember, error) {
	rows, err := conn.Query(`SELECT zgm.zone_id, z.name, zgm.sequence_order
		FROM zone_group_members zgm
		JOIN zones z ON zgm.zone_id = z.id
		WHERE zgm.group_id = ?
		ORDER BY zgm.sequence_order`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query group members: %w", err)
	}
	defer rows.Close()

	var members []model.GroupMember
	for rows.Next() {
		var m model.GroupMember
		if err := rows.Scan(&m.ZoneID, &m.ZoneName, &m.SequenceOrder); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

const scheduleSelect = `SELECT s.id, s.zone_id, s.group_id, s.start_time, s.duration, s.days, s.enabled,
	COALESCE(z.name, ''), COALESCE(g.name, '')
	FROM schedules s
	LEFT JOIN zones z ON s.zone_id = z.id
	LEFT JOIN zone_groups g ON s.group_id = g.id`

// GetEnabledSchedules returns every enabled schedule with resolved target names.
func GetEnabledSchedules(conn *sql.DB) ([]model.Schedule, error) {
	return querySchedules(conn, scheduleSelect+` WHERE s.enabled = 1`)
}

// GetAllSchedules returns every schedule, enabled or not.
func GetAllSchedules(conn *sql.DB) ([]model.Schedule, error) {
	return querySchedules(conn, scheduleSelect+` ORDER BY s.id`)
}

// GetScheduleByID returns one schedule, or sql.ErrNoRows wrapped if absent.
func GetScheduleByID(conn *sql.DB, id int) (*model.Schedule, error) {
	schedules, err := querySchedules(conn, scheduleSelect+` WHERE s.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		return nil, fmt.Errorf("schedule %d: %w", id, sql.ErrNoRows)
	}
	return &schedules[0], nil
}

func querySchedules(conn *sql.DB, query string, args ...interface{}) ([]model.Schedule, error) {
	rows, err := conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		var s model.Schedule
		var days string
		err := rows.Scan(&s.ID, &s.ZoneID, &s.GroupID, &s.StartTime, &s.Duration, &days, &s.Enabled, &s.ZoneName, &s.GroupName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		json.Unmarshal([]byte(days), &s.Days)
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

// GetSafetyLimits reads the live safety limits. Called on every start
// decision; the values are operator-adjustable between calls.
func GetSafetyLimits(conn *sql.DB) (model.SafetyLimits, error) {
	var l model.SafetyLimits
	err := conn.QueryRow(`SELECT max_concurrent_zones, min_duration_minutes, max_duration_minutes, stabilization_ms FROM system_settings WHERE id = 1`).
		Scan(&l.MaxConcurrentZones, &l.MinDurationMinutes, &l.MaxDurationMinutes, &l.StabilizationMs)
	if err != nil {
		return l, fmt.Errorf("failed to get safety limits: %w", err)
	}
	return l, nil
}

// GetRecentHistory returns the most recent activation records, newest first.
func GetRecentHistory(conn *sql.DB, limit int) ([]model.HistoryRecord, error) {
	rows, err := conn.Query(`SELECT id, zone_id, start_time, end_time, duration, trigger_type, schedule_id
		FROM history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []model.HistoryRecord
	for rows.Next() {
		var r model.HistoryRecord
		var start string
		var end sql.NullString
		var duration sql.NullInt64
		err := rows.Scan(&r.ID, &r.ZoneID, &start, &end, &duration, &r.Trigger, &r.ScheduleID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		r.StartTime, _ = time.Parse(time.RFC3339, start)
		if end.Valid {
			r.EndTime, _ = time.Parse(time.RFC3339, end.String)
		}
		if duration.Valid {
			r.Duration = int(duration.Int64)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
