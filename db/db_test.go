package db

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprinksync/irrigation-controller/internal/config"
	"github.com/sprinksync/irrigation-controller/internal/model"
	"github.com/sprinksync/irrigation-controller/internal/zoneerrors"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxConcurrentZones: 2,
		MinDurationMinutes: 1,
		MaxDurationMinutes: 60,
		StabilizationMs:    100,
		Zones: []config.ZoneConfig{
			{ID: 1, Name: "Front Lawn", Pin: 17, DefaultDuration: 15},
			{ID: 2, Name: "Back Lawn", Pin: 27, DefaultDuration: 20},
			{ID: 3, Name: "Garden Beds", Pin: 22, DefaultDuration: 10},
		},
	}
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, SeedDatabase(conn, testConfig()))
	return conn
}

func TestSeedAndGetZones(t *testing.T) {
	conn := newTestDB(t)

	zones, err := GetAllZones(conn)
	require.NoError(t, err)
	require.Len(t, zones, 3)

	assert.Equal(t, 1, zones[0].ID)
	assert.Equal(t, "Front Lawn", zones[0].Name)
	assert.Equal(t, 17, zones[0].Pin.Number)
	assert.Equal(t, 15, zones[0].DefaultDuration)
	assert.Equal(t, 0, zones[0].TotalRuntime)
	assert.True(t, zones[0].LastRun.IsZero())
}

func TestSeedPreservesOperatorEdits(t *testing.T) {
	conn := newTestDB(t)

	require.NoError(t, UpdateZone(conn, 1, "Renamed Lawn", 30))

	// Re-seeding with a moved pin must take the new pin but keep the
	// operator's name and duration.
	cfg := testConfig()
	cfg.Zones[0].Pin = 23
	require.NoError(t, SeedDatabase(conn, cfg))

	zone, err := GetZoneByID(conn, 1)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Lawn", zone.Name)
	assert.Equal(t, 30, zone.DefaultDuration)
	assert.Equal(t, 23, zone.Pin.Number)
}

func TestGetZoneByIDNotFound(t *testing.T) {
	conn := newTestDB(t)

	_, err := GetZoneByID(conn, 99)
	assert.ErrorIs(t, err, zoneerrors.ErrZoneNotFound)
}

func TestGroupLifecycle(t *testing.T) {
	conn := newTestDB(t)

	groupID, err := CreateGroup(conn, "Full Yard", 10, []int{2, 1, 3})
	require.NoError(t, err)

	group, err := GetGroupByID(conn, groupID)
	require.NoError(t, err)
	assert.Equal(t, "Full Yard", group.Name)
	assert.Equal(t, 10, group.DefaultDuration)

	groups, err := GetAllGroups(conn)
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	members, err := GetGroupMembers(conn, groupID)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, 2, members[0].ZoneID)
	assert.Equal(t, "Back Lawn", members[0].ZoneName)
	assert.Equal(t, 1, members[1].ZoneID)
	assert.Equal(t, 3, members[2].ZoneID)

	require.NoError(t, DeleteGroup(conn, groupID))

	_, err = GetGroupByID(conn, groupID)
	assert.ErrorIs(t, err, zoneerrors.ErrGroupNotFound)

	members, err = GetGroupMembers(conn, groupID)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestScheduleLifecycle(t *testing.T) {
	conn := newTestDB(t)

	zoneID := 2
	id, err := CreateSchedule(conn, model.Schedule{
		ZoneID:    &zoneID,
		StartTime: "06:30",
		Duration:  20,
		Days:      []time.Weekday{time.Monday, time.Thursday},
		Enabled:   true,
	})
	require.NoError(t, err)

	enabled, err := GetEnabledSchedules(conn)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "06:30", enabled[0].StartTime)
	assert.Equal(t, []time.Weekday{time.Monday, time.Thursday}, enabled[0].Days)
	assert.Equal(t, "Back Lawn", enabled[0].ZoneName)

	require.NoError(t, SetScheduleEnabled(conn, id, false))
	enabled, err = GetEnabledSchedules(conn)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	all, err := GetAllSchedules(conn)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	sched, err := GetScheduleByID(conn, id)
	require.NoError(t, err)
	sched.StartTime = "07:00"
	sched.Duration = 25
	require.NoError(t, UpdateSchedule(conn, *sched))

	sched, err = GetScheduleByID(conn, id)
	require.NoError(t, err)
	assert.Equal(t, "07:00", sched.StartTime)
	assert.Equal(t, 25, sched.Duration)

	require.NoError(t, DeleteSchedule(conn, id))
	_, err = GetScheduleByID(conn, id)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestGroupScheduleResolvesName(t *testing.T) {
	conn := newTestDB(t)

	groupID, err := CreateGroup(conn, "Full Yard", 10, []int{1, 2})
	require.NoError(t, err)

	_, err = CreateSchedule(conn, model.Schedule{
		GroupID:   &groupID,
		StartTime: "21:00",
		Duration:  10,
		Days:      []time.Weekday{time.Sunday},
		Enabled:   true,
	})
	require.NoError(t, err)

	schedules, err := GetEnabledSchedules(conn)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "Full Yard", schedules[0].GroupName)
	assert.Equal(t, "Full Yard", schedules[0].TargetName())
}

func TestHistoryLifecycle(t *testing.T) {
	conn := newTestDB(t)

	start := time.Now().Add(-20 * time.Minute).Truncate(time.Second)
	id, err := BeginHistoryRecord(conn, 1, start, model.TriggerManual, nil)
	require.NoError(t, err)

	records, err := GetRecentHistory(conn, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].EndTime.IsZero())
	assert.Equal(t, model.TriggerManual, records[0].Trigger)

	end := start.Add(18 * time.Minute)
	require.NoError(t, FinalizeHistoryRecord(conn, id, end, 18))
	require.NoError(t, AccumulateZoneRuntime(conn, 1, 18, end))

	records, err = GetRecentHistory(conn, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 18, records[0].Duration)
	assert.False(t, records[0].EndTime.IsZero())

	zone, err := GetZoneByID(conn, 1)
	require.NoError(t, err)
	assert.Equal(t, 18, zone.TotalRuntime)
	assert.False(t, zone.LastRun.IsZero())

	// Finalized records are immutable; a second finalize must not overwrite.
	require.NoError(t, FinalizeHistoryRecord(conn, id, end.Add(time.Hour), 99))
	records, err = GetRecentHistory(conn, 10)
	require.NoError(t, err)
	assert.Equal(t, 18, records[0].Duration)
}

func TestHistoryNewestFirst(t *testing.T) {
	conn := newTestDB(t)

	now := time.Now()
	for i := 0; i < 3; i++ {
		_, err := BeginHistoryRecord(conn, 1, now.Add(time.Duration(i)*time.Minute), model.TriggerScheduled, nil)
		require.NoError(t, err)
	}

	records, err := GetRecentHistory(conn, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Greater(t, records[0].ID, records[1].ID)
}

func TestSafetyLimits(t *testing.T) {
	conn := newTestDB(t)

	limits, err := GetSafetyLimits(conn)
	require.NoError(t, err)
	assert.Equal(t, 2, limits.MaxConcurrentZones)
	assert.Equal(t, 1, limits.MinDurationMinutes)
	assert.Equal(t, 60, limits.MaxDurationMinutes)

	limits.MaxConcurrentZones = 4
	require.NoError(t, UpdateSafetyLimits(conn, limits))

	limits, err = GetSafetyLimits(conn)
	require.NoError(t, err)
	assert.Equal(t, 4, limits.MaxConcurrentZones)

	// Re-seeding must not clobber operator-adjusted limits.
	require.NoError(t, SeedDatabase(conn, testConfig()))
	limits, err = GetSafetyLimits(conn)
	require.NoError(t, err)
	assert.Equal(t, 4, limits.MaxConcurrentZones)
}
