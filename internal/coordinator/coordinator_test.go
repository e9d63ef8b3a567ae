package coordinator

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprinksync/irrigation-controller/db"
	"github.com/sprinksync/irrigation-controller/internal/config"
	"github.com/sprinksync/irrigation-controller/internal/hardware"
	"github.com/sprinksync/irrigation-controller/internal/model"
	"github.com/sprinksync/irrigation-controller/internal/mqtt"
	"github.com/sprinksync/irrigation-controller/internal/registry"
	"github.com/sprinksync/irrigation-controller/internal/zoneerrors"
)

// testMinute keeps timer-driven tests in the millisecond range.
const testMinute = 20 * time.Millisecond

func testConfig() *config.Config {
	return &config.Config{
		MaxConcurrentZones: 2,
		MinDurationMinutes: 1,
		MaxDurationMinutes: 60,
		StabilizationMs:    1,
		Zones: []config.ZoneConfig{
			{ID: 1, Name: "Front Lawn", Pin: 17, DefaultDuration: 15},
			{ID: 2, Name: "Back Lawn", Pin: 27, DefaultDuration: 20},
			{ID: 3, Name: "Garden Beds", Pin: 22, DefaultDuration: 10},
			{ID: 4, Name: "Side Strip", Pin: 23, DefaultDuration: 10},
			{ID: 5, Name: "Drip Line", Pin: 24, DefaultDuration: 30},
		},
	}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *sql.DB, *hardware.Simulator, *mqtt.FakePublisher) {
	t.Helper()

	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.SeedDatabase(conn, testConfig()))

	sim := hardware.NewSimulator(0)
	zones, err := db.GetAllZones(conn)
	require.NoError(t, err)
	require.NoError(t, sim.Initialize(zones))

	pub := mqtt.NewFakePublisher()
	coord := NewForTest(conn, sim, pub, testMinute)
	t.Cleanup(func() { coord.StopAll() })
	return coord, conn, sim, pub
}

func setMaxConcurrent(t *testing.T, conn *sql.DB, max int) {
	t.Helper()
	limits, err := db.GetSafetyLimits(conn)
	require.NoError(t, err)
	limits.MaxConcurrentZones = max
	require.NoError(t, db.UpdateSafetyLimits(conn, limits))
}

func TestStartPreconditionOrder(t *testing.T) {
	tests := []struct {
		name    string
		prep    func(t *testing.T, c *Coordinator)
		zoneID  int
		minutes int
		check   func(t *testing.T, err error)
	}{
		{
			name:    "Unknown zone",
			zoneID:  99,
			minutes: 10,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, zoneerrors.ErrZoneNotFound)
			},
		},
		{
			name: "Already running wins over invalid duration",
			prep: func(t *testing.T, c *Coordinator) {
				_, err := c.Start(1, 10, model.TriggerManual, nil)
				require.NoError(t, err)
			},
			zoneID:  1,
			minutes: 0,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, zoneerrors.ErrAlreadyRunning)
			},
		},
		{
			name: "Concurrency limit carries the live limit",
			prep: func(t *testing.T, c *Coordinator) {
				_, err := c.Start(1, 10, model.TriggerManual, nil)
				require.NoError(t, err)
				_, err = c.Start(2, 10, model.TriggerManual, nil)
				require.NoError(t, err)
			},
			zoneID:  3,
			minutes: 10,
			check: func(t *testing.T, err error) {
				var limitErr *zoneerrors.ConcurrencyLimitError
				require.ErrorAs(t, err, &limitErr)
				assert.Equal(t, 2, limitErr.Limit)
			},
		},
		{
			name: "Concurrency limit wins over invalid duration",
			prep: func(t *testing.T, c *Coordinator) {
				_, err := c.Start(1, 10, model.TriggerManual, nil)
				require.NoError(t, err)
				_, err = c.Start(2, 10, model.TriggerManual, nil)
				require.NoError(t, err)
			},
			zoneID:  3,
			minutes: 999,
			check: func(t *testing.T, err error) {
				var limitErr *zoneerrors.ConcurrencyLimitError
				assert.ErrorAs(t, err, &limitErr)
			},
		},
		{
			name:    "Duration below minimum",
			zoneID:  1,
			minutes: 0,
			check: func(t *testing.T, err error) {
				var durErr *zoneerrors.InvalidDurationError
				require.ErrorAs(t, err, &durErr)
				assert.Equal(t, 1, durErr.Min)
				assert.Equal(t, 60, durErr.Max)
			},
		},
		{
			name:    "Duration above maximum",
			zoneID:  1,
			minutes: 61,
			check: func(t *testing.T, err error) {
				var durErr *zoneerrors.InvalidDurationError
				assert.ErrorAs(t, err, &durErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord, _, _, _ := newTestCoordinator(t)
			if tt.prep != nil {
				tt.prep(t, coord)
			}
			_, err := coord.Start(tt.zoneID, tt.minutes, model.TriggerManual, nil)
			tt.check(t, err)
		})
	}
}

func TestStartOpensValveAndRecordsHistory(t *testing.T) {
	coord, conn, sim, pub := newTestCoordinator(t)

	result, err := coord.Start(1, 15, model.TriggerManual, nil)
	require.NoError(t, err)
	assert.Equal(t, "Front Lawn", result.ZoneName)
	assert.Equal(t, 15, result.Duration)
	assert.True(t, result.StopAt.After(result.StartTime))

	on, err := sim.Read(1)
	require.NoError(t, err)
	assert.True(t, on)

	records, err := db.GetRecentHistory(conn, 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].ZoneID)
	assert.True(t, records[0].EndTime.IsZero())
	assert.Equal(t, model.TriggerManual, records[0].Trigger)

	assert.Equal(t, []string{mqtt.EventStarted}, pub.ZoneEventKinds())
}

func TestConcurrencyLimitReadLiveEachStart(t *testing.T) {
	coord, conn, _, _ := newTestCoordinator(t)

	_, err := coord.Start(1, 10, model.TriggerManual, nil)
	require.NoError(t, err)
	_, err = coord.Start(2, 10, model.TriggerManual, nil)
	require.NoError(t, err)

	_, err = coord.Start(3, 10, model.TriggerManual, nil)
	var limitErr *zoneerrors.ConcurrencyLimitError
	require.ErrorAs(t, err, &limitErr)

	// Raising the limit takes effect on the very next start, no restart.
	setMaxConcurrent(t, conn, 3)
	_, err = coord.Start(3, 10, model.TriggerManual, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, coord.RunningCount())
}

func TestDuplicateConcurrentStarts(t *testing.T) {
	coord, conn, _, _ := newTestCoordinator(t)
	setMaxConcurrent(t, conn, 10)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coord.Start(5, 10, model.TriggerManual, nil)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, zoneerrors.ErrAlreadyRunning)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, coord.RunningCount())

	records, err := db.GetRecentHistory(conn, 20)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestAutoStop(t *testing.T) {
	coord, conn, sim, pub := newTestCoordinator(t)

	_, err := coord.Start(1, 1, model.TriggerManual, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !coord.IsRunning(1)
	}, time.Second, 5*time.Millisecond)

	on, err := sim.Read(1)
	require.NoError(t, err)
	assert.False(t, on)

	records, err := db.GetRecentHistory(conn, 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].EndTime.IsZero())
	assert.Equal(t, 1, records[0].Duration)

	assert.Equal(t, []string{mqtt.EventStarted, mqtt.EventAutoStopped}, pub.ZoneEventKinds())
}

func TestStopAfterRestartDoesNotTripStaleTimer(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	_, err := coord.Start(5, 1, model.TriggerManual, nil)
	require.NoError(t, err)
	_, err = coord.Stop(5)
	require.NoError(t, err)

	// Restart with a long duration; the first run's timer window passes while
	// the second run is active and must not stop it.
	_, err = coord.Start(5, 30, model.TriggerManual, nil)
	require.NoError(t, err)

	time.Sleep(3 * testMinute)
	assert.True(t, coord.IsRunning(5))
}

func TestStopRecordsActualRuntime(t *testing.T) {
	coord, conn, sim, pub := newTestCoordinator(t)

	_, err := coord.Start(2, 30, model.TriggerManual, nil)
	require.NoError(t, err)

	// Run for roughly three scaled minutes before the early stop.
	time.Sleep(3*testMinute + testMinute/4)

	result, err := coord.Stop(2)
	require.NoError(t, err)
	assert.Equal(t, "Back Lawn", result.ZoneName)
	assert.Equal(t, 3, result.Runtime)

	on, err := sim.Read(2)
	require.NoError(t, err)
	assert.False(t, on)

	zone, err := db.GetZoneByID(conn, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, zone.TotalRuntime)
	assert.False(t, zone.LastRun.IsZero())

	records, err := db.GetRecentHistory(conn, 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].Duration)

	assert.Equal(t, []string{mqtt.EventStarted, mqtt.EventStopped}, pub.ZoneEventKinds())
}

func TestStopNotRunning(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	_, err := coord.Stop(1)
	assert.ErrorIs(t, err, zoneerrors.ErrNotRunning)
}

func TestStopHardwareFailureKeepsZoneTracked(t *testing.T) {
	coord, _, sim, _ := newTestCoordinator(t)

	_, err := coord.Start(1, 30, model.TriggerManual, nil)
	require.NoError(t, err)

	sim.FailClose[1] = true
	_, err = coord.Stop(1)
	var hwErr *zoneerrors.HardwareError
	require.ErrorAs(t, err, &hwErr)
	assert.Equal(t, "close", hwErr.Op)

	// The valve is still physically open, so the zone stays tracked.
	assert.True(t, coord.IsRunning(1))

	sim.FailClose[1] = false
	_, err = coord.Stop(1)
	require.NoError(t, err)
	assert.False(t, coord.IsRunning(1))
}

func TestStartHardwareFailure(t *testing.T) {
	coord, conn, sim, _ := newTestCoordinator(t)

	sim.FailOpen[3] = true
	_, err := coord.Start(3, 10, model.TriggerManual, nil)
	var hwErr *zoneerrors.HardwareError
	require.ErrorAs(t, err, &hwErr)
	assert.Equal(t, "open", hwErr.Op)
	assert.False(t, coord.IsRunning(3))

	// The fault stays visible in history as a zero-runtime record.
	records, err := db.GetRecentHistory(conn, 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].EndTime.IsZero())
	assert.Equal(t, 0, records[0].Duration)
}

func TestStopAll(t *testing.T) {
	coord, _, sim, pub := newTestCoordinator(t)

	_, err := coord.Start(1, 30, model.TriggerManual, nil)
	require.NoError(t, err)
	_, err = coord.Start(2, 30, model.TriggerManual, nil)
	require.NoError(t, err)
	coord.Queue(&registry.QueuedEntry{ZoneID: 3, GroupID: 1, GroupRunID: "run-x", Position: 2})

	// One valve refuses to close; stop-all still clears everything.
	sim.FailClose[2] = true
	result := coord.StopAll()

	assert.Equal(t, []int{1}, result.Stopped)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, 0, coord.RunningCount())
	assert.Empty(t, coord.Queued())

	require.NotEmpty(t, pub.SystemEvents)
	assert.Equal(t, mqtt.EventEmergencyStop, pub.SystemEvents[len(pub.SystemEvents)-1].Event)
}

func TestStopAllWithNothingRunning(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	result := coord.StopAll()
	assert.Empty(t, result.Stopped)
	assert.Equal(t, 0, result.Count)
}

func TestStopRunRestartSameZone(t *testing.T) {
	coord, conn, _, _ := newTestCoordinator(t)

	_, err := coord.Start(5, 10, model.TriggerManual, nil)
	require.NoError(t, err)
	_, err = coord.Stop(5)
	require.NoError(t, err)

	_, err = coord.Start(5, 10, model.TriggerManual, nil)
	require.NoError(t, err)
	assert.True(t, coord.IsRunning(5))

	records, err := db.GetRecentHistory(conn, 5)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestStartQueuedMember(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	coord.Queue(&registry.QueuedEntry{ZoneID: 2, GroupID: 1, GroupRunID: "run-a", Position: 2})

	// A superseded run id must not start anything, and the newer reservation
	// survives.
	_, reserved, err := coord.StartQueuedMember(2, "run-stale", 10, model.TriggerGroup, nil)
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.False(t, coord.IsRunning(2))

	result, reserved, err := coord.StartQueuedMember(2, "run-a", 10, model.TriggerGroup, nil)
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.Equal(t, "Back Lawn", result.ZoneName)
	assert.True(t, coord.IsRunning(2))
	assert.False(t, coord.IsQueuedForRun(2, "run-a"))
}

func TestStartQueuedMemberDropsReservationOnRefusal(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	_, err := coord.Start(1, 10, model.TriggerManual, nil)
	require.NoError(t, err)
	_, err = coord.Start(2, 10, model.TriggerManual, nil)
	require.NoError(t, err)

	coord.Queue(&registry.QueuedEntry{ZoneID: 3, GroupID: 1, GroupRunID: "run-a", Position: 2})

	_, reserved, err := coord.StartQueuedMember(3, "run-a", 10, model.TriggerGroup, nil)
	assert.True(t, reserved)
	var limitErr *zoneerrors.ConcurrencyLimitError
	require.ErrorAs(t, err, &limitErr)

	// Refused members are abandoned, never retried.
	assert.False(t, coord.IsQueuedForRun(3, "run-a"))
}

func TestCancelGroup(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	coord.Queue(&registry.QueuedEntry{ZoneID: 2, GroupID: 7, GroupRunID: "run-a", Position: 2})
	coord.Queue(&registry.QueuedEntry{ZoneID: 3, GroupID: 7, GroupRunID: "run-a", Position: 3})
	coord.Queue(&registry.QueuedEntry{ZoneID: 4, GroupID: 8, GroupRunID: "run-b", Position: 2})

	assert.Equal(t, 2, coord.CancelGroup(7))
	assert.False(t, coord.IsQueuedForRun(2, "run-a"))
	assert.False(t, coord.IsQueuedForRun(3, "run-a"))
	assert.True(t, coord.IsQueuedForRun(4, "run-b"))
}
