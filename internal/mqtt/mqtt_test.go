package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatZonePayload(t *testing.T) {
	ts := time.Date(2026, time.June, 14, 6, 30, 0, 0, time.UTC)
	payload, err := FormatZonePayload(ZoneEvent{
		Timestamp: ts,
		Event:     EventStarted,
		ZoneID:    2,
		ZoneName:  "Back Lawn",
		Minutes:   20,
		Trigger:   "scheduled",
		GroupRun:  "run-a",
	})
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "2026-06-14T06:30:00Z", got["timestamp"])
	assert.Equal(t, "STARTED", got["event"])
	assert.Equal(t, float64(2), got["zone_id"])
	assert.Equal(t, "Back Lawn", got["zone_name"])
	assert.Equal(t, float64(20), got["minutes"])
	assert.Equal(t, "scheduled", got["trigger"])
	assert.Equal(t, "run-a", got["group_run"])
}

func TestFormatZonePayloadOmitsEmptyGroupRun(t *testing.T) {
	payload, err := FormatZonePayload(ZoneEvent{Event: EventStopped, ZoneID: 1})
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &got))
	_, present := got["group_run"]
	assert.False(t, present)
}

func TestFormatSystemPayload(t *testing.T) {
	ts := time.Date(2026, time.June, 14, 6, 0, 0, 0, time.UTC)
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: ts,
		Event:     EventEmergencyStop,
		Detail:    "2 zones stopped",
	})
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "EMERGENCY_STOP", got["event"])
	assert.Equal(t, "2 zones stopped", got["detail"])
}

func TestFakePublisherRecords(t *testing.T) {
	fake := NewFakePublisher()

	require.NoError(t, fake.PublishZone(ZoneEvent{Event: EventStarted, ZoneID: 1}))
	require.NoError(t, fake.PublishZone(ZoneEvent{Event: EventAutoStopped, ZoneID: 1}))
	require.NoError(t, fake.PublishSystem(SystemEvent{Event: EventShutdown}))

	assert.Equal(t, []string{EventStarted, EventAutoStopped}, fake.ZoneEventKinds())
	assert.Len(t, fake.SystemEvents, 1)

	require.NoError(t, fake.Close())
	assert.True(t, fake.Closed)
}

func TestFakePublisherInjectedError(t *testing.T) {
	fake := NewFakePublisher()
	fake.PublishError = errors.New("broker down")

	assert.Error(t, fake.PublishZone(ZoneEvent{Event: EventStarted}))
	assert.Error(t, fake.PublishSystem(SystemEvent{Event: EventStartup}))
	assert.Empty(t, fake.ZoneEvents)
}

func TestNopPublisher(t *testing.T) {
	var pub Publisher = NopPublisher{}
	assert.NoError(t, pub.PublishZone(ZoneEvent{}))
	assert.NoError(t, pub.PublishSystem(SystemEvent{}))
	assert.NoError(t, pub.Close())
}
