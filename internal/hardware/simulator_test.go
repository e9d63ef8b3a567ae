package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprinksync/irrigation-controller/internal/model"
)

func testZones() []model.Zone {
	return []model.Zone{
		{ID: 1, Name: "Front Lawn", Pin: model.GPIOPin{Number: 17}},
		{ID: 2, Name: "Back Lawn", Pin: model.GPIOPin{Number: 27}},
	}
}

func TestSimulatorOpenClose(t *testing.T) {
	sim := NewSimulator(0)
	require.NoError(t, sim.Initialize(testZones()))

	on, err := sim.Read(1)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, sim.Open(1))
	on, err = sim.Read(1)
	require.NoError(t, err)
	assert.True(t, on)

	// Other zones are unaffected.
	on, err = sim.Read(2)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, sim.Close(1))
	on, err = sim.Read(1)
	require.NoError(t, err)
	assert.False(t, on)

	// Closing a closed zone is harmless.
	require.NoError(t, sim.Close(1))
}

func TestSimulatorUninitializedZone(t *testing.T) {
	sim := NewSimulator(0)
	require.NoError(t, sim.Initialize(testZones()))

	assert.ErrorIs(t, sim.Open(99), ErrNotInitialized)
	assert.ErrorIs(t, sim.Close(99), ErrNotInitialized)
	_, err := sim.Read(99)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestSimulatorInjectedFaults(t *testing.T) {
	sim := NewSimulator(0)
	require.NoError(t, sim.Initialize(testZones()))

	sim.FailOpen[1] = true
	assert.Error(t, sim.Open(1))
	on, err := sim.Read(1)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, sim.Open(2))
	sim.FailClose[2] = true
	assert.Error(t, sim.Close(2))
	on, err = sim.Read(2)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestSimulatorCloseAll(t *testing.T) {
	sim := NewSimulator(0)
	require.NoError(t, sim.Initialize(testZones()))

	require.NoError(t, sim.Open(1))
	require.NoError(t, sim.Open(2))

	sim.FailClose[2] = true
	err := sim.CloseAll()
	assert.Error(t, err)

	// The healthy zone still closed despite the faulty one.
	on, err := sim.Read(1)
	require.NoError(t, err)
	assert.False(t, on)
	on, err = sim.Read(2)
	require.NoError(t, err)
	assert.True(t, on)
}
