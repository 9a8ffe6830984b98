package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dila/internal/projector"
	"dila/internal/protocol"
)

func newTestManager() *Manager {
	m := NewManager()
	m.SetPollInterval(1)
	m.SetClientOptions(
		projector.WithHandshakeTimeout(time.Second),
		projector.WithRequestTimeout(time.Second),
		projector.WithBackoff(50*time.Millisecond, 200*time.Millisecond),
	)
	return m
}

func TestManager_AddDeviceUnreachable(t *testing.T) {
	m := newTestManager()
	t.Cleanup(m.Shutdown)

	// Adding succeeds even though nothing listens on the endpoint.
	id, err := m.AddDevice(deadEndpoint(t), "Dead Projector")
	require.NoError(t, err)

	state, err := m.GetState(id)
	require.NoError(t, err)
	assert.Equal(t, projector.PowerUnknown, state.Power)

	_, err = m.SendCommand(context.Background(), id, "powerOn", nil)
	assert.ErrorIs(t, err, projector.ErrConnectionLost)
}

func TestManager_DuplicateAddressRejected(t *testing.T) {
	m := newTestManager()
	t.Cleanup(m.Shutdown)

	endpoint := deadEndpoint(t)
	_, err := m.AddDevice(endpoint, "First")
	require.NoError(t, err)

	_, err = m.AddDevice(endpoint, "Second")
	assert.Error(t, err)
}

func TestManager_RemoveDevice(t *testing.T) {
	m := newTestManager()
	t.Cleanup(m.Shutdown)

	id, err := m.AddDevice(deadEndpoint(t), "Projector")
	require.NoError(t, err)

	require.NoError(t, m.RemoveDevice(id))

	_, err = m.GetState(id)
	assert.Error(t, err)
	assert.Error(t, m.RemoveDevice(id))

	// The address is free again after removal.
	fake := newFakeDevice(t)
	fakeID, err := m.AddDevice(fake.endpoint(), "Projector")
	require.NoError(t, err)
	assert.NotEqual(t, id, fakeID)
}

func TestManager_SendCommand(t *testing.T) {
	fake := newFakeDevice(t)
	m := newTestManager()
	t.Cleanup(m.Shutdown)

	id, err := m.AddDevice(fake.endpoint(), "Theater")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sess, err := m.Session(id)
		return err == nil && sess.ConnectionState() == projector.StateReady
	}, 3*time.Second, 20*time.Millisecond, "session never became ready")

	_, err = m.SendCommand(context.Background(), id, "powerOn", nil)
	require.NoError(t, err)
	assert.Contains(t, fake.operations(), protocol.OpPowerOn)
}

func TestManager_SubscribeReceivesUpdates(t *testing.T) {
	fake := newFakeDevice(t)
	m := newTestManager()
	t.Cleanup(m.Shutdown)

	updates, cancel := m.Subscribe()
	defer cancel()

	id, err := m.AddDevice(fake.endpoint(), "Theater")
	require.NoError(t, err)

	select {
	case u := <-updates:
		assert.Equal(t, id, u.SessionID)
		assert.Equal(t, "Theater", u.Name)
		assert.Equal(t, projector.PowerStandby, u.State.Power)
	case <-time.After(5 * time.Second):
		t.Fatal("no update received")
	}
}

func TestManager_Devices(t *testing.T) {
	fake := newFakeDevice(t)
	m := newTestManager()
	t.Cleanup(m.Shutdown)

	assert.Empty(t, m.Devices())

	_, err := m.AddDevice(fake.endpoint(), "Theater")
	require.NoError(t, err)
	_, err = m.AddDevice(deadEndpoint(t), "Bedroom")
	require.NoError(t, err)

	entries := m.Devices()
	require.Len(t, entries, 2)
	names := []string{entries[0].Name, entries[1].Name}
	assert.ElementsMatch(t, []string{"Theater", "Bedroom"}, names)
}

func TestManager_ShutdownStopsSessions(t *testing.T) {
	fake := newFakeDevice(t)
	m := newTestManager()

	id, err := m.AddDevice(fake.endpoint(), "Theater")
	require.NoError(t, err)

	m.Shutdown()

	_, err = m.GetState(id)
	assert.Error(t, err)
	assert.Empty(t, m.Devices())
}
