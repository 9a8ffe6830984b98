package projector

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dila/internal/protocol"
)

type changeRecorder struct {
	mu      sync.Mutex
	changes []AttributeState
	offline int
}

func (r *changeRecorder) onChange(s AttributeState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, s)
}

func (r *changeRecorder) onOffline() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offline++
}

func (r *changeRecorder) changeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func (r *changeRecorder) offlineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offline
}

func startTestReconciler(t *testing.T, client *Client, rec *changeRecorder) *Reconciler {
	t.Helper()
	r := NewReconciler(client, rec.onChange, rec.onOffline)
	r.SetInterval(30 * time.Millisecond)
	r.Start()
	t.Cleanup(r.Stop)
	return r
}

func TestReconciler_PublishesDeviceState(t *testing.T) {
	fake := newFakeProjector(t)
	fake.setPower(protocol.PowerCodeOn)

	client := startTestClient(t, fake.endpoint())
	waitReady(t, client)

	rec := &changeRecorder{}
	r := startTestReconciler(t, client, rec)

	require.Eventually(t, func() bool {
		return r.State().Power == PowerOn
	}, 2*time.Second, 10*time.Millisecond)

	state := r.State()
	assert.Equal(t, PowerOn, state.Power)
	assert.Equal(t, "HDMI1", state.Input)
	assert.Equal(t, "01", state.Sensors["picture_mode"])
	assert.False(t, state.LastUpdated.IsZero())
}

func TestReconciler_DebouncesUnchangedState(t *testing.T) {
	fake := newFakeProjector(t)

	client := startTestClient(t, fake.endpoint())
	waitReady(t, client)

	rec := &changeRecorder{}
	r := startTestReconciler(t, client, rec)

	require.Eventually(t, func() bool {
		return r.State().Power == PowerStandby
	}, 2*time.Second, 10*time.Millisecond)

	// Several more polls with no device change produce no new publishes
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, rec.changeCount())

	fake.setPower(protocol.PowerCodeWarming)
	require.Eventually(t, func() bool {
		return rec.changeCount() == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, PowerWarming, r.State().Power)
}

func TestReconciler_GetStateIdempotent(t *testing.T) {
	fake := newFakeProjector(t)
	fake.setPower(protocol.PowerCodeOn)

	client := startTestClient(t, fake.endpoint())
	waitReady(t, client)

	rec := &changeRecorder{}
	r := startTestReconciler(t, client, rec)

	require.Eventually(t, func() bool {
		return r.State().Power == PowerOn
	}, 2*time.Second, 10*time.Millisecond)

	first := r.State()
	second := r.State()
	assert.True(t, first.Equal(second))

	// Returned state is a copy; mutating it does not leak back
	first.Sensors["picture_mode"] = "tampered"
	assert.Equal(t, "01", r.State().Sensors["picture_mode"])
}

func TestReconciler_SustainedFailureDegradesToUnknown(t *testing.T) {
	fake := newFakeProjector(t)
	fake.setPower(protocol.PowerCodeOn)

	client := startTestClient(t, fake.endpoint())
	waitReady(t, client)

	rec := &changeRecorder{}
	r := startTestReconciler(t, client, rec)

	require.Eventually(t, func() bool {
		return r.State().Power == PowerOn
	}, 2*time.Second, 10*time.Millisecond)

	// Kill the device; polls now fail
	fake.close()

	require.Eventually(t, func() bool {
		return r.State().Power == PowerUnknown
	}, 3*time.Second, 10*time.Millisecond, "state never degraded to unknown")
	assert.Equal(t, 1, rec.offlineCount())
	assert.Empty(t, r.State().Input)
}

func TestReconciler_UnknownCodesMapToUnknown(t *testing.T) {
	assert.Equal(t, PowerUnknown, mapPowerCode(protocol.PowerCodeEmergency))
	assert.Equal(t, PowerUnknown, mapPowerCode("9"))
	assert.Equal(t, PowerOn, mapPowerCode("1"))
	assert.Equal(t, "UNKNOWN", mapInputCode("3"))
	assert.Equal(t, "HDMI2", mapInputCode("7"))
}

func TestReconciler_PushUpdate(t *testing.T) {
	fake := newFakeProjector(t)
	fake.setPower(protocol.PowerCodeOn)

	client := startTestClient(t, fake.endpoint())
	waitReady(t, client)

	rec := &changeRecorder{}
	r := NewReconciler(client, rec.onChange, rec.onOffline)
	r.SetInterval(time.Hour) // no polling during the test
	r.Start()
	t.Cleanup(r.Stop)

	// An async report flows through the same reconcile path as a poll
	r.Push(protocol.PowerCodeOn, protocol.InputCodeHDMI1)
	require.Eventually(t, func() bool {
		return r.State().Input == "HDMI1"
	}, 2*time.Second, 10*time.Millisecond)

	r.Push(protocol.PowerCodeOn, protocol.InputCodeHDMI2)
	require.Eventually(t, func() bool {
		return r.State().Input == "HDMI2"
	}, 2*time.Second, 10*time.Millisecond)
}
