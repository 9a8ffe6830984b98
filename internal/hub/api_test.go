package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dila/internal/history"
	"dila/internal/projector"
	"dila/internal/protocol"
)

type apiFixture struct {
	manager *Manager
	store   *history.Store
	server  *httptest.Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	manager := newTestManager()
	t.Cleanup(manager.Shutdown)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	nonceCache := NewNonceCache(10, time.Minute)
	t.Cleanup(nonceCache.Shutdown)

	api := NewAPIServer(manager, nonceCache, store)
	server := httptest.NewServer(api.router())
	t.Cleanup(server.Close)

	return &apiFixture{manager: manager, store: store, server: server}
}

func (fx *apiFixture) addReadyDevice(t *testing.T, fake *fakeDevice, name string) string {
	t.Helper()
	id, err := fx.manager.AddDevice(fake.endpoint(), name)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		sess, err := fx.manager.Session(id)
		return err == nil && sess.ConnectionState() == projector.StateReady
	}, 3*time.Second, 20*time.Millisecond, "session never became ready")
	return id
}

func (fx *apiFixture) getJSON(t *testing.T, path string, wantStatus int) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(fx.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func (fx *apiFixture) postJSON(t *testing.T, path string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(fx.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestAPI_Health(t *testing.T) {
	fx := newAPIFixture(t)

	body := fx.getJSON(t, "/api/v1/health", http.StatusOK)
	assert.Equal(t, "healthy", body["status"])
}

func TestAPI_ListDevices(t *testing.T) {
	fx := newAPIFixture(t)
	fake := newFakeDevice(t)
	fx.addReadyDevice(t, fake, "Theater")

	body := fx.getJSON(t, "/api/v1/devices", http.StatusOK)
	devices := body["devices"].([]interface{})
	require.Len(t, devices, 1)
	entry := devices[0].(map[string]interface{})
	assert.Equal(t, "Theater", entry["name"])
}

func TestAPI_DeviceState(t *testing.T) {
	fx := newAPIFixture(t)
	fake := newFakeDevice(t)
	id := fx.addReadyDevice(t, fake, "Theater")

	require.Eventually(t, func() bool {
		state, err := fx.manager.GetState(id)
		return err == nil && state.Power == projector.PowerStandby
	}, 5*time.Second, 50*time.Millisecond, "state never published")

	body := fx.getJSON(t, "/api/v1/devices/"+id+"/state", http.StatusOK)
	assert.Equal(t, id, body["session_id"])
	state := body["state"].(map[string]interface{})
	assert.Equal(t, "STANDBY", state["power"])
}

func TestAPI_DeviceStateNotFound(t *testing.T) {
	fx := newAPIFixture(t)
	fx.getJSON(t, "/api/v1/devices/nobody/state", http.StatusNotFound)
}

func TestAPI_DeviceCommand(t *testing.T) {
	fx := newAPIFixture(t)
	fake := newFakeDevice(t)
	id := fx.addReadyDevice(t, fake, "Theater")

	resp, body := fx.postJSON(t, "/api/v1/devices/"+id+"/command", map[string]interface{}{
		"type":   "intent",
		"action": "powerOn",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["cached"])
	assert.Contains(t, fake.operations(), protocol.OpPowerOn)
}

func TestAPI_NonceReplaysCachedResponse(t *testing.T) {
	fx := newAPIFixture(t)
	fake := newFakeDevice(t)
	id := fx.addReadyDevice(t, fake, "Theater")

	payload := map[string]interface{}{
		"nonce":  "retry-nonce-01",
		"type":   "remote",
		"action": "menu",
	}

	resp, body := fx.postJSON(t, "/api/v1/devices/"+id+"/command", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["cached"])

	// The retry must not press the button again.
	resp, body = fx.postJSON(t, "/api/v1/devices/"+id+"/command", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["cached"])

	var presses int
	for _, op := range fake.operations() {
		if op == protocol.RemoteMenu {
			presses++
		}
	}
	assert.Equal(t, 1, presses)
}

func TestAPI_InvalidNonceRejected(t *testing.T) {
	fx := newAPIFixture(t)
	fake := newFakeDevice(t)
	id := fx.addReadyDevice(t, fake, "Theater")

	resp, _ := fx.postJSON(t, "/api/v1/devices/"+id+"/command", map[string]interface{}{
		"nonce":  "no spaces allowed",
		"type":   "remote",
		"action": "menu",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_CommandToUnreachableDevice(t *testing.T) {
	fx := newAPIFixture(t)
	id, err := fx.manager.AddDevice(deadEndpoint(t), "Dead")
	require.NoError(t, err)

	resp, _ := fx.postJSON(t, "/api/v1/devices/"+id+"/command", map[string]interface{}{
		"type":   "intent",
		"action": "powerOn",
	})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestAPI_AddAndRemoveDevice(t *testing.T) {
	fx := newAPIFixture(t)
	endpoint := deadEndpoint(t)

	resp, body := fx.postJSON(t, "/api/v1/devices", map[string]interface{}{
		"name":    "Bedroom",
		"address": endpoint.Host,
		"port":    endpoint.Port,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["session_id"].(string)
	require.NotEmpty(t, id)

	// Same address again conflicts.
	resp, _ = fx.postJSON(t, "/api/v1/devices", map[string]interface{}{
		"name":    "Bedroom",
		"address": endpoint.Host,
		"port":    endpoint.Port,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, fx.server.URL+"/api/v1/devices/"+id, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	assert.Empty(t, fx.manager.Devices())
}

func TestAPI_DeviceHistory(t *testing.T) {
	fx := newAPIFixture(t)

	state := projector.AttributeState{Power: projector.PowerOn, Input: "HDMI1", LastUpdated: time.Now().UTC()}
	require.NoError(t, fx.store.Record("dev-1", "Theater", state))

	body := fx.getJSON(t, "/api/v1/devices/dev-1/history", http.StatusOK)
	entries := body["entries"].([]interface{})
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]interface{})
	assert.Equal(t, "ON", entry["power"])
}

func TestAPI_HistoryDisabled(t *testing.T) {
	manager := newTestManager()
	t.Cleanup(manager.Shutdown)
	nonceCache := NewNonceCache(10, time.Minute)
	t.Cleanup(nonceCache.Shutdown)

	api := NewAPIServer(manager, nonceCache, nil)
	server := httptest.NewServer(api.router())
	t.Cleanup(server.Close)

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/devices/dev-1/history", server.URL))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
