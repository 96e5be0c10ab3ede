package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/otto/bus"
	"github.com/rustyeddy/otto/config"
	"github.com/rustyeddy/otto/device"
	"github.com/rustyeddy/otto/manager"
	"github.com/rustyeddy/otto/scenario"
	"github.com/rustyeddy/otto/sse"
	"github.com/rustyeddy/otto/store"
)

func newTestServer(t *testing.T) (*Server, *manager.Manager, *scenario.Manager) {
	t.Helper()
	ctx := context.Background()

	fb := bus.NewFake()
	require.NoError(t, fb.Connect(ctx))

	st, err := store.NewSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, st.Initialize(ctx))

	sseMgr := sse.New(nil)
	mgr := manager.New(fb, st, sseMgr, nil, nil)

	cfg := device.Config{
		DeviceID: "tv1", DeviceName: "Living Room TV", Virtual: true,
		Commands: map[string]device.CommandDef{
			"power_on": {Action: "power_on", Group: "power"},
		},
	}
	drv := device.NewBaseDevice(cfg, fb, sseMgr, nil)
	drv.RegisterHandler("power_on", func(ctx context.Context, params map[string]any) device.CommandResult {
		return device.CommandResult{Success: true, Data: map[string]any{"power": "on"}}
	})
	mgr.RegisterDevice(drv)
	require.NoError(t, mgr.SetupAll(ctx))

	scMgr := scenario.NewManager(mgr, config.Rooms{}, st, sseMgr, nil)
	def := scenario.Definition{ScenarioID: "reading", Name: "Reading", Devices: []string{"tv1"}}
	require.Empty(t, scMgr.LoadDefinitions([]scenario.Definition{def}))

	rooms := config.Rooms{
		"living_room": {RoomID: "living_room", Names: map[string]string{"en": "Living Room"}, Devices: []string{"tv1"}},
	}

	srv := New(Deps{
		Manager: mgr, Scenarios: scMgr, Store: st, SSE: sseMgr, Bus: fb,
		Rooms: rooms, Version: "test",
	})
	return srv, mgr, scMgr
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestServer_System(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/system", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "test", body["version"])
	assert.Contains(t, body, "mqtt_broker")
	assert.ElementsMatch(t, []any{"tv1"}, body["devices"])
	assert.ElementsMatch(t, []any{"reading"}, body["scenarios"])
	assert.ElementsMatch(t, []any{"living_room"}, body["rooms"])
}

func TestServer_DeviceAction(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/devices/tv1/action", map[string]any{"action": "power_on"})
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp device.CommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestServer_DeviceAction_UnknownDevice(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/devices/nope/action", map[string]any{"action": "power_on"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_DeviceAction_MissingAction(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/devices/tv1/action", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_DeviceState(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/devices/tv1/state", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var st device.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "tv1", st.DeviceID)
}

func TestServer_DevicePersistedState_NotFoundInitially(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/devices/tv1/persisted_state", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_DeviceConfig(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/config/device/tv1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ScenarioLifecycle(t *testing.T) {
	srv, _, scMgr := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/scenario/state", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/scenario/start", map[string]any{"id": "reading"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reading", scMgr.Current())

	rec = doRequest(t, srv, http.MethodPost, "/scenario/start", map[string]any{"id": "reading"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/scenario/state", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/scenario/shutdown", map[string]any{"id": "nope"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/scenario/shutdown", map[string]any{"id": "reading"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ScenarioDefinitions(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/scenario/definition", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/scenario/definition/reading", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/scenario/definition/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_VirtualConfig_NoAdapterRegistered(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/scenario/virtual_config/reading", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RoomList(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/room/list", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/room/living_room", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/room/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Publish(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/publish", map[string]any{"topic": "/test", "payload": "hi"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/publish", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_EventStats(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/events/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var stats sse.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Contains(t, stats.Subscribers, sse.ChannelDevices)
}
