package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/otto/bus"
	"github.com/rustyeddy/otto/device"
	"github.com/rustyeddy/otto/maintenance"
	"github.com/rustyeddy/otto/sse"
	"github.com/rustyeddy/otto/store"
)

func newTestManager(t *testing.T) (*Manager, *bus.Fake, *store.SQLiteStore) {
	t.Helper()
	fb := bus.NewFake()
	require.NoError(t, fb.Connect(context.Background()))

	st, err := store.NewSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, st.Initialize(context.Background()))

	mgr := New(fb, st, sse.New(nil), nil, nil)
	return mgr, fb, st
}

func newTestDriver(id string, bus bus.Bus, sseMgr *sse.Manager) *device.BaseDevice {
	cfg := device.Config{
		DeviceID: id, DeviceName: id, Virtual: true,
		Commands: map[string]device.CommandDef{
			"power_on": {Action: "power_on", Group: "power"},
		},
	}
	d := device.NewBaseDevice(cfg, bus, sseMgr, nil)
	d.RegisterHandler("power_on", func(ctx context.Context, params map[string]any) device.CommandResult {
		return device.CommandResult{Success: true, Data: map[string]any{"power": "on"}}
	})
	return d
}

func TestManager_PerformAction_PersistsState(t *testing.T) {
	ctx := context.Background()
	mgr, _, st := newTestManager(t)

	drv := newTestDriver("tv1", mgr.bus, mgr.sse)
	mgr.RegisterDevice(drv)
	require.NoError(t, mgr.SetupAll(ctx))

	resp, err := mgr.PerformAction(ctx, "tv1", "power_on", nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	mgr.WaitForPersistenceTasks(time.Second)
	_, found := st.Load(ctx, store.DeviceKey("tv1"))
	assert.True(t, found)
}

func TestManager_PerformAction_UnknownDevice(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	_, err := mgr.PerformAction(context.Background(), "nope", "power_on", nil)
	assert.Error(t, err)
}

func TestManager_HandleInbound_RoutesToDevice(t *testing.T) {
	ctx := context.Background()
	mgr, fb, _ := newTestManager(t)

	drv := newTestDriver("tv1", mgr.bus, mgr.sse)
	mgr.RegisterDevice(drv)
	require.NoError(t, mgr.SetupAll(ctx))

	mgr.HandleInbound("/devices/tv1/controls/power_on/on", nil)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "on", drv.CurrentState().Power)
	_ = fb
}

func TestManager_HandleInbound_AppliesMetaOutsideMaintenanceWindow(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)

	drv := newTestDriver("tv1", mgr.bus, mgr.sse)
	mgr.RegisterDevice(drv)
	require.NoError(t, mgr.SetupAll(ctx))

	mgr.HandleInbound("/devices/tv1/meta/error", []byte("offline"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "offline", drv.CurrentState().Error)
}

func TestManager_HandleInbound_SuppressesMetaDuringMaintenanceWindow(t *testing.T) {
	ctx := context.Background()
	fb := bus.NewFake()
	require.NoError(t, fb.Connect(ctx))

	st, err := store.NewSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, st.Initialize(ctx))

	guard := maintenance.New(maintenance.Config{
		Topics:   []string{"/devices/wbrules/meta/online"},
		Duration: 3 * time.Second,
	})
	mgr := New(fb, st, sse.New(nil), guard, nil)

	drv := newTestDriver("tv1", mgr.bus, mgr.sse)
	mgr.RegisterDevice(drv)
	require.NoError(t, mgr.SetupAll(ctx))

	// Sentinel arms the guard; the retained "offline" that follows within
	// the window must be suppressed rather than applied to tv1's state.
	mgr.HandleInbound("/devices/wbrules/meta/online", []byte("1"))
	mgr.HandleInbound("/devices/tv1/meta/error", []byte("offline"))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, drv.CurrentState().Error)
}

func TestManager_Shutdown_Order(t *testing.T) {
	ctx := context.Background()
	mgr, fb, st := newTestManager(t)

	drv := newTestDriver("tv1", mgr.bus, mgr.sse)
	mgr.RegisterDevice(drv)
	require.NoError(t, mgr.SetupAll(ctx))
	_, err := mgr.PerformAction(ctx, "tv1", "power_on", nil)
	require.NoError(t, err)

	require.NoError(t, mgr.Shutdown(ctx))

	var sawOffline bool
	for _, p := range fb.Published {
		if p.Topic == "/devices/tv1/meta/available" && string(p.Payload) == "0" {
			sawOffline = true
		}
	}
	assert.True(t, sawOffline)
	_ = st
}
