package irblaster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/otto/bus"
	"github.com/rustyeddy/otto/device"
	"github.com/rustyeddy/otto/manager"
	"github.com/rustyeddy/otto/sse"
)

type fakeLine struct {
	values []int
	closed bool
}

func (f *fakeLine) SetValue(v int) error {
	f.values = append(f.values, v)
	return nil
}

func (f *fakeLine) Close() error {
	f.closed = true
	return nil
}

func newTestDevice(t *testing.T) (*Device, *fakeLine) {
	t.Helper()
	line := &fakeLine{}
	cfg := device.Config{
		DeviceID: "ir1", DeviceName: "Living Room IR", Virtual: true,
		Commands: map[string]device.CommandDef{
			"power": {Action: "power", Group: "power", Params: []device.ParamDef{
				{Name: "rom_position", Type: device.ParamInteger, ROMPosition: 3},
			}},
		},
	}
	d := newWithLine(cfg, manager.Deps{Bus: bus.NewFake(), SSE: sse.New(nil)}, ClassConfig{PulseWidthUs: 1}, line)
	return d, line
}

func TestIRBlaster_Send_PulsesLineRomPositionTimes(t *testing.T) {
	d, line := newTestDevice(t)
	require.NoError(t, d.Send(context.Background(), "power", map[string]any{"rom_position": float64(3)}))
	assert.Equal(t, []int{1, 0, 1, 0, 1, 0}, line.values)
}

func TestIRBlaster_Send_DefaultsToOnePulse(t *testing.T) {
	d, line := newTestDevice(t)
	require.NoError(t, d.Send(context.Background(), "power", nil))
	assert.Equal(t, []int{1, 0}, line.values)
}

func TestIRBlaster_ExecuteAction_Success(t *testing.T) {
	d, _ := newTestDevice(t)
	resp := d.ExecuteAction(context.Background(), "power", map[string]any{"rom_position": float64(1)}, "test")
	assert.True(t, resp.Success)
}

func TestIRBlaster_Shutdown_ClosesLine(t *testing.T) {
	d, line := newTestDevice(t)
	require.NoError(t, d.Shutdown(context.Background()))
	assert.True(t, line.closed)
}

// TestIRBlaster_RegisteredInManagerRegistry confirms New is reachable
// through the registry under "IR"; it errors here only because there is no
// real GPIO chip on the test host, not because registration failed.
func TestIRBlaster_RegisteredInManagerRegistry(t *testing.T) {
	drv, err := manager.Build("IR", device.Config{DeviceID: "nope", Commands: map[string]device.CommandDef{}}, manager.Deps{Bus: bus.NewFake(), SSE: sse.New(nil)})
	assert.Error(t, err)
	assert.Nil(t, drv)
}
