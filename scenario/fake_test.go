package scenario

import (
	"context"

	"github.com/rustyeddy/otto/bus"
	"github.com/rustyeddy/otto/device"
)

// fakeProvider is a minimal DeviceProvider/RoomLookup backed by in-memory
// BaseDevices, used across this package's tests.
type fakeProvider struct {
	devices map[string]*device.BaseDevice
	rooms   map[string][]string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{devices: make(map[string]*device.BaseDevice), rooms: make(map[string][]string)}
}

func (p *fakeProvider) add(id string, commands map[string]device.CommandDef, handlers map[string]device.HandlerFunc) *device.BaseDevice {
	cfg := device.Config{DeviceID: id, DeviceName: id, Virtual: true, Commands: commands}
	d := device.NewBaseDevice(cfg, bus.NewFake(), nil, nil)
	for name, h := range handlers {
		d.RegisterHandler(name, h)
	}
	p.devices[id] = d
	return d
}

func (p *fakeProvider) Device(id string) (device.DeviceDriver, bool) {
	d, ok := p.devices[id]
	return d, ok
}

func (p *fakeProvider) PerformAction(ctx context.Context, deviceID, action string, params map[string]any) (device.CommandResponse, error) {
	d, ok := p.devices[deviceID]
	if !ok {
		return device.CommandResponse{}, errNoSuchDevice(deviceID)
	}
	return d.ExecuteAction(ctx, action, params, "scenario"), nil
}

func (p *fakeProvider) DevicesInRoom(roomID string) ([]string, bool) {
	members, ok := p.rooms[roomID]
	return members, ok
}

type noSuchDeviceError string

func (e noSuchDeviceError) Error() string { return "no such device: " + string(e) }

func errNoSuchDevice(id string) error { return noSuchDeviceError(id) }

func alwaysOn(ctx context.Context, params map[string]any) device.CommandResult {
	return device.CommandResult{Success: true, Data: map[string]any{"power": "on"}}
}

func alwaysOff(ctx context.Context, params map[string]any) device.CommandResult {
	return device.CommandResult{Success: true, Data: map[string]any{"power": "off"}}
}
