// Package mock implements a software-only AV device: no outbound I/O, just
// a DeviceDriver that accepts power/volume/input commands and reports
// success. It is the reference driver for tests and local development
// against the gateway without real AV hardware on the bench.
package mock

import (
	"context"
	"fmt"

	"github.com/rustyeddy/otto/device"
	"github.com/rustyeddy/otto/manager"
)

func init() {
	manager.Register("Mock", New)
}

// Device is a mock AV device: it answers every registered command
// immediately and successfully, updating its reported state accordingly.
type Device struct {
	*device.BaseDevice
}

// New builds a mock Device and wires handlers for every command in cfg, so
// a config file can exercise arbitrary command names without a real driver
// behind them.
func New(cfg device.Config, deps manager.Deps) (device.DeviceDriver, error) {
	d := &Device{BaseDevice: device.NewBaseDevice(cfg, deps.Bus, deps.SSE, deps.Log)}

	for name, def := range cfg.Commands {
		d.RegisterHandler(name, d.handlerFor(def))
	}
	return d, nil
}

func (d *Device) handlerFor(def device.CommandDef) device.HandlerFunc {
	return func(ctx context.Context, params map[string]any) device.CommandResult {
		if err := d.Send(ctx, def.Action, params); err != nil {
			return device.CommandResult{Success: false, Error: err.Error()}
		}
		return device.CommandResult{Success: true, Data: dataFor(def.Action, params)}
	}
}

// dataFor maps a handful of well-known action names onto the state fields
// the scenario engine and WB controls expect (power, input_source);
// anything else, volume commands included, is echoed back verbatim under
// its param names.
func dataFor(action string, params map[string]any) map[string]any {
	switch action {
	case "power_on", "turn_on", "on":
		return map[string]any{"power": "on"}
	case "power_off", "turn_off", "off":
		return map[string]any{"power": "off"}
	case "set_input":
		return map[string]any{"input_source": params["input"]}
	default:
		out := make(map[string]any, len(params))
		for k, v := range params {
			out[k] = v
		}
		return out
	}
}

// Send is the mock's outbound I/O: there is none, so it always succeeds.
func (d *Device) Send(ctx context.Context, command string, params map[string]any) error {
	_ = ctx
	if command == "" {
		return fmt.Errorf("mock: empty command")
	}
	return nil
}
