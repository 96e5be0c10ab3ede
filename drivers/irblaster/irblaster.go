// Package irblaster implements the one physical reference DeviceDriver the
// data model names explicitly enough to build in full: an IR blaster that
// drives a single GPIO line to transmit a learned remote code, addressed by
// its rom_position.
package irblaster

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/rustyeddy/otto/device"
	"github.com/rustyeddy/otto/manager"
)

func init() {
	manager.Register("IR", New)
}

// ClassConfig is the IR-specific block of a device config file's "config"
// object: which GPIO chip/line drives the LED and the pulse width used to
// key the carrier burst.
type ClassConfig struct {
	Chip         string `json:"chip"`
	Line         int    `json:"line"`
	PulseWidthUs int    `json:"pulse_width_us"`
}

// Device drives chip/line to transmit IR codes. The learned carrier
// waveform for a given remote is outside this gateway's scope (spec §1
// treats device wire protocols as external collaborators specified only at
// the DeviceDriver boundary); Send keys the line with a burst count
// derived from the command's rom_position so the line state is observable
// and testable without real IR hardware on the bench.
type Device struct {
	*device.BaseDevice

	cfg  ClassConfig
	line gpiocdevLine
}

// gpiocdevLine is the narrow view of *gpiocdev.Line this driver needs,
// letting tests substitute a fake line instead of requesting a real kernel
// GPIO character device.
type gpiocdevLine interface {
	SetValue(value int) error
	Close() error
}

func New(cfg device.Config, deps manager.Deps) (device.DeviceDriver, error) {
	var class ClassConfig
	if len(cfg.Class) > 0 {
		if err := json.Unmarshal(cfg.Class, &class); err != nil {
			return nil, fmt.Errorf("irblaster: parse class config: %w", err)
		}
	}
	if class.PulseWidthUs <= 0 {
		class.PulseWidthUs = 500
	}

	line, err := gpiocdev.RequestLine(class.Chip, class.Line, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("otto-irblaster"))
	if err != nil {
		return nil, fmt.Errorf("irblaster: request gpio line %s:%d: %w", class.Chip, class.Line, err)
	}
	return newWithLine(cfg, deps, class, line), nil
}

// newWithLine builds the Device around an already-acquired line, letting
// tests substitute a fake line instead of requesting a real kernel GPIO
// character device.
func newWithLine(cfg device.Config, deps manager.Deps, class ClassConfig, line gpiocdevLine) *Device {
	d := &Device{
		BaseDevice: device.NewBaseDevice(cfg, deps.Bus, deps.SSE, deps.Log),
		cfg:        class,
		line:       line,
	}

	for name, def := range cfg.Commands {
		d.RegisterHandler(name, d.handlerFor(def))
	}
	return d
}

func (d *Device) handlerFor(def device.CommandDef) device.HandlerFunc {
	return func(ctx context.Context, params map[string]any) device.CommandResult {
		if err := d.Send(ctx, def.Action, params); err != nil {
			return device.CommandResult{Success: false, Error: err.Error()}
		}
		return device.CommandResult{Success: true, Data: map[string]any{"last_command": def.Action}}
	}
}

// Send keys the GPIO line in a burst pattern sized by the rom_position
// value in params (1 pulse when params carry no positive rom_position; the
// command definition's ROMPosition field is not read), at
// cfg.PulseWidthUs per pulse.
func (d *Device) Send(ctx context.Context, command string, params map[string]any) error {
	bursts := romBursts(command, params)
	pulse := time.Duration(d.cfg.PulseWidthUs) * time.Microsecond

	for i := 0; i < bursts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := d.line.SetValue(1); err != nil {
			return fmt.Errorf("irblaster: set line high: %w", err)
		}
		time.Sleep(pulse)
		if err := d.line.SetValue(0); err != nil {
			return fmt.Errorf("irblaster: set line low: %w", err)
		}
		time.Sleep(pulse)
	}
	return nil
}

// Shutdown releases the GPIO line in addition to the base WB offline
// publication.
func (d *Device) Shutdown(ctx context.Context) error {
	if err := d.BaseDevice.Shutdown(ctx); err != nil {
		return err
	}
	return d.line.Close()
}

func romBursts(command string, params map[string]any) int {
	if v, ok := params["rom_position"]; ok {
		if f, ok := v.(float64); ok && f > 0 {
			return int(f)
		}
	}
	if command == "" {
		return 1
	}
	return 1
}
