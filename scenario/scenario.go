package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/rustyeddy/otto/device"
)

// DeviceProvider is the narrow view of the Device Manager a Scenario
// needs: looking up a driver by id and invoking commands on it. Scenario
// depends on this interface, never on package manager directly, so the
// two packages don't import each other.
type DeviceProvider interface {
	Device(id string) (device.DeviceDriver, bool)
	PerformAction(ctx context.Context, deviceID, action string, params map[string]any) (device.CommandResponse, error)
}

// RoomLookup is the narrow view of the Room Manager Validate needs.
type RoomLookup interface {
	DevicesInRoom(roomID string) ([]string, bool)
}

// powerCommandPattern matches the power-command names that get skipped on
// shared devices during a graceful scenario transition.
var powerCommandPattern = regexp.MustCompile(`(?i)^(power_on|power_off|turn_on|turn_off|on|off|standby|wake|power_toggle|power[_-]cycle)$`)

// Scenario is an immutable view of a Definition plus a handle to the
// Device Manager (via DeviceProvider).
type Scenario struct {
	Definition Definition
	devices    DeviceProvider
	log        *slog.Logger
}

func New(def Definition, devices DeviceProvider, log *slog.Logger) *Scenario {
	if log == nil {
		log = slog.Default()
	}
	return &Scenario{Definition: def, devices: devices, log: log}
}

func (s *Scenario) ID() string { return s.Definition.ScenarioID }

// ExecuteRoleAction resolves role to its device and invokes command on it.
func (s *Scenario) ExecuteRoleAction(ctx context.Context, role, command string, params map[string]any) (device.CommandResponse, error) {
	deviceID, ok := s.Definition.Roles[role]
	if !ok {
		return device.CommandResponse{}, &Error{Kind: KindInvalidRole, Role: role}
	}
	if _, known := s.devices.Device(deviceID); !known {
		return device.CommandResponse{}, &Error{Kind: KindMissingDevice, Role: role}
	}

	resp, err := s.devices.PerformAction(ctx, deviceID, command, params)
	if err != nil {
		return device.CommandResponse{}, &ExecutionError{Role: role, DeviceID: deviceID, Command: command, Err: err}
	}
	return resp, nil
}

// ExecuteStartupSequence runs the scenario's startup steps in order,
// best-effort: individual step failures are logged and do not halt the
// sequence.
func (s *Scenario) ExecuteStartupSequence(ctx context.Context, skipPowerForDevices []string) {
	s.runSequence(ctx, s.Definition.StartupSequence, skipPowerForDevices)
}

// ExecuteShutdownSequence runs the scenario's shutdown steps in order,
// with no power-skip list.
func (s *Scenario) ExecuteShutdownSequence(ctx context.Context) {
	s.runSequence(ctx, s.Definition.ShutdownSequence, nil)
}

func (s *Scenario) runSequence(ctx context.Context, steps []CommandStep, skipPowerFor []string) {
	skip := make(map[string]bool, len(skipPowerFor))
	for _, id := range skipPowerFor {
		skip[id] = true
	}

	for _, step := range steps {
		drv, known := s.devices.Device(step.Device)
		if !known {
			s.log.Warn("scenario: sequence step targets unknown device, skipping", "device", step.Device)
			continue
		}

		if skip[step.Device] && powerCommandPattern.MatchString(step.Command) {
			continue
		}

		if !evaluateCondition(s.log, step.Condition, drv.CurrentState()) {
			continue
		}

		if _, err := s.devices.PerformAction(ctx, step.Device, step.Command, step.Params); err != nil {
			s.log.Warn("scenario: sequence step failed, continuing", "device", step.Device, "command", step.Command, "error", err)
		}

		if step.DelayAfterMs > 0 {
			time.Sleep(time.Duration(step.DelayAfterMs) * time.Millisecond)
		}
	}
}

// Validate returns every referential error in the definition: unknown
// devices in devices/roles/steps, room-membership violations, and steps
// naming commands the target device doesn't have.
func (s *Scenario) Validate(rooms RoomLookup) []error {
	var errs []error
	known := make(map[string]bool, len(s.Definition.Devices))
	for _, id := range s.Definition.Devices {
		known[id] = true
	}

	for role, id := range s.Definition.Roles {
		if !known[id] {
			errs = append(errs, fmt.Errorf("role %q references unknown device %q", role, id))
		}
	}

	for _, step := range append(append([]CommandStep{}, s.Definition.StartupSequence...), s.Definition.ShutdownSequence...) {
		if !known[step.Device] {
			errs = append(errs, fmt.Errorf("step references unknown device %q", step.Device))
			continue
		}
		if drv, ok := s.devices.Device(step.Device); ok {
			if _, hasCmd := drv.AvailableCommands()[step.Command]; !hasCmd {
				errs = append(errs, fmt.Errorf("step references unknown command %q on device %q", step.Command, step.Device))
			}
		}
	}

	if s.Definition.RoomID != "" && rooms != nil {
		members, ok := rooms.DevicesInRoom(s.Definition.RoomID)
		if !ok {
			errs = append(errs, fmt.Errorf("room %q not found", s.Definition.RoomID))
		} else {
			memberSet := make(map[string]bool, len(members))
			for _, id := range members {
				memberSet[id] = true
			}
			for _, id := range s.Definition.Devices {
				if !memberSet[id] {
					errs = append(errs, fmt.Errorf("device %q is not a member of room %q", id, s.Definition.RoomID))
				}
			}
		}
	}

	return errs
}

// ComputeState recomputes the scenario's ScenarioState from its member
// devices' current states.
func (s *Scenario) ComputeState() State {
	out := State{ScenarioID: s.Definition.ScenarioID, Devices: make(map[string]DeviceState, len(s.Definition.Devices))}
	for _, id := range s.Definition.Devices {
		drv, ok := s.devices.Device(id)
		if !ok {
			continue
		}
		st := drv.CurrentState()
		ds := DeviceState{Power: st.Power, Extra: st.Extra}
		if v, ok := st.Extra["input_source"]; ok {
			if s, ok := v.(string); ok {
				ds.Input = s
			}
		}
		out.Devices[id] = ds
	}
	return out
}

// setDiff returns a \ b.
func setDiff(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, id := range b {
		inB[id] = true
	}
	var out []string
	for _, id := range a {
		if !inB[id] {
			out = append(out, id)
		}
	}
	return out
}

// setIntersect returns a ∩ b.
func setIntersect(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, id := range b {
		inB[id] = true
	}
	var out []string
	for _, id := range a {
		if inB[id] {
			out = append(out, id)
		}
	}
	return out
}

// normalizeRoleCommand splits a synthesized "{role}_{command}" wb control
// name back into its parts, used by the wb adapter.
func normalizeRoleCommand(control string, roles map[string]string) (role, command string, ok bool) {
	for r := range roles {
		prefix := r + "_"
		if strings.HasPrefix(control, prefix) {
			return r, strings.TrimPrefix(control, prefix), true
		}
	}
	return "", "", false
}
