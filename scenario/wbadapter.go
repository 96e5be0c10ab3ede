package scenario

import (
	"context"
	"log/slog"

	"github.com/rustyeddy/otto/bus"
	"github.com/rustyeddy/otto/device"
	"github.com/rustyeddy/otto/sse"
)

// roleGroups maps a scenario role name to the command groups inherited
// from that role's target device when synthesizing the WB adapter's
// virtual command table (spec §4.I).
var roleGroups = map[string][]string{
	"playback": {"playback"},
	"volume":   {"volume"},
	"menu":     {"menu", "navigation"},
	"display":  {"screen", "display"},
}

// structuralRoles never contribute synthesized commands (e.g. "inputs",
// which only exists to name the input-switching device, not to expose
// its whole command surface on the scenario).
var structuralRoles = map[string]bool{"inputs": true}

// WBAdapter projects a scenario as a synthetic WB virtual device using
// the same publication machinery as a concrete device (device.BaseDevice).
// One adapter exists per defined scenario so every scenario is visible on
// the bus, but only the adapter matching the manager's current scenario
// actually executes commands; the rest log and ignore.
type WBAdapter struct {
	*device.BaseDevice

	scenario *Scenario
	manager  *Manager
	log      *slog.Logger
}

// NewWBAdapter builds the adapter for def, synthesizing its WB command
// table from the scenario's roles and the role-to-group inheritance
// table.
func NewWBAdapter(sc *Scenario, mgr *Manager, devices DeviceProvider, b bus.Bus, sseMgr *sse.Manager, log *slog.Logger) *WBAdapter {
	if log == nil {
		log = slog.Default()
	}

	commands := map[string]device.CommandDef{
		"startup":  {Action: "startup", Group: "power", Description: "run the scenario's startup sequence"},
		"shutdown": {Action: "shutdown", Group: "power", Description: "run the scenario's shutdown sequence"},
	}

	for role, deviceID := range sc.Definition.Roles {
		if structuralRoles[role] {
			continue
		}
		groups, mapped := roleGroups[role]
		if !mapped {
			continue
		}
		drv, ok := devices.Device(deviceID)
		if !ok {
			continue
		}
		wantGroup := make(map[string]bool, len(groups))
		for _, g := range groups {
			wantGroup[g] = true
		}
		for name, def := range drv.AvailableCommands() {
			if !wantGroup[def.Group] {
				continue
			}
			virtualName := role + "_" + name
			commands[virtualName] = device.CommandDef{
				Action: virtualName, Group: def.Group, Description: def.Description, Params: def.Params,
			}
		}
	}

	cfg := device.Config{
		DeviceID: sc.Definition.ScenarioID, DeviceName: sc.Definition.Name,
		DeviceClass: "Scenario", Virtual: true, Commands: commands,
	}

	a := &WBAdapter{
		BaseDevice: device.NewBaseDevice(cfg, b, sseMgr, log),
		scenario:   sc, manager: mgr, log: log,
	}

	a.RegisterHandler("startup", a.handleStartup)
	a.RegisterHandler("shutdown", a.handleShutdown)
	for name := range commands {
		if name == "startup" || name == "shutdown" {
			continue
		}
		a.RegisterHandler(name, a.handleRoleCommand(name))
	}

	return a
}

func (a *WBAdapter) isActive() bool {
	return a.manager.Current() == a.scenario.ID()
}

func (a *WBAdapter) handleStartup(ctx context.Context, params map[string]any) device.CommandResult {
	if !a.isActive() {
		a.log.Debug("scenario wb adapter: ignoring startup on inactive scenario", "scenario_id", a.scenario.ID())
		return device.CommandResult{Success: true}
	}
	a.scenario.ExecuteStartupSequence(ctx, nil)
	return device.CommandResult{Success: true, Data: map[string]any{"power": "on"}}
}

func (a *WBAdapter) handleShutdown(ctx context.Context, params map[string]any) device.CommandResult {
	if !a.isActive() {
		a.log.Debug("scenario wb adapter: ignoring shutdown on inactive scenario", "scenario_id", a.scenario.ID())
		return device.CommandResult{Success: true}
	}
	a.scenario.ExecuteShutdownSequence(ctx)
	return device.CommandResult{Success: true, Data: map[string]any{"power": "off"}}
}

func (a *WBAdapter) handleRoleCommand(virtualName string) device.HandlerFunc {
	return func(ctx context.Context, params map[string]any) device.CommandResult {
		if !a.isActive() {
			a.log.Debug("scenario wb adapter: ignoring role command on inactive scenario", "scenario_id", a.scenario.ID(), "control", virtualName)
			return device.CommandResult{Success: true}
		}

		role, command, ok := normalizeRoleCommand(virtualName, a.scenario.Definition.Roles)
		if !ok {
			return device.CommandResult{Success: false, Error: "unrecognised role command"}
		}

		resp, err := a.manager.ExecuteRoleAction(ctx, role, command, params)
		if err != nil {
			return device.CommandResult{Success: false, Error: err.Error()}
		}
		if cr, ok := resp.(device.CommandResponse); ok {
			return cr.CommandResult
		}
		return device.CommandResult{Success: true}
	}
}
