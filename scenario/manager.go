package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rustyeddy/otto/bus"
	"github.com/rustyeddy/otto/sse"
	"github.com/rustyeddy/otto/store"
)

// Manager is the Scenario Manager (spec component H): loads scenario
// definitions, switches between them with shared-device analysis, and
// persists the active scenario id.
type Manager struct {
	devices DeviceProvider
	rooms   RoomLookup
	store   store.Store
	sse     *sse.Manager
	log     *slog.Logger

	mu          sync.RWMutex
	definitions map[string]Definition
	scenarios   map[string]*Scenario
	adapters    map[string]*WBAdapter
	current     *Scenario
	state       *State

	// switchMu serializes Switch end-to-end: scenario transitions take an
	// exclusive role against other transitions, one switch at a time.
	switchMu sync.Mutex
}

func NewManager(devices DeviceProvider, rooms RoomLookup, st store.Store, sseMgr *sse.Manager, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		devices: devices, rooms: rooms, store: st, sse: sseMgr, log: log,
		definitions: make(map[string]Definition),
		scenarios:   make(map[string]*Scenario),
		adapters:    make(map[string]*WBAdapter),
	}
}

// RegisterAdapter records the WB adapter synthesized for a loaded
// scenario, so the API surface can expose its virtual command table
// without duplicating the synthesis rules in roleGroups.
func (m *Manager) RegisterAdapter(a *WBAdapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapters[a.scenario.ID()] = a
}

// Adapter returns the registered WB adapter for id, if any.
func (m *Manager) Adapter(id string) (*WBAdapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adapters[id]
	return a, ok
}

// BuildAdapters synthesizes and registers a WBAdapter for every loaded
// scenario, so each is visible on the bus as a virtual WB device in
// addition to being switchable through the REST/CLI surface. Callers
// register the returned adapters with the Device Manager themselves;
// this method only builds and records them here.
func (m *Manager) BuildAdapters(b bus.Bus, sseMgr *sse.Manager) []*WBAdapter {
	m.mu.Lock()
	scenarios := make([]*Scenario, 0, len(m.scenarios))
	for _, sc := range m.scenarios {
		scenarios = append(scenarios, sc)
	}
	m.mu.Unlock()

	adapters := make([]*WBAdapter, 0, len(scenarios))
	for _, sc := range scenarios {
		a := NewWBAdapter(sc, m, m.devices, b, sseMgr, m.log)
		m.RegisterAdapter(a)
		adapters = append(adapters, a)
	}
	return adapters
}

// LoadDefinitions registers every definition, constructing a Scenario for
// each. Callers typically obtain defs from the config package's scenario
// directory loader; validation failures are reported but don't stop the
// rest from loading.
func (m *Manager) LoadDefinitions(defs []Definition) []error {
	var errs []error
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, def := range defs {
		sc := New(def, m.devices, m.log)
		if verrs := sc.Validate(m.rooms); len(verrs) > 0 {
			for _, e := range verrs {
				errs = append(errs, fmt.Errorf("scenario %s: %w", def.ScenarioID, e))
			}
			continue
		}
		m.definitions[def.ScenarioID] = def
		m.scenarios[def.ScenarioID] = sc
	}
	return errs
}

// Initialize restores the previously active scenario (if any) from the
// repository by calling Switch(id, graceful=true) into it.
func (m *Manager) Initialize(ctx context.Context) error {
	raw, found := m.store.Load(ctx, store.ActiveScenarioKey)
	if !found {
		return nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return fmt.Errorf("scenario: parse persisted active_scenario: %w", err)
	}

	m.mu.RLock()
	_, known := m.scenarios[id]
	m.mu.RUnlock()
	if !known {
		m.log.Warn("scenario: persisted active_scenario no longer known, ignoring", "scenario_id", id)
		return nil
	}

	_, err := m.Switch(ctx, id, true)
	return err
}

// Current returns the active scenario's id, or "" if none.
func (m *Manager) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.ID()
}

// Definition returns a loaded scenario's definition.
func (m *Manager) Definition(id string) (Definition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.definitions[id]
	return d, ok
}

// Definitions returns every loaded scenario definition.
func (m *Manager) Definitions() []Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Definition, 0, len(m.definitions))
	for _, d := range m.definitions {
		out = append(out, d)
	}
	return out
}

// Switch implements switch_scenario (spec §4.H). graceful controls whether
// the outgoing scenario is powered off device-by-device (skipping shared
// devices) or runs its full shutdown sequence.
func (m *Manager) Switch(ctx context.Context, targetID string, graceful bool) (SwitchResult, error) {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	target, known := m.scenarios[targetID]
	current := m.current
	m.mu.Unlock()
	if !known {
		return SwitchResult{}, fmt.Errorf("%w: %s", ErrUnknownScenario, targetID)
	}

	if current != nil && current.ID() == targetID {
		return SwitchResult{Success: true}, nil
	}

	var shared []string
	if graceful && current != nil {
		shared = setIntersect(current.Definition.Devices, target.Definition.Devices)
	}

	if current != nil {
		if graceful {
			outgoing := setDiff(current.Definition.Devices, shared)
			for _, id := range outgoing {
				if _, err := m.devices.PerformAction(ctx, id, "power_off", nil); err != nil {
					m.log.Warn("scenario: power_off during switch failed", "device", id, "error", err)
				}
			}
		} else {
			current.ExecuteShutdownSequence(ctx)
		}
	}

	target.ExecuteStartupSequence(ctx, shared)

	newState := target.ComputeState()

	m.mu.Lock()
	m.current = target
	m.state = &newState
	m.mu.Unlock()

	idJSON, _ := json.Marshal(targetID)
	if ok := m.store.Save(ctx, store.ActiveScenarioKey, idJSON); !ok {
		m.log.Warn("scenario: persisting active_scenario failed", "scenario_id", targetID)
	}

	if m.sse != nil {
		m.sse.Broadcast(sse.ChannelScenarios, "scenario_switch", map[string]any{
			"scenario_id": targetID,
			"shared":      shared,
		})
	}

	return SwitchResult{Success: true, SharedDevices: shared}, nil
}

// ExecuteRoleAction delegates to the active scenario.
func (m *Manager) ExecuteRoleAction(ctx context.Context, role, command string, params map[string]any) (any, error) {
	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()
	if current == nil {
		return nil, ErrNoActiveScenario
	}
	return current.ExecuteRoleAction(ctx, role, command, params)
}

// State returns the current scenario's last-computed ScenarioState.
func (m *Manager) State() (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return State{}, false
	}
	return *m.state, true
}

// Shutdown runs the active scenario's shutdown sequence best-effort and
// clears current state.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	current := m.current
	m.current = nil
	m.state = nil
	m.mu.Unlock()

	if current != nil {
		current.ExecuteShutdownSequence(ctx)
	}
}
