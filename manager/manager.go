package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rustyeddy/otto/bus"
	"github.com/rustyeddy/otto/device"
	"github.com/rustyeddy/otto/maintenance"
	"github.com/rustyeddy/otto/sse"
	"github.com/rustyeddy/otto/store"
	"github.com/rustyeddy/otto/wbproto"
)

// Deps bundles the collaborators a device constructor needs, so concrete
// drivers never import manager directly.
type Deps struct {
	Bus bus.Bus
	SSE *sse.Manager
	Log *slog.Logger
}

// mutationHook is implemented by device.BaseDevice (via its promoted
// SetOnMutate method); devices that don't embed it simply never get a
// persistence callback wired in.
type mutationHook interface {
	SetOnMutate(func(deviceID string, state device.State))
}

// queuedWork is one unit of serialized per-device work: invoke fn and
// deliver its result on done.
type queuedWork struct {
	fn   func() device.CommandResponse
	done chan device.CommandResponse
}

// Manager is the Device Manager (spec component F).
type Manager struct {
	bus   bus.Bus
	store store.Store
	sse   *sse.Manager
	guard *maintenance.Guard
	log   *slog.Logger

	mu      sync.RWMutex
	devices map[string]device.DeviceDriver
	queues  map[string]chan queuedWork

	shuttingDown atomic.Bool
	persistWG    sync.WaitGroup
}

func New(b bus.Bus, st store.Store, sseMgr *sse.Manager, guard *maintenance.Guard, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		bus: b, store: st, sse: sseMgr, guard: guard, log: log,
		devices: make(map[string]device.DeviceDriver),
		queues:  make(map[string]chan queuedWork),
	}
}

// Deps returns the collaborator bundle device constructors should receive.
func (m *Manager) Deps() Deps {
	return Deps{Bus: m.bus, SSE: m.sse, Log: m.log}
}

// RegisterDevice adds drv to the registry, installs its persistence
// callback, and starts its per-device FIFO worker.
func (m *Manager) RegisterDevice(drv device.DeviceDriver) {
	if hook, ok := drv.(mutationHook); ok {
		hook.SetOnMutate(m.schedulePersist)
	}

	m.mu.Lock()
	m.devices[drv.ID()] = drv
	q := make(chan queuedWork, 32)
	m.queues[drv.ID()] = q
	m.mu.Unlock()

	go m.runWorker(drv.ID(), q)
}

func (m *Manager) runWorker(deviceID string, q chan queuedWork) {
	for work := range q {
		work.done <- work.fn()
	}
}

// Device returns the registered driver for id, if any.
func (m *Manager) Device(id string) (device.DeviceDriver, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	return d, ok
}

// DeviceIDs returns every registered device id.
func (m *Manager) DeviceIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.devices))
	for id := range m.devices {
		ids = append(ids, id)
	}
	return ids
}

// SetupAll calls Setup on every registered device.
func (m *Manager) SetupAll(ctx context.Context) error {
	m.mu.RLock()
	devs := make([]device.DeviceDriver, 0, len(m.devices))
	for _, d := range m.devices {
		devs = append(devs, d)
	}
	m.mu.RUnlock()

	for _, d := range devs {
		if err := d.Setup(ctx); err != nil {
			return fmt.Errorf("manager: setup %s: %w", d.ID(), err)
		}
	}
	return nil
}

// Subscriptions builds the aggregated topic->handler map for binding to
// the bus at boot, one entry per registered device's derived topics.
func (m *Manager) Subscriptions() map[string]bus.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make(map[string]bus.Handler)
	for _, d := range m.devices {
		for _, topic := range d.SubscribeTopics() {
			subs[topic] = m.handlerFor(d)
		}
	}
	return subs
}

func (m *Manager) handlerFor(d device.DeviceDriver) bus.Handler {
	return func(msg bus.Message) {
		m.HandleInbound(msg.Topic, msg.Payload)
	}
}

// HandleInbound applies the Maintenance Guard and, if not suppressed,
// routes the message to its owning device's worker queue. Besides command
// topics, this also recognises a device's own meta/available and
// meta/error topics, so that an LWT transition observed during an armed
// maintenance window is suppressed here rather than never being heard at
// all (spec §4.E).
func (m *Manager) HandleInbound(topic string, payload []byte) {
	if m.guard != nil && m.guard.MaintenanceStarted(topic) {
		m.log.Debug("manager: suppressing inbound message during maintenance window", "topic", topic)
		return
	}

	deviceID, _, ok := wbproto.ParseControlSet(topic)
	if !ok {
		deviceID, _, ok = wbproto.ParseMeta(topic)
	}
	if !ok {
		return
	}
	m.mu.RLock()
	drv, known := m.devices[deviceID]
	q := m.queues[deviceID]
	m.mu.RUnlock()
	if !known {
		return
	}

	done := make(chan device.CommandResponse, 1)
	q <- queuedWork{fn: func() device.CommandResponse {
		drv.HandleMessage(topic, payload)
		return device.CommandResponse{}
	}, done: done}
}

// PerformAction is the public entry point for REST-originated commands:
// it enqueues the action on deviceID's FIFO worker and blocks for the
// result.
func (m *Manager) PerformAction(ctx context.Context, deviceID, action string, params map[string]any) (device.CommandResponse, error) {
	m.mu.RLock()
	drv, known := m.devices[deviceID]
	q := m.queues[deviceID]
	m.mu.RUnlock()
	if !known {
		return device.CommandResponse{}, fmt.Errorf("manager: unknown device %q", deviceID)
	}

	done := make(chan device.CommandResponse, 1)
	q <- queuedWork{fn: func() device.CommandResponse {
		return drv.ExecuteAction(ctx, action, params, "rest")
	}, done: done}

	select {
	case resp := <-done:
		return resp, nil
	case <-ctx.Done():
		return device.CommandResponse{}, ctx.Err()
	}
}

// schedulePersist is installed on every device as its post-mutation
// callback. During normal operation it persists asynchronously; once
// PrepareForShutdown has run it persists synchronously inline.
func (m *Manager) schedulePersist(deviceID string, state device.State) {
	if m.shuttingDown.Load() {
		m.persistOne(context.Background(), deviceID, state)
		return
	}

	m.persistWG.Add(1)
	go func() {
		defer m.persistWG.Done()
		m.persistOne(context.Background(), deviceID, state)
	}()
}

func (m *Manager) persistOne(ctx context.Context, deviceID string, state device.State) {
	payload, err := json.Marshal(state)
	if err != nil {
		m.log.Error("manager: marshal state failed", "device", deviceID, "error", err)
		return
	}
	if ok := m.store.Save(ctx, store.DeviceKey(deviceID), payload); !ok {
		m.log.Warn("manager: persist failed", "device", deviceID)
	}
}

// WaitForPersistenceTasks awaits pending async persistence tasks,
// reporting (not cancelling) on timeout.
func (m *Manager) WaitForPersistenceTasks(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		m.persistWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		m.log.Warn("manager: persistence tasks did not complete within timeout", "timeout", timeout)
	}
}

// PersistAllDeviceStates synchronously flushes every device's current
// state, used as the final step before shutdown closes the repository.
func (m *Manager) PersistAllDeviceStates(ctx context.Context) {
	m.mu.RLock()
	devs := make([]device.DeviceDriver, 0, len(m.devices))
	for _, d := range m.devices {
		devs = append(devs, d)
	}
	m.mu.RUnlock()

	for _, d := range devs {
		m.persistOne(ctx, d.ID(), d.CurrentState())
	}
}

// PrepareForShutdown flips the manager into synchronous-persistence mode.
func (m *Manager) PrepareForShutdown() {
	m.shuttingDown.Store(true)
}

// Shutdown runs the hard-required order: prepare for shutdown, shut down
// every device (publishing offline meta), wait for pending persistence,
// flush every device state, then close the repository.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.PrepareForShutdown()

	m.mu.RLock()
	devs := make([]device.DeviceDriver, 0, len(m.devices))
	queues := make([]chan queuedWork, 0, len(m.queues))
	for _, d := range m.devices {
		devs = append(devs, d)
	}
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.mu.RUnlock()

	for _, d := range devs {
		if err := d.Shutdown(ctx); err != nil {
			m.log.Warn("manager: device shutdown failed", "device", d.ID(), "error", err)
		}
	}
	for _, q := range queues {
		close(q)
	}

	m.WaitForPersistenceTasks(2 * time.Second)
	m.PersistAllDeviceStates(ctx)

	if err := m.store.Close(); err != nil {
		return fmt.Errorf("manager: close store: %w", err)
	}
	return nil
}
