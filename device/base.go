package device

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/otto/bus"
	"github.com/rustyeddy/otto/sse"
	"github.com/rustyeddy/otto/wbproto"
)

// BaseDevice implements everything DeviceDriver asks for except Send: WB
// virtual-device publication, state<->control synchronisation, parameter
// validation and the execute-action pipeline. Concrete drivers embed
// *BaseDevice, register their HandlerFuncs, and supply Send.
//
// Devices hold a handle to the bus port and (optionally) to the SSE
// fan-out; they never hold a back-pointer to the Device Manager beyond
// the post-mutation callback installed with SetOnMutate, per spec §9's
// cyclic-reference rule.
type BaseDevice struct {
	cfg Config
	bus bus.Bus
	sse *sse.Manager
	log *slog.Logger

	mu       sync.RWMutex
	state    State
	handlers map[string]HandlerFunc
	onMutate func(deviceID string, state State)

	wbControls map[string]wbproto.ControlMeta // resolved at Setup, keyed by control name
}

// NewBaseDevice builds an unstarted BaseDevice from cfg. bus and sseMgr may
// be nil in tests that don't exercise WB publication or broadcast.
func NewBaseDevice(cfg Config, b bus.Bus, sseMgr *sse.Manager, log *slog.Logger) *BaseDevice {
	if log == nil {
		log = slog.Default()
	}
	return &BaseDevice{
		cfg:      cfg,
		bus:      b,
		sse:      sseMgr,
		log:      log,
		handlers: make(map[string]HandlerFunc),
		state: State{
			DeviceID:   cfg.DeviceID,
			DeviceName: cfg.DeviceName,
			Power:      "off",
			Extra:      make(map[string]any),
		},
	}
}

func (d *BaseDevice) ID() string { return d.cfg.DeviceID }

// RegisterHandler binds action to fn. Concrete drivers call this during
// construction for every command in their config.
func (d *BaseDevice) RegisterHandler(action string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[normalizeAction(action)] = fn
}

// SetOnMutate installs the Device Manager's post-mutation persistence
// callback, invoked synchronously after every successful execute-action.
func (d *BaseDevice) SetOnMutate(fn func(deviceID string, state State)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onMutate = fn
}

// SubscribeTopics derives the device's inbound control topics from its
// command table, plus its own meta/available and meta/error topics so
// LWT transitions observed on the bus reach HandleMessage (and, upstream,
// the Maintenance Guard) instead of going unheard; topics are never
// separately configured.
func (d *BaseDevice) SubscribeTopics() []string {
	if !d.cfg.Virtual {
		return nil
	}
	t := wbproto.For(d.cfg.DeviceID)
	topics := make([]string, 0, len(d.cfg.Commands)+2)
	for name := range d.cfg.Commands {
		topics = append(topics, t.ControlSet(name))
	}
	topics = append(topics, t.MetaAvailable(), t.MetaError())
	return topics
}

// Setup validates the device's WB configuration and, if it is valid,
// registers its Last-Will-and-Testament and publishes meta/control
// metadata retained on the bus. An invalid configuration skips both.
func (d *BaseDevice) Setup(ctx context.Context) error {
	if !d.cfg.Virtual || d.bus == nil {
		return nil
	}

	if err := d.validateWBConfig(); err != nil {
		d.log.Warn("device: wb config invalid, skipping wb publication", "device", d.cfg.DeviceID, "error", err)
		return nil
	}
	d.resolveControls()

	t := wbproto.For(d.cfg.DeviceID)

	if err := d.bus.AddWillMessage(d.cfg.DeviceID, t.MetaAvailable(), []byte("0"), bus.QoSAtLeastOnce, true); err != nil {
		return fmt.Errorf("device %s: register availability will: %w", d.cfg.DeviceID, err)
	}
	if err := d.bus.AddWillMessage(d.cfg.DeviceID, t.MetaError(), []byte("offline"), bus.QoSAtLeastOnce, true); err != nil {
		return fmt.Errorf("device %s: register error will: %w", d.cfg.DeviceID, err)
	}

	meta := wbproto.DeviceMeta{Driver: d.cfg.DeviceClass, Title: wbproto.Title{En: d.cfg.DeviceName}}
	metaJSON, _ := json.Marshal(meta)
	d.publish(ctx, t.Meta(), metaJSON, true)
	d.publish(ctx, t.MetaAvailable(), []byte("1"), true)
	d.publish(ctx, t.MetaError(), []byte(""), true)

	for name, cm := range d.wbControls {
		b, _ := json.Marshal(cm)
		d.publish(ctx, t.ControlMeta(name), b, true)
	}
	return nil
}

// Shutdown publishes explicit offline meta (the same payloads the LWT
// would publish) and drops the device's registered wills.
func (d *BaseDevice) Shutdown(ctx context.Context) error {
	if !d.cfg.Virtual || d.bus == nil {
		return nil
	}
	t := wbproto.For(d.cfg.DeviceID)
	d.publish(ctx, t.MetaAvailable(), []byte("0"), true)
	d.publish(ctx, t.MetaError(), []byte("offline"), true)
	d.bus.RemoveDeviceWillMessages(d.cfg.DeviceID)
	return nil
}

func (d *BaseDevice) publish(ctx context.Context, topic string, payload []byte, retain bool) {
	if err := d.bus.Publish(ctx, topic, payload, bus.QoSAtLeastOnce, retain); err != nil {
		d.log.Warn("device: publish failed", "device", d.cfg.DeviceID, "topic", topic, "error", err)
	}
}

// HandleMessage is the dispatcher entry for inbound
// /devices/{id}/controls/{c}/on messages, and for this device's own
// meta/available and meta/error topics. The Device Manager only forwards
// a meta transition here outside an armed maintenance window; within one,
// it is suppressed before HandleMessage is ever called (spec §4.E).
func (d *BaseDevice) HandleMessage(topic string, payload []byte) {
	if _, kind, ok := wbproto.ParseMeta(topic); ok {
		d.applyLWTTransition(kind, payload)
		return
	}

	_, control, ok := wbproto.ParseControlSet(topic)
	if !ok {
		return
	}

	d.mu.RLock()
	def, known := d.cfg.Commands[control]
	d.mu.RUnlock()
	if !known {
		d.log.Warn("device: inbound control has no command", "device", d.cfg.DeviceID, "control", control)
		return
	}

	params := decodeControlPayload(def, payload)
	d.ExecuteAction(context.Background(), def.Action, params, "mqtt")
}

// applyLWTTransition records a meta/available or meta/error transition
// observed on the bus for this device. An "offline" error payload (or a
// "0" availability payload) marks the device's error field; a cleared
// error payload (or "1" availability) clears it.
func (d *BaseDevice) applyLWTTransition(kind string, payload []byte) {
	d.mu.Lock()
	switch kind {
	case "error":
		d.state.Error = string(payload)
	case "available":
		if wbproto.DecodeBool(string(payload)) {
			d.state.Error = ""
		} else {
			d.state.Error = "offline"
		}
	}
	snapshot := d.state.Clone()
	d.mu.Unlock()

	if d.sse != nil {
		d.sse.Broadcast(sse.ChannelDevices, "state_change", map[string]any{
			"device_id": d.cfg.DeviceID,
			"timestamp": time.Now().Format(time.RFC3339),
			"state":     snapshot,
		})
	}
}

// decodeControlPayload parses an inbound /on payload per the command's
// first parameter type, falling back to its default on a parse error.
func decodeControlPayload(def CommandDef, payload []byte) map[string]any {
	if len(def.Params) == 0 {
		return nil
	}
	p := def.Params[0]
	raw := string(payload)
	params := map[string]any{}

	switch p.Type {
	case ParamBoolean:
		params[p.Name] = wbproto.DecodeBool(raw)
	case ParamInteger, ParamFloat, ParamRange:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			params[p.Name] = v
		} else if p.Default != nil {
			params[p.Name] = p.Default
		}
	default:
		params[p.Name] = raw
	}
	return params
}

// ExecuteAction is the REST/MQTT-facing execute-action pipeline (spec
// §4.E): resolve handler, validate parameters, invoke, persist, sync
// controls, broadcast.
func (d *BaseDevice) ExecuteAction(ctx context.Context, action string, params map[string]any, source string) CommandResponse {
	d.mu.RLock()
	def, known := d.findCommand(action)
	handler, hasHandler := d.handlers[normalizeAction(action)]
	d.mu.RUnlock()

	if !known || !hasHandler {
		return CommandResponse{Action: action, CommandResult: CommandResult{
			Success: false, Error: fmt.Sprintf("unknown action %q", action),
		}}
	}

	resolved, err := resolveAndValidate(def.Params, params)
	if err != nil {
		return CommandResponse{Action: action, CommandResult: CommandResult{
			Success: false, Error: err.Error(),
		}}
	}

	result := handler(ctx, resolved)
	if result.Success {
		d.mu.Lock()
		d.state.LastCommand = &LastCommand{
			Action: action, Source: source, Timestamp: time.Now(), Params: resolved,
		}
		for k, v := range result.Data {
			if k == "power" {
				if s, ok := v.(string); ok {
					d.state.Power = s
				}
				continue
			}
			d.state.Extra[k] = v
		}
		d.state.Error = ""
		snapshot := d.state.Clone()
		onMutate := d.onMutate
		d.mu.Unlock()

		if onMutate != nil {
			onMutate(d.cfg.DeviceID, snapshot)
		}
		d.syncControls(ctx, snapshot)
		if d.sse != nil {
			d.sse.Broadcast(sse.ChannelDevices, "state_change", map[string]any{
				"device_id": d.cfg.DeviceID,
				"timestamp": time.Now().Format(time.RFC3339),
				"state":     snapshot,
			})
		}
	} else if result.Error != "" {
		d.mu.Lock()
		d.state.Error = result.Error
		d.mu.Unlock()
	}

	return CommandResponse{Action: action, CommandResult: result}
}

func (d *BaseDevice) findCommand(action string) (CommandDef, bool) {
	if def, ok := d.cfg.Commands[action]; ok {
		return def, true
	}
	norm := normalizeAction(action)
	for name, def := range d.cfg.Commands {
		if normalizeAction(name) == norm {
			return def, true
		}
	}
	return CommandDef{}, false
}

// normalizeAction accepts both snake_case and camelCase action names on
// input and normalises to snake_case for lookup (spec §9 open question).
func normalizeAction(action string) string {
	var b strings.Builder
	for i, r := range action {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *BaseDevice) CurrentState() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.Clone()
}

func (d *BaseDevice) AvailableCommands() map[string]CommandDef {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]CommandDef, len(d.cfg.Commands))
	for k, v := range d.cfg.Commands {
		out[k] = v
	}
	return out
}
