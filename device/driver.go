package device

import (
	"context"
	"encoding/json"
)

// HandlerFunc implements one command's driver-specific behaviour. params
// has already been resolved and validated against the command's ParamDef
// list.
type HandlerFunc func(ctx context.Context, params map[string]any) CommandResult

// DeviceDriver is the contract every concrete device conforms to. BaseDevice
// implements everything below except Send, which is driver-specific
// outbound protocol I/O; concrete drivers embed *BaseDevice and supply
// Send plus their HandlerFuncs.
type DeviceDriver interface {
	Setup(ctx context.Context) error
	Shutdown(ctx context.Context) error
	SubscribeTopics() []string
	HandleMessage(topic string, payload []byte)
	Send(ctx context.Context, command string, params map[string]any) error
	ExecuteAction(ctx context.Context, action string, params map[string]any, source string) CommandResponse
	CurrentState() State
	AvailableCommands() map[string]CommandDef
	ID() string
}

// WBControlOverride pins a command's published control metadata
// explicitly, bypassing type/order inference (spec §4.E, "Topic
// conventions", rule 1).
type WBControlOverride struct {
	Title    string
	Type     string // switch|range|value|text|pushbutton
	ReadOnly bool
	Order    int
	Min      *float64
	Max      *float64
	Units    string
}

// Config is a device's static configuration: its command table, WB
// publication toggle, and the overrides/mappings that customise the
// default inference rules.
type Config struct {
	DeviceID     string
	DeviceName   string
	DeviceClass  string
	Virtual      bool // publish as a WB virtual device
	Commands     map[string]CommandDef
	WBControls   map[string]WBControlOverride
	StateMapping map[string][]string // state field -> control names

	// Class carries the device-class-specific config block verbatim; a
	// registered Constructor unmarshals it into its own shape (e.g. the IR
	// blaster's GPIO chip/line). Empty for classes with no extra config.
	Class json.RawMessage
}
