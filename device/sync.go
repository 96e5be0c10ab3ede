package device

import (
	"context"

	"github.com/rustyeddy/otto/wbproto"
)

// defaultStateMapping is the built-in state-field -> control-names table
// (spec §4.E), overridable/extendable per device via Config.StateMapping.
var defaultStateMapping = map[string][]string{
	"power":             {"power_state", "get_power"},
	"volume":            {"set_volume", "get_volume"},
	"mute":              {"mute", "toggle_mute"},
	"input_source":      {"set_input"},
	"playback":          {"playback"},
	"light":             {"light"},
	"speed":             {"speed"},
	"network_info":      {"network_info"},
	"error":             {"error"},
	"connection_status": {"connection_status"},
}

// syncControls republishes, retained, the control value for every state
// field that maps (via the default table, overridden/extended by
// Config.StateMapping) to a control name this device actually has wb
// metadata for.
func (d *BaseDevice) syncControls(ctx context.Context, state State) {
	if !d.cfg.Virtual || d.bus == nil || len(d.wbControls) == 0 {
		return
	}

	t := wbproto.For(d.cfg.DeviceID)
	fields := flattenState(state)

	for field, value := range fields {
		for _, control := range controlsFor(d.cfg.StateMapping, field) {
			if _, known := d.wbControls[control]; !known {
				continue
			}
			d.publish(ctx, t.Control(control), []byte(encodeControlValue(value)), true)
		}
	}
}

func controlsFor(override map[string][]string, field string) []string {
	if override != nil {
		if cs, ok := override[field]; ok {
			return cs
		}
	}
	return defaultStateMapping[field]
}

func flattenState(s State) map[string]any {
	out := make(map[string]any, len(s.Extra)+2)
	for k, v := range s.Extra {
		out[k] = v
	}
	out["power"] = s.Power
	if s.Error != "" {
		out["error"] = s.Error
	}
	return out
}

// encodeControlValue renders a state value the way a WB control payload
// is expected to look on the wire.
func encodeControlValue(value any) string {
	switch v := value.(type) {
	case bool:
		return wbproto.EncodeBool(v)
	case string:
		switch v {
		case "on", "connected":
			return "1"
		case "off", "disconnected":
			return "0"
		default:
			return v
		}
	case float64:
		return wbproto.EncodeNumber(v)
	case int:
		return wbproto.EncodeNumber(float64(v))
	default:
		return ""
	}
}
