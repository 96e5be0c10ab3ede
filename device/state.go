// Package device implements the Device Runtime (spec component E): the
// abstract device lifecycle, WB virtual-device publication, state<->control
// synchronisation and the execute-action pipeline shared by every concrete
// device driver.
package device

import (
	"encoding/json"
	"time"
)

// State is a device's current, losslessly JSON-serialisable state. The
// common fields are always present; class-specific fields live in Extra
// so every device class can round-trip through the same wire shape
// without a closed union type.
type State struct {
	DeviceID    string       `json:"device_id"`
	DeviceName  string       `json:"device_name"`
	Power       string       `json:"power"` // "on" | "off"
	LastCommand *LastCommand `json:"last_command,omitempty"`
	Error       string       `json:"error,omitempty"`
	Extra       map[string]any
}

// LastCommand records the most recently executed action, written after
// every successful execute-action.
type LastCommand struct {
	Action    string         `json:"action"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Params    map[string]any `json:"params,omitempty"`
}

// the common fields, used to strip them back out of a flattened map when
// unmarshalling into Extra.
var commonFields = map[string]bool{
	"device_id": true, "device_name": true, "power": true,
	"last_command": true, "error": true,
}

// MarshalJSON flattens Extra alongside the common fields into one object,
// so the wire shape for every device class is a single flat JSON object
// keyed by field name, as the state↔control mapping table expects.
func (s State) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+5)
	for k, v := range s.Extra {
		out[k] = v
	}
	out["device_id"] = s.DeviceID
	out["device_name"] = s.DeviceName
	out["power"] = s.Power
	if s.LastCommand != nil {
		out["last_command"] = s.LastCommand
	}
	if s.Error != "" {
		out["error"] = s.Error
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON: common fields populate
// their typed struct fields, everything else lands in Extra.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["device_id"]; ok {
		json.Unmarshal(v, &s.DeviceID)
	}
	if v, ok := raw["device_name"]; ok {
		json.Unmarshal(v, &s.DeviceName)
	}
	if v, ok := raw["power"]; ok {
		json.Unmarshal(v, &s.Power)
	}
	if v, ok := raw["last_command"]; ok {
		s.LastCommand = &LastCommand{}
		json.Unmarshal(v, s.LastCommand)
	}
	if v, ok := raw["error"]; ok {
		json.Unmarshal(v, &s.Error)
	}

	s.Extra = make(map[string]any)
	for k, v := range raw {
		if commonFields[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		s.Extra[k] = val
	}
	return nil
}

// Clone returns a deep-enough copy of s suitable for CurrentState's
// "returns a copy" contract: callers mutating the returned value must
// never affect the device's own state.
func (s State) Clone() State {
	out := s
	if s.LastCommand != nil {
		lc := *s.LastCommand
		if s.LastCommand.Params != nil {
			lc.Params = make(map[string]any, len(s.LastCommand.Params))
			for k, v := range s.LastCommand.Params {
				lc.Params[k] = v
			}
		}
		out.LastCommand = &lc
	}
	if s.Extra != nil {
		out.Extra = make(map[string]any, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
