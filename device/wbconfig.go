package device

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/otto/wbproto"
)

// validateWBConfig checks the invariants spec §4.E requires before any WB
// metadata is published: explicit overrides reference existing commands
// and carry a valid shape; ranges satisfy min<max; state mappings target
// known controls.
func (d *BaseDevice) validateWBConfig() error {
	for name, ov := range d.cfg.WBControls {
		if _, ok := d.cfg.Commands[name]; !ok {
			return fmt.Errorf("wb_controls[%s]: no such command", name)
		}
		switch wbproto.ControlType(ov.Type) {
		case wbproto.ControlSwitch, wbproto.ControlRange, wbproto.ControlValue, wbproto.ControlText, wbproto.ControlPushbutton:
		default:
			return fmt.Errorf("wb_controls[%s]: invalid type %q", name, ov.Type)
		}
		if ov.Min != nil && ov.Max != nil && *ov.Min >= *ov.Max {
			return fmt.Errorf("wb_controls[%s]: min must be < max", name)
		}
	}
	for field, controls := range d.cfg.StateMapping {
		for _, c := range controls {
			if _, ok := d.cfg.Commands[c]; !ok {
				if _, ok := d.cfg.WBControls[c]; !ok {
					return fmt.Errorf("wb_state_mappings[%s]: unknown control %q", field, c)
				}
			}
		}
	}
	return nil
}

// resolveControls computes the WB control metadata for every command,
// applying explicit overrides first and the type/order inference rules
// otherwise. Results are cached in d.wbControls for republication.
func (d *BaseDevice) resolveControls() {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.cfg.Commands))
	for name := range d.cfg.Commands {
		names = append(names, name)
	}
	sort.Strings(names)

	groupSeq := map[string]int{}
	d.wbControls = make(map[string]wbproto.ControlMeta, len(names))

	for _, name := range names {
		def := d.cfg.Commands[name]

		if ov, ok := d.cfg.WBControls[name]; ok {
			d.wbControls[name] = wbproto.ControlMeta{
				Title:    wbproto.Title{En: ov.Title},
				Type:     wbproto.ControlType(ov.Type),
				ReadOnly: ov.ReadOnly,
				Order:    ov.Order,
				Min:      ov.Min,
				Max:      ov.Max,
				Units:    ov.Units,
			}
			continue
		}

		ctype := inferControlType(def)
		seq := groupSeq[def.Group]
		groupSeq[def.Group]++

		cm := wbproto.ControlMeta{
			Title: wbproto.Title{En: def.Description},
			Type:  ctype,
			Order: wbproto.OrderFor(def.Group, seq),
		}
		if ctype == wbproto.ControlRange && len(def.Params) > 0 {
			cm.Min = def.Params[0].Min
			cm.Max = def.Params[0].Max
		}
		d.wbControls[name] = cm
	}
}

// inferControlType applies spec §4.E's "Control type inference" rules 2-4
// (rule 1, explicit override, is handled by the caller before this is
// reached).
func inferControlType(def CommandDef) wbproto.ControlType {
	if len(def.Params) > 0 {
		switch def.Params[0].Type {
		case ParamRange, ParamInteger, ParamFloat:
			return wbproto.ControlRange
		case ParamBoolean:
			return wbproto.ControlSwitch
		case ParamString:
			return wbproto.ControlText
		}
	}

	switch def.Group {
	case "power", "playback", "navigation", "menu":
		return wbproto.ControlPushbutton
	case "volume":
		action := strings.ToLower(def.Action)
		switch {
		case strings.HasPrefix(action, "set_"):
			return wbproto.ControlRange
		case strings.Contains(action, "mute"):
			return wbproto.ControlSwitch
		}
	case "inputs", "apps":
		if strings.HasPrefix(strings.ToLower(def.Action), "set_") {
			return wbproto.ControlText
		}
	}
	return wbproto.ControlPushbutton
}
