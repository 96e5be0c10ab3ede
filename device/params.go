package device

import (
	"fmt"
	"strconv"
)

// resolveAndValidate coerces and validates provided against defs,
// returning a map whose keys are exactly {p.name | p present or has
// default}. Coercion accepts the common string-encoded forms
// ("1" -> 1, "true" -> true, "42.5" -> 42.5).
func resolveAndValidate(defs []ParamDef, provided map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(defs))

	for _, def := range defs {
		raw, present := provided[def.Name]
		if !present {
			if def.Required {
				return nil, &ParamError{Name: def.Name, Reason: "required parameter missing"}
			}
			if def.Default != nil {
				out[def.Name] = def.Default
			}
			continue
		}

		value, err := coerce(def.Type, raw)
		if err != nil {
			return nil, &ParamError{Name: def.Name, Reason: err.Error()}
		}

		if def.Type == ParamRange {
			f, _ := toFloat(value)
			if def.Min != nil && f < *def.Min {
				return nil, &ParamError{Name: def.Name, Reason: fmt.Sprintf("%v below min %v", f, *def.Min)}
			}
			if def.Max != nil && f > *def.Max {
				return nil, &ParamError{Name: def.Name, Reason: fmt.Sprintf("%v above max %v", f, *def.Max)}
			}
		}

		out[def.Name] = value
	}
	return out, nil
}

func coerce(t ParamType, raw any) (any, error) {
	switch t {
	case ParamBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			switch v {
			case "1", "true", "on", "yes":
				return true, nil
			case "0", "false", "off", "no":
				return false, nil
			}
			return nil, fmt.Errorf("cannot parse %q as boolean", v)
		default:
			return nil, fmt.Errorf("cannot parse %v as boolean", raw)
		}
	case ParamInteger, ParamFloat, ParamRange:
		return toFloat(raw)
	default: // ParamString and anything unrecognised
		switch v := raw.(type) {
		case string:
			return v, nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	}
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as number", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot parse %v as number", raw)
	}
}
