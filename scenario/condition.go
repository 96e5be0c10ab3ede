package scenario

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/rustyeddy/otto/device"
)

// conditionPattern matches the one supported shape: `device.<attr> <op>
// <literal>`. Implementations MUST NOT use a general-purpose expression
// evaluator (spec §4.G); this is the entire grammar.
var conditionPattern = regexp.MustCompile(`^\s*device\.(\w+)\s*(==|!=)\s*(.+?)\s*$`)

// evaluateCondition evaluates cond against state. An empty condition is
// always true. Any unsupported syntax logs a warning and evaluates to
// true (permissive default, so a malformed condition never silently
// suppresses a valid sequence step). Any error during evaluation
// evaluates to false (safe-skip).
func evaluateCondition(log *slog.Logger, cond string, state device.State) (result bool) {
	if cond == "" {
		return true
	}

	defer func() {
		if r := recover(); r != nil {
			log.Warn("scenario: condition evaluation panicked, skipping step", "condition", cond, "recovered", r)
			result = false
		}
	}()

	m := conditionPattern.FindStringSubmatch(cond)
	if m == nil {
		log.Warn("scenario: unsupported condition syntax, defaulting to true", "condition", cond)
		return true
	}

	attr, op, literalRaw := m[1], m[2], m[3]
	literal, err := parseLiteral(literalRaw)
	if err != nil {
		log.Warn("scenario: condition literal unparsable, defaulting to true", "condition", cond, "error", err)
		return true
	}

	actual := fieldValue(state, attr)
	equal := compareEqual(actual, literal)

	switch op {
	case "==":
		return equal
	case "!=":
		return !equal
	default:
		return true
	}
}

func fieldValue(state device.State, attr string) any {
	switch attr {
	case "power":
		return state.Power
	case "error":
		return state.Error
	case "device_id":
		return state.DeviceID
	case "device_name":
		return state.DeviceName
	default:
		if state.Extra != nil {
			return state.Extra[attr]
		}
		return nil
	}
}

func parseLiteral(raw string) (any, error) {
	if len(raw) >= 2 && (raw[0] == '\'' || raw[0] == '"') && raw[len(raw)-1] == raw[0] {
		return raw[1 : len(raw)-1], nil
	}
	switch raw {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("cannot parse literal %q", raw)
}

func compareEqual(actual, literal any) bool {
	switch lv := literal.(type) {
	case string:
		as, ok := actual.(string)
		return ok && as == lv
	case bool:
		ab, ok := actual.(bool)
		return ok && ab == lv
	case int64:
		switch av := actual.(type) {
		case int64:
			return av == lv
		case float64:
			return av == float64(lv)
		}
		return false
	case float64:
		switch av := actual.(type) {
		case float64:
			return av == lv
		case int64:
			return float64(av) == lv
		}
		return false
	}
	return fmt.Sprintf("%v", actual) == strings.TrimSpace(fmt.Sprintf("%v", literal))
}
