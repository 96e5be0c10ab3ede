package scenario

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/otto/device"
)

func TestEvaluateCondition_Empty(t *testing.T) {
	assert.True(t, evaluateCondition(slog.Default(), "", device.State{}))
}

func TestEvaluateCondition_StringEquality(t *testing.T) {
	st := device.State{Power: "on"}
	assert.True(t, evaluateCondition(slog.Default(), "device.power == 'on'", st))
	assert.False(t, evaluateCondition(slog.Default(), "device.power == 'off'", st))
	assert.True(t, evaluateCondition(slog.Default(), "device.power != 'off'", st))
}

func TestEvaluateCondition_NumericAndBool(t *testing.T) {
	st := device.State{Extra: map[string]any{"volume": float64(42), "muted": true}}
	assert.True(t, evaluateCondition(slog.Default(), "device.volume == 42", st))
	assert.True(t, evaluateCondition(slog.Default(), "device.muted == true", st))
	assert.False(t, evaluateCondition(slog.Default(), "device.muted == false", st))
}

func TestEvaluateCondition_UnsupportedSyntaxDefaultsTrue(t *testing.T) {
	st := device.State{Power: "on"}
	assert.True(t, evaluateCondition(slog.Default(), "not a valid condition at all", st))
}

func TestEvaluateCondition_UnparsableLiteralDefaultsTrue(t *testing.T) {
	st := device.State{Power: "on"}
	assert.True(t, evaluateCondition(slog.Default(), "device.power == unquoted", st))
}
