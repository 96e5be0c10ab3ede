package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAndValidate_Coercion(t *testing.T) {
	defs := []ParamDef{
		{Name: "level", Type: ParamRange, Min: floatPtr(0), Max: floatPtr(100)},
		{Name: "enabled", Type: ParamBoolean},
		{Name: "label", Type: ParamString},
	}
	out, err := resolveAndValidate(defs, map[string]any{
		"level": "42.5", "enabled": "true", "label": "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, 42.5, out["level"])
	assert.Equal(t, true, out["enabled"])
	assert.Equal(t, "hello", out["label"])
}

func TestResolveAndValidate_RangeBoundaryAccepted(t *testing.T) {
	defs := []ParamDef{{Name: "level", Type: ParamRange, Min: floatPtr(0), Max: floatPtr(100)}}
	_, err := resolveAndValidate(defs, map[string]any{"level": "0"})
	assert.NoError(t, err)
	_, err = resolveAndValidate(defs, map[string]any{"level": "100"})
	assert.NoError(t, err)
}

func TestResolveAndValidate_RangeBoundaryRejected(t *testing.T) {
	defs := []ParamDef{{Name: "level", Type: ParamRange, Min: floatPtr(0), Max: floatPtr(100)}}
	_, err := resolveAndValidate(defs, map[string]any{"level": "-0.0001"})
	assert.Error(t, err)
	_, err = resolveAndValidate(defs, map[string]any{"level": "100.0001"})
	assert.Error(t, err)
}

func TestResolveAndValidate_MissingRequired(t *testing.T) {
	defs := []ParamDef{{Name: "level", Type: ParamRange, Required: true}}
	_, err := resolveAndValidate(defs, map[string]any{})
	var perr *ParamError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "level", perr.Name)
}

func TestResolveAndValidate_MissingOptionalUsesDefault(t *testing.T) {
	defs := []ParamDef{{Name: "level", Type: ParamRange, Default: float64(50)}}
	out, err := resolveAndValidate(defs, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, float64(50), out["level"])
}

func TestResolveAndValidate_OutputKeysExactlyPresentOrDefaulted(t *testing.T) {
	defs := []ParamDef{
		{Name: "a", Type: ParamString, Default: "x"},
		{Name: "b", Type: ParamString},
	}
	out, err := resolveAndValidate(defs, map[string]any{"a": "given"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "given"}, out)
}
