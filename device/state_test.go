package device

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_MarshalUnmarshalRoundTrip(t *testing.T) {
	s := State{
		DeviceID:   "tv1",
		DeviceName: "Living Room TV",
		Power:      "on",
		Extra:      map[string]any{"input_source": "hdmi1"},
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var out State
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, s.DeviceID, out.DeviceID)
	assert.Equal(t, s.Power, out.Power)
	assert.Equal(t, "hdmi1", out.Extra["input_source"])
}

func TestState_Clone_IsIndependent(t *testing.T) {
	s := State{DeviceID: "tv1", Extra: map[string]any{"k": "v"}}
	clone := s.Clone()
	clone.Extra["k"] = "mutated"
	assert.Equal(t, "v", s.Extra["k"])
}
