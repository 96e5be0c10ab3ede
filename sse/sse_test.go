package sse

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_BroadcastDeliversToStream(t *testing.T) {
	m := New(nil)
	ctx, cancel := context.WithCancel(context.Background())

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- m.CreateEventStream(ctx, ChannelDevices, &buf, func() {})
	}()

	// give the stream a moment to register before broadcasting
	time.Sleep(20 * time.Millisecond)
	m.Broadcast(ChannelDevices, "state_change", map[string]any{"device_id": "tv1"})
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	out := buf.String()
	assert.Contains(t, out, `"eventType":"connected"`)
	assert.Contains(t, out, `"eventType":"state_change"`)
	assert.Contains(t, out, `"device_id":"tv1"`)
	assert.True(t, strings.Contains(out, "data: "))
}

func TestManager_BroadcastOnlyTargetChannel(t *testing.T) {
	m := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var buf bytes.Buffer
	go m.CreateEventStream(ctx, ChannelScenarios, &buf, func() {})
	time.Sleep(20 * time.Millisecond)

	m.Broadcast(ChannelDevices, "state_change", map[string]any{})
	time.Sleep(20 * time.Millisecond)

	assert.NotContains(t, buf.String(), "state_change")
}

func TestManager_KeepaliveOnIdle(t *testing.T) {
	orig := KeepaliveInterval
	t.Cleanup(func() { overrideKeepalive(orig) })
	overrideKeepalive(10 * time.Millisecond)

	m := New(nil)
	ctx, cancel := context.WithCancel(context.Background())

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- m.CreateEventStream(ctx, ChannelSystem, &buf, func() {}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Contains(t, buf.String(), "keepalive")
}

func TestManager_Stats(t *testing.T) {
	m := New(nil)
	m.Broadcast(ChannelDevices, "state_change", map[string]any{})
	m.Broadcast(ChannelSystem, "info", map[string]any{})

	st := m.Stats()
	assert.EqualValues(t, 2, st.Broadcasts)
	assert.Equal(t, 0, st.Subscribers[ChannelDevices])
}

func TestManager_Shutdown_DrainsSubscribers(t *testing.T) {
	m := New(nil)
	ctx := context.Background()

	var buf bytes.Buffer
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go m.CreateEventStream(streamCtx, ChannelDevices, &buf, func() {})
	time.Sleep(20 * time.Millisecond)

	m.Shutdown(200 * time.Millisecond)
	assert.Equal(t, 0, m.subscriberCount())
}

// overrideKeepalive allows the keepalive test to use a short interval
// without sleeping a full second.
func overrideKeepalive(d time.Duration) { KeepaliveInterval = d }
