package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	require.NoError(t, f.Connect(ctx))

	var got Message
	_, err := f.Subscribe(ctx, "/devices/tv1/controls/+/on", func(m Message) { got = m })
	require.NoError(t, err)

	require.NoError(t, f.Publish(ctx, "/devices/tv1/controls/power_on/on", []byte("1"), QoSAtLeastOnce, false))
	assert.Equal(t, "/devices/tv1/controls/power_on/on", got.Topic)
	assert.Equal(t, []byte("1"), got.Payload)
}

func TestFake_SubscribeWildcardHash(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	require.NoError(t, f.Connect(ctx))

	count := 0
	_, err := f.Subscribe(ctx, "/devices/#", func(m Message) { count++ })
	require.NoError(t, err)

	require.NoError(t, f.Publish(ctx, "/devices/tv1/meta", []byte("{}"), QoSAtMostOnce, true))
	require.NoError(t, f.Publish(ctx, "/devices/tv1/meta/available", []byte("1"), QoSAtMostOnce, true))
	assert.Equal(t, 2, count)
}

func TestFake_WillRegistration(t *testing.T) {
	f := NewFake()
	require.NoError(t, f.AddWillMessage("tv1", "/devices/tv1/meta/available", []byte("0"), QoSAtLeastOnce, true))
	require.NoError(t, f.AddWillMessage("tv1", "/devices/tv1/meta/error", []byte("disconnected"), QoSAtLeastOnce, true))

	wills := f.Wills("tv1")
	assert.Len(t, wills, 2)

	f.RemoveDeviceWillMessages("tv1")
	assert.Empty(t, f.Wills("tv1"))
}

func TestFake_ConnectAndSubscribe(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	called := false
	err := f.ConnectAndSubscribe(ctx, map[string]Handler{
		"/devices/wbrules/meta/online": func(m Message) { called = true },
	})
	require.NoError(t, err)
	assert.True(t, f.IsConnected())

	require.NoError(t, f.Publish(ctx, "/devices/wbrules/meta/online", []byte("1"), QoSAtMostOnce, true))
	assert.True(t, called)
}
