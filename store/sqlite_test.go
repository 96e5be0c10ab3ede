package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	value := json.RawMessage(`{"power":"on","device_id":"tv1"}`)
	ok := s.Save(ctx, DeviceKey("tv1"), value)
	require.True(t, ok)

	loaded, found := s.Load(ctx, DeviceKey("tv1"))
	require.True(t, found)

	var obj map[string]any
	require.NoError(t, json.Unmarshal(loaded, &obj))
	assert.Equal(t, "on", obj["power"])
	assert.Equal(t, "tv1", obj["device_id"])
	assert.NotEmpty(t, obj["_timestamp"])
}

func TestSQLiteStore_Load_Missing(t *testing.T) {
	s := newTestStore(t)
	_, found := s.Load(context.Background(), "device:nope")
	assert.False(t, found)
}

func TestSQLiteStore_Save_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.True(t, s.Save(ctx, "k", json.RawMessage(`{"v":1}`)))
	require.True(t, s.Save(ctx, "k", json.RawMessage(`{"v":2}`)))

	loaded, found := s.Load(ctx, "k")
	require.True(t, found)
	var obj map[string]any
	require.NoError(t, json.Unmarshal(loaded, &obj))
	assert.Equal(t, float64(2), obj["v"])
}

func TestSQLiteStore_BulkSave(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	results := s.BulkSave(ctx, map[string]json.RawMessage{
		"a": json.RawMessage(`{"x":1}`),
		"b": json.RawMessage(`{"x":2}`),
	})
	assert.True(t, results["a"])
	assert.True(t, results["b"])

	entities, err := s.ListEntities(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, entities)
}

func TestSQLiteStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.True(t, s.Save(ctx, "k", json.RawMessage(`{"v":1}`)))
	assert.True(t, s.Delete(ctx, "k"))
	_, found := s.Load(ctx, "k")
	assert.False(t, found)

	// idempotent
	assert.True(t, s.Delete(ctx, "k"))
}

func TestSQLiteStore_ClosedRejectsOperations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Close())

	assert.False(t, s.Save(ctx, "k", json.RawMessage(`{}`)))
	_, found := s.Load(ctx, "k")
	assert.False(t, found)
	assert.False(t, s.Delete(ctx, "k"))
	_, err := s.ListEntities(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSQLiteStore_NonObjectValueNotAnnotated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.True(t, s.Save(ctx, "scalar", json.RawMessage(`"active_scenario_id"`)))
	loaded, found := s.Load(ctx, "scalar")
	require.True(t, found)
	assert.Equal(t, `"active_scenario_id"`, string(loaded))
}
