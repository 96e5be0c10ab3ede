// Package store implements the gateway's key-value state repository: a
// durable key -> JSON store with per-record timestamps and atomic upsert.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrClosed is returned by operations issued after Close.
var ErrClosed = errors.New("store: closed")

// TimestampLayout is the on-disk timestamp format: DD-MM-YYYY HH:MM:SS.
const TimestampLayout = "02-01-2006 15:04:05"

// DeviceKey and ActiveScenarioKey namespace the entity ids the rest of the
// gateway persists under.
func DeviceKey(deviceID string) string { return "device:" + deviceID }

const ActiveScenarioKey = "active_scenario"

// Store is the State Repository port (spec component A). Implementations
// must make Save last-writer-wins and Load idempotent: Load after
// Save(k, v) returns a value equal to v modulo the injected _timestamp
// field on dict-shaped values.
type Store interface {
	// Initialize creates the backing schema if absent. Called once before
	// any other method; failure is fatal to startup.
	Initialize(ctx context.Context) error

	// Load returns the raw JSON value stored under id, or ok=false if
	// absent or if the lookup failed (failures are logged, not returned).
	// If the stored value is a JSON object, the returned value has a
	// "_timestamp" field merged in.
	Load(ctx context.Context, id string) (value json.RawMessage, ok bool)

	// Save upserts id -> value with a freshly generated timestamp,
	// reporting false on any write error.
	Save(ctx context.Context, id string, value json.RawMessage) bool

	// BulkSave iterates Save over the given entries. It is not required
	// to be atomic as a whole; per-key outcomes are returned.
	BulkSave(ctx context.Context, values map[string]json.RawMessage) map[string]bool

	// Delete removes id, idempotently. Reports false on error.
	Delete(ctx context.Context, id string) bool

	// ListEntities returns all known keys.
	ListEntities(ctx context.Context) ([]string, error)

	// Close flushes and releases the backing resource. Operations issued
	// after Close return the store's zero-value/false outcomes.
	Close() error
}
