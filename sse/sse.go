// Package sse implements the Event Fan-Out (spec component C): a
// channelised Server-Sent-Events broadcaster with bounded per-subscriber
// queues and a keepalive loop.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Channel names the three fixed SSE channels the gateway exposes.
type Channel string

const (
	ChannelDevices   Channel = "devices"
	ChannelScenarios Channel = "scenarios"
	ChannelSystem    Channel = "system"
)

var channels = [...]Channel{ChannelDevices, ChannelScenarios, ChannelSystem}

// QueueDepth is the recommended bound on a subscriber's pending-event
// queue before it is considered dead and dropped.
const QueueDepth = 100

// KeepaliveInterval is how often an idle stream emits a keepalive event.
// It is a var, not a const, so tests can shorten it.
var KeepaliveInterval = time.Second

// Event is one SSE envelope: `id` is a millisecond clock, `eventType`
// names the event, data carries the caller-supplied payload (callers are
// responsible for including a "timestamp" field in data where the spec
// calls for one).
type Event struct {
	ID        int64          `json:"id"`
	EventType string         `json:"eventType"`
	Data      map[string]any `json:"-"`
}

// MarshalJSON flattens Data alongside id/eventType into a single object,
// matching the envelope shape `{ eventType, id, ...data }`.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Data)+2)
	for k, v := range e.Data {
		out[k] = v
	}
	out["id"] = e.ID
	out["eventType"] = e.EventType
	return json.Marshal(out)
}

type subscriber struct {
	id     string
	queue  chan Event
	closed atomic.Bool
}

// Stats is a read-only snapshot of the fan-out's counters, surfaced at
// GET /events/stats.
type Stats struct {
	Subscribers map[Channel]int `json:"subscribers"`
	Broadcasts  int64           `json:"broadcasts"`
}

// Manager is the Event Fan-Out. The zero value is not usable; build one
// with New.
type Manager struct {
	log *slog.Logger

	mu   sync.Mutex
	subs map[Channel]map[string]*subscriber

	broadcastCount atomic.Int64
	shuttingDown   atomic.Bool
}

func New(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{log: log, subs: make(map[Channel]map[string]*subscriber)}
	for _, c := range channels {
		m.subs[c] = make(map[string]*subscriber)
	}
	return m
}

// Broadcast pushes an event to every live subscriber of channel,
// non-blockingly. A subscriber whose queue is full is considered dead and
// dropped.
func (m *Manager) Broadcast(channel Channel, eventType string, data map[string]any) {
	m.broadcastCount.Add(1)

	event := Event{ID: time.Now().UnixMilli(), EventType: eventType, Data: data}

	m.mu.Lock()
	targets := make([]*subscriber, 0, len(m.subs[channel]))
	for _, s := range m.subs[channel] {
		targets = append(targets, s)
	}
	m.mu.Unlock()

	for _, s := range targets {
		select {
		case s.queue <- event:
		default:
			m.log.Warn("sse: subscriber queue full, dropping", "channel", channel, "subscriber", s.id)
			m.unregister(channel, s.id)
		}
	}
}

func (m *Manager) register(channel Channel) *subscriber {
	s := &subscriber{id: uuid.NewString(), queue: make(chan Event, QueueDepth)}
	m.mu.Lock()
	m.subs[channel][s.id] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) unregister(channel Channel, id string) {
	m.mu.Lock()
	delete(m.subs[channel], id)
	m.mu.Unlock()
}

// CreateEventStream writes SSE-framed events for channel to w until ctx
// is cancelled, the write side fails, or Shutdown is called. It always
// de-registers its subscriber on exit.
func (m *Manager) CreateEventStream(ctx context.Context, channel Channel, w io.Writer, flush func()) error {
	if m.shuttingDown.Load() {
		return fmt.Errorf("sse: manager is shutting down")
	}

	s := m.register(channel)
	defer m.unregister(channel, s.id)

	if err := writeEvent(w, Event{ID: time.Now().UnixMilli(), EventType: "connected", Data: map[string]any{"channel": string(channel)}}); err != nil {
		return err
	}
	flush()

	ticker := time.NewTicker(KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-s.queue:
			if err := writeEvent(w, event); err != nil {
				return err
			}
			flush()
		case <-ticker.C:
			if err := writeEvent(w, Event{ID: time.Now().UnixMilli(), EventType: "keepalive", Data: nil}); err != nil {
				return err
			}
			flush()
		}
	}
}

func writeEvent(w io.Writer, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\r\n\r\n", payload)
	return err
}

// Shutdown marks the manager as shutting down, best-effort broadcasts a
// shutdown event to every channel, and drains subscriber sets. Active
// stream loops observe ctx cancellation from their caller; Shutdown gives
// them up to grace to exit.
func (m *Manager) Shutdown(grace time.Duration) {
	m.shuttingDown.Store(true)
	for _, c := range channels {
		m.Broadcast(c, "shutdown", nil)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if m.subscriberCount() == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	m.mu.Lock()
	for _, c := range channels {
		m.subs[c] = make(map[string]*subscriber)
	}
	m.mu.Unlock()
}

func (m *Manager) subscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range channels {
		n += len(m.subs[c])
	}
	return n
}

// Stats returns a snapshot of per-channel subscriber counts and the total
// broadcast counter.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{Subscribers: make(map[Channel]int, len(channels)), Broadcasts: m.broadcastCount.Load()}
	for _, c := range channels {
		st.Subscribers[c] = len(m.subs[c])
	}
	return st
}
