package bus

import (
	"context"
	"sync"
	"time"
)

var _ Bus = (*Fake)(nil)

// Fake is an in-memory Bus used by package tests elsewhere in the module,
// mirroring the teacher's pattern of faking paho.Client behind an
// interface (messenger/mqtt_client.go) rather than hitting a real broker.
type Fake struct {
	mu        sync.Mutex
	connected bool
	subs      map[string][]Handler
	Published []Published
	wills     map[string][]Will
}

// Published records one call to Publish, for test assertions.
type Published struct {
	Topic   string
	Payload []byte
	QoS     QoS
	Retain  bool
}

func NewFake() *Fake {
	return &Fake{subs: make(map[string][]Handler), wills: make(map[string][]Will)}
}

func (f *Fake) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *Fake) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *Fake) WaitForConnection(ctx context.Context, timeout time.Duration) error {
	return nil
}

func (f *Fake) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *Fake) Publish(ctx context.Context, topic string, payload []byte, qos QoS, retain bool) error {
	f.mu.Lock()
	f.Published = append(f.Published, Published{Topic: topic, Payload: payload, QoS: qos, Retain: retain})
	handlers := make([]Handler, 0)
	for pattern, hs := range f.subs {
		if matchTopic(pattern, topic) {
			handlers = append(handlers, hs...)
		}
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(Message{Topic: topic, Payload: payload, Retain: retain, QoS: qos})
	}
	return nil
}

func (f *Fake) Subscribe(ctx context.Context, topicPattern string, handler Handler) (func() error, error) {
	removed := false
	f.mu.Lock()
	f.subs[topicPattern] = append(f.subs[topicPattern], func(m Message) {
		f.mu.Lock()
		gone := removed
		f.mu.Unlock()
		if !gone {
			handler(m)
		}
	})
	f.mu.Unlock()

	return func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		removed = true
		return nil
	}, nil
}

func (f *Fake) AddWillMessage(deviceID, topic string, payload []byte, qos QoS, retain bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wills[deviceID] = append(f.wills[deviceID], Will{DeviceID: deviceID, Topic: topic, Payload: payload, QoS: qos, Retain: retain})
	return nil
}

func (f *Fake) RemoveDeviceWillMessages(deviceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.wills, deviceID)
}

func (f *Fake) Wills(deviceID string) []Will {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Will(nil), f.wills[deviceID]...)
}

func (f *Fake) ConnectAndSubscribe(ctx context.Context, subs map[string]Handler) error {
	if err := f.Connect(ctx); err != nil {
		return err
	}
	for topic, handler := range subs {
		if _, err := f.Subscribe(ctx, topic, handler); err != nil {
			return err
		}
	}
	return nil
}

// matchTopic duplicates wbproto.MatchTopic's wildcard semantics locally to
// avoid the bus package depending on wbproto for a one-line helper used
// only by the fake.
func matchTopic(pattern, topic string) bool {
	pp := splitTopic(pattern)
	tp := splitTopic(topic)
	for i, p := range pp {
		if p == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if p == "+" {
			continue
		}
		if p != tp[i] {
			return false
		}
	}
	return len(pp) == len(tp)
}

func splitTopic(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
