package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

var _ Bus = (*PahoBus)(nil)

// Config configures a PahoBus.
type Config struct {
	Broker   string // e.g. "tcp://10.11.0.10:1883"
	ClientID string // random suffix if empty
	Username string
	Password string

	CleanSession bool
}

// PahoBus is the live Bus adapter backed by eclipse/paho.mqtt.golang.
//
// paho's ClientOptions carry exactly one broker-level Last Will; the spec
// asks for per-device LWT registration. We resolve the mismatch by
// installing the first-registered will as the literal broker LWT (the
// broker will publish it verbatim if the TCP connection drops) and, on
// every local connection-lost event, broadcasting every other registered
// will through onConnectionLost so callers can mark the rest of the fleet
// offline in software. This matches what the broker would have done had
// it supported multiple wills.
type PahoBus struct {
	log *slog.Logger

	mu      sync.Mutex
	opts    *paho.ClientOptions
	client  paho.Client
	wills   map[string][]Will // deviceID -> wills
	willSeq []string          // registration order, first entry becomes the broker LWT

	onConnectionLost func(wills []Will)
}

// NewPahoBus builds an unconnected PahoBus from cfg.
func NewPahoBus(cfg Config, log *slog.Logger) *PahoBus {
	if log == nil {
		log = slog.Default()
	}
	id := cfg.ClientID
	if id == "" {
		id = "gateway-" + randSuffix()
	}

	b := &PahoBus{
		log:   log,
		wills: make(map[string][]Will),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(id).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetCleanSession(cfg.CleanSession)

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		b.log.Warn("bus: connection lost", "error", err)
		b.mu.Lock()
		var rest []Will
		for i, id := range b.willSeq {
			ws := b.wills[id]
			if i == 0 && len(ws) > 0 {
				ws = ws[1:] // the first will is the broker's own LWT, already published
			}
			rest = append(rest, ws...)
		}
		cb := b.onConnectionLost
		b.mu.Unlock()
		if cb != nil {
			cb(rest)
		}
	})

	opts.OnConnect = func(_ paho.Client) {
		b.log.Info("bus: connected")
	}

	b.opts = opts
	return b
}

// SetOnConnectionLost registers the callback invoked with the non-primary
// device wills whenever the broker connection drops.
func (b *PahoBus) SetOnConnectionLost(fn func(wills []Will)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onConnectionLost = fn
}

func randSuffix() string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = letters[rand.Intn(len(letters))]
	}
	return string(buf)
}

func (b *PahoBus) AddWillMessage(deviceID, topic string, payload []byte, qos QoS, retain bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.wills[deviceID]) == 0 {
		b.willSeq = append(b.willSeq, deviceID)
	}
	b.wills[deviceID] = append(b.wills[deviceID], Will{
		DeviceID: deviceID,
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retain:   retain,
	})

	if len(b.willSeq) == 1 && b.willSeq[0] == deviceID && len(b.wills[deviceID]) == 1 {
		b.opts.SetWill(topic, string(payload), byte(qos), retain)
	}
	return nil
}

func (b *PahoBus) RemoveDeviceWillMessages(deviceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.wills, deviceID)
	for i, id := range b.willSeq {
		if id == deviceID {
			b.willSeq = append(b.willSeq[:i], b.willSeq[i+1:]...)
			break
		}
	}
}

func (b *PahoBus) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.client == nil {
		b.client = paho.NewClient(b.opts)
	}
	client := b.client
	b.mu.Unlock()

	tok := client.Connect()
	if !tok.WaitTimeout(15 * time.Second) {
		return errors.New("bus: connect timeout")
	}
	return tok.Error()
}

func (b *PahoBus) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return nil
	}
	client.Disconnect(250)
	return nil
}

func (b *PahoBus) WaitForConnection(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if b.IsConnected() {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("bus: wait for connection timed out")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (b *PahoBus) IsConnected() bool {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()
	return client != nil && client.IsConnected()
}

func (b *PahoBus) Publish(ctx context.Context, topic string, payload []byte, qos QoS, retain bool) error {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()
	if client == nil {
		return errors.New("bus: not connected")
	}

	tok := client.Publish(topic, byte(qos), retain, payload)
	if qos > 0 {
		if !tok.WaitTimeout(5 * time.Second) {
			return errors.New("bus: publish timeout")
		}
	}
	return tok.Error()
}

func (b *PahoBus) Subscribe(ctx context.Context, topicPattern string, handler Handler) (func() error, error) {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()
	if client == nil {
		return nil, errors.New("bus: not connected")
	}

	tok := client.Subscribe(topicPattern, 1, func(_ paho.Client, msg paho.Message) {
		handler(Message{
			Topic:   msg.Topic(),
			Payload: msg.Payload(),
			Retain:  msg.Retained(),
			QoS:     QoS(msg.Qos()),
		})
	})
	if !tok.WaitTimeout(10 * time.Second) {
		return nil, errors.New("bus: subscribe timeout")
	}
	if tok.Error() != nil {
		return nil, tok.Error()
	}

	return func() error {
		ut := client.Unsubscribe(topicPattern)
		if !ut.WaitTimeout(10 * time.Second) {
			return errors.New("bus: unsubscribe timeout")
		}
		return ut.Error()
	}, nil
}

func (b *PahoBus) ConnectAndSubscribe(ctx context.Context, subs map[string]Handler) error {
	if err := b.Connect(ctx); err != nil {
		return fmt.Errorf("bus: connect: %w", err)
	}
	for topic, handler := range subs {
		if _, err := b.Subscribe(ctx, topic, handler); err != nil {
			return fmt.Errorf("bus: subscribe %s: %w", topic, err)
		}
	}
	return nil
}
