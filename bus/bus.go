// Package bus implements the Message Bus Port (spec component B): an
// abstract publish/subscribe surface over MQTT with device-level
// Last-Will-and-Testament registration.
package bus

import (
	"context"
	"time"
)

// QoS mirrors the MQTT quality-of-service levels the port accepts.
type QoS byte

const (
	QoSAtMostOnce  QoS = 0
	QoSAtLeastOnce QoS = 1
	QoSExactlyOnce QoS = 2
)

// Message is a decoded inbound MQTT message delivered to a subscription
// handler.
type Message struct {
	Topic   string
	Payload []byte
	Retain  bool
	QoS     QoS
}

// Handler processes one inbound message. Handlers are invoked
// cooperatively; a handler that blocks stalls delivery of subsequent
// messages on the same subscription.
type Handler func(Message)

// Will is a per-device Last-Will-and-Testament registration gathered by
// the bus and installed before (re)connecting.
type Will struct {
	DeviceID string
	Topic    string
	Payload  []byte
	QoS      QoS
	Retain   bool
}

// Bus is the Message Bus Port. connect/disconnect/wait_for_connection are
// idempotent; the adapter is responsible for retrying connect.
type Bus interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	WaitForConnection(ctx context.Context, timeout time.Duration) error
	IsConnected() bool

	Publish(ctx context.Context, topic string, payload []byte, qos QoS, retain bool) error
	Subscribe(ctx context.Context, topicPattern string, handler Handler) (unsubscribe func() error, err error)

	// AddWillMessage registers topic/payload as part of deviceID's will.
	// Installed as the session will the next time the bus (re)connects.
	AddWillMessage(deviceID, topic string, payload []byte, qos QoS, retain bool) error

	// RemoveDeviceWillMessages drops every will registered for deviceID.
	RemoveDeviceWillMessages(deviceID string)

	// ConnectAndSubscribe is the boot-time convenience: connect, then
	// subscribe every entry of the given topic->handler map.
	ConnectAndSubscribe(ctx context.Context, subs map[string]Handler) error
}
