// Package wbproto implements the Wiren Board virtual-device wire
// conventions shared by the device runtime, the scenario WB adapter and the
// MQTT bus port: topic shapes, wildcard matching, and control value
// encoding. It has no dependency on any other package in this module so it
// can sit underneath bus, device and scenario without risk of import
// cycles.
package wbproto

import (
	"path"
	"strconv"
	"strings"
)

// Topic builds the fixed `/devices/{id}/...` topic shapes described in the
// device runtime's WB virtual device protocol.
type Topic struct {
	DeviceID string
}

func For(deviceID string) Topic { return Topic{DeviceID: deviceID} }

func (t Topic) base() string { return path.Join("/devices", t.DeviceID) }

func (t Topic) Meta() string          { return t.base() + "/meta" }
func (t Topic) MetaAvailable() string { return t.base() + "/meta/available" }
func (t Topic) MetaError() string     { return t.base() + "/meta/error" }

func (t Topic) ControlMeta(control string) string {
	return path.Join(t.base(), "controls", control, "meta")
}

func (t Topic) Control(control string) string {
	return path.Join(t.base(), "controls", control)
}

func (t Topic) ControlSet(control string) string {
	return path.Join(t.base(), "controls", control, "on")
}

// ParseControlSet extracts (deviceID, control) from a `/devices/{id}/controls/{c}/on`
// topic. ok is false if the topic doesn't match that shape.
func ParseControlSet(topic string) (deviceID, control string, ok bool) {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) != 5 || parts[0] != "devices" || parts[2] != "controls" || parts[4] != "on" {
		return "", "", false
	}
	return parts[1], parts[3], true
}

// ParseMeta extracts (deviceID, kind) from a device's own
// `/devices/{id}/meta/available` or `/devices/{id}/meta/error` topic.
// kind is "available" or "error". ok is false for any other topic shape.
func ParseMeta(topic string) (deviceID, kind string, ok bool) {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) != 4 || parts[0] != "devices" || parts[2] != "meta" {
		return "", "", false
	}
	if parts[3] != "available" && parts[3] != "error" {
		return "", "", false
	}
	return parts[1], parts[3], true
}

// MatchTopic reports whether topic matches an MQTT topic filter pattern,
// including the `+` (single level) and `#` (multi level, trailing only)
// wildcards.
func MatchTopic(pattern, topic string) bool {
	pp := strings.Split(pattern, "/")
	tp := strings.Split(topic, "/")

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

// EncodeBool renders a boolean control value the way WB controls expect it
// on the wire: "1" or "0".
func EncodeBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// DecodeBool parses the truthy forms accepted on a control's /on topic.
func DecodeBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}

// EncodeNumber renders a numeric value as a decimal string control payload.
func EncodeNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
