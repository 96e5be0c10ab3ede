package api

import (
	"encoding/json"
	"net/http"

	"github.com/rustyeddy/otto/bus"
)

// handleSystem answers GET /system with the documented gateway identity
// snapshot: version, broker target, and the id lists of every registered
// device, loaded scenario and configured room.
func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	devices := s.deps.Manager.DeviceIDs()

	defs := s.deps.Scenarios.Definitions()
	scenarios := make([]string, 0, len(defs))
	for _, d := range defs {
		scenarios = append(scenarios, d.ScenarioID)
	}

	rooms := make([]string, 0, len(s.deps.Rooms))
	for id := range s.deps.Rooms {
		rooms = append(rooms, id)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":     s.deps.Version,
		"mqtt_broker": s.deps.BrokerURL,
		"devices":     devices,
		"scenarios":   scenarios,
		"rooms":       rooms,
	})
}

// handlePublish is the admin passthrough onto the message bus: it lets an
// operator publish an arbitrary payload without going through a device's
// action pipeline, for diagnostics.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic   string `json:"topic"`
		Payload string `json:"payload"`
		QoS     byte   `json:"qos"`
		Retain  bool   `json:"retain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	if s.deps.Bus == nil {
		writeError(w, http.StatusServiceUnavailable, "message bus unavailable")
		return
	}
	if err := s.deps.Bus.Publish(r.Context(), req.Topic, []byte(req.Payload), bus.QoS(req.QoS), req.Retain); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
