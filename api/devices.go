package api

import (
	"encoding/json"
	"net/http"

	"github.com/rustyeddy/otto/store"
)

// handleDeviceConfig answers GET /config/device/{id} with the device's id
// and its resolved command table, the same view a WB control screen would
// build from.
func (s *Server) handleDeviceConfig(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	drv, ok := s.deps.Manager.Device(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown device")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": drv.ID(),
		"commands":  drv.AvailableCommands(),
	})
}

// handleDeviceAction answers POST /devices/{id}/action, routing the
// requested command through the Device Manager's per-device FIFO worker.
func (s *Server) handleDeviceAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Action string         `json:"action"`
		Params map[string]any `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	resp, err := s.deps.Manager.PerformAction(r.Context(), id, req.Action, req.Params)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

// handleDeviceState answers GET /devices/{id}/state with the driver's live,
// in-memory State.
func (s *Server) handleDeviceState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	drv, ok := s.deps.Manager.Device(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown device")
		return
	}
	writeJSON(w, http.StatusOK, drv.CurrentState())
}

// handleDevicePersistedState answers GET /devices/{id}/persisted_state with
// whatever the State Repository last durably recorded, including its
// injected _timestamp field, regardless of what the live driver now holds.
func (s *Server) handleDevicePersistedState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	raw, found := s.deps.Store.Load(r.Context(), store.DeviceKey(id))
	if !found {
		writeError(w, http.StatusNotFound, "no persisted state")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
