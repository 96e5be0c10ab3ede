package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rustyeddy/otto/scenario"
)

// handleScenarioSwitch answers POST /scenario/switch: minimal-disruption
// transition into {id}, sharing devices with the outgoing scenario when
// graceful is true.
func (s *Server) handleScenarioSwitch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string `json:"id"`
		Graceful bool   `json:"graceful"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	result, err := s.deps.Scenarios.Switch(r.Context(), req.ID, req.Graceful)
	if err != nil {
		writeScenarioError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleScenarioStart answers POST /scenario/start, refusing if any
// scenario is already active (use /scenario/switch for that).
func (s *Server) handleScenarioStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if current := s.deps.Scenarios.Current(); current != "" {
		writeError(w, http.StatusConflict, "scenario "+current+" is already active")
		return
	}
	result, err := s.deps.Scenarios.Switch(r.Context(), req.ID, true)
	if err != nil {
		writeScenarioError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleScenarioShutdown answers POST /scenario/shutdown, refusing if id
// is not the currently active scenario.
func (s *Server) handleScenarioShutdown(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if current := s.deps.Scenarios.Current(); current != req.ID {
		writeError(w, http.StatusConflict, "scenario "+req.ID+" is not the active scenario")
		return
	}
	s.deps.Scenarios.Shutdown(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleScenarioRoleAction answers POST /scenario/role_action, resolving
// role against the active scenario's Roles map.
func (s *Server) handleScenarioRoleAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role    string         `json:"role"`
		Command string         `json:"command"`
		Params  map[string]any `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Role == "" || req.Command == "" {
		writeError(w, http.StatusBadRequest, "role and command are required")
		return
	}
	resp, err := s.deps.Scenarios.ExecuteRoleAction(r.Context(), req.Role, req.Command, req.Params)
	if err != nil {
		writeScenarioError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleScenarioState answers GET /scenario/state, 404ing if no scenario
// is active.
func (s *Server) handleScenarioState(w http.ResponseWriter, r *http.Request) {
	st, ok := s.deps.Scenarios.State()
	if !ok {
		writeError(w, http.StatusNotFound, "no active scenario")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleScenarioDefinitions answers GET /scenario/definition with every
// loaded scenario.
func (s *Server) handleScenarioDefinitions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Scenarios.Definitions())
}

// handleScenarioDefinition answers GET /scenario/definition/{id}.
func (s *Server) handleScenarioDefinition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	def, ok := s.deps.Scenarios.Definition(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown scenario")
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleVirtualConfigAll answers GET /scenario/virtual_config with the
// synthesized WB command table of every scenario that has a registered
// adapter.
func (s *Server) handleVirtualConfigAll(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]any)
	for _, def := range s.deps.Scenarios.Definitions() {
		if view, ok := virtualConfigView(s.deps.Scenarios, def.ScenarioID); ok {
			out[def.ScenarioID] = view
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleVirtualConfigOne answers GET /scenario/virtual_config/{id}.
func (s *Server) handleVirtualConfigOne(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	view, ok := virtualConfigView(s.deps.Scenarios, id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown scenario or no registered adapter")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func virtualConfigView(mgr *scenario.Manager, id string) (map[string]any, bool) {
	adapter, ok := mgr.Adapter(id)
	if !ok {
		return nil, false
	}
	return map[string]any{
		"scenario_id": id,
		"commands":    adapter.AvailableCommands(),
	}, true
}

func writeScenarioError(w http.ResponseWriter, err error) {
	var scErr *scenario.Error
	if errors.As(err, &scErr) {
		writeError(w, http.StatusBadRequest, scErr.Error())
		return
	}
	var execErr *scenario.ExecutionError
	if errors.As(err, &execErr) {
		writeError(w, http.StatusUnprocessableEntity, execErr.Error())
		return
	}
	switch {
	case errors.Is(err, scenario.ErrUnknownScenario), errors.Is(err, scenario.ErrNoActiveScenario):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
