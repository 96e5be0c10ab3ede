// Package api implements the gateway's REST and SSE surface: device
// actions and state, scenario control, room lookups and the three SSE
// event streams, all dispatched from one *http.ServeMux.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rustyeddy/otto/bus"
	"github.com/rustyeddy/otto/config"
	"github.com/rustyeddy/otto/logging"
	"github.com/rustyeddy/otto/manager"
	"github.com/rustyeddy/otto/scenario"
	"github.com/rustyeddy/otto/sse"
	"github.com/rustyeddy/otto/store"
)

// Deps bundles every collaborator the API surface dispatches to. None of
// these are owned by Server; callers construct and wire them.
type Deps struct {
	Manager   *manager.Manager
	Scenarios *scenario.Manager
	Store     store.Store
	SSE       *sse.Manager
	Bus       bus.Bus
	Rooms     config.Rooms
	Version   string
	BrokerURL string
	Log       *slog.Logger
	// Logging, if set, is mounted at /system/logging for runtime log
	// level/format/output reconfiguration. Optional: nil disables the route.
	Logging *logging.Service
}

// Server is the gateway's HTTP surface. It implements http.Handler
// directly, so callers wrap it in whatever *http.Server they like.
type Server struct {
	deps Deps
	mux  *http.ServeMux
}

func New(deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /system", s.handleSystem)
	s.mux.HandleFunc("POST /publish", s.handlePublish)
	if s.deps.Logging != nil {
		s.mux.Handle("/system/logging", s.deps.Logging)
	}

	s.mux.HandleFunc("GET /config/device/{id}", s.handleDeviceConfig)
	s.mux.HandleFunc("POST /devices/{id}/action", s.handleDeviceAction)
	s.mux.HandleFunc("GET /devices/{id}/state", s.handleDeviceState)
	s.mux.HandleFunc("GET /devices/{id}/persisted_state", s.handleDevicePersistedState)

	s.mux.HandleFunc("POST /scenario/switch", s.handleScenarioSwitch)
	s.mux.HandleFunc("POST /scenario/start", s.handleScenarioStart)
	s.mux.HandleFunc("POST /scenario/shutdown", s.handleScenarioShutdown)
	s.mux.HandleFunc("POST /scenario/role_action", s.handleScenarioRoleAction)
	s.mux.HandleFunc("GET /scenario/state", s.handleScenarioState)
	s.mux.HandleFunc("GET /scenario/definition", s.handleScenarioDefinitions)
	s.mux.HandleFunc("GET /scenario/definition/{id}", s.handleScenarioDefinition)
	s.mux.HandleFunc("GET /scenario/virtual_config", s.handleVirtualConfigAll)
	s.mux.HandleFunc("GET /scenario/virtual_config/{id}", s.handleVirtualConfigOne)

	s.mux.HandleFunc("GET /room/list", s.handleRoomList)
	s.mux.HandleFunc("GET /room/{id}", s.handleRoomGet)

	s.mux.HandleFunc("GET /events/devices", s.handleEvents(sse.ChannelDevices))
	s.mux.HandleFunc("GET /events/scenarios", s.handleEvents(sse.ChannelScenarios))
	s.mux.HandleFunc("GET /events/system", s.handleEvents(sse.ChannelSystem))
	s.mux.HandleFunc("GET /events/stats", s.handleEventStats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
