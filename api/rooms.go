package api

import "net/http"

// handleRoomList answers GET /room/list with the full room directory.
func (s *Server) handleRoomList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Rooms)
}

// handleRoomGet answers GET /room/{id}.
func (s *Server) handleRoomGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	room, ok := s.deps.Rooms[id]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown room")
		return
	}
	writeJSON(w, http.StatusOK, room)
}
