package api

import (
	"net/http"

	"github.com/rustyeddy/otto/sse"
)

// handleEvents returns a handler that pumps channel's SSE stream to the
// client until it disconnects. The returned closure is bound once per
// route at startup; channel never varies per-request.
func (s *Server) handleEvents(channel sse.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		if err := s.deps.SSE.CreateEventStream(r.Context(), channel, w, flusher.Flush); err != nil {
			s.deps.Log.Debug("api: event stream ended", "channel", channel, "error", err)
		}
	}
}

// handleEventStats answers GET /events/stats with per-channel subscriber
// counts and the lifetime broadcast counter.
func (s *Server) handleEventStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.SSE.Stats())
}
