package api

import (
	"net/http"
	"time"
)

// HealthHandler reports whether the store is reachable.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "health"

	if s.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no store"})
		s.observe(endpoint, http.StatusServiceUnavailable, start)
		return
	}
	if err := s.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "redis unavailable"})
		s.observe(endpoint, http.StatusServiceUnavailable, start)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	s.observe(endpoint, http.StatusOK, start)
}
