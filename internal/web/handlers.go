package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/addrclean/internal/logging"
)

const healthCheckTimeout = 2 * time.Second

// handleHealth reports database reachability and processing capacity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := map[string]any{
		"status":     "ok",
		"processing": s.service.Limiter().Status(),
		"llm":        s.service.EnhancementEnabled(),
	}
	if err := s.service.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Error("health check failed", "error", err)
		status["status"] = "unavailable"
		writeJSONStatus(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, status)
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.Regions())
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.caller(w, r)
	if !ok {
		return
	}
	stats, err := s.service.DashboardStats(r.Context(), uid)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, stats)
}
