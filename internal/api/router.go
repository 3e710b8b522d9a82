package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/printrelay/printrelay/internal/logger"
	"github.com/printrelay/printrelay/internal/queue"
	"github.com/printrelay/printrelay/internal/ws"
)

func (s *Server) addRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.HandleFunc("/jobs/", s.handleJobByID)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.Handle(s.hub, w, r)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/live", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobs := s.queue.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" {
		http.Error(w, "Job ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, ok := s.queue.Job(id)
		if !ok {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, job)

	case http.MethodDelete:
		err := s.dispatcher.Cancel(id)
		switch {
		case errors.Is(err, queue.ErrNotFound):
			http.Error(w, "Job not found", http.StatusNotFound)
		case errors.Is(err, queue.ErrInFlight):
			http.Error(w, "Job is printing and cannot be cancelled", http.StatusConflict)
		case err != nil:
			http.Error(w, "Failed to cancel job", http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNoContent)
		}

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("api").Error().Err(err).Msg("Failed to encode response")
	}
}
