package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Service    string    `json:"service"`
	QueueDepth int       `json:"queue_depth"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Timestamp:  time.Now(),
		Service:    "printrelay",
		QueueDepth: s.queue.Depth(),
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "alive",
		Timestamp:  time.Now(),
		Service:    "printrelay",
		QueueDepth: s.queue.Depth(),
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	for _, p := range s.ready {
		if err := p.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{
				Status:     "not ready",
				Timestamp:  time.Now(),
				Service:    "printrelay",
				QueueDepth: s.queue.Depth(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ready",
		Timestamp:  time.Now(),
		Service:    "printrelay",
		QueueDepth: s.queue.Depth(),
	})
}
