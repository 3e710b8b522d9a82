package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/printrelay/printrelay/internal/dispatch"
	"github.com/printrelay/printrelay/internal/logger"
	"github.com/printrelay/printrelay/internal/queue"
	"github.com/printrelay/printrelay/internal/ws"
)

// Pinger is anything the readiness probe should verify, e.g. the history
// database or the printer transport.
type Pinger interface {
	Ping() error
}

type Server struct {
	httpServer *http.Server
	queue      *queue.Queue
	dispatcher *dispatch.Dispatcher
	hub        *ws.Hub
	ready      []Pinger
}

func NewServer(q *queue.Queue, d *dispatch.Dispatcher, hub *ws.Hub, port int, readTimeout, writeTimeout time.Duration, ready ...Pinger) *Server {
	s := &Server{
		queue:      q,
		dispatcher: d,
		hub:        hub,
		ready:      ready,
	}

	mux := http.NewServeMux()
	s.addRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	logger.WithComponent("api").Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
