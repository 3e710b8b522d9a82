// Package history journals terminal job outcomes to Postgres for
// reporting. It is write-only observability: the queue never reads jobs
// back from it, and losing the database never blocks printing.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/printrelay/printrelay/internal/dispatch"
	"github.com/printrelay/printrelay/internal/logger"
)

const insertTimeout = 5 * time.Second

// Connect opens the journal database and verifies it is reachable.
func Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// RunMigrations applies the goose migrations in dir.
func RunMigrations(db *sql.DB, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Store records finished jobs. Writes are buffered and applied by a
// background worker so the dispatcher never waits on the database.
type Store struct {
	db    *sql.DB
	tasks chan dispatch.Event
	done  chan struct{}
	wg    sync.WaitGroup
}

func NewStore(db *sql.DB) *Store {
	s := &Store{
		db:    db,
		tasks: make(chan dispatch.Event, 100),
		done:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// JobTransition implements dispatch.Sink. Only terminal transitions are
// journaled; intermediate ones are visible live via the queue and the
// websocket hub.
func (s *Store) JobTransition(ev dispatch.Event) {
	if !ev.NewState.Terminal() {
		return
	}
	select {
	case s.tasks <- ev:
	default:
		logger.WithComponent("history").Warn().Str("job_id", ev.JobID).Msg("Journal buffer full, dropping record")
	}
}

func (s *Store) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			// Flush what is already buffered before exiting.
			for {
				select {
				case ev := <-s.tasks:
					s.record(ev)
				default:
					return
				}
			}
		case ev := <-s.tasks:
			s.record(ev)
		}
	}
}

func (s *Store) record(ev dispatch.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	query := `
		INSERT INTO print_jobs (job_id, final_state, attempts, failure_kind, error, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (job_id) DO UPDATE
		SET final_state = EXCLUDED.final_state,
		    attempts = EXCLUDED.attempts,
		    failure_kind = EXCLUDED.failure_kind,
		    error = EXCLUDED.error,
		    finished_at = EXCLUDED.finished_at
	`

	_, err := s.db.ExecContext(ctx, query,
		ev.JobID, string(ev.NewState), ev.Attempts, string(ev.Kind), ev.Error, ev.At)
	if err != nil {
		logger.WithComponent("history").Error().Err(err).Str("job_id", ev.JobID).Msg("Failed to journal job outcome")
	}
}

// Ping reports whether the journal database is reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Stop flushes buffered records and stops the worker.
func (s *Store) Stop() {
	close(s.done)
	s.wg.Wait()
}
