// Package ingress receives job-creation events from the backend and feeds
// the queue. It is the only place an inbound event can be discarded
// without ever becoming a job: malformed payloads are logged, counted and
// dropped, never fatal.
package ingress

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/printrelay/printrelay/internal/jobs"
	"github.com/printrelay/printrelay/internal/logger"
	"github.com/printrelay/printrelay/internal/metrics"
	"github.com/printrelay/printrelay/internal/queue"
)

// PurchaseCreated is the event name the backend emits for a new receipt.
const PurchaseCreated = "purchase-created"

// envelope is the wire framing of a backend event.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Intake converts raw purchase events into queued print jobs.
type Intake struct {
	queue *queue.Queue
}

func NewIntake(q *queue.Queue) *Intake {
	return &Intake{queue: q}
}

// Accept parses one purchase payload and enqueues a job for it. The
// returned job id is empty when the event was dropped.
func (in *Intake) Accept(source string, data []byte) string {
	log := logger.WithComponent("ingress")

	receipt, err := jobs.ParseReceipt(data)
	if err != nil {
		metrics.EventsRejectedTotal.Inc()
		log.Warn().Err(err).Str("source", source).Msg("Dropping malformed purchase event")
		return ""
	}

	job := &jobs.PrintJob{
		ID:         jobID(receipt),
		Receipt:    receipt,
		EnqueuedAt: time.Now(),
	}

	if err := in.queue.Enqueue(job); err != nil {
		if errors.Is(err, queue.ErrDuplicateID) {
			// Reconnect replays resend events we already hold; the
			// existing job is left untouched.
			log.Warn().Str("job_id", job.ID).Str("source", source).Msg("Dropping duplicate purchase event")
			return ""
		}
		log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to enqueue job")
		return ""
	}

	metrics.JobsEnqueuedTotal.Inc()
	log.Info().
		Str("job_id", job.ID).
		Str("source", source).
		Int("items", len(receipt.Items)).
		Msg("Job enqueued")
	return job.ID
}

// jobID derives a stable id from the backend purchase id when one is
// present, so replayed events dedupe instead of printing twice. Events
// without one get a generated id.
func jobID(r *jobs.Receipt) string {
	if r.PurchaseID > 0 {
		return fmt.Sprintf("purchase-%d", r.PurchaseID)
	}
	return uuid.New().String()
}
