package jobs

import (
	"fmt"
	"time"
)

// State represents the current position of a job in its lifecycle.
type State string

const (
	StatePending      State = "pending"
	StateInFlight     State = "in_flight"
	StateWaitingRetry State = "waiting_retry"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
)

// Terminal reports whether the state has no outgoing transitions.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// FailureKind classifies a job failure for the retry policy.
type FailureKind string

const (
	// KindTransient covers failures expected to clear on their own:
	// device busy, connection reset, send timeout.
	KindTransient FailureKind = "transient"
	// KindPermanent covers failures retrying cannot fix: malformed
	// content, the device rejecting a command.
	KindPermanent FailureKind = "permanent"
	// KindRetriesExhausted is the terminal kind reported once a
	// transient failure has used up its attempt budget.
	KindRetriesExhausted FailureKind = "retries_exhausted"
	// KindCancelled marks a job removed by operator request.
	KindCancelled FailureKind = "cancelled"
)

// PrintJob is one unit of work: a receipt waiting to reach the printer.
// The dispatcher is the only mutator after creation; the queue serializes
// access to the fields it reads for ordering.
type PrintJob struct {
	ID            string    `json:"id"`
	Receipt       *Receipt  `json:"receipt"`
	State         State     `json:"state"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error,omitempty"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
	NextAttemptAt time.Time `json:"next_attempt_at,omitempty"`
}

// String returns a string representation of the job.
func (j *PrintJob) String() string {
	return fmt.Sprintf("PrintJob{ID: %s, State: %s, Attempts: %d}", j.ID, j.State, j.Attempts)
}
