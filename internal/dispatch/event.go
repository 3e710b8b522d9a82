package dispatch

import (
	"time"

	"github.com/printrelay/printrelay/internal/jobs"
)

// Event describes one job state transition, emitted for external
// monitoring. Emitting it is the dispatcher's only side effect besides
// queue mutation.
type Event struct {
	JobID    string           `json:"job_id"`
	OldState jobs.State       `json:"old_state"`
	NewState jobs.State       `json:"new_state"`
	Attempts int              `json:"attempts"`
	Kind     jobs.FailureKind `json:"kind,omitempty"`
	Error    string           `json:"error,omitempty"`
	At       time.Time        `json:"at"`
}

// Sink consumes job transition events. Implementations must not block:
// the dispatcher calls them inline between print attempts.
type Sink interface {
	JobTransition(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

func (f SinkFunc) JobTransition(ev Event) { f(ev) }

func (d *Dispatcher) emit(ev Event) {
	for _, s := range d.sinks {
		s.JobTransition(ev)
	}
}
