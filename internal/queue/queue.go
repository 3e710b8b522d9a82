// Package queue holds the in-memory print-job queue. It is the only piece
// of state shared between the ingress goroutines and the dispatcher, so
// every operation serializes on one mutex and jobs never leave the package
// as live pointers: callers get value copies and mutate through methods.
package queue

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/printrelay/printrelay/internal/jobs"
	"github.com/printrelay/printrelay/internal/metrics"
)

var (
	ErrDuplicateID = errors.New("job id already queued")
	ErrNotFound    = errors.New("job not found")
	ErrInFlight    = errors.New("job is in flight")
)

// Queue is an ordered store of pending and in-flight print jobs.
//
// Ordering invariant: jobs that have never failed are dispatched strictly
// FIFO. A job that failed and is waiting for its retry deadline yields its
// turn: it is only picked when no never-failed job is ready.
type Queue struct {
	mu      sync.Mutex
	byID    map[string]*jobs.PrintJob
	pending []*jobs.PrintJob // never-failed, FIFO
	waiting []*jobs.PrintJob // WaitingRetry, ordered by NextAttemptAt
	notify  chan struct{}
}

func New() *Queue {
	return &Queue{
		byID:   make(map[string]*jobs.PrintJob),
		notify: make(chan struct{}, 1),
	}
}

// Enqueue inserts a new pending job at the tail. The id must not collide
// with any job still tracked, including one currently in flight.
func (q *Queue) Enqueue(j *jobs.PrintJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.byID[j.ID]; exists {
		return ErrDuplicateID
	}

	j.State = jobs.StatePending
	if j.EnqueuedAt.IsZero() {
		j.EnqueuedAt = time.Now()
	}

	q.byID[j.ID] = j
	q.pending = append(q.pending, j)
	metrics.QueueDepth.Set(float64(len(q.byID)))

	q.signal()
	return nil
}

// DequeueReady removes and returns the next job eligible for dispatch:
// the head of the never-failed FIFO, or failing that the earliest retry
// whose deadline has elapsed. The returned copy is already marked
// in-flight with its attempt counted. Returns false if nothing is ready.
func (q *Queue) DequeueReady(now time.Time) (jobs.PrintJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var j *jobs.PrintJob
	switch {
	case len(q.pending) > 0:
		j = q.pending[0]
		q.pending = q.pending[1:]
	case len(q.waiting) > 0 && !q.waiting[0].NextAttemptAt.After(now):
		j = q.waiting[0]
		q.waiting = q.waiting[1:]
	default:
		return jobs.PrintJob{}, false
	}

	j.State = jobs.StateInFlight
	j.Attempts++
	j.NextAttemptAt = time.Time{}
	return *j, true
}

// Requeue puts a failed job back under WaitingRetry with its next attempt
// deadline. Never-failed jobs keep priority over it regardless of deadline.
func (q *Queue) Requeue(id string, errMsg string, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.byID[id]
	if !ok {
		return ErrNotFound
	}

	j.State = jobs.StateWaitingRetry
	j.LastError = errMsg
	j.NextAttemptAt = at

	idx := sort.Search(len(q.waiting), func(i int) bool {
		return q.waiting[i].NextAttemptAt.After(at)
	})
	q.waiting = append(q.waiting, nil)
	copy(q.waiting[idx+1:], q.waiting[idx:])
	q.waiting[idx] = j

	q.signal()
	return nil
}

// Remove deletes a job unconditionally. Used on terminal outcomes; the
// caller keeps its own copy for reporting.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.byID[id]
	if !ok {
		return
	}
	delete(q.byID, id)
	q.pending = drop(q.pending, j)
	q.waiting = drop(q.waiting, j)
	metrics.QueueDepth.Set(float64(len(q.byID)))
}

// Take removes a job that is not currently being printed, for
// cancellation. An in-flight job cannot be taken back from the printer.
func (q *Queue) Take(id string) (jobs.PrintJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.byID[id]
	if !ok {
		return jobs.PrintJob{}, ErrNotFound
	}
	if j.State == jobs.StateInFlight {
		return jobs.PrintJob{}, ErrInFlight
	}

	delete(q.byID, id)
	q.pending = drop(q.pending, j)
	q.waiting = drop(q.waiting, j)
	metrics.QueueDepth.Set(float64(len(q.byID)))
	return *j, nil
}

// Job returns a copy of a tracked job.
func (q *Queue) Job(id string) (jobs.PrintJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.byID[id]
	if !ok {
		return jobs.PrintJob{}, false
	}
	return *j, true
}

// Snapshot returns copies of all tracked jobs in enqueue order.
func (q *Queue) Snapshot() []jobs.PrintJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]jobs.PrintJob, 0, len(q.byID))
	for _, j := range q.byID {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].EnqueuedAt.Equal(out[k].EnqueuedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].EnqueuedAt.Before(out[k].EnqueuedAt)
	})
	return out
}

// Depth reports how many jobs are tracked, in-flight included.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byID)
}

// NextWake returns how long until the earliest retry deadline, or false
// if nothing is queued. A zero duration means a job is ready now.
func (q *Queue) NextWake(now time.Time) (time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) > 0 {
		return 0, true
	}
	if len(q.waiting) == 0 {
		return 0, false
	}
	d := q.waiting[0].NextAttemptAt.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Notify yields a channel that receives a tick whenever the ready set may
// have changed. The dispatcher blocks on it between cycles.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func drop(list []*jobs.PrintJob, j *jobs.PrintJob) []*jobs.PrintJob {
	for i, e := range list {
		if e == j {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
