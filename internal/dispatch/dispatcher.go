// Package dispatch runs the delivery loop: one goroutine pulling jobs off
// the queue, encoding them and sending them to the printer, feeding every
// failure through the retry policy. It is the only writer of job state
// after creation, which is what keeps the single-in-flight guarantee.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/printrelay/printrelay/internal/jobs"
	"github.com/printrelay/printrelay/internal/logger"
	"github.com/printrelay/printrelay/internal/metrics"
	"github.com/printrelay/printrelay/internal/queue"
	"github.com/printrelay/printrelay/internal/retry"
)

const DefaultSendTimeout = 5 * time.Second

// Encoder turns a receipt into a raw printer command buffer. Encoding
// failures are always permanent: the payload will not get better.
type Encoder interface {
	Encode(r *jobs.Receipt) ([]byte, error)
}

// Transport sends a raw command buffer to the physical device. It decides
// the failure classification by returning a *jobs.Error; anything else is
// treated as transient.
type Transport interface {
	Send(ctx context.Context, raw []byte) error
}

// Dispatcher is the single consumer bound to one queue and one printer.
type Dispatcher struct {
	queue       *queue.Queue
	encoder     Encoder
	transport   Transport
	policy      *retry.Policy
	sinks       []Sink
	sendTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(q *queue.Queue, enc Encoder, tr Transport, pol *retry.Policy, sendTimeout time.Duration, sinks ...Sink) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		queue:       q,
		encoder:     enc,
		transport:   tr,
		policy:      pol,
		sinks:       sinks,
		sendTimeout: sendTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the dispatch loop.
func (d *Dispatcher) Start() {
	logger.WithComponent("dispatch").Info().Msg("Starting dispatcher")
	d.wg.Add(1)
	go d.run()
}

// Stop shuts the loop down. An attempt already handed to the printer runs
// to completion or to its send timeout; pending jobs are left behind.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	logger.WithComponent("dispatch").Info().Msg("Dispatcher stopped")
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		if d.ctx.Err() != nil {
			return
		}

		job, ok := d.queue.DequeueReady(time.Now())
		if !ok {
			if !d.wait() {
				return
			}
			continue
		}

		d.process(job)
	}
}

// wait blocks until a job is enqueued, the earliest retry deadline
// elapses, or shutdown begins. This is the loop's only suspension point.
func (d *Dispatcher) wait() bool {
	var timerC <-chan time.Time
	if until, ok := d.queue.NextWake(time.Now()); ok {
		timer := time.NewTimer(until)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case <-d.ctx.Done():
		return false
	case <-d.queue.Notify():
		return true
	case <-timerC:
		return true
	}
}

// process runs one attempt for a job already marked in flight by the
// queue and applies the resulting transition.
func (d *Dispatcher) process(job jobs.PrintJob) {
	oldState := jobs.StatePending
	if job.Attempts > 1 {
		oldState = jobs.StateWaitingRetry
	}
	d.emit(Event{
		JobID:    job.ID,
		OldState: oldState,
		NewState: jobs.StateInFlight,
		Attempts: job.Attempts,
		At:       time.Now(),
	})

	log := logger.WithJobID(job.ID)
	log.Info().
		Int("attempt", job.Attempts).
		Int("max_attempts", d.policy.MaxAttempts).
		Msg("Printing job")

	metrics.DispatchAttemptsTotal.Inc()
	start := time.Now()
	err := d.attempt(job.Receipt)
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())

	if err == nil {
		d.queue.Remove(job.ID)
		metrics.JobsSucceededTotal.Inc()
		d.emit(Event{
			JobID:    job.ID,
			OldState: jobs.StateInFlight,
			NewState: jobs.StateSucceeded,
			Attempts: job.Attempts,
			At:       time.Now(),
		})
		log.Info().Int("attempt", job.Attempts).Msg("Job printed")
		return
	}

	kind := jobs.Classify(err)
	dec := d.policy.Decide(job.Attempts, kind)

	if dec.Retry {
		at := time.Now().Add(dec.Delay)
		if qErr := d.queue.Requeue(job.ID, err.Error(), at); qErr != nil {
			log.Error().Err(qErr).Msg("Failed to requeue job")
			return
		}
		d.emit(Event{
			JobID:    job.ID,
			OldState: jobs.StateInFlight,
			NewState: jobs.StateWaitingRetry,
			Attempts: job.Attempts,
			Error:    err.Error(),
			At:       time.Now(),
		})
		log.Warn().
			Err(err).
			Int("attempt", job.Attempts).
			Dur("retry_in", dec.Delay).
			Msg("Print attempt failed, will retry")
		return
	}

	d.queue.Remove(job.ID)
	metrics.JobsFailedTotal.WithLabelValues(string(dec.Kind)).Inc()
	d.emit(Event{
		JobID:    job.ID,
		OldState: jobs.StateInFlight,
		NewState: jobs.StateFailed,
		Attempts: job.Attempts,
		Kind:     dec.Kind,
		Error:    err.Error(),
		At:       time.Now(),
	})
	log.Error().
		Err(err).
		Int("attempt", job.Attempts).
		Str("kind", string(dec.Kind)).
		Msg("Job failed permanently")
}

// attempt encodes and sends one job. The send context is detached from
// the dispatcher context so a shutdown drains the attempt instead of
// tearing the printer connection down mid-write.
func (d *Dispatcher) attempt(r *jobs.Receipt) error {
	raw, err := d.encoder.Encode(r)
	if err != nil {
		return jobs.Permanent(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	err = d.transport.Send(ctx, raw)
	if errors.Is(err, context.DeadlineExceeded) {
		return jobs.Transient(err)
	}
	return err
}

// Cancel finalizes a job that has not reached the printer yet. In-flight
// jobs cannot be cancelled.
func (d *Dispatcher) Cancel(id string) error {
	job, err := d.queue.Take(id)
	if err != nil {
		return err
	}

	metrics.JobsFailedTotal.WithLabelValues(string(jobs.KindCancelled)).Inc()
	d.emit(Event{
		JobID:    job.ID,
		OldState: job.State,
		NewState: jobs.StateFailed,
		Attempts: job.Attempts,
		Kind:     jobs.KindCancelled,
		At:       time.Now(),
	})
	logger.WithJobID(id).Info().Msg("Job cancelled")
	return nil
}
