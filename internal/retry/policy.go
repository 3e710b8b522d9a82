// Package retry decides whether a failed print attempt is tried again and
// how long to wait first. The decision is a pure function of the attempt
// count and failure kind, with jitter drawn from an injectable source so
// tests can fix the schedule.
package retry

import (
	"math/rand"
	"time"

	"github.com/printrelay/printrelay/internal/jobs"
)

const (
	DefaultMaxAttempts = 5
	DefaultBase        = 1 * time.Second
	DefaultCap         = 60 * time.Second

	// jitterFraction bounds the random spread around the exponential
	// delay: delay ± delay/4.
	jitterFraction = 4
)

// Decision is the outcome of consulting the policy after a failure.
type Decision struct {
	Retry bool
	Delay time.Duration
	// Kind is the failure kind to report when giving up. An exhausted
	// attempt budget overrides the original kind.
	Kind jobs.FailureKind
}

// Policy computes retry decisions. It is used by the single dispatcher
// goroutine only and is not safe for concurrent use.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
	rng         *rand.Rand
}

// NewPolicy builds a policy with the given limits. Zero values fall back
// to the defaults. The seed fixes the jitter sequence.
func NewPolicy(maxAttempts int, base, cap time.Duration, seed int64) *Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if base <= 0 {
		base = DefaultBase
	}
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		Base:        base,
		Cap:         cap,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Decide returns what to do after attempt number attempts (1-based) failed
// with the given kind.
func (p *Policy) Decide(attempts int, kind jobs.FailureKind) Decision {
	switch kind {
	case jobs.KindPermanent, jobs.KindCancelled:
		return Decision{Kind: kind}
	}

	if attempts >= p.MaxAttempts {
		return Decision{Kind: jobs.KindRetriesExhausted}
	}

	return Decision{Retry: true, Delay: p.backoff(attempts)}
}

// backoff is exponential in the attempt count, capped, with symmetric
// jitter of up to a quarter of the delay.
func (p *Policy) backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	shift := uint(attempts - 1)
	if shift > 16 {
		shift = 16
	}
	d := p.Base << shift
	if d > p.Cap || d <= 0 {
		d = p.Cap
	}

	spread := int64(d / jitterFraction)
	if spread > 0 {
		d += time.Duration(p.rng.Int63n(2*spread) - spread)
	}
	return d
}
