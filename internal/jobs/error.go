package jobs

import "errors"

// Error is a job-level failure carrying its retry classification.
// Collaborators (encoder, transport) return it so the dispatcher can
// consult the retry policy without inspecting error strings.
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable failure.
func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Err: err}
}

// Permanent wraps err as a failure retrying cannot fix.
func Permanent(err error) *Error {
	return &Error{Kind: KindPermanent, Err: err}
}

// Classify extracts the failure kind from err. Errors without an explicit
// classification are treated as transient so an unexpected I/O fault does
// not silently discard a job.
func Classify(err error) FailureKind {
	var jerr *Error
	if errors.As(err, &jerr) {
		return jerr.Kind
	}
	return KindTransient
}
