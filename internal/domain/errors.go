package domain

import "errors"

var (
	// ErrRunNotFound is returned when a run cannot be found in the database
	ErrRunNotFound = errors.New("run not found")

	// ErrOutputNotFound is returned when no output exists for a run/type pair
	ErrOutputNotFound = errors.New("output not found")

	// ErrInvalidTransition is returned when a status update would break the run state machine
	ErrInvalidTransition = errors.New("invalid run status transition")

	// ErrRunAlreadyCompleted is returned when a redelivered job targets a run that already completed
	ErrRunAlreadyCompleted = errors.New("run already completed")

	// ErrInvalidPayload is returned when a job message or envelope is malformed
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrJobFinished is returned when a redelivered message targets a job record that already finished
	ErrJobFinished = errors.New("job already finished")

	// ErrMaxRetriesExceeded is returned when a job has exhausted its attempts
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrUnknownDeliverable is returned when a tag is outside the closed deliverable set
	ErrUnknownDeliverable = errors.New("unknown deliverable type")
)

// RetryableError wraps transient errors that should trigger a delayed retry
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
