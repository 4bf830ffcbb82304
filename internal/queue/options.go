package queue

import "time"

// BackoffExponential doubles the delay after every failed attempt
const BackoffExponential = "exponential"

// Defaults applied when options are left zero
const (
	DefaultMaxAttempts  = 3
	DefaultBackoffDelay = 2 * time.Second
)

// BackoffPolicy computes the wait before a retry
type BackoffPolicy struct {
	Type  string
	Delay time.Duration
}

// DelayFor returns the wait after the given failed attempt (1-based): Delay * 2^(attempt-1).
func (b BackoffPolicy) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	if b.Type != "" && b.Type != BackoffExponential {
		return b.Delay
	}

	// cap the shift so the duration cannot overflow
	shift := attempt - 1
	if shift > 20 {
		shift = 20
	}

	return b.Delay << uint(shift)
}

// Options control how a job is retried
type Options struct {
	MaxAttempts int
	Backoff     BackoffPolicy
}

// DefaultOptions returns three attempts with a 2s exponential backoff
func DefaultOptions() Options {
	return Options{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     BackoffPolicy{Type: BackoffExponential, Delay: DefaultBackoffDelay},
	}
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Backoff.Type == "" {
		o.Backoff.Type = BackoffExponential
	}
	if o.Backoff.Delay <= 0 {
		o.Backoff.Delay = DefaultBackoffDelay
	}
	return o
}
