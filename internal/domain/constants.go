package domain

// Run status constants
const (
	RunStatusPending    = "pending"
	RunStatusProcessing = "processing"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
)

// Job record status constants
const (
	JobStatusQueued    = "queued"
	JobStatusActive    = "active"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Log levels used in the run log
const (
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// IsTerminalRunStatus reports whether a run in the given status has finished its attempt.
func IsTerminalRunStatus(status string) bool {
	return status == RunStatusCompleted || status == RunStatusFailed
}

// allowedTransitions lists, for each target status, the statuses a run may move from.
// A failed run re-enters processing only when the queue retries its job.
var allowedTransitions = map[string][]string{
	RunStatusProcessing: {RunStatusPending, RunStatusProcessing, RunStatusFailed},
	RunStatusCompleted:  {RunStatusProcessing},
	RunStatusFailed:     {RunStatusProcessing},
}

// AllowedFrom returns the statuses from which a run may move to target.
func AllowedFrom(target string) []string {
	from := allowedTransitions[target]
	out := make([]string, len(from))
	copy(out, from)
	return out
}

// CanTransition reports whether a run may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range allowedTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// ValidRunStatus reports whether status is one of the run statuses
func ValidRunStatus(status string) bool {
	switch status {
	case RunStatusPending, RunStatusProcessing, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}
