package worker

import (
	"context"
	"log/slog"
)

// FailedJob describes a job that will not be attempted again
type FailedJob struct {
	JobID    string
	RunID    string
	Attempts int
	Err      error
}

// FailureObserver is notified of terminal job failures
type FailureObserver interface {
	JobFailed(ctx context.Context, job FailedJob)
}

// LogFailureObserver reports terminal failures as error-level logs
type LogFailureObserver struct {
	logger *slog.Logger
}

// NewLogFailureObserver creates a LogFailureObserver
func NewLogFailureObserver(logger *slog.Logger) *LogFailureObserver {
	return &LogFailureObserver{logger: logger}
}

func (o *LogFailureObserver) JobFailed(ctx context.Context, job FailedJob) {
	o.logger.ErrorContext(ctx, "Job failed permanently",
		slog.String("job_id", job.JobID),
		slog.String("run_id", job.RunID),
		slog.Int("attempts", job.Attempts),
		slog.String("error", job.Err.Error()),
	)
}
