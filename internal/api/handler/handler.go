package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/cuongbtq/meeting-pipeline/internal/queue"
	"github.com/cuongbtq/meeting-pipeline/internal/store"
)

// RunRepository is the run persistence used by the handlers
type RunRepository interface {
	CreateIfAbsent(ctx context.Context, in domain.NewRun) (*domain.Run, bool, error)
	GetByID(ctx context.Context, runID string) (*domain.Run, error)
	GetByMeetingID(ctx context.Context, meetingID string) (*domain.Run, error)
	List(ctx context.Context, filter store.RunFilter) ([]*domain.Run, error)
}

// OutputReader lists the outputs of a run
type OutputReader interface {
	ListByRun(ctx context.Context, runID string) ([]*domain.Output, error)
}

// JobEnqueuer submits pipeline jobs
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job queue.Job, opts queue.Options) (string, error)
}

// TranscriptFetcher loads a meeting transcript from the recording provider
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, meetingID string) (string, error)
}

// Dependencies holds all dependencies needed by handlers
// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Logger          *slog.Logger
	Runs            RunRepository
	Outputs         OutputReader
	Jobs            JobEnqueuer
	Transcripts     TranscriptFetcher // nil when no provider API key is configured
	WebhookSecret   string
	SignatureHeader string
	QueueOptions    queue.Options
	ServiceName     string
	Database        Pinger // optional readiness check for /health
}
