package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/queue"
)

// DefaultProgressChannel is the Redis channel progress events are published on
const DefaultProgressChannel = "pipeline:progress"

// ProgressStore persists the latest progress of a job record
type ProgressStore interface {
	UpdateProgress(ctx context.Context, jobID string, percent int) error
}

// ProgressPublisher broadcasts progress events
type ProgressPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// ProgressEvent is the payload published for each progress update
type ProgressEvent struct {
	JobID     string    `json:"job_id"`
	RunID     string    `json:"run_id"`
	Progress  int       `json:"progress"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressReporter writes progress to the job record and publishes it.
// Reporting never fails the job: errors are logged and dropped.
type ProgressReporter struct {
	store     ProgressStore
	publisher ProgressPublisher
	channel   string
	logger    *slog.Logger
}

// NewProgressReporter creates a reporter. publisher may be nil when Redis is not configured.
func NewProgressReporter(store ProgressStore, publisher ProgressPublisher, channel string, logger *slog.Logger) *ProgressReporter {
	if channel == "" {
		channel = DefaultProgressChannel
	}
	return &ProgressReporter{
		store:     store,
		publisher: publisher,
		channel:   channel,
		logger:    logger,
	}
}

// For returns a ProgressFunc bound to one job
func (r *ProgressReporter) For(jobID, runID string) queue.ProgressFunc {
	return func(ctx context.Context, percent int) {
		r.Report(ctx, jobID, runID, percent)
	}
}

// Report records percent for the job, clamped to [0, 100]
func (r *ProgressReporter) Report(ctx context.Context, jobID, runID string, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	if r.store != nil {
		if err := r.store.UpdateProgress(ctx, jobID, percent); err != nil {
			r.logger.Warn("Failed to store job progress",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
	}

	if r.publisher == nil {
		return
	}

	if err := r.publish(ctx, ProgressEvent{JobID: jobID, RunID: runID, Progress: percent, Timestamp: time.Now().UTC()}); err != nil {
		r.logger.Warn("Failed to publish job progress",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *ProgressReporter) publish(ctx context.Context, event ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}
	return r.publisher.Publish(ctx, r.channel, payload)
}
