package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher sends an encoded message to the broker
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// RecordStore persists job records
type RecordStore interface {
	Create(ctx context.Context, jobID, runID string, opts Options) error
	MarkFailed(ctx context.Context, jobID, lastErr string) error
}

// Producer submits jobs to the queue
type Producer struct {
	publisher Publisher
	records   RecordStore
	logger    *slog.Logger
}

// NewProducer creates a new Producer
func NewProducer(publisher Publisher, records RecordStore, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		records:   records,
		logger:    logger,
	}
}

// Enqueue validates job, records it as queued and publishes its first attempt.
func (p *Producer) Enqueue(ctx context.Context, job Job, opts Options) (string, error) {
	if err := job.Validate(); err != nil {
		return "", err
	}

	opts = opts.withDefaults()
	jobID := uuid.New().String()

	if err := p.records.Create(ctx, jobID, job.RunID, opts); err != nil {
		return "", err
	}

	msg := &Message{
		JobID:       jobID,
		Attempt:     1,
		MaxAttempts: opts.MaxAttempts,
		BackoffMS:   opts.Backoff.Delay.Milliseconds(),
		EnqueuedAt:  time.Now().UTC(),
		Job:         job,
	}

	body, err := msg.Encode()
	if err != nil {
		return "", err
	}

	if err := p.publisher.PublishWithRetry(ctx, body, ContentType); err != nil {
		if markErr := p.records.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
			p.logger.Error("Failed to mark unpublished job as failed",
				slog.String("job_id", jobID),
				slog.String("error", markErr.Error()),
			)
		}
		return "", fmt.Errorf("failed to publish job: %w", err)
	}

	p.logger.Info("Job enqueued",
		slog.String("job_id", jobID),
		slog.String("run_id", job.RunID),
		slog.Int("max_attempts", opts.MaxAttempts),
	)

	return jobID, nil
}
