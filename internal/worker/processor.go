package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/cuongbtq/meeting-pipeline/internal/queue"
)

// processJob claims the job record, runs the pipeline under the job timeout and records the outcome.
// Errors that may succeed on another attempt are returned as domain.RetryableError.
func (w *Worker) processJob(ctx context.Context, jm *jobMessage) error {
	msg := jm.msg

	if err := w.records.MarkActive(ctx, msg.JobID, msg.Attempt); err != nil {
		if errors.Is(err, domain.ErrJobFinished) {
			return err
		}
		return domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	start := time.Now()
	summary, err := w.processor.Process(jobCtx, msg.Job, w.progressFunc(msg))

	switch {
	case err == nil:
		w.logger.Info("Job completed successfully",
			slog.String("job_id", msg.JobID),
			slog.String("run_id", msg.Job.RunID),
			slog.Int("succeeded", summary.Succeeded),
			slog.Int("failed", summary.Failed),
			slog.Duration("duration", time.Since(start)),
		)
		w.markCompleted(ctx, msg.JobID)
		return nil

	case errors.Is(err, domain.ErrRunAlreadyCompleted):
		w.markCompleted(ctx, msg.JobID)
		return err

	case errors.Is(err, domain.ErrInvalidPayload):
		return err
	}

	w.logger.Error("Job execution failed",
		slog.String("job_id", msg.JobID),
		slog.String("run_id", msg.Job.RunID),
		slog.Int("attempt", msg.Attempt),
		slog.Int("max_attempts", msg.MaxAttempts),
		slog.String("error", err.Error()),
	)

	return domain.NewRetryableError(fmt.Errorf("job execution failed: %w", err))
}

// scheduleRetry republishes the next attempt with the backoff delay and records when it will run
func (w *Worker) scheduleRetry(ctx context.Context, jm *jobMessage, cause error) error {
	msg := jm.msg
	delay := msg.Backoff().DelayFor(msg.Attempt)
	next := msg.Next()

	body, err := next.Encode()
	if err != nil {
		return err
	}

	if err := w.broker.PublishDelayed(ctx, body, queue.ContentType, delay); err != nil {
		return err
	}

	if err := w.records.MarkRetrying(ctx, msg.JobID, cause.Error(), time.Now().Add(delay)); err != nil {
		w.logger.Warn("Failed to record retry on job",
			slog.String("job_id", msg.JobID),
			slog.String("error", err.Error()),
		)
	}

	w.logger.Info("Job will be retried",
		slog.String("job_id", msg.JobID),
		slog.Int("next_attempt", next.Attempt),
		slog.Int("max_attempts", msg.MaxAttempts),
		slog.Duration("retry_after", delay),
	)

	return nil
}

func (w *Worker) markCompleted(ctx context.Context, jobID string) {
	if err := w.records.MarkCompleted(ctx, jobID); err != nil {
		// the run itself is already settled, so the delivery is still acked
		w.logger.Error("Failed to update job status to COMPLETED",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

func (w *Worker) progressFunc(msg *queue.Message) queue.ProgressFunc {
	if w.progress == nil {
		return func(context.Context, int) {}
	}
	return w.progress.For(msg.JobID, msg.Job.RunID)
}
