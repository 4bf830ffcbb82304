package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"golang.org/x/sync/errgroup"
)

// settleAction is what happens to a delivery once its job has been processed
type settleAction int

const (
	actionAck settleAction = iota
	actionRetry
	actionFail
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context, g *errgroup.Group) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		workerNum := i
		g.Go(func() error {
			w.workerLoop(ctx, workerNum)
			return nil
		})
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Debug("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Debug("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case jm, ok := <-w.jobsChan:
			if !ok {
				w.logger.Debug("Worker goroutine stopping - jobsChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			w.logger.Info("Worker received job",
				slog.String("worker_name", workerName),
				slog.String("job_id", jm.msg.JobID),
				slog.String("run_id", jm.msg.Job.RunID),
				slog.Int("attempt", jm.msg.Attempt),
			)

			err := w.processJob(ctx, jm)
			w.settle(ctx, jm, err)
		}
	}
}

// decideAction determines how a delivery is settled based on the processing error
func (w *Worker) decideAction(jm *jobMessage, err error) settleAction {
	if err == nil {
		return actionAck
	}

	// redelivery of a job or run that already finished
	if errors.Is(err, domain.ErrJobFinished) || errors.Is(err, domain.ErrRunAlreadyCompleted) {
		return actionAck
	}

	if errors.Is(err, domain.ErrInvalidPayload) {
		return actionFail
	}

	var retryableErr *domain.RetryableError
	if errors.As(err, &retryableErr) && jm.msg.HasAttemptsLeft() {
		return actionRetry
	}

	return actionFail
}

func (w *Worker) settle(ctx context.Context, jm *jobMessage, err error) {
	msg := jm.msg

	switch w.decideAction(jm, err) {
	case actionAck:
		if err != nil {
			w.logger.Warn("Job skipped",
				slog.String("job_id", msg.JobID),
				slog.String("reason", err.Error()),
			)
		}
		w.ack(jm)

	case actionRetry:
		if retryErr := w.scheduleRetry(ctx, jm, err); retryErr != nil {
			w.logger.Error("Failed to schedule retry, requeueing delivery",
				slog.String("job_id", msg.JobID),
				slog.String("error", retryErr.Error()),
			)
			if nackErr := jm.delivery.Nack(false, true); nackErr != nil {
				w.logger.Error("Failed to NACK message",
					slog.String("job_id", msg.JobID),
					slog.String("error", nackErr.Error()),
				)
			}
			return
		}
		w.ack(jm)

	case actionFail:
		if markErr := w.records.MarkFailed(ctx, msg.JobID, err.Error()); markErr != nil {
			w.logger.Error("Failed to mark job failed",
				slog.String("job_id", msg.JobID),
				slog.String("error", markErr.Error()),
			)
		}

		finalErr := err
		if !errors.Is(err, domain.ErrInvalidPayload) {
			finalErr = fmt.Errorf("%w: %w", domain.ErrMaxRetriesExceeded, err)
		}

		w.observer.JobFailed(ctx, FailedJob{
			JobID:    msg.JobID,
			RunID:    msg.Job.RunID,
			Attempts: msg.Attempt,
			Err:      finalErr,
		})
		w.ack(jm)
	}
}

func (w *Worker) ack(jm *jobMessage) {
	if err := jm.delivery.Ack(false); err != nil {
		w.logger.Error("Failed to ACK message",
			slog.String("job_id", jm.msg.JobID),
			slog.String("error", err.Error()),
		)
	}
}
