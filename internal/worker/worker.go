// Package worker consumes queued jobs and runs them through the pipeline with bounded concurrency.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/pipeline"
	"github.com/cuongbtq/meeting-pipeline/internal/queue"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// Broker is the subset of the RabbitMQ client the worker needs
type Broker interface {
	SetQos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	PublishDelayed(ctx context.Context, body []byte, contentType string, delay time.Duration) error
}

// Processor runs one job to completion
type Processor interface {
	Process(ctx context.Context, job queue.Job, progress queue.ProgressFunc) (*pipeline.Summary, error)
}

// JobRecords tracks the lifecycle of job records
type JobRecords interface {
	MarkActive(ctx context.Context, jobID string, attempt int) error
	MarkRetrying(ctx context.Context, jobID, lastErr string, nextAttemptAt time.Time) error
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID, lastErr string) error
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	WorkerID      string
	Broker        Broker
	Processor     Processor
	Records       JobRecords
	Progress      *ProgressReporter
	Observer      FailureObserver
	Concurrency   int
	PrefetchCount int
	JobTimeout    time.Duration
}

// Worker represents the background job worker
type Worker struct {
	logger        *slog.Logger
	workerID      string
	broker        Broker
	processor     Processor
	records       JobRecords
	progress      *ProgressReporter
	observer      FailureObserver
	concurrency   int
	prefetchCount int
	jobTimeout    time.Duration
	jobsChan      chan *jobMessage
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// jobMessage pairs a decoded message with the delivery that must be settled for it
type jobMessage struct {
	msg      *queue.Message
	delivery amqp.Delivery
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}

	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 10 * time.Minute
	}

	observer := cfg.Observer
	if observer == nil {
		observer = NewLogFailureObserver(cfg.Logger)
	}

	return &Worker{
		logger:        cfg.Logger,
		workerID:      cfg.WorkerID,
		broker:        cfg.Broker,
		processor:     cfg.Processor,
		records:       cfg.Records,
		progress:      cfg.Progress,
		observer:      observer,
		concurrency:   concurrency,
		prefetchCount: prefetch,
		jobTimeout:    jobTimeout,
		jobsChan:      make(chan *jobMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start consumes and processes jobs until ctx is canceled, Stop is called,
// or the broker closes the delivery channel.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w.startMessageDispatcher(gctx, deliveries)
		return nil
	})

	w.spawnWorkerPool(gctx, g)

	err = g.Wait()
	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))
	return err
}

// Stop signals the dispatcher and pool goroutines to exit
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopChan)
	})
}
