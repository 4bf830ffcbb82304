// Package pipeline runs one job end to end: classify the transcript, generate each deliverable and
// settle the run status.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/meeting-pipeline/internal/classifier"
	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/cuongbtq/meeting-pipeline/internal/generator"
	"github.com/cuongbtq/meeting-pipeline/internal/queue"
)

// Progress checkpoints reported while a job runs
const (
	ProgressClassified = 10
	ProgressGenerated  = 90
	ProgressDone       = 100
)

// RunStore is the subset of run persistence the orchestrator needs
type RunStore interface {
	GetByID(ctx context.Context, runID string) (*domain.Run, error)
	UpdateStatus(ctx context.Context, runID, status string, extra domain.StatusUpdate) error
	AppendLog(ctx context.Context, runID string, entry domain.LogEntry) error
	SetDeliverables(ctx context.Context, runID string, deliverables []domain.DeliverableType) error
}

// Classifier decides which deliverables a transcript warrants
type Classifier interface {
	Classify(ctx context.Context, transcript string, minConfidence float64) (*classifier.Result, error)
}

// Generators resolves the generator of a deliverable type
type Generators interface {
	Get(t domain.DeliverableType) (generator.Generator, error)
}

// Summary describes what a processed job produced
type Summary struct {
	RunID        string
	Deliverables []domain.DeliverableType
	Outputs      []*domain.Output
	Succeeded    int
	Failed       int
	Errors       map[domain.DeliverableType]string
	Confidence   map[domain.DeliverableType]float64
	Reasoning    string
}

// Orchestrator drives a run through classification and generation
type Orchestrator struct {
	runs          RunStore
	classifier    Classifier
	generators    Generators
	minConfidence float64
	logger        *slog.Logger
}

// NewOrchestrator creates a new Orchestrator. A non-positive minConfidence uses the classifier default.
func NewOrchestrator(runs RunStore, c Classifier, generators Generators, minConfidence float64, logger *slog.Logger) *Orchestrator {
	if minConfidence <= 0 {
		minConfidence = classifier.DefaultMinConfidence
	}

	return &Orchestrator{
		runs:          runs,
		classifier:    c,
		generators:    generators,
		minConfidence: minConfidence,
		logger:        logger,
	}
}

// Process runs job to completion. Failures of single deliverables are recorded on the run and do not
// fail the job; any other error fails the run and is returned so the queue can retry.
func (o *Orchestrator) Process(ctx context.Context, job queue.Job, progress queue.ProgressFunc) (*Summary, error) {
	if progress == nil {
		progress = func(context.Context, int) {}
	}

	logger := o.logger.With(slog.String("run_id", job.RunID))

	if err := o.start(ctx, job); err != nil {
		return nil, err
	}

	result, err := o.classifier.Classify(ctx, job.Transcript, o.minConfidence)
	if err != nil {
		return nil, o.fail(ctx, job.RunID, fmt.Errorf("failed to classify transcript: %w", err))
	}

	if err := o.runs.SetDeliverables(ctx, job.RunID, result.Deliverables); err != nil {
		return nil, o.fail(ctx, job.RunID, fmt.Errorf("failed to store deliverables: %w", err))
	}

	o.appendLog(ctx, job.RunID, domain.NewLogEntry(domain.LogLevelInfo, "Deliverables classified", map[string]any{
		"deliverables": result.Deliverables,
		"confidence":   result.Confidence,
		"reasoning":    result.Reasoning,
	}))

	logger.Info("Deliverables classified",
		slog.Int("count", len(result.Deliverables)),
		slog.Any("deliverables", result.Deliverables),
	)
	progress(ctx, ProgressClassified)

	summary := &Summary{
		RunID:        job.RunID,
		Deliverables: result.Deliverables,
		Outputs:      make([]*domain.Output, 0, len(result.Deliverables)),
		Errors:       make(map[domain.DeliverableType]string),
		Confidence:   result.Confidence,
		Reasoning:    result.Reasoning,
	}

	input := generator.Input{RunID: job.RunID, Transcript: job.Transcript, Metadata: job.Metadata}
	total := len(result.Deliverables)

	for i, deliverable := range result.Deliverables {
		if err := ctx.Err(); err != nil {
			return nil, o.fail(ctx, job.RunID, fmt.Errorf("generation interrupted: %w", err))
		}

		out, err := o.generate(ctx, deliverable, input)
		if err != nil {
			summary.Failed++
			summary.Errors[deliverable] = err.Error()

			logger.Error("Deliverable generation failed",
				slog.String("deliverable", string(deliverable)),
				slog.String("error", err.Error()),
			)
			o.appendLog(ctx, job.RunID, domain.NewLogEntry(domain.LogLevelError, "Deliverable generation failed", map[string]any{
				"deliverable": deliverable,
				"error":       err.Error(),
			}))
		} else {
			summary.Succeeded++
			summary.Outputs = append(summary.Outputs, out)

			logger.Info("Deliverable generated",
				slog.String("deliverable", string(deliverable)),
				slog.String("output_id", out.ID),
			)
		}

		progress(ctx, ProgressClassified+(i+1)*(ProgressGenerated-ProgressClassified)/total)
	}

	if err := o.runs.UpdateStatus(ctx, job.RunID, domain.RunStatusCompleted, domain.StatusUpdate{}); err != nil {
		return nil, o.fail(ctx, job.RunID, fmt.Errorf("failed to complete run: %w", err))
	}

	o.appendLog(ctx, job.RunID, domain.NewLogEntry(domain.LogLevelInfo, "Run completed", map[string]any{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}))
	progress(ctx, ProgressDone)

	return summary, nil
}

// start moves the run into processing. A run that already completed is reported with
// ErrRunAlreadyCompleted so the job is dropped instead of regenerating outputs.
func (o *Orchestrator) start(ctx context.Context, job queue.Job) error {
	transcript := job.Transcript
	err := o.runs.UpdateStatus(ctx, job.RunID, domain.RunStatusProcessing, domain.StatusUpdate{
		Transcript: &transcript,
		Metadata:   job.Metadata,
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, domain.ErrRunNotFound) {
		return fmt.Errorf("%w: run %s does not exist", domain.ErrInvalidPayload, job.RunID)
	}

	if errors.Is(err, domain.ErrInvalidTransition) {
		run, getErr := o.runs.GetByID(ctx, job.RunID)
		if getErr == nil && run.Status == domain.RunStatusCompleted {
			return domain.ErrRunAlreadyCompleted
		}
	}

	return fmt.Errorf("failed to start run: %w", err)
}

func (o *Orchestrator) generate(ctx context.Context, deliverable domain.DeliverableType, input generator.Input) (*domain.Output, error) {
	g, err := o.generators.Get(deliverable)
	if err != nil {
		return nil, err
	}
	return g.Generate(ctx, input)
}

// fail records cause on the run and marks it failed. The writes use a context detached from
// cancellation so a timed-out job still leaves the run in a terminal state.
func (o *Orchestrator) fail(ctx context.Context, runID string, cause error) error {
	ctx = context.WithoutCancel(ctx)

	o.appendLog(ctx, runID, domain.NewLogEntry(domain.LogLevelError, "Run failed", map[string]any{
		"error": cause.Error(),
	}))

	if err := o.runs.UpdateStatus(ctx, runID, domain.RunStatusFailed, domain.StatusUpdate{}); err != nil {
		o.logger.Warn("Failed to mark run as failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
	}

	return cause
}

func (o *Orchestrator) appendLog(ctx context.Context, runID string, entry domain.LogEntry) {
	if err := o.runs.AppendLog(ctx, runID, entry); err != nil {
		o.logger.Warn("Failed to append run log",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
	}
}
