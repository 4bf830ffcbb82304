package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/domain"
)

// Retention defaults for finished job records
const (
	DefaultKeepCompleted = 24 * time.Hour
	DefaultKeepFailed    = 7 * 24 * time.Hour
	DefaultPruneInterval = time.Hour
)

// PruneStore deletes finished job records
type PruneStore interface {
	DeleteFinishedBefore(ctx context.Context, status string, cutoff time.Time) (int64, error)
}

// PrunerConfig holds retention settings
type PrunerConfig struct {
	KeepCompleted time.Duration
	KeepFailed    time.Duration
	Interval      time.Duration
}

// Pruner periodically deletes old completed and failed job records
type Pruner struct {
	store  PruneStore
	cfg    PrunerConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewPruner creates a Pruner, filling zero settings with defaults
func NewPruner(store PruneStore, cfg PrunerConfig, logger *slog.Logger) *Pruner {
	if cfg.KeepCompleted <= 0 {
		cfg.KeepCompleted = DefaultKeepCompleted
	}
	if cfg.KeepFailed <= 0 {
		cfg.KeepFailed = DefaultKeepFailed
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPruneInterval
	}

	return &Pruner{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// RunOnce prunes both retention classes and returns the number of deleted records
func (p *Pruner) RunOnce(ctx context.Context) (int64, error) {
	now := p.now()

	completed, err := p.store.DeleteFinishedBefore(ctx, domain.JobStatusCompleted, now.Add(-p.cfg.KeepCompleted))
	if err != nil {
		return 0, err
	}

	failed, err := p.store.DeleteFinishedBefore(ctx, domain.JobStatusFailed, now.Add(-p.cfg.KeepFailed))
	if err != nil {
		return completed, err
	}

	if completed+failed > 0 {
		p.logger.Info("Pruned finished job records",
			slog.Int64("completed", completed),
			slog.Int64("failed", failed),
		)
	}

	return completed + failed, nil
}

// Run prunes on every tick until ctx is canceled
func (p *Pruner) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.Info("Job retention pruner started",
		slog.Duration("interval", p.cfg.Interval),
		slog.Duration("keep_completed", p.cfg.KeepCompleted),
		slog.Duration("keep_failed", p.cfg.KeepFailed),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Job retention pruner stopped")
			return nil
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.Warn("Failed to prune job records",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
