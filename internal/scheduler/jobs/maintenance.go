package jobs

import (
	"context"
	"time"

	"github.com/wonny/prefilter/backend/pkg/logger"
)

// RunPruner deletes stored runs started before a cutoff
type RunPruner interface {
	PruneRuns(ctx context.Context, before time.Time) (int64, error)
}

// RetentionJob removes old runs and their filtered rows
type RetentionJob struct {
	pruner    RunPruner
	retention time.Duration
	logger    *logger.Logger
}

// NewRetentionJob creates a new retention job
func NewRetentionJob(pruner RunPruner, retention time.Duration, log *logger.Logger) *RetentionJob {
	return &RetentionJob{
		pruner:    pruner,
		retention: retention,
		logger:    log,
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "run_retention"
}

// Schedule returns the cron schedule (daily at 03:15)
func (j *RetentionJob) Schedule() string {
	return "0 15 3 * * *"
}

// Run executes the cleanup
func (j *RetentionJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-j.retention)

	removed, err := j.pruner.PruneRuns(ctx, cutoff)
	if err != nil {
		return err
	}

	if removed > 0 {
		j.logger.WithFields(map[string]interface{}{
			"removed": removed,
			"before":  cutoff.Format(time.RFC3339),
		}).Info("Run retention completed")
	}
	return nil
}
