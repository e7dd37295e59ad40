package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/prefilter/backend/internal/filterconfig"
	"github.com/wonny/prefilter/backend/internal/prefilter"
	"github.com/wonny/prefilter/backend/internal/runner"
	"github.com/wonny/prefilter/backend/internal/scheduler"
	"github.com/wonny/prefilter/backend/pkg/logger"
)

// PrefilterJob re-runs the pre-filter for the dataset named in the config file.
// The file is re-read on every run so edits apply without a restart.
type PrefilterJob struct {
	runner     *runner.Runner
	configPath string
	schedule   string
	logger     *logger.Logger
}

// NewPrefilterJob creates a new scheduled pre-filter job
func NewPrefilterJob(r *runner.Runner, configPath, schedule string, log *logger.Logger) *PrefilterJob {
	return &PrefilterJob{
		runner:     r,
		configPath: configPath,
		schedule:   schedule,
		logger:     log,
	}
}

// Name returns the job name
func (j *PrefilterJob) Name() string {
	return "prefilter"
}

// Schedule returns the cron schedule
func (j *PrefilterJob) Schedule() string {
	return j.schedule
}

// Run executes one pre-filter run
func (j *PrefilterJob) Run(ctx context.Context) error {
	cfg, _, err := filterconfig.Load(j.configPath)
	if err != nil {
		// 설정 오류는 재시도로 해결되지 않음
		return scheduler.Permanent(fmt.Errorf("load filter config: %w", err))
	}
	for _, w := range filterconfig.Warn(cfg) {
		j.logger.WithField("code", w.Code).Warn(w.Message)
	}

	hash, err := filterconfig.Hash(cfg)
	if err != nil {
		return scheduler.Permanent(err)
	}

	out, err := j.runner.Run(ctx, runner.Options{
		DatasetID:  cfg.Meta.DatasetID,
		Filter:     cfg.ToFilterConfig(),
		ConfigHash: hash,
	})
	if errors.Is(err, prefilter.ErrInconsistentData) {
		return scheduler.Permanent(err)
	}
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":      out.Report.RunID,
		"output_rows": out.Report.OutputRows,
	}).Info("Scheduled pre-filter completed")
	return nil
}
