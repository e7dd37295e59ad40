package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/prefilter/backend/internal/contracts"
	"github.com/wonny/prefilter/backend/internal/metrics"
	"github.com/wonny/prefilter/backend/internal/prefilter"
	"github.com/wonny/prefilter/backend/pkg/logger"
	"github.com/wonny/prefilter/backend/pkg/redis"
)

// Runner executes the pre-filter against stored datasets
// ⭐ SSOT: load → filter → save → cache → metrics 순서는 여기서만
type Runner struct {
	source  contracts.DatasetSource
	store   contracts.RunStore
	cache   *redis.Cache
	logger  *logger.Logger
	timeout time.Duration
}

// Options selects the dataset and filter parameters of one run
type Options struct {
	DatasetID  string
	Filter     prefilter.Config
	ConfigHash string
	DryRun     bool // true면 결과 저장/캐시/지표 생략
}

// Outcome bundles the persisted report with the in-memory result
type Outcome struct {
	Report *contracts.RunReport
	Result *prefilter.RunResult // nil unless Report.Succeeded()
}

// New creates a Runner. cache may be nil; timeout <= 0 disables the deadline.
func New(source contracts.DatasetSource, store contracts.RunStore, cache *redis.Cache, log *logger.Logger, timeout time.Duration) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		source:  source,
		store:   store,
		cache:   cache,
		logger:  log,
		timeout: timeout,
	}
}

// Run loads the dataset, filters it and records the outcome.
// Inconsistent data yields a persisted report with status "inconsistent"
// and an error wrapping prefilter.ErrInconsistentData.
func (r *Runner) Run(ctx context.Context, opts Options) (*Outcome, error) {
	if opts.DatasetID == "" {
		return nil, errors.New("dataset id is required")
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	report := &contracts.RunReport{
		RunID:      uuid.NewString(),
		DatasetID:  opts.DatasetID,
		ConfigHash: opts.ConfigHash,
		Threshold:  opts.Filter.Threshold,
		MaxT:       opts.Filter.MaxT,
		StartedAt:  time.Now().UTC(),
	}
	log := r.logger.WithFields(map[string]interface{}{
		"run_id":     report.RunID,
		"dataset_id": opts.DatasetID,
	})
	log.Info("Pre-filter run started")

	// 1. 입력 로드 (병렬)
	in, err := r.load(ctx, opts.DatasetID)
	if err != nil {
		report.Status = contracts.RunStatusFailed
		report.Error = err.Error()
		report.Duration = time.Since(report.StartedAt)
		r.observe(opts, report)
		log.WithError(err).Error("Failed to load dataset")
		return &Outcome{Report: report}, fmt.Errorf("load dataset %s: %w", opts.DatasetID, err)
	}
	report.InputRows = in.table.Len()

	// 2. 필터 (config var_types가 dataset 값을 덮어씀)
	cfg := opts.Filter
	cfg.VarTypes = mergeVarTypes(in.varTypes, opts.Filter.VarTypes)

	result, runErr := prefilter.NewFilter(cfg, log).Run(in.table, in.population)
	report.Duration = time.Since(report.StartedAt)

	switch {
	case runErr == nil:
		report.Status = contracts.RunStatusSucceeded
		report.OutputRows = len(result.Table)
		report.Stages = result.Stages
		report.Coverage = result.Coverage
	case errors.Is(runErr, prefilter.ErrInconsistentData):
		report.Status = contracts.RunStatusInconsistent
		report.Error = runErr.Error()
		result = nil
	default:
		report.Status = contracts.RunStatusFailed
		report.Error = runErr.Error()
		result = nil
	}

	// 3. 저장 + 캐시
	if !opts.DryRun {
		var filtered contracts.Table
		if result != nil {
			filtered = result.Table
		}
		if err := r.store.SaveRun(ctx, report, filtered); err != nil {
			report.Status = contracts.RunStatusFailed
			report.Error = err.Error()
			r.observe(opts, report)
			log.WithError(err).Error("Failed to save run")
			return &Outcome{Report: report}, fmt.Errorf("save run: %w", err)
		}
		r.cacheLatest(ctx, report)
	}

	r.observe(opts, report)

	log.WithFields(map[string]interface{}{
		"status":      string(report.Status),
		"input_rows":  report.InputRows,
		"output_rows": report.OutputRows,
		"duration_ms": report.Duration.Milliseconds(),
	}).Info("Pre-filter run finished")

	if runErr != nil {
		return &Outcome{Report: report}, runErr
	}
	return &Outcome{Report: report, Result: result}, nil
}

// observe records run metrics; dry runs are diagnostics and stay out of them
func (r *Runner) observe(opts Options, report *contracts.RunReport) {
	if opts.DryRun {
		return
	}
	metrics.ObserveRun(report)
}

// LatestRun returns the most recent report of a dataset (cache first)
func (r *Runner) LatestRun(ctx context.Context, datasetID string) (*contracts.RunReport, error) {
	if r.cache != nil {
		var cached contracts.RunReport
		found, err := r.cache.Get(ctx, redis.LatestRunKey(datasetID), &cached)
		if err != nil {
			r.logger.WithError(err).Warn("Report cache read failed")
		}
		metrics.ObserveCache("latest_run", found)
		if found {
			return &cached, nil
		}
	}

	report, err := r.store.GetLatestRun(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if report != nil {
		r.cacheLatest(ctx, report)
	}
	return report, nil
}

// Variables summarizes the variables of a stored dataset
func (r *Runner) Variables(ctx context.Context, datasetID string) (*VariableSummary, error) {
	compute := func() (interface{}, error) {
		in, err := r.load(ctx, datasetID)
		if err != nil {
			return nil, err
		}
		return Summarize(datasetID, in.table, in.population, in.varTypes), nil
	}

	if r.cache == nil {
		v, err := compute()
		if err != nil {
			return nil, err
		}
		return v.(*VariableSummary), nil
	}

	var summary VariableSummary
	if err := r.cache.GetOrSet(ctx, redis.VariablesKey(datasetID), &summary, redis.TTLShort, compute); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Invalidate drops the cached summaries of a dataset after its inputs change
func (r *Runner) Invalidate(ctx context.Context, datasetID string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Delete(ctx, redis.VariablesKey(datasetID), redis.LatestRunKey(datasetID))
}

func (r *Runner) cacheLatest(ctx context.Context, report *contracts.RunReport) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, redis.LatestRunKey(report.DatasetID), report, redis.TTLLong); err != nil {
		r.logger.WithError(err).Warn("Report cache write failed")
	}
}

type inputs struct {
	table      contracts.Table
	population *contracts.Population
	varTypes   map[string]string
}

// load fetches the three dataset inputs concurrently
func (r *Runner) load(ctx context.Context, datasetID string) (*inputs, error) {
	in := &inputs{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		table, err := r.source.LoadObservations(gctx, datasetID)
		in.table = table
		return err
	})
	g.Go(func() error {
		population, err := r.source.LoadPopulation(gctx, datasetID)
		in.population = population
		return err
	})
	g.Go(func() error {
		varTypes, err := r.source.LoadVarTypes(gctx, datasetID)
		in.varTypes = varTypes
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return in, nil
}

func mergeVarTypes(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for name, label := range base {
		merged[name] = label
	}
	for name, label := range override {
		merged[name] = label
	}
	return merged
}
