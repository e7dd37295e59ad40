package prefilter

import (
	"sort"
	"time"

	"github.com/wonny/prefilter/backend/internal/contracts"
	"github.com/wonny/prefilter/backend/pkg/logger"
)

// Config holds the parameters of one pre-filter pass
type Config struct {
	Threshold float64           `yaml:"threshold" json:"threshold"` // strict: coverage > threshold
	MaxT      float64           `yaml:"max_t" json:"max_t"`         // exclusive upper time bound
	VarTypes  map[string]string `yaml:"var_types" json:"var_types"` // var → type label
}

// Filter runs the P1→P5 pipeline over an in-memory table.
// It holds no mutable state and is safe for concurrent use.
type Filter struct {
	config Config
	logger *logger.Logger
}

// RunResult carries the filtered table plus per-stage diagnostics
type RunResult struct {
	Table       contracts.Table           `json:"observations"`
	Stages      []contracts.StageResult   `json:"stages"`
	Coverage    *contracts.CoverageReport `json:"coverage"`
	Categorical []string                  `json:"categorical"`
}

// NewFilter creates a new Filter. A nil logger discards output.
func NewFilter(config Config, log *logger.Logger) *Filter {
	if log == nil {
		log = logger.Nop()
	}
	return &Filter{
		config: config,
		logger: log,
	}
}

// PreFilter applies the population, time-window, consistency and coverage
// filters and returns a new table. On a duplicate numeric key it returns
// only an error wrapping ErrInconsistentData.
// ⭐ SSOT: 전처리 필터 진입점
func PreFilter(
	observations contracts.Table,
	population *contracts.Population,
	threshold float64,
	maxT float64,
	varTypeOverride map[string]string,
) (contracts.Table, error) {
	f := NewFilter(Config{Threshold: threshold, MaxT: maxT, VarTypes: varTypeOverride}, nil)
	result, err := f.Run(observations, population)
	if err != nil {
		return nil, err
	}
	return result.Table, nil
}

// Run executes all five stages in order
func (f *Filter) Run(observations contracts.Table, population *contracts.Population) (*RunResult, error) {
	if population == nil {
		population = &contracts.Population{}
	}

	result := &RunResult{
		Stages: make([]contracts.StageResult, 0, len(contracts.AllStages())),
	}

	// P1. 모집단 필터 (set은 한 번만 생성)
	start := time.Now()
	popSet := population.Set()
	totalIDs := len(popSet)
	table := filterPopulation(observations, popSet)
	f.record(result, contracts.StagePopulation, len(observations), len(table), start,
		map[string]interface{}{"total_ids": totalIDs})

	// P2. 시간 구간 [0, max_T)
	start = time.Now()
	before := len(table)
	table = filterTimeWindow(table, f.config.MaxT)
	f.record(result, contracts.StageTimeWindow, before, len(table), start,
		map[string]interface{}{"max_t": f.config.MaxT})

	// P3. categorical/hierarchical 변수 분류
	start = time.Now()
	categorical := ClassifyVarTypes(f.config.VarTypes)
	result.Categorical = sortedKeys(categorical)
	f.record(result, contracts.StageVarTypes, len(table), len(table), start,
		map[string]interface{}{"categorical_vars": len(categorical)})

	// P4. 수치형 (ID, t, var) 중복 검사
	start = time.Now()
	if err := checkConsistency(table, categorical); err != nil {
		f.logger.WithError(err).
			WithField("stage", contracts.StageConsistency.String()).
			Warn("Inconsistent numerical values found")
		return nil, err
	}
	f.record(result, contracts.StageConsistency, len(table), len(table), start, nil)

	// P5. 커버리지 필터
	start = time.Now()
	before = len(table)
	report := computeCoverage(table, totalIDs, f.config.Threshold)
	table = filterVariables(table, report.Kept)
	result.Coverage = report
	f.record(result, contracts.StageCoverage, before, len(table), start,
		map[string]interface{}{
			"threshold":    f.config.Threshold,
			"vars_kept":    len(report.Kept),
			"vars_dropped": len(report.Dropped),
		})

	// 입력과 time 포인터를 공유하지 않도록 복사
	result.Table = table.Clone()

	f.logger.WithFields(map[string]interface{}{
		"input_rows":  len(observations),
		"output_rows": len(result.Table),
		"subjects":    result.Table.Subjects(),
		"vars_kept":   report.KeptCount(),
	}).Info("Pre-filter completed")

	return result, nil
}

// record appends a stage result and logs it at debug level
func (f *Filter) record(result *RunResult, stage contracts.Stage, in, out int, start time.Time, meta map[string]interface{}) {
	sr := contracts.StageResult{
		Stage:       stage,
		InputCount:  in,
		OutputCount: out,
		Duration:    time.Since(start).Microseconds(),
		Metadata:    meta,
	}
	result.Stages = append(result.Stages, sr)

	f.logger.WithFields(map[string]interface{}{
		"stage":       stage.String(),
		"input_rows":  in,
		"output_rows": out,
		"duration_us": sr.Duration,
	}).Debug(stage.Description())
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
