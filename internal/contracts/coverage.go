package contracts

import "time"

// CoverageReport records per-variable population coverage computed in P5
// ⭐ SSOT: P5 커버리지 정보 전달 (로그, API, DB 저장 공통)
type CoverageReport struct {
	TotalIDs      int                `json:"total_ids"`      // 모집단 크기 (distinct)
	Threshold     float64            `json:"threshold"`      // strict: coverage > threshold
	SubjectCounts map[string]int     `json:"subject_counts"` // 변수별 관측 대상자 수
	Coverage      map[string]float64 `json:"coverage"`       // SubjectCounts / TotalIDs
	Kept          []string           `json:"kept"`           // sorted
	Dropped       []string           `json:"dropped"`        // sorted
}

// KeptCount returns the number of retained variables
func (c *CoverageReport) KeptCount() int {
	return len(c.Kept)
}

// CoverageRate returns the average coverage across all observed variables
func (c *CoverageReport) CoverageRate() float64 {
	if len(c.Coverage) == 0 {
		return 0.0
	}

	total := 0.0
	for _, rate := range c.Coverage {
		total += rate
	}

	return total / float64(len(c.Coverage))
}

// RunStatus is the terminal state of a filter run
type RunStatus string

const (
	RunStatusSucceeded    RunStatus = "succeeded"
	RunStatusInconsistent RunStatus = "inconsistent" // P4 중복 발견
	RunStatusFailed       RunStatus = "failed"       // load/save 등 인프라 오류
)

// RunReport is the persisted summary of one pre-filter execution
type RunReport struct {
	RunID      string          `json:"run_id"`
	DatasetID  string          `json:"dataset_id"`
	ConfigHash string          `json:"config_hash,omitempty"`
	Threshold  float64         `json:"threshold"`
	MaxT       float64         `json:"max_t"`
	Status     RunStatus       `json:"status"`
	InputRows  int             `json:"input_rows"`
	OutputRows int             `json:"output_rows"`
	Stages     []StageResult   `json:"stages"`
	Coverage   *CoverageReport `json:"coverage,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	Duration   time.Duration   `json:"duration"`
}

// Succeeded reports whether the run produced a filtered table
func (r *RunReport) Succeeded() bool {
	return r.Status == RunStatusSucceeded
}
