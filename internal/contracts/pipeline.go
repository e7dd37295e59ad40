package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 메트릭, DB row에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   P1 → P2 → P3 → P4 → P5
//   Population  TimeWindow  VarTypes  Consistency  Coverage

// Stage represents a pipeline stage
type Stage string

const (
	// StagePopulation P1: 모집단 필터
	// 책임: ID가 모집단에 없는 행 제거
	StagePopulation Stage = "P1_POPULATION"

	// StageTimeWindow P2: 시간 구간 필터
	// 책임: t가 [0, max_T) 밖인 행 제거, t 없는 행은 유지
	StageTimeWindow Stage = "P2_TIME_WINDOW"

	// StageVarTypes P3: 변수 타입 분류
	// 책임: categorical/hierarchical 변수 집합 생성
	StageVarTypes Stage = "P3_VAR_TYPES"

	// StageConsistency P4: 수치형 중복 검사
	// 책임: (ID, t, var) 중복 발견 시 실행 중단
	StageConsistency Stage = "P4_CONSISTENCY"

	// StageCoverage P5: 커버리지 필터
	// 책임: 모집단 대비 관측 비율이 threshold 이하인 변수 제거
	StageCoverage Stage = "P5_COVERAGE"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "P1", "P2")
func (s Stage) ShortName() string {
	switch s {
	case StagePopulation:
		return "P1"
	case StageTimeWindow:
		return "P2"
	case StageVarTypes:
		return "P3"
	case StageConsistency:
		return "P4"
	case StageCoverage:
		return "P5"
	default:
		return "UNKNOWN"
	}
}

// Description returns a human-readable description of the stage
func (s Stage) Description() string {
	switch s {
	case StagePopulation:
		return "Remove rows not in population"
	case StageTimeWindow:
		return "Remove rows with t outside of [0, max_T)"
	case StageVarTypes:
		return "Identify categorical/hierarchical variables"
	case StageConsistency:
		return "Check for inconsistent numerical values"
	case StageCoverage:
		return "Filter variables based on threshold"
	default:
		return "unknown stage"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StagePopulation,
		StageTimeWindow,
		StageVarTypes,
		StageConsistency,
		StageCoverage,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// StageResult represents the result of a single pipeline stage
type StageResult struct {
	Stage       Stage                  `json:"stage"`
	InputCount  int                    `json:"input_count"`
	OutputCount int                    `json:"output_count"`
	Duration    int64                  `json:"duration_us"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Dropped returns how many rows the stage removed
func (r StageResult) Dropped() int {
	return r.InputCount - r.OutputCount
}
