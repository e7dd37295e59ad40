package contracts

import "context"

// DatasetSource loads the inputs of a filter run
// ⭐ SSOT: 관측 테이블/모집단/변수 타입 로드 인터페이스
type DatasetSource interface {
	LoadObservations(ctx context.Context, datasetID string) (Table, error)
	LoadPopulation(ctx context.Context, datasetID string) (*Population, error)
	LoadVarTypes(ctx context.Context, datasetID string) (map[string]string, error)
}

// RunStore persists filter results
// ⭐ SSOT: 실행 결과 저장 인터페이스
type RunStore interface {
	SaveRun(ctx context.Context, report *RunReport, filtered Table) error
	GetLatestRun(ctx context.Context, datasetID string) (*RunReport, error)
}
