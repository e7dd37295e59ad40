package runner

import (
	"github.com/wonny/prefilter/backend/internal/contracts"
	"github.com/wonny/prefilter/backend/internal/prefilter"
)

// VariableSummary describes the variables of a dataset before filtering
type VariableSummary struct {
	DatasetID string            `json:"dataset_id"`
	TotalIDs  int               `json:"total_ids"`
	Variables []VariableInfo    `json:"variables"`
	VarTypes  map[string]string `json:"var_types,omitempty"`
}

// VariableInfo holds per-variable counts over population subjects
type VariableInfo struct {
	Name        string  `json:"name"`
	Rows        int     `json:"rows"`
	Subjects    int     `json:"subjects"`
	Coverage    float64 `json:"coverage"`
	Categorical bool    `json:"categorical"`
	Numeric     bool    `json:"numeric"` // 모든 값이 숫자로 파싱됨
}

// Summarize builds a VariableSummary from in-memory inputs
func Summarize(datasetID string, table contracts.Table, population *contracts.Population, varTypes map[string]string) *VariableSummary {
	counts := prefilter.VariableCounts(table, population)
	categorical := prefilter.ClassifyVarTypes(varTypes)
	totalIDs := population.Size()

	numeric := make(map[string]bool)
	for _, o := range table {
		isNum := prefilter.IsNumericValue(o.Value)
		if prev, ok := numeric[o.Var]; ok {
			numeric[o.Var] = prev && isNum
		} else {
			numeric[o.Var] = isNum
		}
	}

	summary := &VariableSummary{
		DatasetID: datasetID,
		TotalIDs:  totalIDs,
		Variables: make([]VariableInfo, 0),
		VarTypes:  varTypes,
	}

	for _, name := range prefilter.UniqueVariables(table) {
		info := VariableInfo{Name: name, Numeric: numeric[name]}
		_, info.Categorical = categorical[name]

		for _, perVar := range counts {
			if n := perVar[name]; n > 0 {
				info.Rows += n
				info.Subjects++
			}
		}
		if totalIDs > 0 {
			info.Coverage = float64(info.Subjects) / float64(totalIDs)
		}
		summary.Variables = append(summary.Variables, info)
	}

	return summary
}
