package prefilter

import (
	"sort"

	"github.com/wonny/prefilter/backend/internal/contracts"
)

// computeCoverage builds the per-variable coverage report.
// Coverage is |distinct IDs observing var| / totalIDs; a variable is kept
// iff coverage > threshold. With totalIDs == 0 every coverage is 0.
func computeCoverage(table contracts.Table, totalIDs int, threshold float64) *contracts.CoverageReport {
	subjects := make(map[string]map[string]struct{})
	for _, o := range table {
		ids, ok := subjects[o.Var]
		if !ok {
			ids = make(map[string]struct{})
			subjects[o.Var] = ids
		}
		ids[o.ID] = struct{}{}
	}

	report := &contracts.CoverageReport{
		TotalIDs:      totalIDs,
		Threshold:     threshold,
		SubjectCounts: make(map[string]int, len(subjects)),
		Coverage:      make(map[string]float64, len(subjects)),
		Kept:          make([]string, 0, len(subjects)),
		Dropped:       make([]string, 0),
	}

	for name, ids := range subjects {
		count := len(ids)
		freq := 0.0
		if totalIDs > 0 {
			freq = float64(count) / float64(totalIDs)
		}

		report.SubjectCounts[name] = count
		report.Coverage[name] = freq

		if freq > threshold {
			report.Kept = append(report.Kept, name)
		} else {
			report.Dropped = append(report.Dropped, name)
		}
	}

	sort.Strings(report.Kept)
	sort.Strings(report.Dropped)
	return report
}

// filterVariables keeps rows whose variable is in kept
func filterVariables(table contracts.Table, kept []string) contracts.Table {
	keep := make(map[string]struct{}, len(kept))
	for _, name := range kept {
		keep[name] = struct{}{}
	}
	return table.Where(func(o contracts.Observation) bool {
		_, ok := keep[o.Var]
		return ok
	})
}
