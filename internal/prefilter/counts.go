package prefilter

import (
	"sort"
	"strconv"
	"strings"

	"github.com/wonny/prefilter/backend/internal/contracts"
)

// VariableCounts returns, for every population subject, the number of rows
// per variable. Subjects without any row get an empty (non-nil) map and rows
// of subjects outside the population are ignored.
func VariableCounts(table contracts.Table, population *contracts.Population) map[string]map[string]int {
	counts := make(map[string]map[string]int)
	for id := range population.Set() {
		counts[id] = make(map[string]int)
	}

	for _, o := range table {
		perVar, ok := counts[o.ID]
		if !ok {
			continue
		}
		perVar[o.Var]++
	}
	return counts
}

// UniqueVariables returns the sorted distinct variable names of the table
func UniqueVariables(table contracts.Table) []string {
	seen := make(map[string]struct{})
	for _, o := range table {
		seen[o.Var] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsNumericValue reports whether a raw value parses as a float.
// Diagnostic only: classification for P4 stays override-driven.
func IsNumericValue(value string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	return err == nil
}
