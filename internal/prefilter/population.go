package prefilter

import "github.com/wonny/prefilter/backend/internal/contracts"

// filterPopulation keeps rows whose subject is in the population set
func filterPopulation(table contracts.Table, population map[string]struct{}) contracts.Table {
	return table.Where(func(o contracts.Observation) bool {
		_, ok := population[o.ID]
		return ok
	})
}
