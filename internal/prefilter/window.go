package prefilter

import "github.com/wonny/prefilter/backend/internal/contracts"

// filterTimeWindow keeps rows with missing time or 0 <= t < maxT
func filterTimeWindow(table contracts.Table, maxT float64) contracts.Table {
	return table.Where(func(o contracts.Observation) bool {
		return inWindow(o, maxT)
	})
}

// inWindow: half-open [0, maxT); rows without time always pass
func inWindow(o contracts.Observation, maxT float64) bool {
	if !o.HasTime() {
		return true
	}
	t := *o.T
	return t >= 0 && t < maxT
}
