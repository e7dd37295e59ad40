package prefilter

import (
	"math"

	"github.com/wonny/prefilter/backend/internal/contracts"
)

// obsKey identifies a numeric measurement slot. The time is kept as its
// IEEE-754 bit pattern so distinct times never collapse into one key.
type obsKey struct {
	id       string
	hasTime  bool
	bits     uint64
	variable string
}

func keyOf(o contracts.Observation) obsKey {
	k := obsKey{id: o.ID, variable: o.Var}
	if o.HasTime() {
		k.hasTime = true
		k.bits = math.Float64bits(*o.T)
	}
	return k
}

// checkConsistency fails on the first repeated (ID, t, var) among
// non-categorical variables. Values are not compared: any repeat counts.
func checkConsistency(table contracts.Table, categorical map[string]struct{}) error {
	seen := make(map[obsKey]string, len(table))
	for _, o := range table {
		if _, ok := categorical[o.Var]; ok {
			continue
		}

		k := keyOf(o)
		if first, dup := seen[k]; dup {
			err := &InconsistentDataError{
				ID:          o.ID,
				Var:         o.Var,
				FirstValue:  first,
				RepeatValue: o.Value,
			}
			if o.HasTime() {
				err.T = contracts.Float(*o.T)
			}
			return err
		}
		seen[k] = o.Value
	}
	return nil
}
