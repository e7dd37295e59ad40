package contracts

import "math"

// Observation is one row of a long-format longitudinal table
// ⭐ SSOT: (ID, t, var, value) 행 구조는 여기서만 정의
type Observation struct {
	ID    string   `json:"id"`
	T     *float64 `json:"t"` // nil = 시간 없음 (baseline/static attribute)
	Var   string   `json:"var"`
	Value string   `json:"value"`
}

// HasTime reports whether the row carries an observation time.
// NaN counts as missing.
func (o Observation) HasTime() bool {
	return o.T != nil && !math.IsNaN(*o.T)
}

// Time returns the observation time, or NaN when missing
func (o Observation) Time() float64 {
	if !o.HasTime() {
		return math.NaN()
	}
	return *o.T
}

// Table is an ordered sequence of observations
type Table []Observation

// Len returns the number of rows
func (t Table) Len() int {
	return len(t)
}

// Where returns a new table holding the rows for which keep returns true.
// Relative row order is preserved; the receiver is never modified.
func (t Table) Where(keep func(Observation) bool) Table {
	out := make(Table, 0, len(t))
	for _, row := range t {
		if keep(row) {
			out = append(out, row)
		}
	}
	return out
}

// Clone returns a deep copy, including the time pointers
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for i, row := range t {
		if row.T != nil {
			v := *row.T
			row.T = &v
		}
		out[i] = row
	}
	return out
}

// Subjects returns the number of distinct IDs in the table
func (t Table) Subjects() int {
	seen := make(map[string]struct{}, len(t))
	for _, row := range t {
		seen[row.ID] = struct{}{}
	}
	return len(seen)
}

// Float returns a pointer to v, for building observations with a time
func Float(v float64) *float64 {
	return &v
}
