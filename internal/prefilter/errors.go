package prefilter

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInconsistentData is returned when a numeric variable is observed twice
// for the same subject at the same time.
var ErrInconsistentData = errors.New("inconsistent numerical values found")

// InconsistentDataError identifies the first repeated (ID, t, var) key.
// It unwraps to ErrInconsistentData.
type InconsistentDataError struct {
	ID          string   `json:"id"`
	T           *float64 `json:"t"` // nil = missing time
	Var         string   `json:"var"`
	FirstValue  string   `json:"first_value"`
	RepeatValue string   `json:"repeat_value"`
}

func (e *InconsistentDataError) Error() string {
	return fmt.Sprintf("%s: id=%s t=%s var=%s", ErrInconsistentData, e.ID, formatTime(e.T), e.Var)
}

func (e *InconsistentDataError) Unwrap() error {
	return ErrInconsistentData
}

// formatTime renders t with the shortest exact representation
func formatTime(t *float64) string {
	if t == nil {
		return "NA"
	}
	return strconv.FormatFloat(*t, 'g', -1, 64)
}
