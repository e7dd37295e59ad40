package prefilter

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/prefilter/backend/internal/contracts"
	"github.com/wonny/prefilter/backend/pkg/config"
	"github.com/wonny/prefilter/backend/pkg/logger"
)

func obs(id string, t *float64, v, value string) contracts.Observation {
	return contracts.Observation{ID: id, T: t, Var: v, Value: value}
}

func at(t float64) *float64 {
	return contracts.Float(t)
}

func pop(ids ...string) *contracts.Population {
	return &contracts.Population{IDs: ids}
}

// randomTable builds a deterministic table with unique values so rows can be
// matched back to their input position.
func randomTable(seed int64, n int) contracts.Table {
	rng := rand.New(rand.NewSource(seed))
	ids := []string{"A", "B", "C", "D", "E", "F"}
	vars := []string{"hr", "sbp", "dbp", "lactate", "age", "gender"}

	table := make(contracts.Table, 0, n)
	for i := 0; i < n; i++ {
		var t *float64
		if rng.Intn(5) > 0 {
			t = at(float64(rng.Intn(60)) - 5 + float64(i)*1e-3) // unique per row
		}
		table = append(table, obs(ids[rng.Intn(len(ids))], t, vars[rng.Intn(len(vars))], fmt.Sprintf("v%d", i)))
	}
	return table
}

// isSubsequence reports whether every row of out appears in in, in order
func isSubsequence(out, in contracts.Table) bool {
	j := 0
	for _, row := range out {
		for j < len(in) && in[j].Value != row.Value {
			j++
		}
		if j == len(in) {
			return false
		}
		if in[j].ID != row.ID || in[j].Var != row.Var || in[j].HasTime() != row.HasTime() {
			return false
		}
		if row.HasTime() && *in[j].T != *row.T {
			return false
		}
		j++
	}
	return true
}

func TestPreFilter_EndToEnd(t *testing.T) {
	// x: A, B, C → 3/4 = 0.75
	table := contracts.Table{
		obs("A", at(1), "x", "1"),
		obs("B", at(1), "x", "2"),
		obs("C", at(2), "x", "3"),
		obs("A", nil, "y", "M"),
	}
	population := pop("A", "B", "C", "D")

	tests := []struct {
		name      string
		threshold float64
		wantVars  []string
		wantRows  int
	}{
		{"x retained above threshold", 0.5, []string{"x"}, 3},
		{"x dropped at threshold", 0.75, []string{}, 0},
		{"everything retained", 0.0, []string{"x", "y"}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PreFilter(table, population, tt.threshold, 48, nil)
			require.NoError(t, err)
			assert.Len(t, got, tt.wantRows)
			assert.ElementsMatch(t, tt.wantVars, UniqueVariables(got))
		})
	}
}

func TestPreFilter_PopulationFilter(t *testing.T) {
	table := contracts.Table{
		obs("A", at(1), "x", "1"),
		obs("Z", at(1), "x", "2"),
		obs("B", at(1), "x", "3"),
	}

	got, err := PreFilter(table, pop("A", "B"), 0, 10, nil)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].ID)
	assert.Equal(t, "B", got[1].ID)
}

func TestPreFilter_TimeBoundaries(t *testing.T) {
	table := contracts.Table{
		obs("A", at(0), "x", "zero"),
		obs("A", at(-0.5), "x", "negative"),
		obs("A", at(9.999), "x", "inside"),
		obs("A", at(10), "x", "at-max"),
		obs("A", at(11), "x", "beyond"),
		obs("A", nil, "x", "missing"),
		obs("A", at(math.NaN()), "y", "nan"),
	}

	got, err := PreFilter(table, pop("A"), -1, 10, map[string]string{"x": "categorical"})
	require.NoError(t, err)

	values := make([]string, 0, len(got))
	for _, row := range got {
		values = append(values, row.Value)
	}
	assert.Equal(t, []string{"zero", "inside", "missing", "nan"}, values)
}

func TestPreFilter_MissingTimePassesAnyMaxT(t *testing.T) {
	table := contracts.Table{obs("A", nil, "age", "54")}

	for _, maxT := range []float64{-100, 0, math.Inf(1)} {
		got, err := PreFilter(table, pop("A"), 0, maxT, nil)
		require.NoError(t, err)
		assert.Len(t, got, 1, "max_t=%v", maxT)
	}
}

func TestPreFilter_DuplicateNumeric(t *testing.T) {
	table := contracts.Table{
		obs("A", at(1.0), "weight", "70"),
		obs("A", at(1.0), "weight", "71"),
	}

	got, err := PreFilter(table, pop("A"), 0, 48, nil)

	require.Error(t, err)
	assert.Nil(t, got, "no partial result on inconsistent data")
	assert.True(t, errors.Is(err, ErrInconsistentData))
	assert.Contains(t, err.Error(), "inconsistent numerical values found")

	var incErr *InconsistentDataError
	require.True(t, errors.As(err, &incErr))
	assert.Equal(t, "A", incErr.ID)
	assert.Equal(t, "weight", incErr.Var)
	assert.Equal(t, 1.0, *incErr.T)
	assert.Equal(t, "70", incErr.FirstValue)
	assert.Equal(t, "71", incErr.RepeatValue)
}

func TestPreFilter_DuplicateWithEqualValues(t *testing.T) {
	table := contracts.Table{
		obs("A", at(3), "hr", "80"),
		obs("A", at(3), "hr", "80"),
	}

	_, err := PreFilter(table, pop("A"), 0, 48, nil)
	assert.ErrorIs(t, err, ErrInconsistentData)
}

func TestPreFilter_CategoricalExemption(t *testing.T) {
	table := contracts.Table{
		obs("A", at(1.0), "stage", "70"),
		obs("A", at(1.0), "stage", "71"),
	}

	got, err := PreFilter(table, pop("A"), 0, 48, map[string]string{"stage": "categorical"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestPreFilter_DuplicatesOutsideWindowIgnored(t *testing.T) {
	// 중복이지만 P1/P2에서 제거되므로 오류 아님
	table := contracts.Table{
		obs("A", at(50), "hr", "80"),
		obs("A", at(50), "hr", "81"),
		obs("Z", at(1), "hr", "80"),
		obs("Z", at(1), "hr", "81"),
		obs("A", at(1), "hr", "82"),
	}

	got, err := PreFilter(table, pop("A"), 0, 48, nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestPreFilter_CoverageBoundary(t *testing.T) {
	population := pop("A", "B", "C", "D")

	// "x": 2/4 = threshold exactly → dropped; "y": 3/4 → kept
	table := contracts.Table{
		obs("A", nil, "x", "1"),
		obs("B", nil, "x", "1"),
		obs("A", nil, "y", "1"),
		obs("B", nil, "y", "1"),
		obs("C", nil, "y", "1"),
	}

	got, err := PreFilter(table, population, 0.5, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, UniqueVariables(got))
}

func TestPreFilter_RepeatedSubjectCountsOnce(t *testing.T) {
	// A가 서로 다른 시간에 "x"를 3번 관측해도 대상자는 1명
	table := contracts.Table{
		obs("A", at(1), "x", "1"),
		obs("A", at(2), "x", "2"),
		obs("A", at(3), "x", "3"),
	}

	f := NewFilter(Config{Threshold: 0.3, MaxT: 10}, nil)
	result, err := f.Run(table, pop("A", "B", "C", "D"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Coverage.SubjectCounts["x"])
	assert.InDelta(t, 0.25, result.Coverage.Coverage["x"], 1e-12)
	assert.Empty(t, result.Table)
}

func TestPreFilter_DuplicatePopulationIDs(t *testing.T) {
	// 중복 ID는 한 번만 계산: total_IDs = 2, coverage(x) = 1/2
	table := contracts.Table{obs("A", nil, "x", "1")}

	f := NewFilter(Config{Threshold: 0.4, MaxT: 10}, nil)
	result, err := f.Run(table, pop("A", "A", "A", "B"))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Coverage.TotalIDs)
	assert.InDelta(t, 0.5, result.Coverage.Coverage["x"], 1e-12)
	assert.Len(t, result.Table, 1)
}

func TestPreFilter_EmptyPopulation(t *testing.T) {
	table := contracts.Table{obs("A", at(1), "x", "1")}

	for _, population := range []*contracts.Population{pop(), nil} {
		f := NewFilter(Config{Threshold: -1, MaxT: 10}, nil)
		result, err := f.Run(table, population)
		require.NoError(t, err)

		assert.Empty(t, result.Table)
		assert.Equal(t, 0, result.Coverage.TotalIDs)
		for _, cov := range result.Coverage.Coverage {
			assert.False(t, math.IsNaN(cov) || math.IsInf(cov, 0))
		}
	}
}

func TestPreFilter_EmptyInput(t *testing.T) {
	got, err := PreFilter(contracts.Table{}, pop("A"), 0, 10, nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPreFilter_IdempotentUnderWideBounds(t *testing.T) {
	table := contracts.Table{
		obs("A", at(0), "hr", "v0"),
		obs("B", nil, "age", "v1"),
		obs("A", at(5), "hr", "v2"),
		obs("B", at(47.5), "hr", "v3"),
		obs("A", nil, "age", "v4"),
	}

	got, err := PreFilter(table, pop("A", "B"), -1, 48, nil)
	require.NoError(t, err)
	assert.Equal(t, table, got)

	again, err := PreFilter(got, pop("A", "B"), -1, 48, nil)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestPreFilter_SubsetAndOrder(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		table := randomTable(seed, 300)

		f := NewFilter(Config{
			Threshold: 0.3,
			MaxT:      40,
			// 무작위 데이터에서 중복 키를 피하기 위해 모두 categorical 처리
			VarTypes: map[string]string{
				"hr": "Categorical", "sbp": "categorical", "dbp": "CATEGORICAL",
				"lactate": "hierarchical", "age": "categorical", "gender": "categorical",
			},
		}, nil)

		result, err := f.Run(table, pop("A", "B", "C", "D", "E"))
		require.NoError(t, err)
		assert.True(t, isSubsequence(result.Table, table), "seed=%d", seed)

		for _, row := range result.Table {
			assert.NotEqual(t, "F", row.ID)
			if row.HasTime() {
				assert.GreaterOrEqual(t, *row.T, 0.0)
				assert.Less(t, *row.T, 40.0)
			}
			assert.Greater(t, result.Coverage.Coverage[row.Var], 0.3)
		}
	}
}

func TestPreFilter_CoverageMonotonic(t *testing.T) {
	table := randomTable(7, 400)
	varTypes := map[string]string{
		"hr": "categorical", "sbp": "categorical", "dbp": "categorical",
		"lactate": "categorical", "age": "categorical", "gender": "categorical",
	}
	population := pop("A", "B", "C", "D", "E", "F", "G", "H")

	var previous []string
	for _, threshold := range []float64{-1, 0, 0.125, 0.25, 0.5, 0.625, 0.75, 1} {
		f := NewFilter(Config{Threshold: threshold, MaxT: 100, VarTypes: varTypes}, nil)
		result, err := f.Run(table, population)
		require.NoError(t, err)

		if previous != nil {
			assert.Subset(t, previous, result.Coverage.Kept, "threshold=%v", threshold)
		}
		previous = result.Coverage.Kept
	}
}

func TestPreFilter_OutputDoesNotAliasInput(t *testing.T) {
	table := contracts.Table{obs("A", at(1), "x", "1")}

	got, err := PreFilter(table, pop("A"), 0, 10, nil)
	require.NoError(t, err)

	*got[0].T = 99
	got[0].Value = "changed"
	assert.Equal(t, 1.0, *table[0].T)
	assert.Equal(t, "1", table[0].Value)
}

func TestFilter_RunStages(t *testing.T) {
	table := contracts.Table{
		obs("A", at(1), "x", "1"),
		obs("Z", at(1), "x", "2"),
		obs("A", at(99), "x", "3"),
		obs("B", nil, "dx", "I10"),
		obs("B", nil, "dx", "E11"),
	}

	var buf bytes.Buffer
	log := logger.NewWithWriter(&config.Config{LogLevel: "debug", LogFormat: "json"}, &buf)

	f := NewFilter(Config{Threshold: 0.4, MaxT: 48, VarTypes: map[string]string{"dx": "Hierarchical_ICD10"}}, log)
	result, err := f.Run(table, pop("A", "B"))
	require.NoError(t, err)

	require.Len(t, result.Stages, 5)
	for i, stage := range contracts.AllStages() {
		assert.Equal(t, stage, result.Stages[i].Stage)
	}
	assert.Equal(t, 1, result.Stages[0].Dropped()) // Z
	assert.Equal(t, 1, result.Stages[1].Dropped()) // t=99
	assert.Equal(t, 0, result.Stages[3].Dropped())
	assert.Equal(t, []string{"dx"}, result.Categorical)
	assert.Equal(t, []string{"dx", "x"}, result.Coverage.Kept)
	assert.Len(t, result.Table, 3)

	assert.Contains(t, buf.String(), contracts.StageCoverage.String())
	assert.Contains(t, buf.String(), "Pre-filter completed")
	assert.Contains(t, buf.String(), `"subjects":2`)
}
