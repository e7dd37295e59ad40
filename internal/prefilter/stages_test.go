package prefilter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/prefilter/backend/internal/contracts"
)

func TestIsCategoricalLabel(t *testing.T) {
	tests := []struct {
		label string
		want  bool
	}{
		{"categorical", true},
		{"Categorical", true},
		{"HIERARCHICAL", true},
		{"Hierarchical_ICD9", true},
		{"ordinal-hierarchical", true},
		{"binary categorical", true},
		{"numeric", false},
		{"Numeric", false},
		{"", false},
		{"categ", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCategoricalLabel(tt.label))
		})
	}
}

func TestClassifyVarTypes(t *testing.T) {
	got := ClassifyVarTypes(map[string]string{
		"ICD9_CODE": "Hierarchical_ICD9",
		"gender":    "Categorical",
		"hr":        "Numeric",
	})

	assert.Len(t, got, 2)
	assert.Contains(t, got, "ICD9_CODE")
	assert.Contains(t, got, "gender")
	assert.NotContains(t, got, "hr")

	assert.Empty(t, ClassifyVarTypes(nil))
}

func TestCheckConsistency(t *testing.T) {
	tests := []struct {
		name    string
		table   contracts.Table
		wantErr bool
	}{
		{
			name: "different times",
			table: contracts.Table{
				obs("A", at(1), "hr", "80"),
				obs("A", at(2), "hr", "80"),
			},
		},
		{
			name: "times closer than six significant digits",
			table: contracts.Table{
				obs("A", at(1.0), "hr", "80"),
				obs("A", at(1.0000001), "hr", "81"),
			},
		},
		{
			name: "different subjects",
			table: contracts.Table{
				obs("A", at(1), "hr", "80"),
				obs("B", at(1), "hr", "80"),
			},
		},
		{
			name: "timed and untimed rows",
			table: contracts.Table{
				obs("A", nil, "hr", "80"),
				obs("A", at(0), "hr", "80"),
			},
		},
		{
			name: "same slot",
			table: contracts.Table{
				obs("A", at(1), "hr", "80"),
				obs("B", at(1), "hr", "80"),
				obs("A", at(1), "hr", "85"),
			},
			wantErr: true,
		},
		{
			name: "two missing times",
			table: contracts.Table{
				obs("A", nil, "age", "54"),
				obs("A", nil, "age", "55"),
			},
			wantErr: true,
		},
		{
			name: "NaN and nil are both missing",
			table: contracts.Table{
				obs("A", at(math.NaN()), "age", "54"),
				obs("A", nil, "age", "55"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkConsistency(tt.table, map[string]struct{}{})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInconsistentData)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckConsistency_MissingTimeError(t *testing.T) {
	err := checkConsistency(contracts.Table{
		obs("A", nil, "age", "54"),
		obs("A", nil, "age", "55"),
	}, nil)

	var incErr *InconsistentDataError
	require.ErrorAs(t, err, &incErr)
	assert.Nil(t, incErr.T)
	assert.Equal(t, "inconsistent numerical values found: id=A t=NA var=age", err.Error())
}

func TestComputeCoverage(t *testing.T) {
	table := contracts.Table{
		obs("A", at(1), "x", "1"),
		obs("A", at(2), "x", "1"),
		obs("B", at(1), "x", "1"),
		obs("A", nil, "y", "1"),
	}

	report := computeCoverage(table, 4, 0.25)

	assert.Equal(t, 4, report.TotalIDs)
	assert.Equal(t, map[string]int{"x": 2, "y": 1}, report.SubjectCounts)
	assert.InDelta(t, 0.5, report.Coverage["x"], 1e-12)
	assert.InDelta(t, 0.25, report.Coverage["y"], 1e-12)
	assert.Equal(t, []string{"x"}, report.Kept)
	assert.Equal(t, []string{"y"}, report.Dropped)
}

func TestComputeCoverage_ZeroPopulation(t *testing.T) {
	report := computeCoverage(contracts.Table{obs("A", nil, "x", "1")}, 0, 0)

	assert.Equal(t, 0.0, report.Coverage["x"])
	assert.Empty(t, report.Kept)
	assert.Equal(t, []string{"x"}, report.Dropped)
}

func TestFilterTimeWindow(t *testing.T) {
	table := contracts.Table{
		obs("A", at(0), "x", "a"),
		obs("A", at(48), "x", "b"),
		obs("A", nil, "x", "c"),
		obs("A", at(-1e-9), "x", "d"),
	}

	got := filterTimeWindow(table, 48)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Value)
	assert.Equal(t, "c", got[1].Value)
}

func TestVariableCounts(t *testing.T) {
	table := contracts.Table{
		obs("A", at(1), "hr", "1"),
		obs("A", at(2), "hr", "1"),
		obs("A", nil, "age", "60"),
		obs("Z", nil, "age", "60"),
	}

	counts := VariableCounts(table, pop("A", "B"))

	require.Len(t, counts, 2)
	assert.Equal(t, map[string]int{"hr": 2, "age": 1}, counts["A"])
	assert.NotNil(t, counts["B"])
	assert.Empty(t, counts["B"])
	assert.NotContains(t, counts, "Z")
}

func TestUniqueVariables(t *testing.T) {
	table := contracts.Table{
		obs("A", nil, "sbp", ""),
		obs("A", nil, "age", ""),
		obs("B", nil, "sbp", ""),
	}
	assert.Equal(t, []string{"age", "sbp"}, UniqueVariables(table))
	assert.Empty(t, UniqueVariables(nil))
}

func TestIsNumericValue(t *testing.T) {
	assert.True(t, IsNumericValue("70"))
	assert.True(t, IsNumericValue(" 3.5e2 "))
	assert.True(t, IsNumericValue("-0.1"))
	assert.False(t, IsNumericValue("M"))
	assert.False(t, IsNumericValue(""))
	assert.False(t, IsNumericValue("I10"))
}
