package contracts

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservation_HasTime(t *testing.T) {
	tests := []struct {
		name string
		obs  Observation
		want bool
	}{
		{"nil time", Observation{ID: "A", Var: "age"}, false},
		{"NaN time", Observation{ID: "A", T: Float(math.NaN()), Var: "hr"}, false},
		{"zero time", Observation{ID: "A", T: Float(0), Var: "hr"}, true},
		{"negative time", Observation{ID: "A", T: Float(-1), Var: "hr"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.obs.HasTime())
		})
	}
}

func TestTable_WherePreservesOrderAndInput(t *testing.T) {
	table := Table{
		{ID: "A", Var: "x", Value: "1"},
		{ID: "B", Var: "y", Value: "2"},
		{ID: "C", Var: "x", Value: "3"},
	}

	got := table.Where(func(o Observation) bool { return o.Var == "x" })

	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].ID)
	assert.Equal(t, "C", got[1].ID)
	assert.Len(t, table, 3, "input must not be modified")
}

func TestTable_CloneIsIndependent(t *testing.T) {
	table := Table{{ID: "A", T: Float(1.5), Var: "x", Value: "1"}}

	clone := table.Clone()
	*clone[0].T = 9
	clone[0].Value = "changed"

	assert.Equal(t, 1.5, *table[0].T)
	assert.Equal(t, "1", table[0].Value)
}

func TestTable_Subjects(t *testing.T) {
	table := Table{{ID: "A"}, {ID: "B"}, {ID: "A"}}
	assert.Equal(t, 2, table.Subjects())
}

func TestObservation_JSON(t *testing.T) {
	var rows Table
	err := json.Unmarshal([]byte(`[{"id":"A","t":null,"var":"age","value":"54"},{"id":"A","t":2.5,"var":"hr","value":"80"}]`), &rows)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.False(t, rows[0].HasTime())
	assert.Equal(t, 2.5, rows[1].Time())
}

func TestPopulation_SizeDeduplicates(t *testing.T) {
	pop := Population{IDs: []string{"A", "B", "A", "C", "B"}}
	assert.Equal(t, 3, pop.Size())
}

func TestCoverageReport_CoverageRate(t *testing.T) {
	report := CoverageReport{Coverage: map[string]float64{"x": 0.75, "y": 0.25}}
	assert.InDelta(t, 0.5, report.CoverageRate(), 1e-9)

	empty := CoverageReport{}
	assert.Equal(t, 0.0, empty.CoverageRate())
}

func TestStage_ShortName(t *testing.T) {
	for i, stage := range AllStages() {
		assert.Equal(t, "P"+string(rune('1'+i)), stage.ShortName())
		assert.True(t, IsValidStage(stage.String()))
	}
	assert.False(t, IsValidStage("S0_DATA_QUALITY"))
}

func TestStageResult_Dropped(t *testing.T) {
	r := StageResult{Stage: StagePopulation, InputCount: 10, OutputCount: 7}
	assert.Equal(t, 3, r.Dropped())
}
