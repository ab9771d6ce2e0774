package scorer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adapt-cli/internal/analysis"
	"github.com/sells-group/adapt-cli/internal/model"
)

func testTables(t *testing.T) *analysis.Tables {
	t.Helper()
	tab, err := analysis.New(
		[]analysis.Measure{
			{Name: "M1", Fields: []string{"H1", "F1", "F2"}},
			{Name: "M2", Fields: []string{"F2", "F3"}},
			{Name: "M3", Fields: []string{"F9"}},
		},
		[]analysis.Group{{Name: "G1", Measures: []string{"M1", "M2"}}},
		map[string]int{"M1": 10, "M2": 5},
		analysis.Hazard{Fields: []string{"H1", "H2", "H3"}},
	)
	require.NoError(t, err)
	return tab
}

func rec(id string, attrs map[string]any) model.Record {
	return model.Record{ID: id, Attrs: attrs}
}

func TestEngine_Hazard(t *testing.T) {
	t.Parallel()
	e := NewEngine(testTables(t))

	tests := []struct {
		name  string
		attrs map[string]any
		want  bool
	}{
		{"exactly four triggers", map[string]any{"H1": "4"}, true},
		{"three does not trigger", map[string]any{"H1": 3, "H2": "3", "H3": " 3 "}, false},
		{"later field triggers", map[string]any{"H1": "1", "H2": nil, "H3": 5}, true},
		{"negative does not trigger", map[string]any{"H1": "-5"}, false},
		{"malformed skipped", map[string]any{"H1": "high", "H2": "4"}, true},
		{"all malformed", map[string]any{"H1": "x", "H2": "", "H3": "4.0"}, false},
		{"all absent", map[string]any{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, e.Hazard(rec("r", tt.attrs)))
		})
	}
}

func TestEngine_Compute_GateClosedZeroesEveryMeasure(t *testing.T) {
	t.Parallel()
	e := NewEngine(testTables(t))

	res := e.Compute(rec("r", map[string]any{"H1": "3", "F1": 20, "F2": 20, "F3": 20}))

	assert.False(t, res.Hazard)
	assert.Equal(t, ScoreSet{"M1": 0, "M2": 0, "M3": 0}, res.Scores)
}

func TestEngine_Compute_SumsListedFields(t *testing.T) {
	t.Parallel()
	e := NewEngine(testTables(t))

	res := e.Compute(rec("r", map[string]any{"H1": "4", "F1": "2", "F2": " 3", "F3": 1, "F4": 100}))

	require.True(t, res.Hazard)
	assert.Equal(t, 9, res.Scores["M1"])
	assert.Equal(t, 4, res.Scores["M2"])
	assert.Equal(t, 0, res.Scores["M3"], "measure with no contributing fields scores 0")
}

func TestEngine_Compute_MalformedFieldOnlyDropsItsContribution(t *testing.T) {
	t.Parallel()
	e := NewEngine(testTables(t))

	clean := e.Compute(rec("r", map[string]any{"H1": "5", "F1": "2", "F2": "3", "F3": "1"}))
	dirty := e.Compute(rec("r", map[string]any{"H1": "5", "F1": "bad", "F2": "3", "F3": "1"}))

	assert.Equal(t, 10, clean.Scores["M1"])
	assert.Equal(t, 8, dirty.Scores["M1"], "only F1's contribution is lost")
	assert.Equal(t, clean.Scores["M2"], dirty.Scores["M2"], "unrelated measure unchanged")
}

func TestEngine_Compute_EndToEndExample(t *testing.T) {
	t.Parallel()

	tab, err := analysis.New(
		[]analysis.Measure{{Name: "M1", Fields: []string{"F1", "F2"}}},
		[]analysis.Group{{Name: "G1", Measures: []string{"M1"}}},
		map[string]int{"M1": 10},
		analysis.Hazard{Fields: []string{"F1"}},
	)
	require.NoError(t, err)
	e := NewEngine(tab)

	r1 := e.Compute(rec("R1", map[string]any{"F1": 5, "F2": 6}))
	assert.True(t, r1.Hazard)
	assert.Equal(t, 11, r1.Scores["M1"])

	r2 := e.Compute(rec("R2", map[string]any{"F1": 3, "F2": 20}))
	assert.False(t, r2.Hazard)
	assert.Equal(t, 0, r2.Scores["M1"])
}

func TestEngine_ScoreAll_PreservesOrder(t *testing.T) {
	t.Parallel()
	e := NewEngine(testTables(t))

	records := make([]model.Record, 237)
	for i := range records {
		records[i] = rec(fmt.Sprintf("R%03d", i), map[string]any{"H1": i % 6, "F1": 1, "F2": 1})
	}

	batch, err := e.ScoreAll(context.Background(), records, BatchOptions{Concurrency: 8, ProgressEvery: 10})
	require.NoError(t, err)
	require.Len(t, batch.Items, len(records))
	assert.Equal(t, len(records), batch.RecordsTotal)

	wantHazard := 0
	for i, it := range batch.Items {
		assert.Equal(t, records[i].ID, it.ID)
		assert.Equal(t, e.Compute(records[i]), it.Result)
		if it.Hazard {
			wantHazard++
		}
	}
	assert.Equal(t, wantHazard, batch.HazardCount)
	assert.Len(t, batch.ScoreMap(), len(records))
}

func TestEngine_ScoreAll_Cancelled(t *testing.T) {
	t.Parallel()
	e := NewEngine(testTables(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ScoreAll(ctx, []model.Record{rec("a", nil)}, BatchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")
}

func TestEngine_ScoreAll_Empty(t *testing.T) {
	t.Parallel()
	e := NewEngine(testTables(t))

	batch, err := e.ScoreAll(context.Background(), nil, BatchOptions{})
	require.NoError(t, err)
	assert.Empty(t, batch.Items)
	assert.Zero(t, batch.HazardCount)
}
