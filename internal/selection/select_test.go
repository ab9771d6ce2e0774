package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adapt-cli/internal/analysis"
	"github.com/sells-group/adapt-cli/internal/model"
	"github.com/sells-group/adapt-cli/internal/scorer"
)

func tables(t *testing.T, thresholds map[string]int) *analysis.Tables {
	t.Helper()
	tab, err := analysis.New(
		[]analysis.Measure{
			{Name: "M1", Fields: []string{"F1"}},
			{Name: "M2", Fields: []string{"F2"}},
		},
		[]analysis.Group{
			{Name: "G1", Color: "#f1c232", Measures: []string{"M1", "M2"}},
			{Name: "G2", Measures: []string{"M2"}},
		},
		thresholds,
		analysis.Hazard{Fields: []string{"F1"}},
	)
	require.NoError(t, err)
	return tab
}

func scored(id string, scores scorer.ScoreSet) scorer.Scored {
	return scorer.Scored{ID: id, Result: scorer.Result{Scores: scores}}
}

func TestSelect_ThresholdIsInclusiveAndOrderStable(t *testing.T) {
	t.Parallel()

	in := []scorer.Scored{
		scored("R3", scorer.ScoreSet{"M1": 12, "M2": 1}),
		scored("R1", scorer.ScoreSet{"M1": 10, "M2": 7}),
		scored("R2", scorer.ScoreSet{"M1": 9, "M2": 7}),
		scored("R4", scorer.ScoreSet{"M2": 100}),
	}

	sel, err := Select(in, tables(t, map[string]int{"M1": 10, "M2": 7}))
	require.NoError(t, err)

	ids, ok := sel.Lookup("G1", "M1")
	require.True(t, ok)
	assert.Equal(t, []string{"R3", "R1"}, ids, "input order, not sorted")

	ids, _ = sel.Lookup("G1", "M2")
	assert.Equal(t, []string{"R1", "R2", "R4"}, ids)

	ids, _ = sel.Lookup("G2", "M2")
	assert.Equal(t, []string{"R1", "R2", "R4"}, ids, "records may qualify in several groups")

	require.Len(t, sel.Groups, 2)
	assert.Equal(t, "#f1c232", sel.Groups[0].Color)
	assert.Equal(t, 10, sel.Groups[0].Measures[0].Threshold)
}

func TestSelect_ThresholdBoundaryMovesOnlyEqualScores(t *testing.T) {
	t.Parallel()

	in := []scorer.Scored{
		scored("a", scorer.ScoreSet{"M1": 9}),
		scored("b", scorer.ScoreSet{"M1": 10}),
		scored("c", scorer.ScoreSet{"M1": 11}),
		scored("d", scorer.ScoreSet{"M1": 10}),
	}

	base, err := Select(in, tables(t, map[string]int{"M1": 10, "M2": 1}))
	require.NoError(t, err)
	up, err := Select(in, tables(t, map[string]int{"M1": 11, "M2": 1}))
	require.NoError(t, err)
	down, err := Select(in, tables(t, map[string]int{"M1": 9, "M2": 1}))
	require.NoError(t, err)

	b, _ := base.Lookup("G1", "M1")
	u, _ := up.Lookup("G1", "M1")
	d, _ := down.Lookup("G1", "M1")

	assert.Equal(t, []string{"b", "c", "d"}, b)
	assert.Equal(t, []string{"c"}, u, "raising drops exactly the records at the old threshold")
	assert.Equal(t, []string{"a", "b", "c", "d"}, d, "lowering adds exactly the records at the new threshold")
}

func TestSelect_EndToEndExample(t *testing.T) {
	t.Parallel()

	tab, err := analysis.New(
		[]analysis.Measure{{Name: "M1", Fields: []string{"F1", "F2"}}},
		[]analysis.Group{{Name: "G1", Measures: []string{"M1"}}},
		map[string]int{"M1": 10},
		analysis.Hazard{Fields: []string{"F1"}},
	)
	require.NoError(t, err)

	e := scorer.NewEngine(tab)
	in := []scorer.Scored{
		{ID: "R1", Result: e.Compute(model.Record{ID: "R1", Attrs: map[string]any{"F1": 5, "F2": 6}})},
		{ID: "R2", Result: e.Compute(model.Record{ID: "R2", Attrs: map[string]any{"F1": 3, "F2": 20}})},
	}

	sel, err := Select(in, tab)
	require.NoError(t, err)
	ids, _ := sel.Lookup("G1", "M1")
	assert.Equal(t, []string{"R1"}, ids)
}

func TestGrouped_NonEmptyOmitsEmptyPairs(t *testing.T) {
	t.Parallel()

	in := []scorer.Scored{scored("R1", scorer.ScoreSet{"M1": 50, "M2": 0})}
	sel, err := Select(in, tables(t, map[string]int{"M1": 10, "M2": 7}))
	require.NoError(t, err)

	pairs := sel.NonEmpty()
	require.Len(t, pairs, 1)
	assert.Equal(t, Pair{Group: "G1", Measure: "M1", RecordIDs: []string{"R1"}}, pairs[0])

	assert.Equal(t, map[string]bool{"R1": true}, sel.Selected())

	_, ok := sel.Lookup("G9", "M1")
	assert.False(t, ok)
}

func TestScoresFromRecords(t *testing.T) {
	t.Parallel()

	records := []model.Record{
		{ID: "a", Attrs: map[string]any{"M1": "12", "M2": nil}},
		{ID: "b", Attrs: map[string]any{"M1": " 3 ", "M2": "oops"}},
	}

	got := ScoresFromRecords(records, []string{"M1", "M2"})
	require.Len(t, got, 2)
	assert.Equal(t, scorer.ScoreSet{"M1": 12}, got[0].Scores)
	assert.Equal(t, scorer.ScoreSet{"M1": 3}, got[1].Scores)
	assert.Equal(t, "b", got[1].ID)
}

func TestFilterArea(t *testing.T) {
	t.Parallel()

	records := []model.Record{
		{ID: "a", Attrs: map[string]any{"LSOA11NM": "Croydon 022D"}},
		{ID: "b", Attrs: map[string]any{"LSOA11NM": "Croydon 001A"}},
		{ID: "c", Attrs: map[string]any{"LSOA11NM": "Croydon 022D "}},
		{ID: "d", Attrs: map[string]any{}},
	}

	got := FilterArea(records, "LSOA11NM", "Croydon 022D")
	assert.Equal(t, []string{"a", "c"}, model.IDs(got))

	assert.Len(t, FilterArea(records, "LSOA11NM", ""), 4)
}
