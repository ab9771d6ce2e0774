package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestDerive_DoesNotMutateSource(t *testing.T) {
	t.Parallel()

	pt := geom.NewPointFlat(geom.XY, []float64{-0.1, 51.4})
	src := Record{
		ID:       "E00005001",
		Geometry: pt,
		Attrs:    map[string]any{"VM5_q": "4", "Adapt_A": 99},
	}

	out := Derive(src, map[string]int{"Adapt_A": 12, "Adapt_B": 7})

	assert.Equal(t, 12, out.Attrs["Adapt_A"])
	assert.Equal(t, 7, out.Attrs["Adapt_B"])
	assert.Equal(t, "4", out.Attrs["VM5_q"])
	assert.Same(t, pt, out.Geometry)

	assert.Equal(t, 99, src.Attrs["Adapt_A"])
	_, hasB := src.Attrs["Adapt_B"]
	assert.False(t, hasB)
}

func TestRecord_Int(t *testing.T) {
	t.Parallel()

	r := Record{ID: "a", Attrs: map[string]any{"x": " 5", "y": "n/a"}}

	v, ok := r.Int("x")
	assert.True(t, ok)
	assert.Equal(t, 5, v)

	_, ok = r.Int("y")
	assert.False(t, ok)

	_, ok = r.Int("missing")
	assert.False(t, ok)
}

func TestCheckUniqueIDs(t *testing.T) {
	t.Parallel()

	require.NoError(t, CheckUniqueIDs([]Record{{ID: "a"}, {ID: "b"}}))

	err := CheckUniqueIDs([]Record{{ID: "a"}, {ID: "b"}, {ID: "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"a"`)

	err = CheckUniqueIDs([]Record{{ID: ""}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty identifier")
}

func TestIDs(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"b", "a"}, IDs([]Record{{ID: "b"}, {ID: "a"}}))
}
