package featurestore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/adapt-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "layers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteLayer_CommitAndRead(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	recs := testRecords()
	recs[0].Geometry = geom.NewPointFlat(geom.XY, []float64{530000, 165000}).SetSRID(27700)

	layer := s.Layer("oa_scores")
	require.NoError(t, layer.Begin(ctx, testSchema()))
	require.NoError(t, layer.AddIntegerFields(ctx, "Adapt_A"))
	derived := []model.Record{
		model.Derive(recs[0], map[string]int{"Adapt_A": 11}),
		model.Derive(recs[1], map[string]int{"Adapt_A": 0}),
	}
	require.NoError(t, layer.Commit(ctx, derived))

	names, err := s.Layers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"oa_scores"}, names)

	reader := s.Layer("oa_scores")
	schema, err := reader.Schema(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"OA11CD", "LSOA11NM", "VM5_q", "Adapt_A"}, schema.Names())
	assert.Equal(t, 40, schema[1].Width)

	got, err := reader.Records(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "E00000001", got[0].ID)
	assert.Equal(t, json.Number("11"), got[0].Attrs["Adapt_A"])
	n, ok := got[0].Int("Adapt_A")
	assert.True(t, ok)
	assert.Equal(t, 11, n)
	_, ok = got[1].Int("VM5_q")
	assert.False(t, ok)

	p, ok := got[0].Geometry.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, 27700, p.SRID())
	assert.Nil(t, got[1].Geometry)
}

func TestSQLiteLayer_RecommitReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	first := s.Layer("oa")
	require.NoError(t, first.Begin(ctx, testSchema()))
	require.NoError(t, first.Commit(ctx, testRecords()))

	second := s.Layer("oa")
	require.NoError(t, second.Begin(ctx, testSchema()))
	require.NoError(t, second.Commit(ctx, testRecords()[:1]))

	got, err := s.Layer("oa").Records(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteLayer_DuplicateIDRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	recs := testRecords()
	recs[1].ID = recs[0].ID

	layer := s.Layer("oa")
	require.NoError(t, layer.Begin(ctx, testSchema()))
	require.Error(t, layer.Commit(ctx, recs))

	_, err := s.Layer("oa").Schema(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteLayer_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)
	_, err := s.Layer("missing").Records(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layer missing not found")
}
