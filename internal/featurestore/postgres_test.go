package featurestore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/adapt-cli/internal/db"
	"github.com/sells-group/adapt-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS adapt`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLayer_Commit(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	recs := testRecords()
	recs[0].Geometry = geom.NewPointFlat(geom.XY, []float64{1, 2}).SetSRID(27700)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM adapt.features WHERE layer = \$1`).WithArgs("oa_scores").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM adapt.layer_fields WHERE layer = \$1`).WithArgs("oa_scores").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO adapt.layers`).
		WithArgs("oa_scores", pgxmock.AnyArg(), 27700, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"adapt", "layer_fields"}, fieldColumns).WillReturnResult(4)
	mock.ExpectCopyFrom(pgx.Identifier{"adapt", "features"}, featureColumns).WillReturnResult(2)
	mock.ExpectCommit()

	layer := s.Layer("oa_scores")
	require.NoError(t, layer.Begin(ctx, testSchema()))
	require.NoError(t, layer.AddIntegerFields(ctx, "Adapt_A"))
	require.NoError(t, layer.Commit(ctx, []model.Record{
		model.Derive(recs[0], map[string]int{"Adapt_A": 3}),
		model.Derive(recs[1], map[string]int{"Adapt_A": 0}),
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLayer_CommitRollsBackOnCopyError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM adapt.features`).WithArgs("oa_scores").WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`DELETE FROM adapt.layer_fields`).WithArgs("oa_scores").WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`INSERT INTO adapt.layers`).
		WithArgs("oa_scores", pgxmock.AnyArg(), 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"adapt", "layer_fields"}, fieldColumns).WillReturnResult(3)
	mock.ExpectCopyFrom(pgx.Identifier{"adapt", "features"}, featureColumns).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	layer := s.Layer("oa_scores")
	require.NoError(t, layer.Begin(ctx, testSchema()))
	err := layer.Commit(ctx, testRecords())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO adapt.features")
	assert.NoError(t, mock.ExpectationsWereMet())

	require.NoError(t, layer.AddIntegerFields(ctx, "Adapt_A"), "failed commit leaves the sink open")
}

func TestPostgresLayer_CommitRetriesDeadlock(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	s.retry = db.RetryConfig{Attempts: 2, Backoff: time.Millisecond}
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM adapt.features`).WithArgs("oa_scores").
		WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM adapt.features`).WithArgs("oa_scores").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM adapt.layer_fields`).WithArgs("oa_scores").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO adapt.layers`).
		WithArgs("oa_scores", pgxmock.AnyArg(), 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"adapt", "layer_fields"}, fieldColumns).WillReturnResult(3)
	mock.ExpectCopyFrom(pgx.Identifier{"adapt", "features"}, featureColumns).WillReturnResult(2)
	mock.ExpectCommit()

	layer := s.Layer("oa_scores")
	require.NoError(t, layer.Begin(ctx, testSchema()))
	require.NoError(t, layer.Commit(ctx, testRecords()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLayer_SchemaNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT srid FROM adapt.layers WHERE name = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Layer("missing").Schema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layer missing not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLayer_SchemaAndRecords(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT srid FROM adapt.layers`).WithArgs("oa").
		WillReturnRows(pgxmock.NewRows([]string{"srid"}).AddRow(27700))
	mock.ExpectQuery(`SELECT name, kind, width, decimals FROM adapt.layer_fields`).WithArgs("oa").
		WillReturnRows(pgxmock.NewRows([]string{"name", "kind", "width", "decimals"}).
			AddRow("OA11CD", "string", 9, 0).
			AddRow("Adapt_A", "integer", 0, 0))

	schema, err := s.Layer("oa").Schema(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Schema{
		{Name: "OA11CD", Kind: model.KindString, Width: 9},
		{Name: "Adapt_A", Kind: model.KindInteger},
	}, schema)

	wkb, err := EncodeGeometry(geom.NewPointFlat(geom.XY, []float64{1, 2}).SetSRID(27700))
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT record_id, geom, attrs FROM adapt.features`).WithArgs("oa").
		WillReturnRows(pgxmock.NewRows([]string{"record_id", "geom", "attrs"}).
			AddRow("E1", wkb, []byte(`{"OA11CD":"E1","Adapt_A":12}`)).
			AddRow("E2", []byte(nil), []byte(`{"OA11CD":"E2","Adapt_A":null}`)))

	recs, err := s.Layer("oa").Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	n, ok := recs[0].Int("Adapt_A")
	assert.True(t, ok)
	assert.Equal(t, 12, n)
	assert.IsType(t, &geom.Point{}, recs[0].Geometry)
	_, ok = recs[1].Int("Adapt_A")
	assert.False(t, ok)
	assert.Nil(t, recs[1].Geometry)
	assert.NoError(t, mock.ExpectationsWereMet())
}
