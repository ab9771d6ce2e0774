package featurestore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adapt-cli/internal/db"
	"github.com/sells-group/adapt-cli/internal/model"
)

// pgSchema is the Postgres schema holding layer tables.
const pgSchema = "adapt"

var (
	fieldColumns   = []string{"layer", "position", "name", "kind", "width", "decimals"}
	featureColumns = []string{"layer", "seq", "record_id", "geom", "attrs"}
)

// PostgresStore keeps feature layers in Postgres, loading them with COPY.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	retry   db.RetryConfig
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`

	// RetryAttempts bounds tries of the ping and of each commit.
	RetryAttempts int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	retry := db.RetryConfig{}
	if poolCfg != nil {
		retry.Attempts = poolCfg.RetryAttempts
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	ping := retry
	ping.Operation = "postgres ping"
	if err := db.Retry(ctx, ping, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, retry: retry}, nil
}

// NewPostgresWithPool wraps an existing pool, e.g. a pgxmock pool in tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE SCHEMA IF NOT EXISTS adapt;

CREATE TABLE IF NOT EXISTS adapt.layers (
	name         TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	srid         INTEGER NOT NULL DEFAULT 0,
	committed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS adapt.layer_fields (
	layer    TEXT NOT NULL REFERENCES adapt.layers(name),
	position INTEGER NOT NULL,
	name     TEXT NOT NULL,
	kind     TEXT NOT NULL,
	width    INTEGER NOT NULL DEFAULT 0,
	decimals INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (layer, position)
);

CREATE TABLE IF NOT EXISTS adapt.features (
	layer     TEXT NOT NULL REFERENCES adapt.layers(name),
	seq       INTEGER NOT NULL,
	record_id TEXT NOT NULL,
	geom      BYTEA,
	attrs     JSONB NOT NULL,
	PRIMARY KEY (layer, seq)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_features_record ON adapt.features(layer, record_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Layer returns a handle on the named layer.
func (s *PostgresStore) Layer(name string) *PostgresLayer {
	return &PostgresLayer{store: s, name: name}
}

// PostgresLayer is one named layer inside a PostgresStore.
type PostgresLayer struct {
	store *PostgresStore
	name  string
	state sinkState
}

func (l *PostgresLayer) Schema(ctx context.Context) (model.Schema, error) {
	var srid int
	err := l.store.pool.QueryRow(ctx, `SELECT srid FROM adapt.layers WHERE name = $1`, l.name).Scan(&srid)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: layer %s not found", l.name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get layer %s", l.name)
	}

	rows, err := l.store.pool.Query(ctx,
		`SELECT name, kind, width, decimals FROM adapt.layer_fields WHERE layer = $1 ORDER BY position`,
		l.name,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get fields %s", l.name)
	}
	defer rows.Close()

	schema := model.Schema{}
	for rows.Next() {
		var f model.Field
		var kind string
		if err := rows.Scan(&f.Name, &kind, &f.Width, &f.Decimals); err != nil {
			return nil, eris.Wrap(err, "postgres: scan field")
		}
		f.Kind = model.FieldKind(kind)
		schema = append(schema, f)
	}
	return schema, eris.Wrap(rows.Err(), "postgres: get fields")
}

func (l *PostgresLayer) Records(ctx context.Context) ([]model.Record, error) {
	rows, err := l.store.pool.Query(ctx,
		`SELECT record_id, geom, attrs FROM adapt.features WHERE layer = $1 ORDER BY seq`,
		l.name,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get features %s", l.name)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var (
			id    string
			wkb   []byte
			attrs []byte
		)
		if err := rows.Scan(&id, &wkb, &attrs); err != nil {
			return nil, eris.Wrap(err, "postgres: scan feature")
		}
		rec, err := decodeFeature(id, wkb, attrs)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: feature %s", id)
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: get features")
}

func (l *PostgresLayer) Begin(_ context.Context, base model.Schema) error {
	l.state = sinkState{}
	return l.state.begin(base)
}

func (l *PostgresLayer) AddIntegerFields(_ context.Context, names ...string) error {
	return l.state.addIntegerFields(names)
}

// Commit replaces the layer in one transaction and bulk-loads fields and
// features with COPY.
func (l *PostgresLayer) Commit(ctx context.Context, records []model.Record) error {
	if err := l.state.checkCommit(); err != nil {
		return err
	}
	schema := l.state.Schema()

	fieldRows := make([][]any, len(schema))
	for i, f := range schema {
		fieldRows[i] = []any{l.name, i, f.Name, string(f.Kind), f.Width, f.Decimals}
	}
	featureRows := make([][]any, len(records))
	for i, rec := range records {
		wkb, attrs, err := encodeFeature(rec, schema)
		if err != nil {
			return eris.Wrapf(err, "postgres: encode record %s", rec.ID)
		}
		featureRows[i] = []any{l.name, i, rec.ID, wkb, attrs}
	}

	runID := uuid.New().String()
	retry := l.store.retry
	retry.Operation = "postgres commit " + l.name
	err := db.Retry(ctx, retry, func(ctx context.Context) error {
		return l.replace(ctx, runID, records, fieldRows, featureRows)
	})
	if err != nil {
		return err
	}
	l.state.committed = true

	zap.L().Info("postgres: committed layer",
		zap.String("layer", l.name),
		zap.String("run_id", runID),
		zap.Int("records", len(records)),
	)
	return nil
}

func (l *PostgresLayer) replace(ctx context.Context, runID string, records []model.Record, fieldRows, featureRows [][]any) error {
	return db.WithTx(ctx, l.store.pool, func(tx pgx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM adapt.features WHERE layer = $1`,
			`DELETE FROM adapt.layer_fields WHERE layer = $1`,
		} {
			if _, err := tx.Exec(ctx, stmt, l.name); err != nil {
				return eris.Wrapf(err, "postgres: clear layer %s", l.name)
			}
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO adapt.layers (name, run_id, srid, committed_at) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (name) DO UPDATE SET run_id = EXCLUDED.run_id, srid = EXCLUDED.srid, committed_at = EXCLUDED.committed_at`,
			l.name, runID, layerSRID(records), time.Now().UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert layer %s", l.name)
		}

		if _, err := db.CopyFromSchema(ctx, tx, pgSchema, "layer_fields", fieldColumns, fieldRows); err != nil {
			return err
		}
		_, err = db.CopyFromSchema(ctx, tx, pgSchema, "features", featureColumns, featureRows)
		return err
	})
}
