package featurestore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/adapt-cli/internal/db"
	"github.com/sells-group/adapt-cli/internal/model"
)

// SQLiteStore keeps feature layers in a single SQLite database using
// modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database at the given path and configures WAL mode.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS layers (
	name         TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	srid         INTEGER NOT NULL DEFAULT 0,
	committed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS layer_fields (
	layer    TEXT NOT NULL REFERENCES layers(name),
	position INTEGER NOT NULL,
	name     TEXT NOT NULL,
	kind     TEXT NOT NULL,
	width    INTEGER NOT NULL DEFAULT 0,
	decimals INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (layer, position)
);

CREATE TABLE IF NOT EXISTS features (
	layer     TEXT NOT NULL REFERENCES layers(name),
	seq       INTEGER NOT NULL,
	record_id TEXT NOT NULL,
	geom      BLOB,
	attrs     TEXT NOT NULL,
	PRIMARY KEY (layer, seq)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_features_record ON features(layer, record_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Layer returns a handle on the named layer. The layer need not exist until
// it is first committed.
func (s *SQLiteStore) Layer(name string) *SQLiteLayer {
	return &SQLiteLayer{store: s, name: name}
}

// Layers lists committed layer names.
func (s *SQLiteStore) Layers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM layers ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list layers")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan layer")
		}
		names = append(names, n)
	}
	return names, eris.Wrap(rows.Err(), "sqlite: list layers")
}

// SQLiteLayer is one named layer inside a SQLiteStore.
type SQLiteLayer struct {
	store *SQLiteStore
	name  string
	state sinkState
}

func (l *SQLiteLayer) Schema(ctx context.Context) (model.Schema, error) {
	var exists int
	err := l.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM layers WHERE name = ?`, l.name).Scan(&exists)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get layer %s", l.name)
	}
	if exists == 0 {
		return nil, eris.Errorf("sqlite: layer %s not found", l.name)
	}

	rows, err := l.store.db.QueryContext(ctx,
		`SELECT name, kind, width, decimals FROM layer_fields WHERE layer = ? ORDER BY position`,
		l.name,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get fields %s", l.name)
	}
	defer rows.Close()

	schema := model.Schema{}
	for rows.Next() {
		var f model.Field
		var kind string
		if err := rows.Scan(&f.Name, &kind, &f.Width, &f.Decimals); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan field")
		}
		f.Kind = model.FieldKind(kind)
		schema = append(schema, f)
	}
	return schema, eris.Wrap(rows.Err(), "sqlite: get fields")
}

func (l *SQLiteLayer) Records(ctx context.Context) ([]model.Record, error) {
	if _, err := l.Schema(ctx); err != nil {
		return nil, err
	}

	rows, err := l.store.db.QueryContext(ctx,
		`SELECT record_id, geom, attrs FROM features WHERE layer = ? ORDER BY seq`,
		l.name,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get features %s", l.name)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var (
			id    string
			wkb   []byte
			attrs string
		)
		if err := rows.Scan(&id, &wkb, &attrs); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan feature")
		}
		rec, err := decodeFeature(id, wkb, []byte(attrs))
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: feature %s", id)
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: get features")
}

func (l *SQLiteLayer) Begin(_ context.Context, base model.Schema) error {
	l.state = sinkState{}
	return l.state.begin(base)
}

func (l *SQLiteLayer) AddIntegerFields(_ context.Context, names ...string) error {
	return l.state.addIntegerFields(names)
}

// Commit replaces the layer's fields and features in one transaction. A
// busy database is retried.
func (l *SQLiteLayer) Commit(ctx context.Context, records []model.Record) error {
	if err := l.state.checkCommit(); err != nil {
		return err
	}
	schema := l.state.Schema()
	runID := uuid.New().String()

	retry := db.RetryConfig{Operation: "sqlite commit " + l.name}
	if err := db.Retry(ctx, retry, func(ctx context.Context) error {
		return l.replace(ctx, runID, schema, records)
	}); err != nil {
		return err
	}
	l.state.committed = true

	zap.L().Info("sqlite: committed layer",
		zap.String("layer", l.name),
		zap.String("run_id", runID),
		zap.Int("records", len(records)),
	)
	return nil
}

func (l *SQLiteLayer) replace(ctx context.Context, runID string, schema model.Schema, records []model.Record) error {
	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{
		`DELETE FROM features WHERE layer = ?`,
		`DELETE FROM layer_fields WHERE layer = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, l.name); err != nil {
			return eris.Wrapf(err, "sqlite: clear layer %s", l.name)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO layers (name, run_id, srid, committed_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET run_id = excluded.run_id, srid = excluded.srid, committed_at = excluded.committed_at`,
		l.name, runID, layerSRID(records), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert layer %s", l.name)
	}

	for i, f := range schema {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO layer_fields (layer, position, name, kind, width, decimals) VALUES (?, ?, ?, ?, ?, ?)`,
			l.name, i, f.Name, string(f.Kind), f.Width, f.Decimals,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert field %s", f.Name)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO features (layer, seq, record_id, geom, attrs) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare feature insert")
	}
	defer stmt.Close()

	for i, rec := range records {
		wkb, attrs, err := encodeFeature(rec, schema)
		if err != nil {
			return eris.Wrapf(err, "sqlite: encode record %s", rec.ID)
		}
		if _, err := stmt.ExecContext(ctx, l.name, i, rec.ID, wkb, string(attrs)); err != nil {
			return eris.Wrapf(err, "sqlite: insert record %s", rec.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// encodeFeature returns the EWKB geometry and the JSON attributes of rec,
// restricted to the fields declared in schema.
func encodeFeature(rec model.Record, schema model.Schema) ([]byte, []byte, error) {
	wkb, err := EncodeGeometry(rec.Geometry)
	if err != nil {
		return nil, nil, err
	}
	attrs := make(map[string]any, len(schema))
	for _, f := range schema {
		attrs[f.Name] = rec.Attrs[f.Name]
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, nil, eris.Wrap(err, "featurestore: marshal attributes")
	}
	return wkb, data, nil
}

func decodeFeature(id string, wkb, attrs []byte) (model.Record, error) {
	g, err := DecodeGeometry(wkb)
	if err != nil {
		return model.Record{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(attrs))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return model.Record{}, eris.Wrap(err, "featurestore: unmarshal attributes")
	}
	return model.Record{ID: id, Geometry: g, Attrs: values}, nil
}

func layerSRID(records []model.Record) int {
	for _, r := range records {
		if r.Geometry != nil {
			return r.Geometry.SRID()
		}
	}
	return 0
}
