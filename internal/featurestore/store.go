// Package featurestore adapts feature layers (shapefiles, SQLite, Postgres)
// to the record batches consumed and produced by the scoring pipeline.
package featurestore

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adapt-cli/internal/model"
)

// Source yields a layer's schema and its records in a stable order.
type Source interface {
	Schema(ctx context.Context) (model.Schema, error)
	Records(ctx context.Context) ([]model.Record, error)
}

// Sink receives a derived layer. Begin declares the base schema, integer
// output fields are added before any write, and Commit persists the whole
// batch or nothing.
type Sink interface {
	Begin(ctx context.Context, base model.Schema) error
	AddIntegerFields(ctx context.Context, names ...string) error
	Commit(ctx context.Context, records []model.Record) error
}

// Layer is a store that is both readable and writable.
type Layer interface {
	Source
	Sink
}

// sinkState tracks the Begin -> AddIntegerFields -> Commit lifecycle shared
// by every sink.
type sinkState struct {
	schema    model.Schema
	begun     bool
	committed bool
}

func (s *sinkState) begin(base model.Schema) error {
	if s.committed {
		return eris.New("featurestore: sink already committed")
	}
	s.schema = base.WithIntegerFields()
	s.begun = true
	return nil
}

func (s *sinkState) addIntegerFields(names []string) error {
	if !s.begun {
		return eris.New("featurestore: AddIntegerFields before Begin")
	}
	if s.committed {
		return eris.New("featurestore: AddIntegerFields after commit")
	}
	s.schema = s.schema.WithIntegerFields(names...)
	return nil
}

func (s *sinkState) checkCommit() error {
	if !s.begun {
		return eris.New("featurestore: Commit before Begin")
	}
	if s.committed {
		return eris.New("featurestore: sink already committed")
	}
	return nil
}

// Schema returns the output schema declared so far.
func (s *sinkState) Schema() model.Schema {
	return s.schema.WithIntegerFields()
}
