package featurestore

import (
	"context"
	"sync"

	"github.com/sells-group/adapt-cli/internal/model"
)

// Memory is an in-process layer. It is used by tests and as the hand-off
// between stages of a single run.
type Memory struct {
	mu      sync.Mutex
	schema  model.Schema
	records []model.Record
	sink    sinkState

	// FailCommit, when set, is returned by Commit without storing anything.
	FailCommit error
}

// NewMemory creates a layer holding the given schema and records.
func NewMemory(schema model.Schema, records []model.Record) *Memory {
	return &Memory{schema: schema.WithIntegerFields(), records: append([]model.Record(nil), records...)}
}

func (m *Memory) Schema(_ context.Context) (model.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schema.WithIntegerFields(), nil
}

func (m *Memory) Records(_ context.Context) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Record(nil), m.records...), nil
}

func (m *Memory) Begin(_ context.Context, base model.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sinkState{}
	return m.sink.begin(base)
}

func (m *Memory) AddIntegerFields(_ context.Context, names ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sink.addIntegerFields(names)
}

func (m *Memory) Commit(_ context.Context, records []model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.sink.checkCommit(); err != nil {
		return err
	}
	if m.FailCommit != nil {
		return m.FailCommit
	}
	m.schema = m.sink.Schema()
	m.records = append([]model.Record(nil), records...)
	m.sink.committed = true
	return nil
}
