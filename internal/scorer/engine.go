// Package scorer computes hazard-gated adaptation measure scores per record.
package scorer

import (
	"github.com/sells-group/adapt-cli/internal/analysis"
	"github.com/sells-group/adapt-cli/internal/model"
)

// ScoreSet maps measure identifier to its integer score for one record.
type ScoreSet map[string]int

// Get returns the score of a measure and whether the record was scored on it.
func (s ScoreSet) Get(measure string) (int, bool) {
	v, ok := s[measure]
	return v, ok
}

// Result is the outcome of scoring one record.
type Result struct {
	Hazard bool
	Scores ScoreSet
}

// Engine scores records against a fixed set of analysis tables. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	measures []analysis.Measure
	hazard   analysis.Hazard
}

// NewEngine creates an Engine from validated tables.
func NewEngine(t *analysis.Tables) *Engine {
	return &Engine{measures: t.Measures(), hazard: t.Hazard()}
}

// Hazard reports whether any hazard field of the record normalizes to a value
// at or above the gate minimum. Absent or malformed fields are skipped.
func (e *Engine) Hazard(rec model.Record) bool {
	for _, f := range e.hazard.Fields {
		if v, ok := rec.Int(f); ok && v >= e.hazard.MinValue {
			return true
		}
	}
	return false
}

// Compute returns the hazard flag and every measure's score for rec. When the
// hazard gate is closed every measure scores 0. Otherwise a measure is the sum
// of its fields that normalize; the others contribute nothing.
func (e *Engine) Compute(rec model.Record) Result {
	hazard := e.Hazard(rec)
	scores := make(ScoreSet, len(e.measures))
	for _, m := range e.measures {
		if !hazard {
			scores[m.Name] = 0
			continue
		}
		sum := 0
		for _, f := range m.Fields {
			if v, ok := rec.Int(f); ok {
				sum += v
			}
		}
		scores[m.Name] = sum
	}
	return Result{Hazard: hazard, Scores: scores}
}
