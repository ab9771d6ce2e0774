// Package model defines the feature records that flow through the scoring pipeline.
package model

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Record is one areal unit: a stable identifier, the geometry handle owned by
// the feature store and the raw attribute values keyed by field name.
type Record struct {
	ID       string
	Geometry geom.T
	Attrs    map[string]any
}

// Value returns the raw attribute value and whether the field is set at all.
func (r Record) Value(field string) (any, bool) {
	v, ok := r.Attrs[field]
	return v, ok
}

// Int returns the normalized integer value of a field.
func (r Record) Int(field string) (int, bool) {
	return Normalize(r.Attrs[field])
}

// Derive returns a new Record that starts from src's attributes and overlays
// the computed integer fields. The geometry handle is shared, the attribute
// map is not, so src is never modified.
func Derive(src Record, overlay map[string]int) Record {
	attrs := make(map[string]any, len(src.Attrs)+len(overlay))
	for k, v := range src.Attrs {
		attrs[k] = v
	}
	for k, v := range overlay {
		attrs[k] = v
	}
	return Record{ID: src.ID, Geometry: src.Geometry, Attrs: attrs}
}

// IDs returns the record identifiers in slice order.
func IDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

// CheckUniqueIDs returns an error naming the first empty or repeated identifier.
func CheckUniqueIDs(records []Record) error {
	seen := make(map[string]int, len(records))
	for i, r := range records {
		if r.ID == "" {
			return eris.Errorf("model: record %d has an empty identifier", i)
		}
		if prev, ok := seen[r.ID]; ok {
			return eris.Errorf("model: duplicate record identifier %q (records %d and %d)", r.ID, prev, i)
		}
		seen[r.ID] = i
	}
	return nil
}
