package model

// FieldKind classifies an attribute column.
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindInteger FieldKind = "integer"
	KindFloat   FieldKind = "float"
	KindOther   FieldKind = "other"
)

// Field describes one named attribute column of a feature layer. Width and
// Decimals carry the source column layout when the store has one.
type Field struct {
	Name     string    `json:"name"`
	Kind     FieldKind `json:"kind"`
	Width    int       `json:"width,omitempty"`
	Decimals int       `json:"decimals,omitempty"`
}

// Schema is the ordered attribute schema of a feature layer.
type Schema []Field

// Has reports whether the schema declares a field with the given name.
func (s Schema) Has(name string) bool {
	return s.Index(name) >= 0
}

// Index returns the position of the named field, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the field names in declared order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// WithIntegerFields returns a copy of the schema with an integer field appended
// for every name not already declared. Existing fields keep their position.
func (s Schema) WithIntegerFields(names ...string) Schema {
	out := make(Schema, len(s), len(s)+len(names))
	copy(out, s)
	for _, n := range names {
		if out.Has(n) {
			continue
		}
		out = append(out, Field{Name: n, Kind: KindInteger})
	}
	return out
}

// Missing returns the names not present in the schema, in input order.
func (s Schema) Missing(names ...string) []string {
	var missing []string
	for _, n := range names {
		if !s.Has(n) {
			missing = append(missing, n)
		}
	}
	return missing
}
