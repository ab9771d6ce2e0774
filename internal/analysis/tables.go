// Package analysis holds the static tables that drive adaptation scoring:
// measure definitions, groups of measures, selection thresholds and the
// hazard gate.
package analysis

import (
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adapt-cli/internal/model"
)

// DefaultHazardMin is the quintile value at or above which a hazard field
// opens the gate.
const DefaultHazardMin = 4

// Measure is a named composite score summed from quintile fields.
type Measure struct {
	Name   string   `yaml:"name"`
	Fields []string `yaml:"fields"`
}

// Group is a named, ordered collection of measures reported together.
type Group struct {
	Name     string   `yaml:"name"`
	Color    string   `yaml:"color"`
	Measures []string `yaml:"measures"`
}

// Hazard is the gate a record must pass before any score accrues.
type Hazard struct {
	Fields   []string `yaml:"fields"`
	MinValue int      `yaml:"min_value"`
}

// Tables is the validated, immutable set of analysis tables. Build one with
// New, DefaultTables or LoadTables.
type Tables struct {
	measures   []Measure
	groups     []Group
	thresholds map[string]int
	hazard     Hazard
	byMeasure  map[string]int
}

// New copies and validates the given definitions. A zero hazard MinValue is
// replaced with DefaultHazardMin; use NewWithHazardMin for a zero gate.
func New(measures []Measure, groups []Group, thresholds map[string]int, hazard Hazard) (*Tables, error) {
	if hazard.MinValue == 0 {
		hazard.MinValue = DefaultHazardMin
	}
	return build(measures, groups, thresholds, hazard)
}

// NewWithHazardMin is New with the gate minimum taken exactly as given.
func NewWithHazardMin(measures []Measure, groups []Group, thresholds map[string]int, hazard Hazard) (*Tables, error) {
	return build(measures, groups, thresholds, hazard)
}

func build(measures []Measure, groups []Group, thresholds map[string]int, hazard Hazard) (*Tables, error) {
	t := &Tables{
		measures:   make([]Measure, len(measures)),
		groups:     make([]Group, len(groups)),
		thresholds: make(map[string]int, len(thresholds)),
		hazard: Hazard{
			Fields:   slices.Clone(hazard.Fields),
			MinValue: hazard.MinValue,
		},
		byMeasure: make(map[string]int, len(measures)),
	}
	for i, m := range measures {
		t.measures[i] = Measure{Name: m.Name, Fields: slices.Clone(m.Fields)}
	}
	for i, g := range groups {
		t.groups[i] = Group{Name: g.Name, Color: g.Color, Measures: slices.Clone(g.Measures)}
	}
	for k, v := range thresholds {
		t.thresholds[k] = v
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// validate checks cross-references between the tables once, at construction.
func (t *Tables) validate() error {
	for i, m := range t.measures {
		if m.Name == "" {
			return &ConfigError{Kind: ErrEmptyName, Context: "measures"}
		}
		if _, dup := t.byMeasure[m.Name]; dup {
			return &ConfigError{Kind: ErrDuplicateMeasure, ID: m.Name}
		}
		if len(m.Fields) == 0 {
			return &ConfigError{Kind: ErrEmptyMeasure, ID: m.Name}
		}
		t.byMeasure[m.Name] = i
	}

	seenGroups := make(map[string]bool, len(t.groups))
	for _, g := range t.groups {
		if g.Name == "" {
			return &ConfigError{Kind: ErrEmptyName, Context: "groups"}
		}
		if seenGroups[g.Name] {
			return &ConfigError{Kind: ErrDuplicateGroup, ID: g.Name}
		}
		seenGroups[g.Name] = true
		for _, m := range g.Measures {
			if _, ok := t.byMeasure[m]; !ok {
				return &ConfigError{Kind: ErrUnknownMeasure, ID: m, Context: "group " + g.Name}
			}
			if _, ok := t.thresholds[m]; !ok {
				return &ConfigError{Kind: ErrMissingThreshold, ID: m, Context: "group " + g.Name}
			}
		}
	}

	// Sorted so the reported identifier is stable across runs.
	keys := make([]string, 0, len(t.thresholds))
	for k := range t.thresholds {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if _, ok := t.byMeasure[k]; !ok {
			return &ConfigError{Kind: ErrThresholdOrphaned, ID: k, Context: "thresholds"}
		}
	}

	if len(t.hazard.Fields) == 0 {
		return &ConfigError{Kind: ErrNoHazardFields, Context: "hazard"}
	}
	return nil
}

// CheckSchema verifies that every field referenced by the measures and the
// hazard gate is declared by the input schema.
func (t *Tables) CheckSchema(schema model.Schema) error {
	for _, f := range t.hazard.Fields {
		if !schema.Has(f) {
			return &ConfigError{Kind: ErrUnknownField, ID: f, Context: "hazard"}
		}
	}
	for _, m := range t.measures {
		for _, f := range m.Fields {
			if !schema.Has(f) {
				return &ConfigError{Kind: ErrUnknownField, ID: f, Context: "measure " + m.Name}
			}
		}
	}
	return nil
}

// Measures returns a copy of the measure definitions in declared order.
func (t *Tables) Measures() []Measure {
	out := make([]Measure, len(t.measures))
	for i, m := range t.measures {
		out[i] = Measure{Name: m.Name, Fields: slices.Clone(m.Fields)}
	}
	return out
}

// MeasureNames returns the measure identifiers in declared order.
func (t *Tables) MeasureNames() []string {
	names := make([]string, len(t.measures))
	for i, m := range t.measures {
		names[i] = m.Name
	}
	return names
}

// Fields returns the field list of a measure.
func (t *Tables) Fields(measure string) ([]string, bool) {
	i, ok := t.byMeasure[measure]
	if !ok {
		return nil, false
	}
	return slices.Clone(t.measures[i].Fields), true
}

// Groups returns a copy of the group definitions in declared order.
func (t *Tables) Groups() []Group {
	out := make([]Group, len(t.groups))
	for i, g := range t.groups {
		out[i] = Group{Name: g.Name, Color: g.Color, Measures: slices.Clone(g.Measures)}
	}
	return out
}

// Group returns the named group definition.
func (t *Tables) Group(name string) (Group, bool) {
	for _, g := range t.groups {
		if g.Name == name {
			return Group{Name: g.Name, Color: g.Color, Measures: slices.Clone(g.Measures)}, true
		}
	}
	return Group{}, false
}

// Thresholds returns a copy of the threshold table.
func (t *Tables) Thresholds() map[string]int {
	out := make(map[string]int, len(t.thresholds))
	for k, v := range t.thresholds {
		out[k] = v
	}
	return out
}

// Threshold returns the selection threshold of a measure.
func (t *Tables) Threshold(measure string) (int, bool) {
	v, ok := t.thresholds[measure]
	return v, ok
}

// Hazard returns a copy of the hazard gate definition.
func (t *Tables) Hazard() Hazard {
	return Hazard{Fields: slices.Clone(t.hazard.Fields), MinValue: t.hazard.MinValue}
}

// WithThreshold returns new tables with one threshold replaced.
func (t *Tables) WithThreshold(measure string, value int) (*Tables, error) {
	if _, ok := t.byMeasure[measure]; !ok {
		return nil, eris.Wrap(&ConfigError{Kind: ErrUnknownMeasure, ID: measure, Context: "threshold override"}, "analysis: override threshold")
	}
	th := t.Thresholds()
	th[measure] = value
	return build(t.measures, t.groups, th, t.hazard)
}
