package analysis

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML layout of the analysis tables.
//
//	hazard:
//	  fields: [MaxAvLST_q, VM5_q, Poll_q]
//	  min_value: 4
//	measures:
//	  - name: Adapt_A
//	    fields: [MaxAvLST_q, VM5_q]
//	groups:
//	  - name: AdaptiveSpaces
//	    color: "#f1c232"
//	    measures: [Adapt_A]
//	thresholds:
//	  Adapt_A: 31
type File struct {
	Hazard     FileHazard     `yaml:"hazard"`
	Measures   []Measure      `yaml:"measures"`
	Groups     []Group        `yaml:"groups"`
	Thresholds map[string]int `yaml:"thresholds"`
}

// FileHazard is the on-disk hazard gate. An omitted min_value means
// DefaultHazardMin; an explicit 0 is kept.
type FileHazard struct {
	Fields   []string `yaml:"fields"`
	MinValue *int     `yaml:"min_value,omitempty"`
}

// LoadTables reads and validates tables from a YAML file. An empty path
// returns DefaultTables.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: read tables %s", path)
	}
	return ParseTables(data)
}

// ParseTables decodes and validates YAML tables.
func ParseTables(data []byte) (*Tables, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "analysis: parse tables")
	}

	hazard := Hazard{Fields: f.Hazard.Fields, MinValue: DefaultHazardMin}
	if f.Hazard.MinValue != nil {
		hazard.MinValue = *f.Hazard.MinValue
	}
	t, err := NewWithHazardMin(f.Measures, f.Groups, f.Thresholds, hazard)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: validate tables")
	}
	return t, nil
}

// Marshal renders the tables back to the YAML layout accepted by ParseTables.
func (t *Tables) Marshal() ([]byte, error) {
	h := t.Hazard()
	data, err := yaml.Marshal(File{
		Hazard:     FileHazard{Fields: h.Fields, MinValue: &h.MinValue},
		Measures:   t.Measures(),
		Groups:     t.Groups(),
		Thresholds: t.Thresholds(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "analysis: marshal tables")
	}
	return data, nil
}
