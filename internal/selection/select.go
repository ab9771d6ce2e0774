// Package selection picks the records that reach each measure's threshold and
// groups them under their adaptation group.
package selection

import (
	"github.com/sells-group/adapt-cli/internal/analysis"
	"github.com/sells-group/adapt-cli/internal/model"
	"github.com/sells-group/adapt-cli/internal/scorer"
)

// MeasureSelection lists the records qualifying for one measure, in input order.
type MeasureSelection struct {
	Measure   string
	Threshold int
	RecordIDs []string
}

// GroupSelection holds the measure selections of one group in declared order.
type GroupSelection struct {
	Group    string
	Color    string
	Measures []MeasureSelection
}

// Grouped is the full selection for a run: groups and measures keep the
// declared order of the tables.
type Grouped struct {
	Groups []GroupSelection
}

// Pair is one non-empty (group, measure) selection.
type Pair struct {
	Group     string
	Measure   string
	RecordIDs []string
}

// Select scans every record for every (group, measure) pair. A record
// qualifies when its score for the measure is present and at least the
// measure's threshold. Records may qualify under any number of pairs.
func Select(scored []scorer.Scored, tables *analysis.Tables) (*Grouped, error) {
	out := &Grouped{}
	for _, g := range tables.Groups() {
		gs := GroupSelection{Group: g.Name, Color: g.Color, Measures: make([]MeasureSelection, 0, len(g.Measures))}
		for _, m := range g.Measures {
			threshold, ok := tables.Threshold(m)
			if !ok {
				return nil, &analysis.ConfigError{Kind: analysis.ErrMissingThreshold, ID: m, Context: "group " + g.Name}
			}
			ms := MeasureSelection{Measure: m, Threshold: threshold}
			for _, s := range scored {
				if v, ok := s.Scores.Get(m); ok && v >= threshold {
					ms.RecordIDs = append(ms.RecordIDs, s.ID)
				}
			}
			gs.Measures = append(gs.Measures, ms)
		}
		out.Groups = append(out.Groups, gs)
	}
	return out, nil
}

// Lookup returns the qualifying record IDs for a (group, measure) pair.
func (g *Grouped) Lookup(group, measure string) ([]string, bool) {
	for _, gs := range g.Groups {
		if gs.Group != group {
			continue
		}
		for _, ms := range gs.Measures {
			if ms.Measure == measure {
				return ms.RecordIDs, true
			}
		}
	}
	return nil, false
}

// NonEmpty returns every pair with at least one qualifying record, in
// group then measure order.
func (g *Grouped) NonEmpty() []Pair {
	var pairs []Pair
	for _, gs := range g.Groups {
		for _, ms := range gs.Measures {
			if len(ms.RecordIDs) == 0 {
				continue
			}
			pairs = append(pairs, Pair{Group: gs.Group, Measure: ms.Measure, RecordIDs: ms.RecordIDs})
		}
	}
	return pairs
}

// Selected returns the set of record IDs that qualify under any pair.
func (g *Grouped) Selected() map[string]bool {
	ids := make(map[string]bool)
	for _, gs := range g.Groups {
		for _, ms := range gs.Measures {
			for _, id := range ms.RecordIDs {
				ids[id] = true
			}
		}
	}
	return ids
}

// ScoresFromRecords rebuilds score sets from records whose measure fields were
// persisted by an earlier scoring run. A measure field that is absent or does
// not normalize is left out of the record's score set.
func ScoresFromRecords(records []model.Record, measures []string) []scorer.Scored {
	out := make([]scorer.Scored, len(records))
	for i, r := range records {
		scores := make(scorer.ScoreSet, len(measures))
		for _, m := range measures {
			if v, ok := r.Int(m); ok {
				scores[m] = v
			}
		}
		out[i] = scorer.Scored{ID: r.ID, Result: scorer.Result{Scores: scores}}
	}
	return out
}

// FilterArea keeps records whose area field equals value after trimming.
// An empty value keeps every record.
func FilterArea(records []model.Record, field, value string) []model.Record {
	if value == "" {
		return records
	}
	var out []model.Record
	for _, r := range records {
		if model.Text(r.Attrs[field]) == value {
			out = append(out, r)
		}
	}
	return out
}
