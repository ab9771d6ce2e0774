// Package report serializes adaptation scores and grouped selections into
// tabular reports.
package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adapt-cli/internal/scorer"
	"github.com/sells-group/adapt-cli/internal/selection"
)

// Column headers of the two reports.
const (
	ColRecordID  = "RecordID"
	ColGroup     = "Group"
	ColMeasure   = "Measure"
	ColRecordIDs = "RecordIDs"
)

// Table is a header row followed by data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// All returns the header and data rows as one slice.
func (t Table) All() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, t.Header)
	return append(out, t.Rows...)
}

// ScoreRows builds the exhaustive score report: one row per identifier in ids,
// in that order, with one column per measure. A measure the record was not
// scored on is an empty cell.
func ScoreRows(ids []string, scores map[string]scorer.ScoreSet, measureOrder []string) Table {
	header := make([]string, 0, len(measureOrder)+1)
	header = append(header, ColRecordID)
	header = append(header, measureOrder...)

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		row := make([]string, 0, len(header))
		row = append(row, id)
		set := scores[id]
		for _, m := range measureOrder {
			if v, ok := set.Get(m); ok {
				row = append(row, strconv.Itoa(v))
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}
	return Table{Header: header, Rows: rows}
}

// GroupRows builds the group report: one row per (group, measure) pair with
// at least one qualifying record. The record IDs are comma-joined in
// selection order.
func GroupRows(sel *selection.Grouped) Table {
	t := Table{Header: []string{ColGroup, ColMeasure, ColRecordIDs}}
	for _, p := range sel.NonEmpty() {
		t.Rows = append(t.Rows, []string{p.Group, p.Measure, strings.Join(p.RecordIDs, ",")})
	}
	return t
}

// WriteCSV writes the table as CSV.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "report: write CSV header")
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "report: write CSV row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "report: flush CSV")
	}
	return nil
}
