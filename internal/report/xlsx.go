package report

import (
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet names of the XLSX workbook.
const (
	SheetScores = "Scores"
	SheetGroups = "Groups"
)

// NamedTable is a table destined for one worksheet.
type NamedTable struct {
	Name  string
	Table Table
}

// WriteXLSX writes each table to its own worksheet. Integer-looking cells in
// data rows of the scores sheet are stored as numbers.
func WriteXLSX(w io.Writer, tables ...NamedTable) error {
	f := xlsx.NewFile()
	for _, nt := range tables {
		sheet, err := f.AddSheet(nt.Name)
		if err != nil {
			return eris.Wrapf(err, "report: add sheet %s", nt.Name)
		}
		addRow(sheet, nt.Table.Header, false)
		for _, r := range nt.Table.Rows {
			addRow(sheet, r, nt.Name == SheetScores)
		}
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write XLSX")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string, numeric bool) {
	row := sheet.AddRow()
	for i, v := range cells {
		cell := row.AddCell()
		if numeric && i > 0 && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cell.SetInt(n)
				continue
			}
		}
		cell.SetString(v)
	}
}
