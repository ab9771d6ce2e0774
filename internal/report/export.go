package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adapt-cli/internal/scorer"
	"github.com/sells-group/adapt-cli/internal/selection"
)

// DefaultPrefix names the report files when no area filter applies.
const DefaultPrefix = "All"

// Exporter writes the score and group reports into one directory.
type Exporter struct {
	Dir    string
	Prefix string
	XLSX   bool
}

// Written lists the files an export produced.
type Written struct {
	ScoresCSV string
	GroupsCSV string
	Workbook  string
}

// Prefix turns an area name into a file name prefix by removing spaces.
func Prefix(area string) string {
	p := strings.ReplaceAll(strings.TrimSpace(area), " ", "")
	if p == "" {
		return DefaultPrefix
	}
	return p
}

// Export writes <prefix>_AdaptationScores.csv, <prefix>_AdaptationGroups.csv
// and, when enabled, <prefix>_Adaptation.xlsx.
func (e *Exporter) Export(ids []string, scores map[string]scorer.ScoreSet, measureOrder []string, sel *selection.Grouped) (*Written, error) {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create output dir %s", e.Dir)
	}

	prefix := e.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	scoreTable := ScoreRows(ids, scores, measureOrder)
	groupTable := GroupRows(sel)

	out := &Written{
		ScoresCSV: filepath.Join(e.Dir, prefix+"_AdaptationScores.csv"),
		GroupsCSV: filepath.Join(e.Dir, prefix+"_AdaptationGroups.csv"),
	}

	if err := writeCSVFile(out.ScoresCSV, scoreTable); err != nil {
		return nil, err
	}
	zap.L().Info("exported CSV of adaptation scores", zap.String("path", out.ScoresCSV), zap.Int("rows", len(scoreTable.Rows)))

	if err := writeCSVFile(out.GroupsCSV, groupTable); err != nil {
		return nil, err
	}
	zap.L().Info("exported CSV of adaptation groups", zap.String("path", out.GroupsCSV), zap.Int("rows", len(groupTable.Rows)))

	if e.XLSX {
		out.Workbook = filepath.Join(e.Dir, prefix+"_Adaptation.xlsx")
		var buf bytes.Buffer
		if err := WriteXLSX(&buf, NamedTable{Name: SheetScores, Table: scoreTable}, NamedTable{Name: SheetGroups, Table: groupTable}); err != nil {
			return nil, err
		}
		if err := os.WriteFile(out.Workbook, buf.Bytes(), 0o644); err != nil {
			return nil, eris.Wrapf(err, "report: write %s", out.Workbook)
		}
		zap.L().Info("exported adaptation workbook", zap.String("path", out.Workbook))
	}

	return out, nil
}

func writeCSVFile(path string, t Table) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}
