package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adapt-cli/internal/pipeline"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Select qualifying areas per group and write the reports",
	Long: `Reads a scored layer from store.input, optionally restricts it to one
area (export.area compared against export.area_field), selects the records
that meet each measure's threshold per adaptation group, and writes
<prefix>_AdaptationScores.csv and <prefix>_AdaptationGroups.csv to
export.out_dir. With --render, per-group map data is written as well.

Examples:
  # Export every scored area
  export --input out/croydon_scored.shp --out-dir reports

  # Export one LSOA with maps
  export --input out/croydon_scored.shp --area "Croydon 022D" --render`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("export"); err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "export"))

	p, _, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	ls, err := openLayers(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ls.close() }()

	log.Info("exporting layer",
		zap.String("input", cfg.Store.Input),
		zap.String("area", cfg.Export.Area),
		zap.String("out_dir", cfg.Export.OutDir),
	)

	res, err := p.Export(ctx, ls.src)
	if err != nil {
		return err
	}
	printExportSummary(cmd.OutOrStdout(), res)
	return nil
}

func printExportSummary(w io.Writer, res *pipeline.ExportResult) {
	fmt.Fprintf(w, "Records exported: %d\n", res.Records)
	fmt.Fprintf(w, "Qualifying pairs: %d\n", len(res.Selection.NonEmpty()))
	fmt.Fprintf(w, "Scores report:    %s\n", res.Written.ScoresCSV)
	fmt.Fprintf(w, "Groups report:    %s\n", res.Written.GroupsCSV)
	if res.Written.Workbook != "" {
		fmt.Fprintf(w, "Workbook:         %s\n", res.Written.Workbook)
	}
	if len(res.Plans) > 0 {
		fmt.Fprintf(w, "Map plans:        %d\n", len(res.Plans))
	}
}
