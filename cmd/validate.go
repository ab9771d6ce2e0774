package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/adapt-cli/internal/analysis"
	"github.com/sells-group/adapt-cli/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the analysis tables and optionally the input schema",
	Long: `Loads and validates the measure, group, threshold and hazard tables and
prints a summary. With --check-input the input layer's schema is checked for
every field the tables reference. With --dump the effective tables are
printed as YAML, which is a convenient starting point for a custom file.`,
	RunE: runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.Bool("check-input", false, "check the input layer schema against the tables")
	f.Bool("dump", false, "print the effective tables as YAML")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	checkInput, _ := cmd.Flags().GetBool("check-input")
	dump, _ := cmd.Flags().GetBool("dump")

	mode := "validate"
	if checkInput {
		mode = "export"
	}
	if err := cfg.Validate(mode); err != nil {
		return err
	}

	tables, err := analysis.LoadTables(cfg.Analysis.Tables)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dump {
		data, err := tables.Marshal()
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	printTablesSummary(out, tables)
	if checkInput {
		if err := checkInputSchema(ctx, cfg, tables); err != nil {
			return err
		}
		fmt.Fprintf(out, "Input %s has every referenced field\n", cfg.Store.Input)
	}
	return nil
}

func checkInputSchema(ctx context.Context, c *config.Config, tables *analysis.Tables) error {
	ls, err := openLayers(ctx, c)
	if err != nil {
		return err
	}
	defer func() { _ = ls.close() }()

	schema, err := ls.src.Schema(ctx)
	if err != nil {
		return eris.Wrap(err, "validate: read input schema")
	}
	return tables.CheckSchema(schema)
}

func printTablesSummary(w io.Writer, t *analysis.Tables) {
	h := t.Hazard()
	fmt.Fprintf(w, "Hazard: any of %s >= %d\n", strings.Join(h.Fields, ", "), h.MinValue)
	fmt.Fprintf(w, "Measures: %d\n", len(t.Measures()))
	for _, m := range t.Measures() {
		threshold, _ := t.Threshold(m.Name)
		fmt.Fprintf(w, "  %-8s threshold %-3d fields %s\n", m.Name, threshold, strings.Join(m.Fields, ", "))
	}
	fmt.Fprintf(w, "Groups: %d\n", len(t.Groups()))
	for _, g := range t.Groups() {
		fmt.Fprintf(w, "  %-24s %s  %s\n", g.Name, g.Color, strings.Join(g.Measures, ", "))
	}
}
