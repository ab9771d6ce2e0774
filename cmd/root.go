package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adapt-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "adapt-cli",
	Short: "Climate adaptation suitability scoring for output areas",
	Long:  "Scores output areas against hazard-gated adaptation measures, selects qualifying areas per adaptation group, and exports score and group reports with per-group map data.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		applyFlagOverrides(cmd, cfg)

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("tables", "", "analysis tables YAML (default: built-in tables)")
	f.String("driver", "", "feature store driver: shapefile, sqlite or postgres")
	f.String("input", "", "input layer (shapefile path or layer name)")
	f.String("output", "", "scored output layer (shapefile path or layer name)")
	f.String("area", "", "restrict export to records whose area field equals this value")
	f.String("out-dir", "", "directory for reports and map data")
	f.Int("concurrency", 0, "scoring goroutines (0: GOMAXPROCS)")
	f.Bool("xlsx", false, "also write an XLSX workbook")
	f.Bool("render", false, "render per-group map data")
}

// applyFlagOverrides copies explicitly set flags over the loaded config.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("tables") {
		c.Analysis.Tables, _ = flags.GetString("tables")
	}
	if flags.Changed("driver") {
		c.Store.Driver, _ = flags.GetString("driver")
	}
	if flags.Changed("input") {
		c.Store.Input, _ = flags.GetString("input")
	}
	if flags.Changed("output") {
		c.Store.Output, _ = flags.GetString("output")
	}
	if flags.Changed("area") {
		c.Export.Area, _ = flags.GetString("area")
	}
	if flags.Changed("out-dir") {
		c.Export.OutDir, _ = flags.GetString("out-dir")
	}
	if flags.Changed("concurrency") {
		c.Pipeline.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("xlsx") {
		c.Export.XLSX, _ = flags.GetBool("xlsx")
	}
	if flags.Changed("render") {
		c.Render.Enabled, _ = flags.GetBool("render")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
