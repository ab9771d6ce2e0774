package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adapt-cli/internal/featurestore"
	"github.com/sells-group/adapt-cli/internal/model"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a shapefile into a sqlite or postgres layer",
	Long: `Reads a shapefile and commits it unchanged as a named layer in the
configured database store, so score and export can run against it with
--driver sqlite or --driver postgres.`,
	Example: `  import --driver sqlite --shp data/croydon_oa.shp --layer croydon_oa`,
	RunE:    runImport,
}

func init() {
	f := importCmd.Flags()
	f.String("shp", "", "shapefile to import (required)")
	f.String("layer", "", "destination layer name (default: store.input)")
	_ = importCmd.MarkFlagRequired("shp")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shpPath, _ := cmd.Flags().GetString("shp")
	layer, _ := cmd.Flags().GetString("layer")
	if layer == "" {
		layer = cfg.Store.Input
	}
	if layer == "" {
		return eris.New("import: --layer or store.input is required")
	}
	if cfg.Store.Driver == "shapefile" {
		return eris.New("import: requires the sqlite or postgres driver")
	}

	dest := *cfg
	dest.Store.Input = shpPath
	dest.Store.Output = layer
	if err := dest.Validate("score"); err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "import"))

	src := &featurestore.ShapefileSource{
		Path:     shpPath,
		IDField:  cfg.Store.IDField,
		Encoding: cfg.Store.Encoding,
		SRID:     cfg.Store.SRID,
	}
	schema, err := src.Schema(ctx)
	if err != nil {
		return err
	}
	records, err := src.Records(ctx)
	if err != nil {
		return err
	}
	if err := model.CheckUniqueIDs(records); err != nil {
		return eris.Wrap(err, "import: check identifiers")
	}

	ls, err := openLayers(ctx, &dest)
	if err != nil {
		return err
	}
	defer func() { _ = ls.close() }()

	if err := ls.sink.Begin(ctx, schema); err != nil {
		return eris.Wrap(err, "import: begin layer")
	}
	if err := ls.sink.Commit(ctx, records); err != nil {
		return eris.Wrapf(err, "import: commit layer %s", layer)
	}

	log.Info("imported shapefile",
		zap.String("shp", shpPath),
		zap.String("layer", layer),
		zap.Int("records", len(records)),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records into %s\n", len(records), layer)
	return nil
}
