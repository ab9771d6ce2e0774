package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/adapt-cli/internal/config"
	"github.com/sells-group/adapt-cli/internal/featurestore"
	"github.com/sells-group/adapt-cli/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"score", "export", "run", "validate", "import"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "adapt-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"tables", "driver", "input", "output", "area", "out-dir", "concurrency", "xlsx", "render"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "root should have --%s flag", name)
	}
}

func TestImportCommand_Flags(t *testing.T) {
	flag := importCmd.Flags().Lookup("shp")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
	require.NotNil(t, importCmd.Flags().Lookup("layer"))
}

func TestValidateCommand_Flags(t *testing.T) {
	for _, name := range []string{"check-input", "dump"} {
		assert.NotNil(t, validateCmd.Flags().Lookup(name), "validate should have --%s flag", name)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	f := cmd.Flags()
	f.String("driver", "", "")
	f.String("input", "", "")
	f.String("output", "", "")
	f.String("area", "", "")
	f.Int("concurrency", 0, "")
	f.Bool("xlsx", false, "")
	f.Bool("render", false, "")
	require.NoError(t, cmd.Flags().Parse([]string{
		"--driver", "sqlite",
		"--input", "oa",
		"--area", "Croydon 022D",
		"--concurrency", "2",
		"--xlsx",
	}))

	c := &config.Config{
		Store:    config.StoreConfig{Driver: "shapefile", Output: "scored"},
		Pipeline: config.PipelineConfig{Concurrency: 8},
	}
	applyFlagOverrides(cmd, c)

	assert.Equal(t, "sqlite", c.Store.Driver)
	assert.Equal(t, "oa", c.Store.Input)
	assert.Equal(t, "scored", c.Store.Output, "unset flags keep config values")
	assert.Equal(t, "Croydon 022D", c.Export.Area)
	assert.Equal(t, 2, c.Pipeline.Concurrency)
	assert.True(t, c.Export.XLSX)
	assert.False(t, c.Render.Enabled)
}

func TestOpenLayers_UnsupportedDriver(t *testing.T) {
	_, err := openLayers(context.Background(), &config.Config{Store: config.StoreConfig{Driver: "kml"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

const testTables = `hazard:
  fields: [F1]
  min_value: 4
measures:
  - name: M1
    fields: [F1, F2]
groups:
  - name: G1
    color: "#cc0000"
    measures: [M1]
thresholds:
  M1: 10
`

func square(x float64) geom.T {
	return geom.NewPolygonFlat(geom.XY, []float64{x, 0, x, 1, x + 1, 1, x + 1, 0, x, 0}, []int{10})
}

func writeInput(t *testing.T, path string) {
	t.Helper()
	schema := model.Schema{
		{Name: "OA11CD", Kind: model.KindString, Width: 9},
		{Name: "LSOA11NM", Kind: model.KindString, Width: 40},
		{Name: "F1", Kind: model.KindInteger},
		{Name: "F2", Kind: model.KindInteger},
	}
	records := []model.Record{
		{ID: "E00000001", Geometry: square(0), Attrs: map[string]any{"OA11CD": "E00000001", "LSOA11NM": "Croydon 022D", "F1": 5, "F2": 6}},
		{ID: "E00000002", Geometry: square(1), Attrs: map[string]any{"OA11CD": "E00000002", "LSOA11NM": "Croydon 022D", "F1": 3, "F2": 20}},
		{ID: "E00000003", Geometry: square(2), Attrs: map[string]any{"OA11CD": "E00000003", "LSOA11NM": "Croydon 001A", "F1": 5, "F2": 9}},
	}
	sink := &featurestore.ShapefileSink{Path: path}
	ctx := context.Background()
	require.NoError(t, sink.Begin(ctx, schema))
	require.NoError(t, sink.Commit(ctx, records))
}

func TestRunCommand_Shapefile(t *testing.T) {
	t.Setenv("ADAPT_LOG_LEVEL", "error")
	dir := t.TempDir()
	tablesPath := filepath.Join(dir, "tables.yaml")
	require.NoError(t, os.WriteFile(tablesPath, []byte(testTables), 0o644))
	input := filepath.Join(dir, "in", "oa.shp")
	writeInput(t, input)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in", "oa.prj"), []byte(`PROJCS["British_National_Grid"]`), 0o644))
	output := filepath.Join(dir, "scored", "oa_scored.shp")
	outDir := filepath.Join(dir, "reports")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"run",
		"--tables", tablesPath,
		"--input", input,
		"--output", output,
		"--out-dir", outDir,
		"--area", "Croydon 022D",
	})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "Records scored:   3")
	assert.Contains(t, out.String(), "Hazard triggered: 2")
	assert.Contains(t, out.String(), "Records exported: 2")

	groups, err := os.ReadFile(filepath.Join(outDir, "Croydon022D_AdaptationGroups.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Group,Measure,RecordIDs\nG1,M1,E00000001\n", string(groups))

	prj, err := os.ReadFile(filepath.Join(dir, "scored", "oa_scored.prj"))
	require.NoError(t, err)
	assert.Equal(t, `PROJCS["British_National_Grid"]`, string(prj))

	scored := &featurestore.ShapefileSource{Path: output, IDField: "OA11CD"}
	records, err := scored.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 11, records[0].Attrs["M1"])
	assert.Equal(t, 0, records[1].Attrs["M1"])
	assert.Equal(t, 14, records[2].Attrs["M1"])
}

func TestLoadOverlay_WithoutIDField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "croydon_mask.shp")
	writeInput(t, path)

	c := &config.Config{Store: config.StoreConfig{SRID: 27700}}
	layer, err := loadOverlay(context.Background(), c, path, "mask")
	require.NoError(t, err)
	assert.Equal(t, "croydon_mask", layer.Name)
	require.Len(t, layer.Records, 3)
	assert.Equal(t, "0", layer.Records[0].ID)
	assert.Equal(t, "2", layer.Records[2].ID)
}
