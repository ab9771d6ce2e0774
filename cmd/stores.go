package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adapt-cli/internal/analysis"
	"github.com/sells-group/adapt-cli/internal/config"
	"github.com/sells-group/adapt-cli/internal/featurestore"
	"github.com/sells-group/adapt-cli/internal/pipeline"
	"github.com/sells-group/adapt-cli/internal/render"
	"github.com/sells-group/adapt-cli/internal/scorer"
)

// layers holds the configured input source, output sink and the cleanup for
// any database handle behind them.
type layers struct {
	src   featurestore.Source
	sink  featurestore.Sink
	close func() error
}

// openLayers resolves store.input and store.output against the configured driver.
func openLayers(ctx context.Context, c *config.Config) (*layers, error) {
	sc := c.Store
	switch sc.Driver {
	case "shapefile":
		src := &featurestore.ShapefileSource{Path: sc.Input, IDField: sc.IDField, Encoding: sc.Encoding, SRID: sc.SRID}
		return &layers{
			src:   src,
			sink:  &featurestore.ShapefileSink{Path: sc.Output, Encoding: sc.Encoding, PRJ: src.ProjectionFile()},
			close: func() error { return nil },
		}, nil

	case "sqlite":
		s, err := featurestore.OpenSQLite(sc.Path)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return &layers{src: s.Layer(sc.Input), sink: s.Layer(sc.Output), close: s.Close}, nil

	case "postgres":
		s, err := featurestore.NewPostgres(ctx, sc.DatabaseURL, &featurestore.PoolConfig{
			MaxConns:      sc.MaxConns,
			MinConns:      sc.MinConns,
			RetryAttempts: sc.RetryAttempts,
		})
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return &layers{src: s.Layer(sc.Input), sink: s.Layer(sc.Output), close: s.Close}, nil
	}
	return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
}

// newPipeline loads the analysis tables and builds a pipeline from config.
func newPipeline(ctx context.Context, c *config.Config) (*pipeline.Pipeline, *analysis.Tables, error) {
	tables, err := analysis.LoadTables(c.Analysis.Tables)
	if err != nil {
		return nil, nil, err
	}

	opts := pipeline.Options{
		StrictSchema: c.Analysis.StrictSchema,
		Batch:        scorer.BatchOptions{Concurrency: c.Pipeline.Concurrency, ProgressEvery: c.Pipeline.ProgressEvery},
		IDField:      c.Store.IDField,
		AreaField:    c.Export.AreaField,
		Area:         c.Export.Area,
		OutDir:       c.Export.OutDir,
		XLSX:         c.Export.XLSX,
	}
	if c.Render.Enabled {
		r, err := render.New(c.Render.Format)
		if err != nil {
			return nil, nil, err
		}
		opts.Renderer = r

		if c.Render.Outline != "" {
			outline, err := loadOverlay(ctx, c, c.Render.Outline, render.KindOutline)
			if err != nil {
				return nil, nil, err
			}
			opts.Outline = outline
		}
		if c.Render.Mask != "" {
			mask, err := loadOverlay(ctx, c, c.Render.Mask, render.KindMask)
			if err != nil {
				return nil, nil, err
			}
			opts.Mask = mask
		}
		for _, path := range c.Render.Backgrounds {
			bg, err := loadOverlay(ctx, c, path, render.KindBackground)
			if err != nil {
				return nil, nil, err
			}
			opts.Layers = append(opts.Layers, *bg)
		}
	}
	return pipeline.New(tables, opts), tables, nil
}

// loadOverlay reads a shapefile drawn around the area layers. The layer takes
// its name from the file; styles are left to render.BuildPlans.
func loadOverlay(ctx context.Context, c *config.Config, path string, kind render.LayerKind) (*render.Layer, error) {
	src := &featurestore.ShapefileSource{Path: path, Encoding: c.Store.Encoding, SRID: c.Store.SRID}
	records, err := src.Records(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "load overlay %s", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &render.Layer{Name: name, Kind: kind, Records: records}, nil
}
