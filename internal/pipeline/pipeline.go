// Package pipeline wires scoring, selection, reporting and rendering into the
// score, export and run stages.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adapt-cli/internal/analysis"
	"github.com/sells-group/adapt-cli/internal/featurestore"
	"github.com/sells-group/adapt-cli/internal/model"
	"github.com/sells-group/adapt-cli/internal/render"
	"github.com/sells-group/adapt-cli/internal/report"
	"github.com/sells-group/adapt-cli/internal/scorer"
	"github.com/sells-group/adapt-cli/internal/selection"
)

// Options configures a Pipeline.
type Options struct {
	// StrictSchema rejects inputs that lack a field referenced by the tables.
	// When false the missing fields are logged and treated as absent.
	StrictSchema bool
	Batch        scorer.BatchOptions

	IDField   string
	AreaField string
	Area      string

	OutDir string
	XLSX   bool

	// Renderer draws group maps after the reports are written; nil skips it.
	Renderer render.Renderer
	// Outline holds the area boundaries; only those matching Area on
	// AreaField are drawn.
	Outline *render.Layer
	Mask    *render.Layer
	Layers  []render.Layer
}

// Pipeline runs the adaptation stages against one set of tables.
type Pipeline struct {
	tables *analysis.Tables
	engine *scorer.Engine
	opts   Options
}

// New creates a Pipeline with validated tables.
func New(tables *analysis.Tables, opts Options) *Pipeline {
	if opts.IDField == "" {
		opts.IDField = render.DefaultLabelField
	}
	return &Pipeline{tables: tables, engine: scorer.NewEngine(tables), opts: opts}
}

// ScoreResult is the outcome of the score stage.
type ScoreResult struct {
	Batch   *scorer.Batch
	Schema  model.Schema
	Records []model.Record
}

// ExportResult is the outcome of the export stage.
type ExportResult struct {
	Records   int
	Selection *selection.Grouped
	Written   *report.Written
	Plans     []render.Plan
}

// Scores reads every record from src, scores it and commits the derived layer
// to sink. Configuration problems are reported before the sink is touched.
func (p *Pipeline) Scores(ctx context.Context, src featurestore.Source, sink featurestore.Sink) (*ScoreResult, error) {
	log := zap.L().With(zap.String("component", "pipeline.scores"))

	schema, err := src.Schema(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read schema")
	}
	if err := p.checkSchema(schema); err != nil {
		return nil, err
	}

	records, err := src.Records(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read records")
	}
	if err := model.CheckUniqueIDs(records); err != nil {
		return nil, eris.Wrap(err, "pipeline: check identifiers")
	}

	batch, err := p.engine.ScoreAll(ctx, records, p.opts.Batch)
	if err != nil {
		return nil, err
	}

	derived := make([]model.Record, len(records))
	for i, r := range records {
		derived[i] = model.Derive(r, batch.Items[i].Scores)
	}

	measures := p.tables.MeasureNames()
	if err := sink.Begin(ctx, schema); err != nil {
		return nil, eris.Wrap(err, "pipeline: begin output layer")
	}
	if err := sink.AddIntegerFields(ctx, measures...); err != nil {
		return nil, eris.Wrap(err, "pipeline: add measure fields")
	}
	if err := sink.Commit(ctx, derived); err != nil {
		return nil, eris.Wrap(err, "pipeline: commit output layer")
	}

	log.Info("scored layer committed",
		zap.Int("records", batch.RecordsTotal),
		zap.Int("hazard_triggered", batch.HazardCount),
		zap.Int("measures", len(measures)),
	)
	return &ScoreResult{Batch: batch, Schema: schema.WithIntegerFields(measures...), Records: derived}, nil
}

// Export reads a scored layer, selects qualifying records per group and
// writes the reports and maps.
func (p *Pipeline) Export(ctx context.Context, src featurestore.Source) (*ExportResult, error) {
	schema, err := src.Schema(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read schema")
	}
	if missing := schema.Missing(p.tables.MeasureNames()...); len(missing) > 0 {
		return nil, &analysis.ConfigError{Kind: analysis.ErrUnknownField, ID: missing[0], Context: "scored layer"}
	}
	if p.opts.Area != "" && !schema.Has(p.opts.AreaField) {
		return nil, &analysis.ConfigError{Kind: analysis.ErrUnknownField, ID: p.opts.AreaField, Context: "area filter"}
	}

	records, err := src.Records(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read records")
	}
	return p.export(ctx, records)
}

// Run scores src into sink and exports from the derived records without
// reading the sink back.
func (p *Pipeline) Run(ctx context.Context, src featurestore.Source, sink featurestore.Sink) (*ScoreResult, *ExportResult, error) {
	scored, err := p.Scores(ctx, src, sink)
	if err != nil {
		return nil, nil, err
	}
	if p.opts.Area != "" && !scored.Schema.Has(p.opts.AreaField) {
		return scored, nil, &analysis.ConfigError{Kind: analysis.ErrUnknownField, ID: p.opts.AreaField, Context: "area filter"}
	}
	exported, err := p.export(ctx, scored.Records)
	if err != nil {
		return scored, nil, err
	}
	return scored, exported, nil
}

func (p *Pipeline) export(ctx context.Context, records []model.Record) (*ExportResult, error) {
	log := zap.L().With(zap.String("component", "pipeline.export"))

	if err := model.CheckUniqueIDs(records); err != nil {
		return nil, eris.Wrap(err, "pipeline: check identifiers")
	}

	area := selection.FilterArea(records, p.opts.AreaField, p.opts.Area)
	if p.opts.Area != "" {
		log.Info("filtered records by area",
			zap.String("field", p.opts.AreaField),
			zap.String("area", p.opts.Area),
			zap.Int("matched", len(area)),
			zap.Int("total", len(records)),
		)
		if len(area) == 0 {
			log.Warn("no records in area", zap.String("area", p.opts.Area))
		}
	}

	measures := p.tables.MeasureNames()
	scored := selection.ScoresFromRecords(area, measures)
	sel, err := selection.Select(scored, p.tables)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: select")
	}

	scoreMap := make(map[string]scorer.ScoreSet, len(scored))
	for _, s := range scored {
		scoreMap[s.ID] = s.Scores
	}

	prefix := report.Prefix(p.opts.Area)
	exporter := &report.Exporter{Dir: p.opts.OutDir, Prefix: prefix, XLSX: p.opts.XLSX}
	written, err := exporter.Export(model.IDs(area), scoreMap, measures, sel)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: write reports")
	}

	plans := render.BuildPlans(area, sel, p.tables, render.Options{
		Dir:        p.opts.OutDir,
		Prefix:     prefix,
		LabelField: p.opts.IDField,
		Outline:    p.areaOutline(),
		Mask:       p.opts.Mask,
		Background: p.opts.Layers,
	})
	if p.opts.Renderer != nil {
		if err := render.All(ctx, p.opts.Renderer, plans); err != nil {
			return nil, eris.Wrap(err, "pipeline: render maps")
		}
	}

	log.Info("export complete",
		zap.Int("records", len(area)),
		zap.Int("pairs", len(sel.NonEmpty())),
		zap.Int("maps", len(plans)),
	)
	return &ExportResult{Records: len(area), Selection: sel, Written: written, Plans: plans}, nil
}

// areaOutline narrows the outline layer to the exported area. A layer with no
// matching boundary is dropped so the extent falls back to the records.
func (p *Pipeline) areaOutline() *render.Layer {
	if p.opts.Outline == nil {
		return nil
	}
	o := *p.opts.Outline
	o.Records = selection.FilterArea(o.Records, p.opts.AreaField, p.opts.Area)
	if len(o.Records) == 0 {
		zap.L().Warn("no outline boundary for area",
			zap.String("layer", o.Name),
			zap.String("area", p.opts.Area),
		)
		return nil
	}
	return &o
}

// checkSchema applies the strict or lenient schema policy.
func (p *Pipeline) checkSchema(schema model.Schema) error {
	if p.opts.StrictSchema {
		return p.tables.CheckSchema(schema)
	}
	if err := p.tables.CheckSchema(schema); err != nil {
		zap.L().Warn("pipeline: input schema lacks referenced fields; treating them as absent",
			zap.Strings("missing", schema.Missing(referencedFields(p.tables)...)),
		)
	}
	return nil
}

func referencedFields(t *analysis.Tables) []string {
	seen := map[string]bool{}
	var out []string
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, f := range t.Hazard().Fields {
		add(f)
	}
	for _, m := range t.Measures() {
		for _, f := range m.Fields {
			add(f)
		}
	}
	return out
}
