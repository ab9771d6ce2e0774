// Package render turns a grouped selection into per-group map plans and
// hands them to a Renderer.
package render

import (
	"path/filepath"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/adapt-cli/internal/analysis"
	"github.com/sells-group/adapt-cli/internal/model"
	"github.com/sells-group/adapt-cli/internal/selection"
)

// LayerKind is the role of a layer within a plan.
type LayerKind string

const (
	KindBoundary   LayerKind = "boundary"
	KindMeasure    LayerKind = "measure"
	KindOutline    LayerKind = "outline"
	KindMask       LayerKind = "mask"
	KindBackground LayerKind = "background"
)

// Style values used by the cartographic layers.
const (
	BoundaryStroke = "#6a00ff"
	MeasureOpacity = 0.5
	OutlineStroke  = "#000000"
	MaskColor      = "#000000"
	MaskOpacity    = 0.25
)

// Style is the per-layer symbology a renderer should honour.
type Style struct {
	Fill       string  `json:"fill,omitempty"`
	Stroke     string  `json:"stroke,omitempty"`
	Opacity    float64 `json:"opacity"`
	LabelField string  `json:"label_field,omitempty"`
}

// Layer is a named, styled set of records.
type Layer struct {
	Name    string
	Kind    LayerKind
	Style   Style
	Records []model.Record
}

// Rect is a rectangle in page millimetres.
type Rect struct {
	X, Y, Width, Height float64
}

// Page is the fixed print layout.
type Page struct {
	Size        string
	Orientation string
	Width       float64
	Height      float64
	MapFrame    Rect
}

// A4Landscape is the layout used for every exported map.
var A4Landscape = Page{
	Size:        "A4",
	Orientation: "landscape",
	Width:       297,
	Height:      210,
	MapFrame:    Rect{X: 10, Y: 10, Width: 277, Height: 190},
}

// Plan is everything needed to draw one group's map.
type Plan struct {
	Group  string
	Color  string
	Layers []Layer
	Extent *geom.Bounds // nil when no record has geometry
	Page   Page

	Dir  string
	Name string // <prefix>_<group>
}

// Path returns the artifact path for the given extension (".png", ".pdf", ...).
func (p Plan) Path(ext string) string {
	return filepath.Join(p.Dir, p.Name+ext)
}

func (p Plan) RasterPath() string { return p.Path(".png") }
func (p Plan) VectorPath() string { return p.Path(".pdf") }

// MeasureLayers returns the measure layers in plan order.
func (p Plan) MeasureLayers() []Layer {
	var out []Layer
	for _, l := range p.Layers {
		if l.Kind == KindMeasure {
			out = append(out, l)
		}
	}
	return out
}

// Options controls plan construction.
type Options struct {
	Dir        string
	Prefix     string
	LabelField string // defaults to the record identifier field
	// Outline is the boundary of the reported area drawn over the measure
	// layers. When it has geometry the map extent is taken from it.
	Outline    *Layer
	Mask       *Layer
	Background []Layer
}

// DefaultLabelField labels measure layers when Options.LabelField is empty.
const DefaultLabelField = "OA11CD"

// BuildPlans returns one plan per group in selection order. Layers are drawn
// in order: record boundaries, one layer per measure that selected at least
// one record, then the area outline, mask and background layers supplied by
// the caller.
func BuildPlans(records []model.Record, sel *selection.Grouped, tables *analysis.Tables, opts Options) []Plan {
	byID := make(map[string]model.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	label := opts.LabelField
	if label == "" {
		label = DefaultLabelField
	}

	boundary := Layer{
		Name:    "Boundaries",
		Kind:    KindBoundary,
		Style:   Style{Stroke: BoundaryStroke, Opacity: 1},
		Records: records,
	}
	extent := boundsOf(records)

	var outline *Layer
	if opts.Outline != nil {
		o := *opts.Outline
		o.Kind = KindOutline
		if o.Style == (Style{}) {
			o.Style = Style{Stroke: OutlineStroke, Opacity: 1}
		}
		outline = &o
		if b := boundsOf(o.Records); b != nil {
			extent = b
		}
	}

	plans := make([]Plan, 0, len(sel.Groups))
	for _, g := range sel.Groups {
		color := g.Color
		if color == "" && tables != nil {
			if tg, ok := tables.Group(g.Group); ok {
				color = tg.Color
			}
		}

		layers := []Layer{boundary}
		for _, m := range g.Measures {
			if len(m.RecordIDs) == 0 {
				continue
			}
			selected := make([]model.Record, 0, len(m.RecordIDs))
			for _, id := range m.RecordIDs {
				if r, ok := byID[id]; ok {
					selected = append(selected, r)
				}
			}
			layers = append(layers, Layer{
				Name:    m.Measure,
				Kind:    KindMeasure,
				Style:   Style{Fill: color, Opacity: MeasureOpacity, LabelField: label},
				Records: selected,
			})
		}

		if outline != nil {
			layers = append(layers, *outline)
		}
		if opts.Mask != nil {
			mask := *opts.Mask
			mask.Kind = KindMask
			if mask.Style == (Style{}) {
				mask.Style = Style{Fill: MaskColor, Opacity: MaskOpacity}
			}
			layers = append(layers, mask)
		}
		for _, bg := range opts.Background {
			bg.Kind = KindBackground
			layers = append(layers, bg)
		}

		plans = append(plans, Plan{
			Group:  g.Group,
			Color:  color,
			Layers: layers,
			Extent: extent,
			Page:   A4Landscape,
			Dir:    opts.Dir,
			Name:   opts.Prefix + "_" + g.Group,
		})
	}
	return plans
}

func boundsOf(records []model.Record) *geom.Bounds {
	b := geom.NewBounds(geom.XY)
	for _, r := range records {
		if r.Geometry != nil {
			b.Extend(r.Geometry)
		}
	}
	if b.IsEmpty() {
		return nil
	}
	return b
}
