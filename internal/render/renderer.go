package render

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// Renderer draws a plan to its artifacts.
type Renderer interface {
	Render(ctx context.Context, p Plan) error
}

// Nop discards plans.
type Nop struct{}

func (Nop) Render(context.Context, Plan) error { return nil }

// GeoJSON writes each plan as a FeatureCollection at <dir>/<prefix>_<group>.geojson.
// Every feature carries its layer name, role and style alongside the record
// attributes. Records without geometry are skipped.
type GeoJSON struct{}

func (GeoJSON) Render(ctx context.Context, p Plan) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "render: geojson")
	}

	fc := &geojson.FeatureCollection{BBox: p.Extent}
	for _, l := range p.Layers {
		for _, r := range l.Records {
			if r.Geometry == nil {
				continue
			}
			props := make(map[string]any, len(r.Attrs)+4)
			for k, v := range r.Attrs {
				props[k] = v
			}
			props["layer"] = l.Name
			props["role"] = string(l.Kind)
			props["opacity"] = l.Style.Opacity
			if l.Style.Fill != "" {
				props["fill"] = l.Style.Fill
			}
			if l.Style.Stroke != "" {
				props["stroke"] = l.Style.Stroke
			}
			if l.Style.LabelField != "" {
				props["label"] = r.Attrs[l.Style.LabelField]
			}
			fc.Features = append(fc.Features, &geojson.Feature{
				ID:         r.ID,
				Geometry:   r.Geometry,
				Properties: props,
			})
		}
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return eris.Wrapf(err, "render: encode %s", p.Group)
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return eris.Wrap(err, "render: create output dir")
	}
	path := p.Path(".geojson")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "render: write %s", path)
	}

	zap.L().Info("render: wrote map data",
		zap.String("group", p.Group),
		zap.String("path", path),
		zap.Int("features", len(fc.Features)),
	)
	return nil
}

// All renders plans in order and stops at the first failure.
func All(ctx context.Context, r Renderer, plans []Plan) error {
	for _, p := range plans {
		if err := r.Render(ctx, p); err != nil {
			return eris.Wrapf(err, "render: group %s", p.Group)
		}
	}
	return nil
}

// New returns the renderer for a configured format name.
func New(format string) (Renderer, error) {
	switch format {
	case "", "none":
		return Nop{}, nil
	case "geojson":
		return GeoJSON{}, nil
	}
	return nil, eris.Errorf("render: unknown format %q", format)
}
