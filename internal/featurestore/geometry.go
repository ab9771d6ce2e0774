package featurestore

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// FromShape converts a go-shp geometry to a go-geom value tagged with srid.
// Returns nil for nil, null, or unsupported shapes.
func FromShape(shape shp.Shape, srid int) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(srid)
	case *shp.PolyLine:
		if mls := polyLineToMultiLineString(s); mls != nil {
			return mls.SetSRID(srid)
		}
	case *shp.Polygon:
		if mp := polygonToMultiPolygon(s); mp != nil {
			return mp.SetSRID(srid)
		}
	}
	return nil
}

// splitParts returns the point runs of a multi-part shape.
func splitParts(numParts int32, parts []int32, points []shp.Point) [][]shp.Point {
	out := make([][]shp.Point, 0, numParts)
	for i := int32(0); i < numParts; i++ {
		start := parts[i]
		end := int32(len(points))
		if i+1 < numParts {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || start >= end {
			zap.L().Debug("featurestore: skipping malformed shape part", zap.Int32("part", i))
			continue
		}
		out = append(out, points[start:end])
	}
	return out
}

func polyLineToMultiLineString(pl *shp.PolyLine) *geom.MultiLineString {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i, part := range splitParts(pl.NumParts, pl.Parts, pl.Points) {
		ls := geom.NewLineStringFlat(geom.XY, flatPoints(part))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("featurestore: skipping malformed linestring part", zap.Int("part", i), zap.Error(err))
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToMultiPolygon groups shapefile rings into polygons. A clockwise
// ring opens a new polygon; a counter-clockwise ring is a hole of the
// polygon before it.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("featurestore: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i, part := range splitParts(p.NumParts, p.Parts, p.Points) {
		ring := geom.NewLinearRingFlat(geom.XY, flatPoints(part))
		if current == nil || signedArea(part) <= 0 {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("featurestore: skipping malformed polygon ring", zap.Int("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is twice the shoelace area; negative for clockwise rings.
func signedArea(pts []shp.Point) float64 {
	var a float64
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return a
}

func flatPoints(pts []shp.Point) []float64 {
	flat := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}

// ShapeType returns the shapefile type that can hold g.
func ShapeType(g geom.T) shp.ShapeType {
	switch g.(type) {
	case *geom.Point:
		return shp.POINT
	case *geom.LineString, *geom.MultiLineString:
		return shp.POLYLINE
	case *geom.Polygon, *geom.MultiPolygon:
		return shp.POLYGON
	}
	return shp.NULL
}

// ToShape converts a go-geom value back to a go-shp geometry. Nil geometries
// become null shapes.
func ToShape(g geom.T) (shp.Shape, error) {
	switch v := g.(type) {
	case nil:
		return &shp.Null{}, nil
	case *geom.Point:
		return &shp.Point{X: v.X(), Y: v.Y()}, nil
	case *geom.LineString:
		return shp.NewPolyLine([][]shp.Point{coordsToPoints(v.Coords())}), nil
	case *geom.MultiLineString:
		parts := make([][]shp.Point, 0, v.NumLineStrings())
		for i := 0; i < v.NumLineStrings(); i++ {
			parts = append(parts, coordsToPoints(v.LineString(i).Coords()))
		}
		return shp.NewPolyLine(parts), nil
	case *geom.Polygon:
		pg := shp.Polygon(*shp.NewPolyLine(polygonRings(v)))
		return &pg, nil
	case *geom.MultiPolygon:
		var parts [][]shp.Point
		for i := 0; i < v.NumPolygons(); i++ {
			parts = append(parts, polygonRings(v.Polygon(i))...)
		}
		pg := shp.Polygon(*shp.NewPolyLine(parts))
		return &pg, nil
	}
	return nil, eris.Errorf("featurestore: unsupported geometry %T", g)
}

func polygonRings(p *geom.Polygon) [][]shp.Point {
	rings := make([][]shp.Point, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		rings = append(rings, coordsToPoints(p.LinearRing(i).Coords()))
	}
	return rings
}

func coordsToPoints(coords []geom.Coord) []shp.Point {
	pts := make([]shp.Point, len(coords))
	for i, c := range coords {
		pts[i] = shp.Point{X: c.X(), Y: c.Y()}
	}
	return pts
}

// EncodeGeometry marshals g as little-endian EWKB. Nil encodes to nil.
func EncodeGeometry(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "featurestore: encode geometry")
	}
	return data, nil
}

// DecodeGeometry is the inverse of EncodeGeometry.
func DecodeGeometry(data []byte) (geom.T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "featurestore: decode geometry")
	}
	return g, nil
}
