package featurestore

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"github.com/sells-group/adapt-cli/internal/model"
)

// DBF column layout used when the schema carries no width of its own.
const (
	integerWidth  = 10
	floatWidth    = 19
	floatDecimals = 8
	stringWidth   = 254
	maxFieldName  = 10
)

// ShapefileSource reads an ESRI shapefile and its DBF attributes.
type ShapefileSource struct {
	Path     string
	IDField  string // empty numbers records by file position
	Encoding string // charset label; falls back to the .cpg sidecar, then UTF-8
	SRID     int
}

func (s *ShapefileSource) encoding() (encoding.Encoding, error) {
	name := s.Encoding
	if name == "" {
		name = sidecarEncoding(s.Path)
	}
	return lookupEncoding(name)
}

// ProjectionFile returns the path of the layer's .prj sidecar, or "" when the
// layer has none.
func (s *ShapefileSource) ProjectionFile() string {
	path := sidecarPath(s.Path, ".prj")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func (s *ShapefileSource) open() (*shp.Reader, error) {
	reader, err := shp.Open(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "featurestore: open shapefile %s", s.Path)
	}
	return reader, nil
}

// Schema returns the DBF columns in declared order.
func (s *ShapefileSource) Schema(_ context.Context) (model.Schema, error) {
	reader, err := s.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()
	return dbfSchema(reader.Fields()), nil
}

func dbfSchema(fields []shp.Field) model.Schema {
	schema := make(model.Schema, 0, len(fields))
	for _, f := range fields {
		schema = append(schema, model.Field{
			Name:     strings.TrimRight(f.String(), "\x00"),
			Kind:     dbfKind(f),
			Width:    int(f.Size),
			Decimals: int(f.Precision),
		})
	}
	return schema
}

func dbfKind(f shp.Field) model.FieldKind {
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			return model.KindInteger
		}
		return model.KindFloat
	case 'F':
		return model.KindFloat
	case 'C':
		return model.KindString
	}
	return model.KindOther
}

// Records reads every feature in file order.
func (s *ShapefileSource) Records(ctx context.Context) ([]model.Record, error) {
	enc, err := s.encoding()
	if err != nil {
		return nil, err
	}
	dec := enc.NewDecoder()

	reader, err := s.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	schema := dbfSchema(reader.Fields())
	if s.IDField != "" && !schema.Has(s.IDField) {
		return nil, eris.Errorf("featurestore: id field %q not in %s", s.IDField, s.Path)
	}

	var records []model.Record
	var nullShapes int
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "featurestore: read shapefile")
		}

		_, shape := reader.Shape()
		g := FromShape(shape, s.SRID)
		if g == nil {
			nullShapes++
		}

		attrs := make(map[string]any, len(schema))
		for i, f := range schema {
			raw := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if raw == "" {
				attrs[f.Name] = nil
				continue
			}
			if f.Kind == model.KindString && !isUTF8(enc) {
				if decoded, decErr := dec.String(raw); decErr == nil {
					raw = decoded
				}
			}
			attrs[f.Name] = typedValue(f.Kind, raw)
		}

		id := strconv.Itoa(len(records))
		if s.IDField != "" {
			id = model.Text(attrs[s.IDField])
		}
		records = append(records, model.Record{
			ID:       id,
			Geometry: g,
			Attrs:    attrs,
		})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "featurestore: read shapefile %s", s.Path)
	}

	if nullShapes > 0 {
		zap.L().Debug("featurestore: records without geometry",
			zap.String("path", s.Path),
			zap.Int("count", nullShapes),
		)
	}
	return records, nil
}

// typedValue converts DBF text to the Go value for its column kind. Text
// that does not parse is kept as-is.
func typedValue(kind model.FieldKind, raw string) any {
	switch kind {
	case model.KindInteger:
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	case model.KindFloat:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}

// ShapefileSink writes a derived layer as a new shapefile. Files are built in
// a temporary directory beside Path and moved into place on Commit, so a
// failed write leaves no partial output.
type ShapefileSink struct {
	Path     string
	Encoding string
	// PRJ is a projection file copied beside the output, normally the input
	// layer's .prj so the scored layer keeps its CRS. A missing file is skipped.
	PRJ string

	state sinkState
}

func (s *ShapefileSink) Begin(_ context.Context, base model.Schema) error {
	s.state = sinkState{}
	return s.state.begin(base)
}

func (s *ShapefileSink) AddIntegerFields(_ context.Context, names ...string) error {
	return s.state.addIntegerFields(names)
}

func (s *ShapefileSink) Commit(ctx context.Context, records []model.Record) error {
	if err := s.state.checkCommit(); err != nil {
		return err
	}
	schema := s.state.Schema()

	enc, err := lookupEncoding(s.Encoding)
	if err != nil {
		return err
	}
	fields, err := dbfFields(schema)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "featurestore: create output dir")
	}
	tmpDir, err := os.MkdirTemp(dir, ".adapt-*")
	if err != nil {
		return eris.Wrap(err, "featurestore: create temp dir")
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	tmpPath := filepath.Join(tmpDir, filepath.Base(s.Path))
	if err := writeShapefile(ctx, tmpPath, layerShapeType(records), fields, schema, records, enc); err != nil {
		return err
	}
	if err := normalizeDBF(tmpPath); err != nil {
		return err
	}
	if err := os.WriteFile(sidecarPath(tmpPath, ".cpg"), []byte(encodingName(enc)), 0o644); err != nil {
		return eris.Wrap(err, "featurestore: write .cpg")
	}
	if err := copyProjection(s.PRJ, sidecarPath(tmpPath, ".prj")); err != nil {
		return err
	}
	if err := publish(tmpPath, s.Path, filepath.Join(tmpDir, "previous")); err != nil {
		return err
	}

	s.state.committed = true
	zap.L().Info("featurestore: wrote shapefile",
		zap.String("path", s.Path),
		zap.Int("records", len(records)),
		zap.Int("fields", len(schema)),
	)
	return nil
}

// layerFiles are the sidecars that make up a written layer, in move order.
var layerFiles = []string{".shp", ".shx", ".dbf", ".cpg", ".prj"}

// requiredFiles must all be staged before anything is moved.
var requiredFiles = []string{".shp", ".shx", ".dbf"}

// rename moves one file; tests replace it to fail part-way through publish.
var rename = os.Rename

// normalizeDBF renames the "<base>dbf" file that go-shp's writer creates to
// "<base>.dbf".
func normalizeDBF(shpPath string) error {
	want := sidecarPath(shpPath, ".dbf")
	if _, err := os.Stat(want); err == nil {
		return nil
	}
	got := strings.TrimSuffix(shpPath, ".shp") + "dbf"
	if _, err := os.Stat(got); err != nil {
		return eris.Wrapf(err, "featurestore: locate dbf for %s", shpPath)
	}
	return eris.Wrap(os.Rename(got, want), "featurestore: rename dbf")
}

func copyProjection(src, dst string) error {
	if src == "" {
		return nil
	}
	data, err := os.ReadFile(src)
	if os.IsNotExist(err) {
		zap.L().Debug("featurestore: no projection file", zap.String("path", src))
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "featurestore: read %s", src)
	}
	return eris.Wrap(os.WriteFile(dst, data, 0o644), "featurestore: write .prj")
}

// publish moves the staged layer over target. Existing target files are moved
// into backupDir first and put back if any later move fails, so target holds
// either the old layer or the new one and never a mix. Old sidecars the new
// layer lacks (such as a stale .prj) go away with the backup.
func publish(staged, target, backupDir string) error {
	var moves []string
	for _, ext := range layerFiles {
		_, err := os.Stat(sidecarPath(staged, ext))
		switch {
		case err == nil:
			moves = append(moves, ext)
		case !os.IsNotExist(err):
			return eris.Wrapf(err, "featurestore: stat staged %s", ext)
		}
	}
	for _, ext := range requiredFiles {
		if !slices.Contains(moves, ext) {
			return eris.Errorf("featurestore: staged layer is missing %s", ext)
		}
	}

	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return eris.Wrap(err, "featurestore: create backup dir")
	}
	backup := filepath.Join(backupDir, filepath.Base(target))

	var backedUp, placed []string
	restore := func() {
		for _, ext := range placed {
			_ = os.Remove(sidecarPath(target, ext))
		}
		for _, ext := range backedUp {
			_ = os.Rename(sidecarPath(backup, ext), sidecarPath(target, ext))
		}
	}

	for _, ext := range layerFiles {
		old := sidecarPath(target, ext)
		if _, err := os.Stat(old); err != nil {
			continue
		}
		if err := rename(old, sidecarPath(backup, ext)); err != nil {
			restore()
			return eris.Wrapf(err, "featurestore: move existing %s aside", ext)
		}
		backedUp = append(backedUp, ext)
	}
	for _, ext := range moves {
		if err := rename(sidecarPath(staged, ext), sidecarPath(target, ext)); err != nil {
			restore()
			return eris.Wrapf(err, "featurestore: move %s into place", ext)
		}
		placed = append(placed, ext)
	}
	return nil
}

func layerShapeType(records []model.Record) shp.ShapeType {
	for _, r := range records {
		if r.Geometry != nil {
			return ShapeType(r.Geometry)
		}
	}
	return shp.NULL
}

func dbfFields(schema model.Schema) ([]shp.Field, error) {
	fields := make([]shp.Field, 0, len(schema))
	for _, f := range schema {
		if len(f.Name) > maxFieldName {
			return nil, eris.Errorf("featurestore: field name %q exceeds %d characters", f.Name, maxFieldName)
		}
		switch f.Kind {
		case model.KindInteger:
			fields = append(fields, shp.NumberField(f.Name, uint8(orDefault(f.Width, integerWidth))))
		case model.KindFloat:
			dec := f.Decimals
			if f.Width == 0 {
				dec = floatDecimals
			}
			fields = append(fields, shp.FloatField(f.Name, uint8(orDefault(f.Width, floatWidth)), uint8(dec)))
		default:
			fields = append(fields, shp.StringField(f.Name, uint8(orDefault(f.Width, stringWidth))))
		}
	}
	return fields, nil
}

func orDefault(v, def int) int {
	if v <= 0 || v > 254 {
		return def
	}
	return v
}

func writeShapefile(ctx context.Context, path string, st shp.ShapeType, fields []shp.Field, schema model.Schema, records []model.Record, enc encoding.Encoding) error {
	w, err := shp.Create(path, st)
	if err != nil {
		return eris.Wrapf(err, "featurestore: create shapefile %s", path)
	}
	defer w.Close()

	if err := w.SetFields(fields); err != nil {
		return eris.Wrap(err, "featurestore: set fields")
	}

	encoder := enc.NewEncoder()
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "featurestore: write shapefile")
		}

		g := rec.Geometry
		if g != nil && ShapeType(g) != st {
			return eris.Errorf("featurestore: record %s geometry %T does not match layer type", rec.ID, g)
		}
		shape, err := ToShape(g)
		if err != nil {
			return eris.Wrapf(err, "featurestore: record %s", rec.ID)
		}
		row := int(w.Write(shape))

		for i, f := range schema {
			v := attributeValue(f.Kind, rec.Attrs[f.Name])
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok && !isUTF8(enc) {
				if encoded, encErr := encoder.String(s); encErr == nil {
					v = encoded
				}
			}
			if err := w.WriteAttribute(row, i, v); err != nil {
				return eris.Wrapf(err, "featurestore: write %s of record %s", f.Name, rec.ID)
			}
		}
	}
	return nil
}

// attributeValue converts a record value to the int, float64 or string the
// DBF writer accepts. Nil means leave the cell empty.
func attributeValue(kind model.FieldKind, v any) any {
	if v == nil {
		return nil
	}
	switch kind {
	case model.KindInteger:
		if n, ok := model.Normalize(v); ok {
			return n
		}
		return nil
	case model.KindFloat:
		switch f := v.(type) {
		case float64:
			return f
		case float32:
			return float64(f)
		}
		if f, err := strconv.ParseFloat(model.Text(v), 64); err == nil {
			return f
		}
		return nil
	}
	if s := model.Text(v); s != "" {
		return s
	}
	return nil
}
