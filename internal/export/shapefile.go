// Package export writes translated result sets to geospatial interchange
// formats.
package export

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/geocoder-cli/internal/translate"
)

// dbfNameLimit is the attribute-name length the DBF format allows.
const dbfNameLimit = 10

// Shapefile writes the result set's point-geometry rows to a new shapefile
// at path. Rows with polygon or missing geometry are skipped; the number of
// rows written is returned.
func Shapefile(rs *translate.ResultSet, path string) (int, error) {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return 0, eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer w.Close() //nolint:errcheck

	fields := rs.Fields()
	shpFields := make([]shp.Field, len(fields))
	for i, f := range fields {
		name := f.Name
		if len(name) > dbfNameLimit {
			name = name[:dbfNameLimit]
		}
		switch f.Type {
		case translate.TypeInteger:
			shpFields[i] = shp.NumberField(name, 16)
		case translate.TypeFloat:
			shpFields[i] = shp.FloatField(name, 24, 10)
		default:
			shpFields[i] = shp.StringField(name, 254)
		}
	}
	w.SetFields(shpFields)

	written := 0
	for i := 0; i < rs.Len(); i++ {
		row := rs.Row(i)
		pt, ok := row.Geometry().(*geom.Point)
		if !ok {
			zap.L().Debug("export: skipping row without point geometry", zap.Int("row", i))
			continue
		}

		n := int(w.Write(&shp.Point{X: pt.X(), Y: pt.Y()}))
		for j := range fields {
			v, set := row.Value(j)
			if !set {
				continue
			}
			if err := w.WriteAttribute(n, j, attributeValue(v)); err != nil {
				return written, eris.Wrapf(err, "export: write attribute %s", fields[j].Name)
			}
		}
		written++
	}
	return written, nil
}

// attributeValue converts a cell to the Go type go-shp stores for the
// column's DBF field. go-shp only accepts plain int, not int64.
func attributeValue(v translate.Value) any {
	switch v.Type() {
	case translate.TypeInteger:
		return int(v.Int())
	case translate.TypeFloat:
		return v.Float()
	default:
		return v.String()
	}
}
