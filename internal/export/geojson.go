package export

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/geocoder-cli/internal/translate"
)

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// GeoJSON renders the result set as a FeatureCollection. Every row becomes a
// feature; rows without geometry get a null geometry member.
func GeoJSON(rs *translate.ResultSet) ([]byte, error) {
	fc := featureCollection{
		Type:     "FeatureCollection",
		Features: make([]feature, 0, rs.Len()),
	}

	for i := 0; i < rs.Len(); i++ {
		f := feature{
			Type:       "Feature",
			Geometry:   json.RawMessage("null"),
			Properties: rs.Record(i),
		}
		if g := rs.Row(i).Geometry(); g != nil {
			raw, err := geojson.Marshal(g)
			if err != nil {
				return nil, eris.Wrapf(err, "export: encode geometry of row %d", i)
			}
			f.Geometry = raw
		}
		fc.Features = append(fc.Features, f)
	}

	out, err := json.Marshal(fc)
	return out, eris.Wrap(err, "export: encode feature collection")
}
