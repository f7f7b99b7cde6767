package export

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geocoder-cli/internal/translate"
)

const sampleDoc = `<searchresults>
  <place place_id="1" lat="48.8" lon="2.3" display_name="Paris, France" place_rank="16"/>
  <place place_id="2" display_name="Paris, Texas" place_rank="18">
    <geotext>POLYGON((0 0,0 1,1 1,1 0,0 0))</geotext>
  </place>
</searchresults>`

func sampleResultSet(t *testing.T) *translate.ResultSet {
	t.Helper()
	rs, err := translate.Translate([]byte(sampleDoc))
	require.NoError(t, err)
	return rs
}

func TestShapefile_WritesPointRows(t *testing.T) {
	rs := sampleResultSet(t)
	path := filepath.Join(t.TempDir(), "places.shp")

	n, err := Shapefile(rs, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the point row is exported")

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.True(t, r.Next())
	_, shape := r.Shape()
	pt, ok := shape.(*shp.Point)
	require.True(t, ok)
	assert.InDelta(t, 2.3, pt.X, 1e-9)
	assert.InDelta(t, 48.8, pt.Y, 1e-9)
	assert.False(t, r.Next())

	// The integer-typed rank column must survive the DBF round trip.
	rankField := -1
	for i, f := range r.Fields() {
		if f.String() == "place_rank" {
			rankField = i
		}
	}
	require.GreaterOrEqual(t, rankField, 0)
	assert.Equal(t, "16", strings.TrimSpace(r.ReadAttribute(0, rankField)))
}

func TestShapefile_TruncatesFieldNames(t *testing.T) {
	rs := sampleResultSet(t)
	path := filepath.Join(t.TempDir(), "places.shp")

	_, err := Shapefile(rs, path)
	require.NoError(t, err)

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close()

	for _, f := range r.Fields() {
		assert.LessOrEqual(t, len(f.String()), 10)
	}
}

func TestGeoJSON(t *testing.T) {
	rs := sampleResultSet(t)

	out, err := GeoJSON(rs)
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry   json.RawMessage `json:"geometry"`
			Properties map[string]any  `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(out, &fc))

	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "Paris, France", fc.Features[0].Properties["display_name"])
	assert.Contains(t, string(fc.Features[0].Geometry), `"Point"`)
	assert.Contains(t, string(fc.Features[1].Geometry), `"Polygon"`)
}

func TestGeoJSON_NullGeometry(t *testing.T) {
	rs, err := translate.Translate([]byte(`<searchresults><place display_name="nowhere"/></searchresults>`))
	require.NoError(t, err)

	out, err := GeoJSON(rs)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"geometry":null`)
}
