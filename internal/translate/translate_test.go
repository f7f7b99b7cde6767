package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

const twoPlaceDoc = `<?xml version="1.0" encoding="UTF-8"?>
<searchresults timestamp="Sat, 30 Aug 2026 10:00:00 +0000" querystring="paris">
  <place place_id="123" osm_type="node" lat="48.8" lon="2.3" display_name="Paris, France" place_rank="16">
    <city>Paris</city>
    <country>France</country>
  </place>
  <place place_id="456" display_name="Paris, Texas" place_rank="18">
    <geotext>POLYGON((0 0,0 1,1 1,1 0,0 0))</geotext>
    <city>Paris</city>
    <state>Texas</state>
  </place>
</searchresults>`

func TestTranslate_TwoPlaces(t *testing.T) {
	rs, err := Translate([]byte(twoPlaceDoc))
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())

	// Row 1: no geotext, so a point is synthesized from lat/lon.
	pt, ok := rs.Row(0).Geometry().(*geom.Point)
	require.True(t, ok, "row 0 should carry a synthesized point")
	assert.InDelta(t, 2.3, pt.X(), 1e-9)
	assert.InDelta(t, 48.8, pt.Y(), 1e-9)

	// Row 2: explicit WKT wins, no coordinates present.
	poly, ok := rs.Row(1).Geometry().(*geom.Polygon)
	require.True(t, ok, "row 1 should carry the parsed polygon")
	assert.Equal(t, 1, poly.NumLinearRings())
}

func TestTranslate_SchemaIsUnionOfAllPlaces(t *testing.T) {
	rs, err := Translate([]byte(twoPlaceDoc))
	require.NoError(t, err)

	// Columns come from attributes and child elements of both places;
	// geotext is reserved and never becomes a column.
	for _, name := range []string{"place_id", "osm_type", "lat", "lon", "display_name", "place_rank", "city", "country", "state"} {
		assert.GreaterOrEqual(t, rs.FieldIndex(name), 0, "missing column %s", name)
	}
	assert.Equal(t, -1, rs.FieldIndex("geotext"))

	// Cells for columns the row never mentioned stay unset.
	_, ok := rs.Value(0, "state")
	assert.False(t, ok)
	_, ok = rs.Value(1, "lat")
	assert.False(t, ok)
}

func TestTranslate_TypeInference(t *testing.T) {
	rs, err := Translate([]byte(twoPlaceDoc))
	require.NoError(t, err)

	fields := rs.Fields()
	byName := make(map[string]FieldType, len(fields))
	for _, f := range fields {
		byName[f.Name] = f.Type
	}
	assert.Equal(t, TypeInteger, byName["place_rank"])
	assert.Equal(t, TypeFloat, byName["lat"])
	assert.Equal(t, TypeFloat, byName["lon"])
	assert.Equal(t, TypeString, byName["display_name"])

	rank, ok := rs.Value(0, "place_rank")
	require.True(t, ok)
	assert.Equal(t, int64(16), rank.Int())

	lat, ok := rs.Value(0, "lat")
	require.True(t, ok)
	assert.InDelta(t, 48.8, lat.Float(), 1e-9)
}

func TestTranslate_EmptyContainer(t *testing.T) {
	rs, err := Translate([]byte(`<searchresults querystring="nowhere"></searchresults>`))
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())
}

func TestTranslate_MalformedDocument(t *testing.T) {
	_, err := Translate([]byte(`<searchresults><place`))
	assert.Error(t, err)

	_, err = Translate([]byte(`not xml at all`))
	assert.Error(t, err)
}

func TestTranslate_MissingContainer(t *testing.T) {
	_, err := Translate([]byte(`<html><body>service unavailable</body></html>`))
	assert.Error(t, err)
}

func TestTranslate_MalformedWKTDegradesToNoGeometry(t *testing.T) {
	doc := `<searchresults>
	  <place display_name="somewhere">
	    <geotext>POLYGON((broken</geotext>
	  </place>
	  <place lat="1.5" lon="2.5" display_name="elsewhere"/>
	</searchresults>`

	rs, err := Translate([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())

	assert.Nil(t, rs.Row(0).Geometry(), "malformed WKT should not fail the document")
	_, isPoint := rs.Row(1).Geometry().(*geom.Point)
	assert.True(t, isPoint, "the other row keeps its synthesized point")
}

func TestTranslate_UnparsableCoordinatesMeanNoPoint(t *testing.T) {
	doc := `<searchresults>
	  <place lat="not-a-number" lon="2.5" display_name="x"/>
	</searchresults>`

	rs, err := Translate([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	assert.Nil(t, rs.Row(0).Geometry())
}

func TestTranslate_ColumnTypeFixedByFirstOccurrence(t *testing.T) {
	doc := `<searchresults>
	  <place place_rank="20" display_name="a"/>
	  <place place_rank="high" display_name="b"/>
	</searchresults>`

	rs, err := Translate([]byte(doc))
	require.NoError(t, err)

	v, ok := rs.Value(1, "place_rank")
	require.True(t, ok)
	assert.Equal(t, TypeInteger, v.Type())
	assert.Equal(t, "high", v.String(), "raw text is retained for non-conforming values")
	assert.Equal(t, int64(0), v.Int())
}

func TestTranslate_NestedContainer(t *testing.T) {
	doc := `<response><searchresults><place lat="1" lon="2" display_name="n"/></searchresults></response>`

	rs, err := Translate([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Len())
}

func TestResultSet_Record(t *testing.T) {
	rs, err := Translate([]byte(twoPlaceDoc))
	require.NoError(t, err)

	rec := rs.Record(0)
	assert.Equal(t, "Paris, France", rec["display_name"])
	assert.Equal(t, int64(16), rec["place_rank"])
	assert.InDelta(t, 48.8, rec["lat"].(float64), 1e-9)
	_, present := rec["state"]
	assert.False(t, present)
}
