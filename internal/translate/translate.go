// Package translate converts Nominatim-style XML search responses into
// dynamically-schemed tabular result sets.
package translate

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"
)

const (
	containerTag = "searchresults"
	placeTag     = "place"

	// geometryTag carries well-known text when the service is asked for
	// polygons; it never becomes a column.
	geometryTag = "geotext"

	rankTag      = "place_rank"
	latitudeTag  = "lat"
	longitudeTag = "lon"
)

// Translate parses one XML response document into a ResultSet. It fails when
// the document is not well-formed or has no searchresults container; an empty
// container yields an empty, non-nil set. The column schema is the union of
// every attribute and child-element name seen across all place elements.
func Translate(content []byte) (*ResultSet, error) {
	root, err := parseDocument(content)
	if err != nil {
		return nil, err
	}

	results := findElement(root, containerTag)
	if results == nil {
		return nil, eris.New("translate: response has no searchresults element")
	}

	rs := &ResultSet{index: make(map[string]int)}
	for _, place := range results.children {
		if place.attr || place.name != placeTag {
			continue
		}
		rs.addPlace(place)
	}
	return rs, nil
}

// fieldTypeFor applies the fixed inference rules to a newly seen column name.
func fieldTypeFor(name string) FieldType {
	switch name {
	case rankTag:
		return TypeInteger
	case latitudeTag, longitudeTag:
		return TypeFloat
	}
	return TypeString
}

// addPlace appends one row, growing the column set as needed.
func (rs *ResultSet) addPlace(place *node) {
	var foundLat, foundLon bool
	var lat, lon float64

	// First walk: register unseen columns and pick up the coordinates for
	// the synthesized point. First parseable occurrence per row wins.
	for _, child := range place.children {
		switch child.name {
		case latitudeTag:
			if !foundLat {
				if f, err := strconv.ParseFloat(child.value, 64); err == nil {
					foundLat, lat = true, f
				}
			}
		case longitudeTag:
			if !foundLon {
				if f, err := strconv.ParseFloat(child.value, 64); err == nil {
					foundLon, lon = true, f
				}
			}
		}
		if child.name == geometryTag {
			continue
		}
		if _, known := rs.index[child.name]; !known {
			rs.addField(child.name, fieldTypeFor(child.name))
		}
	}

	row := &Row{
		values: make([]Value, len(rs.fields)),
		set:    make([]bool, len(rs.fields)),
	}

	// Second walk: populate the cells and resolve the explicit geometry.
	for _, child := range place.children {
		if child.name == geometryTag {
			if row.geom == nil && child.value != "" {
				row.geom = parseWKT(child.value)
			}
			continue
		}
		idx, ok := rs.index[child.name]
		if !ok || child.value == "" {
			continue
		}
		row.values[idx] = newValue(rs.fields[idx].Type, child.value)
		row.set[idx] = true
	}

	if row.geom == nil && foundLat && foundLon {
		row.geom = geom.NewPointFlat(geom.XY, []float64{lon, lat})
	}

	rs.rows = append(rs.rows, row)
}

// parseWKT decodes well-known text, degrading to no geometry on failure.
func parseWKT(text string) geom.T {
	g, err := wkt.Unmarshal(text)
	if err != nil {
		zap.L().Debug("translate: discarding malformed geometry text", zap.Error(err))
		return nil
	}
	return g
}
