package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geocoder-cli/internal/translate"
)

func TestRenderTable(t *testing.T) {
	rs, err := translate.Translate([]byte(placeDoc))
	require.NoError(t, err)

	out := renderTable(rs, nil)
	assert.Contains(t, out, "DISPLAY_NAME")
	assert.Contains(t, out, "Paris, France")
	assert.Contains(t, out, "POINT (2.35 48.85)")
}

func TestRenderTable_FieldSelection(t *testing.T) {
	rs, err := translate.Translate([]byte(placeDoc))
	require.NoError(t, err)

	out := renderTable(rs, []string{"display_name", "no_such_field"})
	assert.Contains(t, out, "DISPLAY_NAME")
	assert.Contains(t, out, "Paris, France")
	assert.NotContains(t, out, "PLACE_ID")
}

func TestGeometryWKT_NoGeometry(t *testing.T) {
	doc := `<?xml version="1.0"?><searchresults><place display_name="somewhere"/></searchresults>`
	rs, err := translate.Translate([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())

	assert.Empty(t, geometryWKT(rs.Row(0)))
}
