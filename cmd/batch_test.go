package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geocoder-cli/internal/translate"
)

const placeDoc = `<?xml version="1.0" encoding="UTF-8"?>
<searchresults>
  <place place_id="1" display_name="Paris, France" lat="48.85" lon="2.35"/>
</searchresults>`

func TestLoadJobs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
queries:
  - "Paris, France"
  - "  Lyon  "
  - ""
`), 0o644))

	queries, err := loadJobs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris, France", "Lyon"}, queries)
}

func TestLoadJobs_MissingFile(t *testing.T) {
	_, err := loadJobs(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestQuerySlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Paris, France", "paris__france"},
		{"10 rue de Rivoli", "10_rue_de_rivoli"},
		{"???", "query"},
		{"A", "a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, querySlug(tt.in), tt.in)
	}
}

func TestProcessBatch_WritesResults(t *testing.T) {
	dir := t.TempDir()
	rs, err := translate.Translate([]byte(placeDoc))
	require.NoError(t, err)

	var calls atomic.Int64
	geocode := func(ctx context.Context, query string) (*translate.ResultSet, error) {
		calls.Add(1)
		return rs, nil
	}

	err = processBatch(context.Background(), []string{"Paris, France", "Lyon"}, 2, 0, dir, geocode)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())

	for _, name := range []string{"paris__france.geojson", "lyon.geojson"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Contains(t, string(data), "FeatureCollection")
	}
}

func TestProcessBatch_FailuresDoNotAbort(t *testing.T) {
	dir := t.TempDir()
	rs, err := translate.Translate([]byte(placeDoc))
	require.NoError(t, err)

	geocode := func(ctx context.Context, query string) (*translate.ResultSet, error) {
		if query == "bad" {
			return nil, eris.New("upstream error")
		}
		return rs, nil
	}

	err = processBatch(context.Background(), []string{"bad", "Lyon"}, 1, 0, dir, geocode)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "lyon.geojson"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "bad.geojson"))
	assert.True(t, os.IsNotExist(err))
}

func TestProcessBatch_Empty(t *testing.T) {
	err := processBatch(context.Background(), nil, 4, 0, t.TempDir(), nil)
	require.NoError(t, err)
}
