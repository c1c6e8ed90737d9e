package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/geocine/geopress/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchIndexFixtureGenerated(t *testing.T) {
	out, report := buildFixture(t, "search")
	assert.Equal(t, 2, report.Articles)

	data, err := os.ReadFile(filepath.Join(out, "searchindex.json"))
	require.NoError(t, err)

	var idx search.Index
	require.NoError(t, json.Unmarshal(data, &idx))

	results, err := idx.Search("boiling water", 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "pasta.html#boiling-water", results[0].URL)
	assert.Equal(t, "Boiling water", results[0].Heading)

	results, err = idx.Search("knead", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bread.html#kneading", results[0].URL)

	results, err = idx.Search("anchovies", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}
