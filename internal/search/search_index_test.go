package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<p>Lead paragraph about gophers.</p>
<h2 id="install">Install</h2>
<p>Run the installer and wait.</p>
<pre><code>go install ./...</code></pre>
<h2 id="configure">Configure</h2>
<p>Edit site.toml to change the running port.</p>
<h3 id="install">Install again</h3>
<p>Duplicate anchor text.</p>`

func TestSplitSections(t *testing.T) {
	sections, err := SplitSections("guide", "Guide", []string{"go", "cli"}, articleHTML)
	require.NoError(t, err)
	require.Len(t, sections, 3)

	assert.Equal(t, "guide", sections[0].Ref)
	assert.Equal(t, "Guide", sections[0].Heading)
	assert.Equal(t, "Lead paragraph about gophers.", sections[0].Body)
	assert.Equal(t, "guide.html", sections[0].URL())
	assert.Equal(t, "go cli", sections[0].Tags)

	assert.Equal(t, "guide#install", sections[1].Ref)
	assert.Equal(t, "Install", sections[1].Heading)
	assert.Equal(t, "guide.html#install", sections[1].URL())
	assert.Contains(t, sections[1].Body, "go install ./...")
	assert.Contains(t, sections[1].Body, "Install again Duplicate anchor text.")

	assert.Equal(t, "guide#configure", sections[2].Ref)
	assert.Equal(t, "Edit site.toml to change the running port.", sections[2].Body)
}

func TestSplitSectionsWithoutLeadIn(t *testing.T) {
	sections, err := SplitSections("a", "A", nil, `<h1 id="a">A</h1><p>x</p>`)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "a#a", sections[0].Ref)
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	require.NoError(t, idx.AddArticle("guide", "Guide", []string{"tooling"}, articleHTML))
	require.NoError(t, idx.AddArticle("cooking", "Cooking Pasta", nil,
		`<h2 id="boil">Boil</h2><p>Boil water. Add salt. Wait for the water to boil again.</p>`))
	return idx
}

func search(t *testing.T, idx *Index, q string, limit int) []Result {
	t.Helper()
	results, err := idx.Search(q, limit)
	require.NoError(t, err)
	require.NotNil(t, results)
	return results
}

func refs(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Ref)
	}
	return out
}

func TestSearch(t *testing.T) {
	idx := newTestIndex(t)
	assert.Equal(t, 4, idx.Len())

	// "installer" in the body and "Install" in the heading share a stem
	results := search(t, idx, "installing", 0)
	require.Len(t, results, 1)
	assert.Equal(t, "guide#install", results[0].Ref)
	assert.Equal(t, "guide.html#install", results[0].URL)
	assert.Equal(t, "Install", results[0].Heading)

	results = search(t, idx, "boiling water", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "cooking#boil", results[0].Ref)
	assert.Equal(t, "Cooking Pasta", results[0].Title)
	assert.Greater(t, results[0].Score, 0.0)

	// Title matches reach every section of the article
	assert.Len(t, search(t, idx, "pasta", 0), 1)

	// Tags are searchable
	assert.ElementsMatch(t, []string{"guide", "guide#install", "guide#configure"}, refs(search(t, idx, "tooling", 0)))

	// Stop words and empty queries return nothing
	assert.Empty(t, search(t, idx, "the and", 0))
	assert.Empty(t, search(t, idx, "", 0))
	assert.Empty(t, search(t, idx, "zebra", 0))
}

func TestSearchPrefixAndLimit(t *testing.T) {
	idx := newTestIndex(t)

	assert.Equal(t, []string{"guide"}, refs(search(t, idx, "gop", 0)))

	// Short terms do not prefix-match
	assert.Empty(t, search(t, idx, "co", 0))

	assert.Len(t, search(t, idx, "install configure boil", 2), 2)
	assert.Len(t, search(t, idx, "install configure boil", 0), 3)
}

func TestSearchOrdersTiesByRef(t *testing.T) {
	idx, err := NewIndex()
	require.NoError(t, err)
	defer idx.Close()
	for _, ref := range []string{"c", "a", "b"} {
		require.NoError(t, idx.Add(Section{Ref: ref, Slug: ref, Body: "same words"}))
	}
	assert.Equal(t, []string{"a", "b", "c"}, refs(search(t, idx, "words", 0)))
}

func TestSearchRanksHeadingAboveBody(t *testing.T) {
	idx, err := NewIndex()
	require.NoError(t, err)
	defer idx.Close()
	require.NoError(t, idx.Add(Section{Ref: "a", Slug: "a", Title: "A", Heading: "Other", Body: "deploy notes"}))
	require.NoError(t, idx.Add(Section{Ref: "b#deploy", Slug: "b", Anchor: "deploy", Title: "B", Heading: "Deploy", Body: "notes"}))

	results := search(t, idx, "deploy", 0)
	require.Len(t, results, 2)
	assert.Equal(t, "b#deploy", results[0].Ref)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestRemoveArticle(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.RemoveArticle("guide"))
	require.NoError(t, idx.RemoveArticle("missing"))

	assert.Equal(t, 1, idx.Len())
	assert.Empty(t, search(t, idx, "install", 0))
	assert.NotEmpty(t, search(t, idx, "boil", 0))
}

func TestAddReplacesSameRef(t *testing.T) {
	idx, err := NewIndex()
	require.NoError(t, err)
	defer idx.Close()
	require.NoError(t, idx.Add(Section{Ref: "x", Slug: "x", Body: "alpha"}))
	require.NoError(t, idx.Add(Section{Ref: "x", Slug: "x", Body: "beta"}))

	assert.Equal(t, 1, idx.Len())
	assert.Empty(t, search(t, idx, "alpha", 0))
	assert.Len(t, search(t, idx, "beta", 0), 1)
}

func TestClosedIndexFindsNothing(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Close())
	assert.Empty(t, search(t, idx, "install", 0))
	assert.NoError(t, idx.Close())
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet("short"))

	long := strings.Repeat("word ", 100)
	s := snippet(long)
	assert.True(t, strings.HasSuffix(s, "…"))
	assert.LessOrEqual(t, len([]rune(s)), snippetLength+1)
}

func TestJSONRoundTrip(t *testing.T) {
	idx := newTestIndex(t)

	data, err := json.Marshal(idx)
	require.NoError(t, err)

	var raw struct {
		Version int       `json:"version"`
		Docs    []Section `json:"docs"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, IndexVersion, raw.Version)
	var docRefs []string
	for _, d := range raw.Docs {
		docRefs = append(docRefs, d.Ref)
	}
	assert.Equal(t, []string{"cooking#boil", "guide", "guide#configure", "guide#install"}, docRefs)

	var restored Index
	require.NoError(t, json.Unmarshal(data, &restored))
	defer restored.Close()
	assert.Equal(t, idx.Len(), restored.Len())
	assert.Equal(t, refs(search(t, idx, "install boil", 0)), refs(search(t, &restored, "install boil", 0)))

	assert.Error(t, json.Unmarshal([]byte(`{"version":1}`), &restored))
	assert.Equal(t, idx.Len(), restored.Len())
}

func TestConcurrentAddAndSearch(t *testing.T) {
	idx, err := NewIndex()
	require.NoError(t, err)
	defer idx.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			slug := fmt.Sprintf("post-%d", i)
			assert.NoError(t, idx.AddArticle(slug, "Post", nil, `<h2 id="s">Section</h2><p>shared words</p>`))
			_, err := idx.Search("shared", 5)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, idx.Len())
	assert.Len(t, search(t, idx, "shared", 0), 8)
}
