package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/geocine/geopress/internal/config"
	"github.com/geocine/geopress/internal/loader"
	r "github.com/geocine/geopress/internal/renderer"
	th "github.com/geocine/geopress/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFixture(t *testing.T, name string) (string, *r.BuildReport) {
	t.Helper()
	root := th.SitePath(name)
	out := t.TempDir()

	cfg, err := config.Load(root)
	require.NoError(t, err)
	site, err := loader.LoadSite(root, cfg)
	require.NoError(t, err)

	rr, err := r.NewFromConfig(root, cfg, nil)
	require.NoError(t, err)
	report, err := rr.Render(context.Background(), &r.RenderContext{Root: root, DestDir: out, Site: site, Config: cfg})
	require.NoError(t, err)
	return out, report
}

func TestHeaderLinksFixtureFullRender(t *testing.T) {
	out, report := buildFixture(t, "header_links")
	assert.Empty(t, report.Desynced)

	b, err := os.ReadFile(filepath.Join(out, "header-links.html"))
	require.NoError(t, err)
	html := string(b)

	assert.Contains(t, html, `id="hï"`)
	assert.Contains(t, html, `id="repeat"`)
	assert.Contains(t, html, `id="repeat-1"`)
	assert.Contains(t, html, `id="repeat-2"`)
	assert.Contains(t, html, `id="repeat-1-1"`)
	assert.Contains(t, html, `id="custom-id"`)
	assert.Contains(t, html, `id="第一章-开始"`)
	assert.NotContains(t, html, `id="not-a-heading"`)

	// Every TOC entry links to a heading that exists in the page
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	ids := map[string]bool{}
	doc.Find("main [id], article [id], h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("id"); ok {
			ids[id] = true
		}
	})
	links := doc.Find("nav.toc a[data-toc-id]")
	require.Equal(t, 9, links.Length())
	links.Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("data-toc-id")
		href, _ := s.Attr("href")
		assert.Equal(t, "#"+id, href)
		assert.True(t, ids[id], "no heading with id %q", id)
	})
}
