// Package renderer builds the static site: one page per published article
// with a TOC sidebar, an index page, and a search index.
package renderer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/geocine/geopress/internal/anchor"
	"github.com/geocine/geopress/internal/config"
	"github.com/geocine/geopress/internal/markdown"
	"github.com/geocine/geopress/internal/models"
	"github.com/geocine/geopress/internal/search"
	"github.com/geocine/geopress/internal/toc"
	"github.com/geocine/geopress/internal/utils"
)

const (
	dateLayout      = "2006-01-02"
	searchIndexFile = "searchindex.json"
	staticDir       = "static"
	themeDir        = "theme"
)

// RenderContext holds context for rendering
type RenderContext struct {
	Root    string
	DestDir string
	Site    *models.Site
	Config  *config.Config
	// If non-empty, pages inject an SSE live-reload client targeting this path.
	LiveReloadEndpointPath string
	// PathToRoot prefixes every site-relative link; empty for the static build
	PathToRoot string
	// ResourceMap maps asset keys to fingerprinted file names; set by Assets
	ResourceMap map[string]string
}

// BuildReport summarizes a site build
type BuildReport struct {
	Articles    int      // pages written
	Drafts      int      // articles skipped as drafts
	Failed      []string // slugs rendered with the fallback body
	Desynced    []string // slugs with TOC entries no heading matches
	Redirects   int
	StaticFiles int
}

// ArticlePage is one rendered article page
type ArticlePage struct {
	Article    *models.Article
	HTML       string
	Result     *markdown.ParseResult
	Failed     bool
	Unresolved []*toc.Node
}

// HtmlRenderer renders a site to HTML
type HtmlRenderer struct {
	markdown  *markdown.Renderer
	templates *Templates
	logger    *slog.Logger
}

// NewHtmlRenderer creates a new HTML renderer
func NewHtmlRenderer(md *markdown.Renderer, templates *Templates, logger *slog.Logger) *HtmlRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HtmlRenderer{markdown: md, templates: templates, logger: logger}
}

// NewFromConfig wires a renderer from the site configuration. Templates in
// <root>/theme override the built-in ones.
func NewFromConfig(root string, cfg *config.Config, logger *slog.Logger) (*HtmlRenderer, error) {
	opts := cfg.MarkdownOptions()
	opts.Logger = logger
	md, err := markdown.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to configure markdown: %w", err)
	}
	templates, err := LoadTemplates(filepath.Join(root, themeDir))
	if err != nil {
		return nil, err
	}
	return NewHtmlRenderer(md, templates, logger), nil
}

// Markdown returns the article renderer
func (r *HtmlRenderer) Markdown() *markdown.Renderer {
	return r.markdown
}

// Render builds the whole site into rc.DestDir, replacing its contents
func (r *HtmlRenderer) Render(ctx context.Context, rc *RenderContext) (*BuildReport, error) {
	if err := checkDestDir(rc.Root, rc.DestDir); err != nil {
		return nil, err
	}
	if utils.DirExists(rc.DestDir) {
		if err := utils.RemoveDirContents(rc.DestDir); err != nil {
			return nil, err
		}
	}
	if err := utils.CreateDirAll(rc.DestDir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	assets, err := r.Assets(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare assets: %w", err)
	}
	for name, data := range assets {
		if err := utils.WriteFile(filepath.Join(rc.DestDir, filepath.FromSlash(name)), data); err != nil {
			return nil, err
		}
	}

	report := &BuildReport{Drafts: len(rc.Site.Articles) - len(rc.Site.Published())}
	idx, err := search.NewIndex()
	if err != nil {
		return nil, err
	}
	defer idx.Close()
	for _, a := range rc.Site.Published() {
		page, err := r.RenderArticle(ctx, rc, a)
		if err != nil {
			return nil, fmt.Errorf("failed to render article '%s': %w", a.Slug, err)
		}
		if page.Failed {
			report.Failed = append(report.Failed, a.Slug)
		} else if err := idx.AddArticle(a.Slug, a.Title, a.Tags, page.Result.HTML); err != nil {
			r.logger.Warn("article not indexed for search", "slug", a.Slug, "error", err)
		}
		if len(page.Unresolved) > 0 {
			report.Desynced = append(report.Desynced, a.Slug)
		}
		if err := utils.WriteFile(filepath.Join(rc.DestDir, a.URL()), []byte(page.HTML)); err != nil {
			return nil, err
		}
		report.Articles++
	}

	if err := r.writePage(rc, "index.html", r.IndexPage); err != nil {
		return nil, err
	}
	if err := r.writePage(rc, "404.html", r.NotFoundPage); err != nil {
		return nil, err
	}
	// .nojekyll - tells GitHub Pages to serve the site as-is
	if err := utils.WriteFile(filepath.Join(rc.DestDir, ".nojekyll"), []byte("This file makes sure that Github Pages doesn't process geopress output.\n")); err != nil {
		return nil, err
	}

	if report.Redirects, err = r.writeRedirects(rc); err != nil {
		return nil, fmt.Errorf("failed to write redirects: %w", err)
	}

	data, err := json.Marshal(idx)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search index: %w", err)
	}
	if err := utils.WriteFile(filepath.Join(rc.DestDir, searchIndexFile), data); err != nil {
		return nil, err
	}

	if report.StaticFiles, err = utils.CopyDir(filepath.Join(rc.Root, staticDir), rc.DestDir); err != nil {
		return nil, err
	}

	r.logger.Info("site built",
		"articles", report.Articles,
		"drafts", report.Drafts,
		"failed", len(report.Failed),
		"desynced", len(report.Desynced),
		"dest", rc.DestDir)
	return report, nil
}

func (r *HtmlRenderer) writePage(rc *RenderContext, name string, render func(*RenderContext) (string, error)) error {
	out, err := render(rc)
	if err != nil {
		return err
	}
	return utils.WriteFile(filepath.Join(rc.DestDir, name), []byte(out))
}

// checkDestDir refuses output directories that would wipe the site itself
func checkDestDir(root, dest string) error {
	if strings.TrimSpace(dest) == "" {
		return fmt.Errorf("build directory must not be empty")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absDest, absRoot)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("build directory '%s' contains the site root", dest)
	}
	return nil
}

// RenderArticle parses one article and renders its page. A render failure
// does not fail the call: the body is replaced by markdown.FallbackHTML and
// the page is marked Failed. Page navigation links point at the heading each
// TOC entry resolves to, which may be a text match when the ids disagree.
// Entries with no matching heading are logged and returned as Unresolved.
func (r *HtmlRenderer) RenderArticle(ctx context.Context, rc *RenderContext, a *models.Article) (*ArticlePage, error) {
	page := &ArticlePage{Article: a}

	res, err := r.markdown.Parse(ctx, a.Body)
	if err != nil {
		if !markdown.IsRenderFailure(err) {
			return nil, err
		}
		r.logger.Error("article render failed", "slug", a.Slug, "error", err)
		res = &markdown.ParseResult{HTML: markdown.FallbackHTML, TOC: r.markdown.TOC(a.Body)}
		page.Failed = true
	}
	page.Result = res
	nav := res.TOC
	if !page.Failed {
		nav, page.Unresolved = r.resolveTOC(rc, a, res)
	}

	if rc.ResourceMap == nil {
		if _, err := r.Assets(rc); err != nil {
			return nil, err
		}
	}

	data := r.basePage(rc)
	data.Title = a.Title + " - " + rc.Config.Site.Title
	data.Description = a.Summary
	data.Tags = a.Tags
	data.ArticleTitle = a.Title
	data.ShowTitle = !hasTitleHeading(res.TOC, a.Title)
	data.Date = formatDate(a)
	data.Content = raymond.SafeString(res.HTML)
	data.TOC = raymond.SafeString(tocListHTML(nav))

	out, err := execPage(r.templates.article, "article", data)
	if err != nil {
		return nil, err
	}
	page.HTML = out
	return page, nil
}

// resolveTOC maps res.TOC onto the rendered headings. nav is a copy of the
// tree whose ids are the ones the headings were rendered with.
func (r *HtmlRenderer) resolveTOC(rc *RenderContext, a *models.Article, res *markdown.ParseResult) (nav, missing []*toc.Node) {
	doc, err := anchor.ParseHTML(res.HTML)
	if err != nil {
		r.logger.Debug("rendered article not inspectable", "slug", a.Slug, "error", err)
		return res.TOC, nil
	}
	resolver := anchor.NewResolver(doc, res.TOC, anchor.WithHeaderOffset(rc.Config.Resolver.HeaderOffset))
	nav = resolvedTree(resolver, res.TOC)

	missing = resolver.Unresolved()
	if len(missing) > 0 {
		ids := make([]string, 0, len(missing))
		for _, n := range missing {
			ids = append(ids, n.ID)
		}
		r.logger.Warn("toc entries without a matching heading", "slug", a.Slug, "ids", ids)
	}
	return nav, missing
}

func resolvedTree(resolver *anchor.Resolver, nodes []*toc.Node) []*toc.Node {
	out := make([]*toc.Node, 0, len(nodes))
	for _, n := range nodes {
		c := &toc.Node{ID: n.ID, Text: n.Text, Level: n.Level}
		if el, ok := resolver.Resolve(n); ok && el.ID != "" {
			c.ID = el.ID
		}
		c.Children = resolvedTree(resolver, n.Children)
		out = append(out, c)
	}
	return out
}

// IndexPage renders the post list
func (r *HtmlRenderer) IndexPage(rc *RenderContext) (string, error) {
	data := r.basePage(rc)
	data.Title = rc.Config.Site.Title
	data.Description = rc.Config.Site.Description
	data.Tags = rc.Site.Tags()

	published := rc.Site.Published()
	data.Articles = make([]map[string]interface{}, 0, len(published))
	for _, a := range published {
		data.Articles = append(data.Articles, map[string]interface{}{
			"url":     rc.PathToRoot + a.URL(),
			"title":   a.Title,
			"date":    formatDate(a),
			"summary": a.Summary,
		})
	}
	return execPage(r.templates.index, "index", data)
}

// NotFoundPage renders the 404 page
func (r *HtmlRenderer) NotFoundPage(rc *RenderContext) (string, error) {
	data := r.basePage(rc)
	data.Title = "Page not found - " + rc.Config.Site.Title
	return execPage(r.templates.notFound, "not found", data)
}

func (r *HtmlRenderer) basePage(rc *RenderContext) *pageData {
	language := rc.Config.Site.Language
	if language == "" {
		language = "en"
	}
	return &pageData{
		Language:           language,
		SiteTitle:          rc.Config.Site.Title,
		PathToRoot:         rc.PathToRoot,
		LiveReloadEndpoint: rc.LiveReloadEndpointPath,
		Assets:             rc.ResourceMap,
		HeaderOffset:       rc.Config.Resolver.HeaderOffset,
	}
}

// hasTitleHeading reports whether the body already shows the title as a
// top-level heading
func hasTitleHeading(nodes []*toc.Node, title string) bool {
	for _, n := range nodes {
		if n.Level == 1 && n.Text == title {
			return true
		}
	}
	return false
}

func formatDate(a *models.Article) string {
	if a.Date.IsZero() {
		return ""
	}
	return a.Date.Format(dateLayout)
}

// Clean removes the build directory. Like Render, it refuses a directory
// that contains the site root.
func Clean(root, destDir string) error {
	if err := checkDestDir(root, destDir); err != nil {
		return err
	}
	if !utils.DirExists(destDir) {
		return nil
	}
	return utils.RemoveAll(destDir)
}
