package loader

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/geocine/geopress/internal/config"
	"github.com/geocine/geopress/internal/models"
	"github.com/geocine/geopress/internal/slug"
	"github.com/geocine/geopress/internal/toc"
	"github.com/geocine/geopress/internal/utils"
)

var bom = []byte{0xef, 0xbb, 0xbf}

// ArticleLoader handles loading articles from disk
type ArticleLoader struct {
	rootDir string
	srcDir  string
	config  *config.Config
	now     func() time.Time
	logger  *slog.Logger
}

// NewArticleLoader creates a new article loader
func NewArticleLoader(rootDir string, cfg *config.Config) *ArticleLoader {
	return &ArticleLoader{
		rootDir: rootDir,
		srcDir:  filepath.Join(rootDir, cfg.Site.Src),
		config:  cfg,
		now:     time.Now,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger used for load warnings
func (l *ArticleLoader) WithLogger(logger *slog.Logger) *ArticleLoader {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// WithClock overrides the clock used for timestamp slugs
func (l *ArticleLoader) WithClock(now func() time.Time) *ArticleLoader {
	if now != nil {
		l.now = now
	}
	return l
}

// SrcDir returns the absolute articles directory
func (l *ArticleLoader) SrcDir() string {
	return l.srcDir
}

// Load reads every Markdown file under the articles directory. Slugs are
// made unique site-wide; a clash gets a numeric suffix and a warning.
func (l *ArticleLoader) Load() (*models.Site, error) {
	files, err := utils.MarkdownFiles(l.srcDir)
	if err != nil {
		return nil, err
	}

	slugs := slug.NewTracker()
	articles := make([]*models.Article, 0, len(files))
	for _, rel := range files {
		a, err := l.LoadArticle(rel)
		if err != nil {
			return nil, err
		}
		unique := slugs.Unique(a.Slug)
		if unique != a.Slug {
			l.logger.Warn("duplicate article slug", "slug", a.Slug, "path", rel, "renamed", unique)
			a.Slug = unique
		}
		articles = append(articles, a)
	}

	return models.NewSite(l.config.Site.Title, l.config.Site.Description, articles), nil
}

// LoadArticle reads one article given its path relative to the articles directory
func (l *ArticleLoader) LoadArticle(rel string) (*models.Article, error) {
	data, err := os.ReadFile(filepath.Join(l.srcDir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("failed to read article '%s': %w", rel, err)
	}
	return ParseArticle(rel, data, l.now())
}

// ParseArticle builds an article from raw file content. The title comes from
// front matter, then the first level-1 heading, then the file name. The slug
// comes from front matter, then the title.
func ParseArticle(rel string, content []byte, now time.Time) (*models.Article, error) {
	content = bytes.TrimPrefix(content, bom)

	var meta frontMatter
	body, err := frontmatter.Parse(bytes.NewReader(content), &meta)
	if err != nil {
		return nil, fmt.Errorf("failed to parse front matter in '%s': %w", rel, err)
	}

	a := &models.Article{
		Title:   strings.TrimSpace(meta.Title),
		Date:    meta.Date,
		Tags:    meta.Tags,
		Summary: meta.Summary,
		Draft:   meta.Draft,
		Aliases: meta.Aliases,
		Body:    string(body),
		Path:    rel,
	}

	if a.Title == "" {
		a.Title = firstTitle(a.Body)
	}
	if a.Title == "" {
		a.Title = strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	}

	a.Slug = slug.Generate(meta.Slug)
	if a.Slug == "" {
		a.Slug = slug.OrFallback(a.Title, now)
	}

	return a, nil
}

func firstTitle(body string) string {
	for _, h := range toc.ExtractHeadings(body) {
		if h.Level == 1 {
			return h.Text
		}
	}
	return ""
}

type frontMatter struct {
	Title   string    `yaml:"title" toml:"title" json:"title"`
	Slug    string    `yaml:"slug" toml:"slug" json:"slug"`
	Date    time.Time `yaml:"date" toml:"date" json:"date"`
	Tags    []string  `yaml:"tags" toml:"tags" json:"tags"`
	Summary string    `yaml:"summary" toml:"summary" json:"summary"`
	Draft   bool      `yaml:"draft" toml:"draft" json:"draft"`
	Aliases []string  `yaml:"aliases" toml:"aliases" json:"aliases"`
}

// LoadSite is a convenience function to load a site with the given configuration
func LoadSite(rootDir string, cfg *config.Config) (*models.Site, error) {
	return NewArticleLoader(rootDir, cfg).Load()
}
