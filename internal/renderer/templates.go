package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/geocine/geopress/internal/utils"
)

//go:embed templates
var embeddedTemplates embed.FS

var partialNames = []string{"head", "header", "footer"}

// Templates holds the parsed page templates. Files in the theme directory
// override the embedded defaults by name.
type Templates struct {
	themeDir string
	article  *raymond.Template
	index    *raymond.Template
	notFound *raymond.Template
	redirect *raymond.Template
}

// LoadTemplates parses the page templates, preferring files from themeDir.
// An empty themeDir uses only the embedded templates.
func LoadTemplates(themeDir string) (*Templates, error) {
	t := &Templates{themeDir: themeDir}

	partials := make(map[string]string, len(partialNames))
	for _, name := range partialNames {
		src, err := t.read(name + ".hbs")
		if err != nil {
			return nil, err
		}
		partials[name] = src
	}

	pages := []struct {
		file string
		dst  **raymond.Template
	}{
		{"article.hbs", &t.article},
		{"index.hbs", &t.index},
		{"notfound.hbs", &t.notFound},
		{"redirect.hbs", &t.redirect},
	}
	for _, p := range pages {
		tpl, err := t.parse(p.file, partials)
		if err != nil {
			return nil, err
		}
		*p.dst = tpl
	}
	return t, nil
}

// read returns a template or asset file, theme directory first. A theme
// file that exists but cannot be read is an error, not a silent fallback.
func (t *Templates) read(name string) (string, error) {
	if t.themeDir != "" {
		if path := filepath.Join(t.themeDir, name); utils.FileExists(path) {
			return utils.ReadToString(path)
		}
	}
	data, err := fs.ReadFile(embeddedTemplates, "templates/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to read template '%s': %w", name, err)
	}
	return string(data), nil
}

func (t *Templates) parse(file string, partials map[string]string) (*raymond.Template, error) {
	src, err := t.read(file)
	if err != nil {
		return nil, err
	}
	tpl, err := raymond.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	tpl.RegisterPartials(partials)
	tpl.RegisterHelpers(helpers)
	return tpl, nil
}

// Asset returns a static asset shipped next to the templates
func (t *Templates) Asset(name string) ([]byte, error) {
	src, err := t.read(name)
	if err != nil {
		return nil, err
	}
	return []byte(src), nil
}

var helpers = map[string]interface{}{
	"join": func(items interface{}, sep string) string {
		switch v := items.(type) {
		case []string:
			return strings.Join(v, sep)
		case []interface{}:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			return strings.Join(parts, sep)
		}
		return ""
	},
}

// pageData is the context passed to the Handlebars templates for pages
type pageData struct {
	Language           string
	Title              string
	Description        string
	SiteTitle          string
	PathToRoot         string
	LiveReloadEndpoint string
	Assets             map[string]string
	HeaderOffset       float64
	Tags               []string

	// Article pages
	ArticleTitle string
	ShowTitle    bool
	Date         string
	Content      raymond.SafeString
	TOC          raymond.SafeString

	// Index page
	Articles []map[string]interface{}

	// Redirect page
	URL string
}

// context converts the page to a map so template names stay snake_case
func (d *pageData) context() map[string]interface{} {
	return map[string]interface{}{
		"language":             d.Language,
		"title":                d.Title,
		"description":          d.Description,
		"site_title":           d.SiteTitle,
		"path_to_root":         d.PathToRoot,
		"live_reload_endpoint": d.LiveReloadEndpoint,
		"assets":               d.Assets,
		"header_offset":        d.HeaderOffset,
		"tags":                 d.Tags,
		"article_title":        d.ArticleTitle,
		"show_title":           d.ShowTitle,
		"date":                 d.Date,
		"content":              d.Content,
		"toc":                  d.TOC,
		"articles":             d.Articles,
		"url":                  d.URL,
	}
}

func execPage(tpl *raymond.Template, name string, data *pageData) (string, error) {
	out, err := tpl.Exec(data.context())
	if err != nil {
		return "", fmt.Errorf("failed to render %s page: %w", name, err)
	}
	return out, nil
}
