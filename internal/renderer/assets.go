package renderer

import (
	"crypto/sha256"
	"fmt"
	"path"
	"strings"

	"github.com/geocine/geopress/internal/markdown"
)

// Asset keys as referenced from the templates
const (
	assetSiteCSS      = "site_css"
	assetHighlightCSS = "highlight_css"
	assetTocJS        = "toc_js"
)

// Assets builds the stylesheet and script files every page links to. Names
// are fingerprinted with a content hash; rc.ResourceMap is set to map each
// asset key to its file name.
func (r *HtmlRenderer) Assets(rc *RenderContext) (map[string][]byte, error) {
	type asset struct {
		key  string
		name string
		data []byte
	}

	siteCSS, err := r.templates.Asset("site.css")
	if err != nil {
		return nil, err
	}
	tocJS, err := r.templates.Asset("toc.js")
	if err != nil {
		return nil, err
	}
	highlight, err := markdown.StyleCSS(rc.Config.Markdown.HighlightStyle)
	if err != nil {
		return nil, fmt.Errorf("failed to build highlight stylesheet: %w", err)
	}

	assets := []asset{
		{assetSiteCSS, "css/site.css", siteCSS},
		{assetHighlightCSS, "css/highlight.css", []byte(highlight)},
		{assetTocJS, "js/toc.js", tocJS},
	}

	files := make(map[string][]byte, len(assets))
	mapping := make(map[string]string, len(assets))
	for _, a := range assets {
		name := hashName(a.name, a.data)
		mapping[a.key] = name
		files[name] = a.data
	}
	rc.ResourceMap = mapping
	return files, nil
}

// hashName inserts a short content hash before the extension
func hashName(name string, data []byte) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s-%x%s", base, sum[:4], ext)
}
