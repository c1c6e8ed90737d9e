package renderer

import (
	"path/filepath"

	"github.com/geocine/geopress/internal/slug"
	"github.com/geocine/geopress/internal/utils"
)

// writeRedirects emits a redirect page for every article alias. An alias
// never overwrites a real article page or an earlier alias.
func (r *HtmlRenderer) writeRedirects(rc *RenderContext) (int, error) {
	taken := make(map[string]bool)
	for _, a := range rc.Site.Articles {
		taken[a.Slug] = true
	}

	written := 0
	for _, a := range rc.Site.Published() {
		for _, alias := range a.Aliases {
			from := slug.Generate(alias)
			if from == "" || taken[from] {
				if from != "" && from != a.Slug {
					r.logger.Warn("alias clashes with an existing page", "alias", alias, "article", a.Slug)
				}
				continue
			}
			taken[from] = true

			out, err := execPage(r.templates.redirect, "redirect", &pageData{URL: a.URL()})
			if err != nil {
				return written, err
			}
			if err := utils.WriteFile(filepath.Join(rc.DestDir, from+".html"), []byte(out)); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}
