package markdown

import (
	"regexp"
	"strings"
)

var (
	admonitionRe = regexp.MustCompile(`(?is)<blockquote>\s*<p>\s*\[!([A-Z]+)\]\s*(.*?)</p>(.*?)</blockquote>`)
	brSpaceRe    = regexp.MustCompile(`(?is)<br\s*/?>\s+`)
	mdLinkRe     = regexp.MustCompile(`href="([^":#?]+)\.md([#?][^"]*)?"`)
)

var admonitionTitles = map[string]string{
	"NOTE":      "Note",
	"TIP":       "Tip",
	"IMPORTANT": "Important",
	"WARNING":   "Warning",
	"CAUTION":   "Caution",
}

// transformAdmonitions turns GitHub-style "> [!NOTE]" blockquotes into
// classed admonition blocks. Unknown tags are left as plain blockquotes.
func transformAdmonitions(html string) string {
	return admonitionRe.ReplaceAllStringFunc(html, func(m string) string {
		parts := admonitionRe.FindStringSubmatch(m)
		tag := strings.ToUpper(parts[1])
		title, ok := admonitionTitles[tag]
		if !ok {
			return m
		}
		kind := strings.ToLower(tag)

		var sb strings.Builder
		sb.WriteString(`<blockquote class="admonition admonition-` + kind + `">`)
		sb.WriteString(`<p class="admonition-title">` + title + `</p>`)
		if first := strings.TrimSpace(parts[2]); first != "" {
			sb.WriteString(`<p>` + first + `</p>`)
		}
		sb.WriteString(parts[3])
		sb.WriteString(`</blockquote>`)
		return sb.String()
	})
}

// transformCollapseBrWhitespace collapses whitespace immediately following <br> tags.
func transformCollapseBrWhitespace(html string) string {
	return brSpaceRe.ReplaceAllString(html, "<br>")
}

// transformLinksMdToHtml points relative links to sibling articles at their
// rendered pages.
func transformLinksMdToHtml(html string) string {
	return mdLinkRe.ReplaceAllString(html, `href="$1.html$2"`)
}

func postProcess(html string) string {
	html = transformLinksMdToHtml(html)
	html = transformCollapseBrWhitespace(html)
	html = transformAdmonitions(html)
	return html
}
