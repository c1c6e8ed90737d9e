package renderer

import (
	"html"
	"strconv"
	"strings"

	"github.com/geocine/geopress/internal/toc"
)

// tocListHTML renders a TOC forest as nested ordered lists for the sidebar.
// Entries without an id cannot be linked and render as plain text.
func tocListHTML(nodes []*toc.Node) string {
	if len(nodes) == 0 {
		return ""
	}
	var buf strings.Builder
	writeTOCList(&buf, nodes)
	return buf.String()
}

func writeTOCList(buf *strings.Builder, nodes []*toc.Node) {
	buf.WriteString(`<ol class="toc-list">`)
	for _, n := range nodes {
		buf.WriteString(`<li class="toc-level-`)
		buf.WriteString(strconv.Itoa(n.Level))
		buf.WriteString(`">`)
		text := html.EscapeString(n.Text)
		if n.ID != "" {
			id := html.EscapeString(n.ID)
			buf.WriteString(`<a href="#` + id + `" data-toc-id="` + id + `">` + text + `</a>`)
		} else {
			buf.WriteString(`<span>` + text + `</span>`)
		}
		if len(n.Children) > 0 {
			writeTOCList(buf, n.Children)
		}
		buf.WriteString(`</li>`)
	}
	buf.WriteString(`</ol>`)
}
