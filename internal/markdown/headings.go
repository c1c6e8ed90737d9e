package markdown

import (
	"sort"
	"strings"

	"github.com/geocine/geopress/internal/slug"
	"github.com/geocine/geopress/internal/toc"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// headingIDs assigns heading ids from the raw heading source so they match
// what toc.ExtractHeadings computes for the same line.
type headingIDs struct {
	unique bool
}

func (h *headingIDs) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	source := reader.Source()
	var assign func(*ast.Heading) string
	if h.unique {
		assign = uniqueAssigner(source)
	} else {
		assign = func(heading *ast.Heading) string {
			if id := explicitID(heading); id != "" {
				return id
			}
			return slug.Generate(rawText(heading, source))
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if id := assign(heading); id != "" {
			heading.SetAttributeString("id", []byte(id))
		}
		return ast.WalkSkipChildren, nil
	})
}

// uniqueAssigner hands each heading the id the extractor gave its source
// line. Headings the extractor cannot see (setext, indented, or nested in a
// container) get suffixed ids that avoid every extracted one, so the
// extracted TOC keeps pointing at the same headings.
func uniqueAssigner(source []byte) func(*ast.Heading) string {
	byLine := toc.UniqueIDsByLine(string(source))
	tracker := slug.NewTracker()
	for _, id := range byLine {
		tracker.Reserve(id)
	}
	starts := []int{0}
	for i, c := range source {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}

	return func(heading *ast.Heading) string {
		if lines := heading.Lines(); lines.Len() > 0 {
			offset := lines.At(0).Start
			line := sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
			if id, ok := byLine[line]; ok {
				return id
			}
		}
		if id := explicitID(heading); id != "" {
			tracker.Reserve(id)
			return id
		}
		return tracker.Unique(slug.Generate(rawText(heading, source)))
	}
}

func explicitID(heading *ast.Heading) string {
	if v, ok := heading.AttributeString("id"); ok {
		return attrString(v)
	}
	return ""
}

func rawText(n ast.Node, source []byte) string {
	lines := n.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimSpace(string(seg.Value(source))))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func attrString(v interface{}) string {
	switch s := v.(type) {
	case []byte:
		return string(s)
	case string:
		return s
	}
	return ""
}

// headingRenderer writes headings as <hN id="x"><a class="anchor" href="#x">...</a></hN>.
type headingRenderer struct{}

func (r *headingRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindHeading, r.renderHeading)
}

func (r *headingRenderer) renderHeading(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Heading)
	id, wrap := anchorTarget(n)
	if entering {
		_, _ = w.WriteString("<h")
		_ = w.WriteByte("0123456"[n.Level])
		if n.Attributes() != nil {
			html.RenderAttributes(w, n, html.HeadingAttributeFilter)
		}
		_ = w.WriteByte('>')
		if wrap {
			_, _ = w.WriteString(`<a class="anchor" href="#`)
			_, _ = w.Write(util.EscapeHTML([]byte(id)))
			_, _ = w.WriteString(`">`)
		}
		return ast.WalkContinue, nil
	}

	if wrap {
		_, _ = w.WriteString("</a>")
	}
	_, _ = w.WriteString("</h")
	_ = w.WriteByte("0123456"[n.Level])
	_, _ = w.WriteString(">\n")
	return ast.WalkContinue, nil
}

// anchorTarget reports the heading id and whether the heading can be
// wrapped in a self-link. Headings that already hold a link are left alone
// since anchors cannot nest.
func anchorTarget(n *ast.Heading) (string, bool) {
	v, ok := n.AttributeString("id")
	if !ok {
		return "", false
	}
	id := attrString(v)
	if id == "" || n.ChildCount() == 0 {
		return id, false
	}

	hasLink := false
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || c == n {
			return ast.WalkContinue, nil
		}
		switch c.Kind() {
		case ast.KindLink, ast.KindAutoLink:
			hasLink = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return id, !hasLink
}
