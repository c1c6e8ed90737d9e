package markdown

import (
	"net/url"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var (
	headingElements = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

	headingIDPattern = regexp.MustCompile(`^[\p{L}\p{N}\p{M}_.:-]+$`)
	fragmentHref     = regexp.MustCompile(`href="#([^"]*%[^"]*)"`)
)

// newPolicy extends the UGC policy with what rendered articles need:
// Unicode heading ids, self-link and highlighter classes, task list boxes.
// Only links off the site get rel="nofollow".
func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(false)
	p.RequireNoFollowOnFullyQualifiedLinks(true)

	p.AllowAttrs("id").Matching(headingIDPattern).OnElements(headingElements...)
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).
		OnElements("a", "code", "span", "pre", "div", "sup", "li", "ol", "hr")
	p.AllowAttrs("data-lang").Matching(regexp.MustCompile(`^[\w+#.-]+$`)).OnElements("pre")
	p.AllowAttrs("role").Matching(regexp.MustCompile(`^doc-[a-z]+$`)).OnElements("a", "div")

	p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")
	p.AllowAttrs("align").Matching(regexp.MustCompile(`^(left|right|center)$`)).OnElements("th", "td")
	return p
}

// sanitize runs html through p and undoes the percent-encoding the policy's
// URL parser applies to in-page fragments, so href="#第一章" stays
// byte-equal to the id it targets.
func sanitize(p *bluemonday.Policy, html string) string {
	out := p.Sanitize(html)
	return fragmentHref.ReplaceAllStringFunc(out, func(m string) string {
		frag := fragmentHref.FindStringSubmatch(m)[1]
		decoded, err := url.PathUnescape(frag)
		if err != nil || !headingIDPattern.MatchString(decoded) {
			return m
		}
		return `href="#` + decoded + `"`
	})
}
