package search

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Section is one searchable slice of an article: the text between one
// heading and the next.
type Section struct {
	Ref     string `json:"ref"`     // slug or slug#anchor
	Slug    string `json:"slug"`    // article slug
	Anchor  string `json:"anchor"`  // heading id, empty for the lead-in
	Title   string `json:"title"`   // article title
	Heading string `json:"heading"` // heading text
	Tags    string `json:"tags,omitempty"`
	Body    string `json:"body"`
}

// URL is the page link for the section
func (s Section) URL() string {
	if s.Anchor == "" {
		return s.Slug + ".html"
	}
	return s.Slug + ".html#" + s.Anchor
}

// SplitSections cuts rendered article HTML at every top-level heading. Text
// before the first heading becomes a section without an anchor. Headings
// sharing an id are merged into the first one, which is where a link to
// that id lands.
func SplitSections(slug, title string, tags []string, html string) ([]Section, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse article '%s': %w", slug, err)
	}

	var (
		sections []*Section
		byRef    = map[string]*Section{}
		current  = &Section{Ref: slug, Slug: slug, Title: title, Heading: title}
		body     []string
	)
	tagText := strings.Join(tags, " ")

	flush := func() {
		current.Body = strings.Join(body, " ")
		body = nil
		if existing, ok := byRef[current.Ref]; ok {
			existing.Body = strings.TrimSpace(existing.Body + " " + current.Heading + " " + current.Body)
			return
		}
		if current.Anchor == "" && current.Body == "" {
			return
		}
		current.Tags = tagText
		byRef[current.Ref] = current
		sections = append(sections, current)
	}

	doc.Find("body").Children().Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		if len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6' {
			flush()
			anchor := s.AttrOr("id", "")
			ref := slug
			if anchor != "" {
				ref = slug + "#" + anchor
			}
			current = &Section{
				Ref:     ref,
				Slug:    slug,
				Anchor:  anchor,
				Title:   title,
				Heading: collapse(s.Text()),
			}
			return
		}
		if text := collapse(s.Text()); text != "" {
			body = append(body, text)
		}
	})
	flush()

	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		out = append(out, *s)
	}
	return out, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
