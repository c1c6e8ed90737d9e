// Package anchor maps scroll offsets and TOC clicks onto rendered headings.
//
// A rendered article is abstracted as a Document: an ordered list of heading
// elements, each with the id it was rendered with and a vertical position.
// For HTML the position is the count of visible text runes that precede the
// heading, which stands in for a pixel offset outside a browser.
package anchor

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element is a rendered heading.
type Element struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Level int     `json:"level"`
	Top   float64 `json:"top"`
}

// Document is the rendered side of an article.
type Document interface {
	// ElementByID returns the first heading rendered with id.
	ElementByID(id string) (Element, bool)
	// Headings returns every heading in document order.
	Headings() []Element
}

// StaticDocument is a Document over a fixed list of elements.
type StaticDocument struct {
	elements []Element
	byID     map[string]int
}

// NewStaticDocument builds a document from elements already in document order.
func NewStaticDocument(elements []Element) *StaticDocument {
	d := &StaticDocument{
		elements: append([]Element(nil), elements...),
		byID:     make(map[string]int, len(elements)),
	}
	for i, el := range d.elements {
		if el.ID == "" {
			continue
		}
		if _, dup := d.byID[el.ID]; !dup {
			d.byID[el.ID] = i
		}
	}
	return d
}

func (d *StaticDocument) ElementByID(id string) (Element, bool) {
	i, ok := d.byID[id]
	if !ok {
		return Element{}, false
	}
	return d.elements[i], true
}

func (d *StaticDocument) Headings() []Element {
	return append([]Element(nil), d.elements...)
}

// HTMLDocument is a Document parsed from rendered article HTML.
type HTMLDocument struct {
	*StaticDocument
	length float64
}

// Length is the glyph count of the whole document, the largest useful
// scroll offset.
func (d *HTMLDocument) Length() float64 {
	return d.length
}

var headingLevels = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// ParseHTML reads the headings of an HTML fragment or page.
func ParseHTML(src string) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	tops := map[*html.Node]float64{}
	var glyphs float64
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			glyphs += float64(visibleRunes(n.Data))
			return
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
			if _, ok := headingLevels[n.DataAtom]; ok {
				tops[n] = glyphs
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}

	var elements []Element
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		elements = append(elements, Element{
			ID:    s.AttrOr("id", ""),
			Text:  strings.Join(strings.Fields(s.Text()), " "),
			Level: headingLevels[node.DataAtom],
			Top:   tops[node],
		})
	})
	return &HTMLDocument{StaticDocument: NewStaticDocument(elements), length: glyphs}, nil
}

func visibleRunes(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if !unicode.IsSpace(r) {
			n++
		}
		s = s[size:]
	}
	return n
}
