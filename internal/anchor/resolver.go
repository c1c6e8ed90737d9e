package anchor

import (
	"strings"

	"github.com/geocine/geopress/internal/toc"
	"golang.org/x/text/unicode/norm"
)

// DefaultHeaderOffset is the sticky header clearance used when none is set.
const DefaultHeaderOffset = 80

// Navigation describes where a TOC click should take the viewer.
type Navigation struct {
	EntryID   string  `json:"entry_id"`
	ElementID string  `json:"element_id"`
	ScrollTop float64 `json:"scroll_top"`
	Fragment  string  `json:"fragment"`
	Smooth    bool    `json:"smooth"`
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHeaderOffset sets the sticky header clearance.
func WithHeaderOffset(offset float64) Option {
	return func(r *Resolver) {
		r.headerOffset = offset
	}
}

type resolution struct {
	el Element
	ok bool
}

// Resolver tracks the active TOC entry of one rendered document. It is not
// safe for concurrent use.
type Resolver struct {
	doc          Document
	entries      []*toc.Node
	resolved     map[*toc.Node]resolution
	headerOffset float64
	active       string
}

// NewResolver flattens tree and computes the active entry for offset 0.
func NewResolver(doc Document, tree []*toc.Node, opts ...Option) *Resolver {
	r := &Resolver{
		doc:          doc,
		entries:      toc.Flatten(tree),
		resolved:     map[*toc.Node]resolution{},
		headerOffset: DefaultHeaderOffset,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Scroll(0)
	return r
}

// Active returns the id of the active TOC entry, or "" when none is.
func (r *Resolver) Active() string {
	return r.active
}

// Resolve finds the rendered heading for entry: by id first, then by
// heading text. The outcome, hit or miss, is kept for the resolver's life.
func (r *Resolver) Resolve(entry *toc.Node) (Element, bool) {
	if res, ok := r.resolved[entry]; ok {
		return res.el, res.ok
	}
	el, ok := r.lookup(entry)
	r.resolved[entry] = resolution{el: el, ok: ok}
	return el, ok
}

func (r *Resolver) lookup(entry *toc.Node) (Element, bool) {
	if entry.ID != "" {
		if el, ok := r.doc.ElementByID(entry.ID); ok {
			return el, true
		}
	}

	headings := r.doc.Headings()
	for _, el := range headings {
		if el.Text == entry.Text {
			return el, true
		}
	}
	want := normalize(entry.Text)
	if want == "" {
		return Element{}, false
	}
	for _, el := range headings {
		if normalize(el.Text) == want {
			return el, true
		}
	}
	return Element{}, false
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFC.String(s))), " ")
}

// Scroll updates the active entry for a viewport scrolled to offset: the
// last heading at or above offset plus the header clearance wins. Above the
// first heading nothing is active.
func (r *Resolver) Scroll(offset float64) string {
	limit := offset + r.headerOffset
	active := ""
	best := 0.0
	found := false
	for _, entry := range r.entries {
		el, ok := r.Resolve(entry)
		if !ok || el.Top > limit {
			continue
		}
		if !found || el.Top > best {
			active, best, found = entry.ID, el.Top, true
		}
	}
	r.active = active
	return active
}

// Click resolves the TOC entry tocID and marks it active. It reports false,
// leaving the active entry alone, when the entry is unknown or unreachable.
func (r *Resolver) Click(tocID string) (Navigation, bool) {
	entry := r.entry(tocID)
	if entry == nil {
		return Navigation{}, false
	}
	el, ok := r.Resolve(entry)
	if !ok {
		return Navigation{}, false
	}

	top := el.Top - r.headerOffset
	if top < 0 {
		top = 0
	}
	nav := Navigation{
		EntryID:   entry.ID,
		ElementID: el.ID,
		ScrollTop: top,
		Smooth:    true,
	}
	if el.ID != "" {
		nav.Fragment = "#" + el.ID
	}
	r.active = entry.ID
	return nav, true
}

func (r *Resolver) entry(id string) *toc.Node {
	for _, e := range r.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Unresolved lists the TOC entries no rendered heading could be found for.
func (r *Resolver) Unresolved() []*toc.Node {
	var out []*toc.Node
	for _, e := range r.entries {
		if _, ok := r.Resolve(e); !ok {
			out = append(out, e)
		}
	}
	return out
}
