// Package slug turns heading and title text into URL- and anchor-safe identifiers.
// Both the heading extractor and the Markdown renderer call Generate so the
// TOC anchors and the rendered heading ids come from one implementation.
package slug

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

var (
	disallowed = regexp.MustCompile(`[^\p{L}\p{N}\p{Z}\s-]`)
	spaces     = regexp.MustCompile(`[\p{Z}\s]+`)
	hyphens    = regexp.MustCompile(`-+`)
)

// Generate converts text to a slug: lowercased, punctuation stripped,
// whitespace hyphenated. CJK ideographs are kept verbatim. The result is
// empty when text has no letters or numbers.
func Generate(text string) string {
	s := strings.ToLower(norm.NFC.String(text))
	s = disallowed.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(s, "-")
	s = hyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// OrFallback returns Generate(text), or a timestamp token when text slugs
// to the empty string.
func OrFallback(text string, now time.Time) string {
	if s := Generate(text); s != "" {
		return s
	}
	return "post-" + strconv.FormatInt(now.UnixMilli(), 36)
}

// Tracker hands out unique ids within one document: the first occurrence of
// a base keeps it, later ones get -1, -2, ... appended.
type Tracker struct {
	used map[string]bool
	next map[string]int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{used: map[string]bool{}, next: map[string]int{}}
}

// Unique returns base, or the first free suffixed form of it. An empty base
// stays empty.
func (t *Tracker) Unique(base string) string {
	if base == "" {
		return ""
	}
	if !t.used[base] {
		t.used[base] = true
		return base
	}
	for {
		t.next[base]++
		cand := fmt.Sprintf("%s-%d", base, t.next[base])
		if !t.used[cand] {
			t.used[cand] = true
			return cand
		}
	}
}

// Reserve marks id as taken, e.g. for explicit heading ids.
func (t *Tracker) Reserve(id string) {
	t.used[id] = true
}
