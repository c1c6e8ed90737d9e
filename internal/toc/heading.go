// Package toc extracts headings from raw Markdown and nests them into a
// table of contents.
package toc

import (
	"regexp"
	"strings"

	"github.com/geocine/geopress/internal/slug"
)

// Heading is one heading line found in a Markdown document.
type Heading struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Level int    `json:"level"`
}

var (
	headingLine = regexp.MustCompile(`^(#{1,6})[ \t]+(.+)$`)
	attrBlock   = regexp.MustCompile(`\{([#.][^{}]*)\}\s*$`)
)

// ExtractHeadings scans markdown line by line and returns every ATX heading
// in document order. Lines inside fenced code blocks are skipped. It never
// runs the full Markdown parser.
func ExtractHeadings(markdown string) []Heading {
	return headingsOf(extract(markdown, nil))
}

// ExtractHeadingsUnique is ExtractHeadings with repeated ids suffixed -1, -2, ...
func ExtractHeadingsUnique(markdown string) []Heading {
	return headingsOf(extract(markdown, slug.NewTracker()))
}

// UniqueIDsByLine runs ExtractHeadingsUnique and keys each heading id by its
// zero-based line number, so a renderer can give the same headings the same
// ids.
func UniqueIDsByLine(markdown string) map[int]string {
	found := extract(markdown, slug.NewTracker())
	ids := make(map[int]string, len(found))
	for _, f := range found {
		ids[f.line] = f.ID
	}
	return ids
}

type lineHeading struct {
	Heading
	line int
}

func headingsOf(found []lineHeading) []Heading {
	headings := make([]Heading, 0, len(found))
	for _, f := range found {
		headings = append(headings, f.Heading)
	}
	return headings
}

func extract(markdown string, tracker *slug.Tracker) []lineHeading {
	var headings []lineHeading
	if markdown == "" {
		return headings
	}

	var fence fenceState
	for i, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if fence.step(line) {
			continue
		}
		m := headingLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text, explicit := splitHeading(m[2])
		if text == "" {
			continue
		}
		id := explicit
		switch {
		case id != "" && tracker != nil:
			tracker.Reserve(id)
		case id == "":
			id = slug.Generate(text)
			if tracker != nil {
				id = tracker.Unique(id)
			}
		}
		headings = append(headings, lineHeading{Heading{ID: id, Text: text, Level: len(m[1])}, i})
	}
	return headings
}

// splitHeading strips a trailing {#id .class} attribute block and the
// optional closing # sequence from raw heading text.
func splitHeading(raw string) (text, id string) {
	text = strings.TrimSpace(raw)
	if m := attrBlock.FindStringSubmatchIndex(text); m != nil {
		for _, tok := range strings.Fields(text[m[2]:m[3]]) {
			if strings.HasPrefix(tok, "#") && len(tok) > 1 {
				id = tok[1:]
			}
		}
		text = strings.TrimSpace(text[:m[0]])
	}

	trimmed := strings.TrimRight(text, "#")
	if trimmed == "" {
		return "", id
	}
	if len(trimmed) < len(text) && strings.ContainsAny(trimmed[len(trimmed)-1:], " \t") {
		text = strings.TrimSpace(trimmed)
	}
	return text, id
}

// fenceState tracks whether the scan is inside a ``` or ~~~ code fence.
type fenceState struct {
	char   byte
	length int
}

// step consumes line and reports whether it belongs to a fenced block,
// including the opening and closing fence lines themselves.
func (f *fenceState) step(line string) bool {
	trimmed, indent := trimIndent(line)
	if f.length == 0 {
		if indent > 3 {
			return false
		}
		c, n := fenceRun(trimmed)
		if n < 3 {
			return false
		}
		// A backtick fence's info string may not contain backticks.
		if c == '`' && strings.ContainsRune(trimmed[n:], '`') {
			return false
		}
		f.char, f.length = c, n
		return true
	}

	if indent <= 3 {
		c, n := fenceRun(trimmed)
		if c == f.char && n >= f.length && strings.TrimSpace(trimmed[n:]) == "" {
			f.char, f.length = 0, 0
		}
	}
	return true
}

func trimIndent(line string) (string, int) {
	i := 0
	for i < len(line) && line[i] == ' ' {
		i++
	}
	return line[i:], i
}

func fenceRun(s string) (byte, int) {
	if s == "" || (s[0] != '`' && s[0] != '~') {
		return 0, 0
	}
	c := s[0]
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	return c, n
}
