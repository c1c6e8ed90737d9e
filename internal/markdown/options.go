package markdown

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Options configures a Renderer.
type Options struct {
	// TrustedHTML keeps raw HTML from the source as-is. Leave it off for any
	// content not written by a trusted author.
	TrustedHTML bool
	// UniqueIDs suffixes repeated heading ids with -1, -2, ...
	UniqueIDs bool
	// HighlightStyle is a chroma style name.
	HighlightStyle string
	LineNumbers    bool
	// Extensions lists goldmark extensions by name, see extensionsByName.
	Extensions []string
	Logger     *slog.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		HighlightStyle: "github",
		Extensions:     []string{"gfm", "footnote", "definition-list"},
	}
}

var extensionsByName = map[string]goldmark.Extender{
	"gfm":             extension.GFM,
	"table":           extension.Table,
	"strikethrough":   extension.Strikethrough,
	"linkify":         extension.Linkify,
	"tasklist":        extension.TaskList,
	"footnote":        extension.Footnote,
	"definition-list": extension.DefinitionList,
}

func resolveExtensions(names []string) ([]goldmark.Extender, error) {
	var exts []goldmark.Extender
	seen := map[string]bool{}
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || seen[key] {
			continue
		}
		ext, ok := extensionsByName[key]
		if !ok {
			return nil, fmt.Errorf("unknown markdown extension %q", name)
		}
		seen[key] = true
		exts = append(exts, ext)
	}
	return exts, nil
}
