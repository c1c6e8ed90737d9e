// Package markdown renders article Markdown to HTML with heading anchors and
// highlighted code, and pairs the output with the article's TOC.
package markdown

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	ghtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Renderer converts Markdown to HTML. It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	opts   Options
	logger *slog.Logger
}

// New builds a renderer. An unknown extension name is an error.
func New(opts Options) (*Renderer, error) {
	if opts.HighlightStyle == "" {
		opts.HighlightStyle = DefaultOptions().HighlightStyle
	}
	exts, err := resolveExtensions(opts.Extensions)
	if err != nil {
		return nil, err
	}
	exts = append(exts, newHighlighter(opts.HighlightStyle, opts.LineNumbers))

	md := goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(
			parser.WithAttribute(),
			parser.WithASTTransformers(
				util.Prioritized(&headingIDs{unique: opts.UniqueIDs}, 100),
			),
		),
		goldmark.WithRendererOptions(
			ghtml.WithUnsafe(),
			renderer.WithNodeRenderers(
				util.Prioritized(&headingRenderer{}, 100),
			),
		),
	)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Renderer{md: md, opts: opts, logger: logger}
	if !opts.TrustedHTML {
		r.policy = newPolicy()
	}
	return r, nil
}

// MustNew is New for options known to be valid.
func MustNew(opts Options) *Renderer {
	r, err := New(opts)
	if err != nil {
		panic(err)
	}
	return r
}

// Options returns the options the renderer was built with.
func (r *Renderer) Options() Options {
	return r.opts
}

// Render converts src to HTML. Malformed Markdown never fails; an error
// means the toolchain itself broke and IsRenderFailure reports true for it.
func (r *Renderer) Render(ctx context.Context, src string) (out string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	defer func() {
		if v := recover(); v != nil {
			out = ""
			err = renderPanicError(v, len(src))
		}
	}()

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", wrapRenderError(err, len(src))
	}

	html := buf.String()
	if r.policy != nil {
		html = sanitize(r.policy, html)
	}
	return postProcess(html), nil
}
