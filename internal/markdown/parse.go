package markdown

import (
	"context"

	"github.com/geocine/geopress/internal/toc"
	"golang.org/x/sync/errgroup"
)

// FallbackHTML is shown in place of an article body that failed to render.
const FallbackHTML = `<div class="render-error">This article could not be rendered.</div>`

// ParseResult is a rendered article body with its table of contents.
type ParseResult struct {
	HTML string      `json:"html"`
	TOC  []*toc.Node `json:"toc"`
}

// Parse renders src and extracts its TOC concurrently. A render failure
// fails the whole call.
func (r *Renderer) Parse(ctx context.Context, src string) (*ParseResult, error) {
	var (
		html string
		tree []*toc.Node
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := r.Render(gctx, src)
		if err != nil {
			return err
		}
		html = out
		return nil
	})
	g.Go(func() error {
		tree = r.TOC(src)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ParseResult{HTML: html, TOC: tree}, nil
}

// TOC extracts the table of contents with the same id rules Render uses.
func (r *Renderer) TOC(src string) []*toc.Node {
	if r.opts.UniqueIDs {
		return toc.ExtractUnique(src)
	}
	return toc.Extract(src)
}

// ParseOrFallback is Parse for display paths: a failed render is logged and
// replaced by FallbackHTML while the TOC is still returned.
func (r *Renderer) ParseOrFallback(ctx context.Context, src string) *ParseResult {
	res, err := r.Parse(ctx, src)
	if err != nil {
		r.logger.Error("article render failed", "error", err)
		return &ParseResult{HTML: FallbackHTML, TOC: r.TOC(src)}
	}
	return res
}

// RenderOrFallback renders src with r, or returns FallbackHTML on failure.
func RenderOrFallback(ctx context.Context, r *Renderer, src string) string {
	html, err := r.Render(ctx, src)
	if err != nil {
		r.logger.Error("article render failed", "error", err)
		return FallbackHTML
	}
	return html
}
