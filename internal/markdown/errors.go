package markdown

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// CategoryRendering groups failures of the Markdown toolchain.
const CategoryRendering goerrors.Category = "rendering"

const renderFailedCode = "RENDER_FAILED"

func wrapRenderError(err error, size int) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, CategoryRendering, "render markdown").
		WithTextCode(renderFailedCode).
		WithMetadata(map[string]any{"source_bytes": size})
}

func renderPanicError(v any, size int) error {
	return goerrors.New(fmt.Sprintf("render markdown: panic: %v", v), CategoryRendering).
		WithTextCode(renderFailedCode).
		WithMetadata(map[string]any{"source_bytes": size})
}

// IsRenderFailure reports whether err came from a failed Render call.
func IsRenderFailure(err error) bool {
	return goerrors.IsCategory(err, CategoryRendering)
}
