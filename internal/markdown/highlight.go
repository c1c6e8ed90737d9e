package markdown

import (
	"bytes"
	"fmt"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/util"
)

func newHighlighter(style string, lineNumbers bool) goldmark.Extender {
	return highlighting.NewHighlighting(
		highlighting.WithStyle(style),
		highlighting.WithGuessLanguage(false),
		highlighting.WithFormatOptions(
			chromahtml.WithClasses(true),
			chromahtml.WithLineNumbers(lineNumbers),
			chromahtml.PreventSurroundingPre(true),
		),
		highlighting.WithWrapperRenderer(codeWrapper),
	)
}

// codeWrapper emits the <pre><code> pair around a fenced block. Chroma only
// writes the token spans.
func codeWrapper(w util.BufWriter, ctx highlighting.CodeBlockContext, entering bool) {
	if !entering {
		_, _ = w.WriteString("</code></pre>\n")
		return
	}

	raw, ok := ctx.Language()
	if !ok || len(raw) == 0 {
		_, _ = w.WriteString("<pre><code>")
		return
	}
	lang := string(util.EscapeHTML(raw))
	if ctx.Highlighted() {
		_, _ = fmt.Fprintf(w, `<pre class="chroma language-%[1]s" data-lang="%[1]s"><code class="language-%[1]s">`, lang)
		return
	}
	_, _ = fmt.Fprintf(w, `<pre data-lang="%[1]s"><code class="language-%[1]s">`, lang)
}

// StyleCSS returns the stylesheet for the class names the highlighter emits.
func StyleCSS(style string) (string, error) {
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, styles.Get(style)); err != nil {
		return "", fmt.Errorf("failed to write %s stylesheet: %w", style, err)
	}
	return buf.String(), nil
}
