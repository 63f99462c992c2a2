package note

import (
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// previewPolicy allows the markup user-generated markdown legitimately
// produces and strips everything else (scripts, event handlers, frames).
var previewPolicy = bluemonday.UGCPolicy()

// RenderPreview converts markdown to a sanitized HTML fragment for the
// preview panel. Pure: no side effects into the store, safe to call on
// every keystroke.
func RenderPreview(content string) []byte {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(content))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	unsafe := markdown.Render(doc, renderer)

	return previewPolicy.SanitizeBytes(unsafe)
}
