package note

import (
	"strings"
	"testing"
)

func TestRenderPreview_BasicMarkdown(t *testing.T) {
	t.Parallel()
	html := string(RenderPreview("# Heading\n\nSome *emphasis* here."))
	if !strings.Contains(html, "<h1") || !strings.Contains(html, "Heading") {
		t.Fatalf("missing heading: %s", html)
	}
	if !strings.Contains(html, "<em>emphasis</em>") {
		t.Fatalf("missing emphasis: %s", html)
	}
}

func TestRenderPreview_StripsScripts(t *testing.T) {
	t.Parallel()
	cases := []string{
		"<script>alert(1)</script>",
		"hello <img src=x onerror=alert(1)>",
		`[link](javascript:alert(1))`,
		`<a href="javascript:alert(1)">x</a>`,
		"<iframe src='https://example.com'></iframe>",
	}
	for _, input := range cases {
		html := string(RenderPreview(input))
		lower := strings.ToLower(html)
		if strings.Contains(lower, "<script") || strings.Contains(lower, "javascript:") ||
			strings.Contains(lower, "onerror") || strings.Contains(lower, "<iframe") {
			t.Errorf("unsanitized output for %q: %s", input, html)
		}
	}
}

func TestRenderPreview_TablesAndCode(t *testing.T) {
	t.Parallel()
	input := "| a | b |\n|---|---|\n| 1 | 2 |\n\n```\ncode block\n```\n"
	html := string(RenderPreview(input))
	if !strings.Contains(html, "<table") {
		t.Fatalf("table extension not rendered: %s", html)
	}
	if !strings.Contains(html, "code block") {
		t.Fatalf("code block missing: %s", html)
	}
}

func TestRenderPreview_EmptyContent(t *testing.T) {
	t.Parallel()
	if got := strings.TrimSpace(string(RenderPreview(""))); got != "" {
		t.Fatalf("empty content rendered %q", got)
	}
}
