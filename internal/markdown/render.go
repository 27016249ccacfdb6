// Package markdown converts untrusted assistant text into a small, safe
// subset of HTML. It is not CommonMark: it knows fenced code, headings,
// emphasis, inline code, http(s) links, flat lists and paragraphs.
//
// Rendering happens in two passes. The block pass splits the input into
// lines and groups them into code fences, headings, lists and paragraph
// lines. The inline pass then scans each text run left to right, escaping
// every byte it does not turn into a tag. Code bodies never reach the
// inline pass, so they are escaped exactly once and never interpreted.
package markdown

import (
	"html/template"
	"strings"
)

// Render converts raw markdown into an HTML fragment. It never panics and
// returns "" for empty input.
func Render(raw string) string {
	if raw == "" {
		return ""
	}

	blocks := parseBlocks(normalizeNewlines(raw))

	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if html := b.html(); html != "" {
			out = append(out, html)
		}
	}
	return strings.Join(out, "\n")
}

// RenderHTML is Render typed for html/template callers
func RenderHTML(raw string) template.HTML {
	return template.HTML(Render(raw)) //nolint:gosec // output is escaped by construction
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
