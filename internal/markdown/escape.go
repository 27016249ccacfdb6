package markdown

import "strings"

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// escapeText escapes the characters that could open or close markup
func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// escapeAttr additionally escapes double quotes for attribute values
func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

// Escape returns s as literal HTML text, for content that is shown as typed
func Escape(s string) string {
	return escapeText(s)
}
