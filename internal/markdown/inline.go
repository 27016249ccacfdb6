package markdown

import "strings"

// renderInline scans one raw text run left to right. Everything that is
// not turned into a tag is escaped on the way out, so no input byte can
// reach the output unescaped.
func renderInline(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + len(s)/4)

	links := newLinkScanner(s)
	plainStart := 0
	flush := func(end int) {
		if end > plainStart {
			sb.WriteString(escapeText(s[plainStart:end]))
		}
	}

	for i := 0; i < len(s); {
		switch s[i] {
		case '`':
			if end := codeSpanEnd(s, i); end > 0 {
				flush(i)
				sb.WriteString("<code>")
				sb.WriteString(escapeText(s[i+1 : end]))
				sb.WriteString("</code>")
				i = end + 1
				plainStart = i
				continue
			}

		case '[':
			if label, url, next, ok := links.match(i); ok {
				flush(i)
				sb.WriteString(`<a href="`)
				sb.WriteString(escapeAttr(url))
				sb.WriteString(`" target="_blank" rel="noopener noreferrer">`)
				sb.WriteString(renderInline(label))
				sb.WriteString("</a>")
				i = next
				plainStart = i
				continue
			}

		case '*':
			if strings.HasPrefix(s[i:], "**") {
				if end := strongEnd(s, i+2); end > 0 {
					flush(i)
					sb.WriteString("<strong>")
					sb.WriteString(renderInline(s[i+2 : end]))
					sb.WriteString("</strong>")
					i = end + 2
					plainStart = i
					continue
				}
				// An unmatched "**" run stays literal as a whole so its second
				// star cannot open an italic span.
				i += 2
				continue
			}
			// A star glued to a literal star cannot open; one right after an
			// emitted tag can.
			if i == plainStart || s[i-1] != '*' {
				if end := emEnd(s, i+1); end > 0 {
					flush(i)
					sb.WriteString("<em>")
					sb.WriteString(renderInline(s[i+1 : end]))
					sb.WriteString("</em>")
					i = end + 1
					plainStart = i
					continue
				}
			}
		}
		i++
	}
	flush(len(s))
	return sb.String()
}

// codeSpanEnd returns the index of the backtick closing the span opened at
// i, or -1. Empty spans do not count.
func codeSpanEnd(s string, i int) int {
	j := strings.IndexByte(s[i+1:], '`')
	if j <= 0 {
		return -1
	}
	return i + 1 + j
}

// strongEnd finds the "**" closing a bold span whose content starts at
// from. Content must be non-empty; code spans are skipped over.
func strongEnd(s string, from int) int {
	for j := from; j+1 < len(s); j++ {
		switch {
		case s[j] == '`':
			if end := codeSpanEnd(s, j); end > 0 {
				j = end
			}
		case s[j] == '*' && s[j+1] == '*' && j > from:
			return j
		}
	}
	return -1
}

// emEnd finds the single '*' closing an italic span whose content starts
// at from. Bold spans and code spans inside are skipped over, which is what
// keeps italic from consuming half of a bold marker.
func emEnd(s string, from int) int {
	if from >= len(s) || s[from] == '*' {
		return -1
	}
	afterStrong := -1
	for j := from; j < len(s); j++ {
		switch s[j] {
		case '`':
			if end := codeSpanEnd(s, j); end > 0 {
				j = end
			}
		case '*':
			if j+1 < len(s) && s[j+1] == '*' {
				if end := strongEnd(s, j+2); end > 0 {
					j = end + 1
					afterStrong = end + 2
				} else {
					j++
				}
				continue
			}
			if s[j-1] != '*' || j == afterStrong {
				return j
			}
		}
	}
	return -1
}

// linkScanner matches [label](http://url) or [label](https://url) within
// one text run. Any other scheme is rejected and the text stays literal.
type linkScanner struct {
	s      string
	labels byteFinder
	urls   byteFinder
}

func newLinkScanner(s string) *linkScanner {
	return &linkScanner{
		s:      s,
		labels: newByteFinder(s, func(c byte) bool { return c == ']' }),
		urls:   newByteFinder(s, func(c byte) bool { return c == ')' || isSpace(c) }),
	}
}

// match tries a link opening at i
func (l *linkScanner) match(i int) (label, url string, next int, ok bool) {
	s := l.s
	labelEnd := l.labels.next(i + 1)
	if labelEnd == i+1 || labelEnd+1 >= len(s) || s[labelEnd+1] != '(' {
		return "", "", 0, false
	}

	urlStart := labelEnd + 2
	urlEnd := l.urls.next(urlStart)
	if urlEnd >= len(s) || s[urlEnd] != ')' {
		return "", "", 0, false
	}

	url = s[urlStart:urlEnd]
	if !allowedScheme(url) {
		return "", "", 0, false
	}
	return s[i+1 : labelEnd], url, urlEnd + 1, true
}

// byteFinder answers "first stop byte at or after i" for non-decreasing i.
// It keeps the last hit, so a run of searches that end at the same place
// only scans the string once.
type byteFinder struct {
	s    string
	stop func(byte) bool
	from int // s[from:at] holds no stop byte
	at   int // index of the hit, or len(s)
}

func newByteFinder(s string, stop func(byte) bool) byteFinder {
	return byteFinder{s: s, stop: stop, at: -1}
}

func (f *byteFinder) next(i int) int {
	if i >= f.from && i <= f.at {
		return f.at
	}
	f.from = i
	f.at = i
	for f.at < len(f.s) && !f.stop(f.s[f.at]) {
		f.at++
	}
	return f.at
}

func allowedScheme(url string) bool {
	lower := strings.ToLower(url)
	for _, prefix := range []string{"http:", "https:"} {
		if strings.HasPrefix(lower, prefix) && len(url) > len(prefix) {
			return true
		}
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
