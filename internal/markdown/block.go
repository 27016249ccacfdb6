package markdown

import (
	"fmt"
	"strings"
)

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockUnordered
	blockOrdered
	blockCode
)

type block struct {
	kind  blockKind
	level int      // heading level
	lang  string   // code fence language
	text  string   // paragraph/heading text or raw code body
	items []string // list items
}

func (b block) html() string {
	switch b.kind {
	case blockCode:
		return fmt.Sprintf(`<pre class="chat-code"><code class="language-%s">%s</code></pre>`,
			escapeAttr(b.lang), escapeText(b.text))
	case blockHeading:
		return fmt.Sprintf("<h%d>%s</h%d>", b.level, renderInline(b.text), b.level)
	case blockUnordered, blockOrdered:
		tag := "ul"
		if b.kind == blockOrdered {
			tag = "ol"
		}
		var sb strings.Builder
		sb.WriteString("<" + tag + ">")
		for _, item := range b.items {
			sb.WriteString("<li>")
			sb.WriteString(renderInline(item))
			sb.WriteString("</li>")
		}
		sb.WriteString("</" + tag + ">")
		return sb.String()
	default:
		return "<p>" + renderInline(b.text) + "</p>"
	}
}

// parseBlocks groups normalized lines into blocks. Blank lines end list
// runs and produce nothing.
func parseBlocks(src string) []block {
	lines := strings.Split(src, "\n")
	var blocks []block

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if lang, ok := fenceOpen(line); ok {
			end := len(lines)
			for j := i + 1; j < len(lines); j++ {
				if isFenceClose(lines[j]) {
					end = j
					break
				}
			}
			// An unterminated fence swallows the rest of the document.
			blocks = append(blocks, block{
				kind: blockCode,
				lang: lang,
				text: strings.Join(lines[i+1:end], "\n"),
			})
			i = end
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		if level, text, ok := heading(line); ok {
			blocks = append(blocks, block{kind: blockHeading, level: level, text: text})
			continue
		}

		if item, ok := bulletItem(line); ok {
			b := block{kind: blockUnordered, items: []string{item}}
			for i+1 < len(lines) {
				next, ok := bulletItem(lines[i+1])
				if !ok {
					break
				}
				b.items = append(b.items, next)
				i++
			}
			blocks = append(blocks, b)
			continue
		}

		if item, ok := orderedItem(line); ok {
			b := block{kind: blockOrdered, items: []string{item}}
			for i+1 < len(lines) {
				next, ok := orderedItem(lines[i+1])
				if !ok {
					break
				}
				b.items = append(b.items, next)
				i++
			}
			blocks = append(blocks, b)
			continue
		}

		blocks = append(blocks, block{kind: blockParagraph, text: line})
	}

	return blocks
}

// fenceOpen matches "```" optionally followed by a language tag
func fenceOpen(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "```")
	if !ok {
		return "", false
	}
	rest = strings.TrimRight(rest, " \t")
	for _, r := range rest {
		if !isLangRune(r) {
			return "", false
		}
	}
	return rest, true
}

func isFenceClose(line string) bool {
	return strings.TrimSpace(line) == "```"
}

func isLangRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '+', r == '-', r == '#', r == '.':
		return true
	}
	return false
}

// heading matches one to six '#' followed by a space
func heading(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(line) || line[level] != ' ' {
		return 0, "", false
	}
	text := line[level+1:]
	if text == "" {
		return 0, "", false
	}
	return level, text, true
}

// bulletItem matches "- x", "* x" or "+ x", allowing leading indentation
func bulletItem(line string) (string, bool) {
	s := strings.TrimLeft(line, " \t")
	if len(s) < 3 || s[1] != ' ' {
		return "", false
	}
	switch s[0] {
	case '-', '*', '+':
	default:
		return "", false
	}
	item := strings.TrimLeft(s[2:], " \t")
	if item == "" {
		return "", false
	}
	return item, true
}

// orderedItem matches "12. x", allowing leading indentation
func orderedItem(line string) (string, bool) {
	s := strings.TrimLeft(line, " \t")
	digits := 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	if digits == 0 || digits+2 > len(s) || s[digits] != '.' || s[digits+1] != ' ' {
		return "", false
	}
	item := strings.TrimLeft(s[digits+2:], " \t")
	if item == "" {
		return "", false
	}
	return item, true
}
