package extractor

import (
	"sort"
	"strings"

	"github.com/jacekjursza/codehem/core"
)

// document is the line view of one source text.
type document struct {
	text       string
	lines      []string
	lineStarts []int
}

func newDocument(text string) *document {
	d := &document{text: text, lines: strings.Split(text, "\n")}
	d.lineStarts = make([]int, len(d.lines))
	offset := 0
	for i, l := range d.lines {
		d.lineStarts[i] = offset
		offset += len(l) + 1
	}
	return d
}

// lineAt returns the 1-indexed line containing byte offset.
func (d *document) lineAt(offset int) int {
	i := sort.Search(len(d.lineStarts), func(i int) bool { return d.lineStarts[i] > offset })
	return i
}

// line returns the 1-indexed line n, or "" when out of range.
func (d *document) line(n int) string {
	if n < 1 || n > len(d.lines) {
		return ""
	}
	return d.lines[n-1]
}

// slice returns the exact text of the lines in r.
func (d *document) slice(r core.Range) string {
	if !r.Found() || r.Start > len(d.lines) {
		return ""
	}
	end := min(r.End, len(d.lines))
	return strings.Join(d.lines[r.Start-1:end], "\n")
}

// offset returns the byte offset of the first character of line n.
func (d *document) offset(n int) int {
	if n < 1 {
		return 0
	}
	if n > len(d.lineStarts) {
		return len(d.text)
	}
	return d.lineStarts[n-1]
}

func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func isComment(line, prefix string) bool {
	return prefix != "" && strings.HasPrefix(strings.TrimSpace(line), prefix)
}

// bodyIndent returns the indentation of the first non-blank line after
// header that is indented deeper than outer, or "" when there is none.
func (d *document) bodyIndent(r core.Range, outer string) string {
	for n := r.Start + 1; n <= r.End; n++ {
		l := d.line(n)
		if isBlank(l) {
			continue
		}
		ind := indentOf(l)
		if len(ind) > len(outer) {
			return ind
		}
	}
	return ""
}

// bracketDelta counts opening minus closing brackets on a line, ignoring
// brackets inside simple quoted strings.
func bracketDelta(line string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '#':
			return depth
		}
	}
	return depth
}

// statementEnd returns the last line of the statement starting at line start,
// following open brackets across lines.
func (d *document) statementEnd(start int) int {
	depth := 0
	for n := start; n <= len(d.lines); n++ {
		depth += bracketDelta(d.line(n))
		if depth <= 0 {
			return n
		}
	}
	return start
}

// indentBlockEnd returns the last line of an indentation-delimited block
// whose header starts at line start.
func (d *document) indentBlockEnd(start int) int {
	header := start
	depth := 0
	for n := start; n <= len(d.lines); n++ {
		depth += bracketDelta(d.line(n))
		header = n
		if depth <= 0 && strings.HasSuffix(strings.TrimSpace(stripComment(d.line(n))), ":") {
			break
		}
		if depth <= 0 && n > start {
			header = start
			break
		}
	}

	outer := indentOf(d.line(start))
	end := header
	for n := header + 1; n <= len(d.lines); n++ {
		l := d.line(n)
		if isBlank(l) {
			continue
		}
		if len(indentOf(l)) <= len(outer) {
			break
		}
		end = n
	}
	return end
}

func stripComment(line string) string {
	if i := strings.Index(line, " #"); i >= 0 {
		return line[:i]
	}
	return line
}

// braceBlockEnd returns the line holding the brace that closes the first
// block opened at or after byte offset from. Braces inside a parameter list
// are skipped. A statement terminator before any brace ends the element on
// that line.
func (d *document) braceBlockEnd(from int) int {
	text := d.text
	depth, parens := 0, 0
	opened := false
	var quote byte
	for i := from; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '/':
			if i+1 < len(text) && text[i+1] == '/' {
				for i < len(text) && text[i] != '\n' {
					i++
				}
			} else if i+1 < len(text) && text[i+1] == '*' {
				if j := strings.Index(text[i+2:], "*/"); j >= 0 {
					i += j + 3
				}
			}
		case '(':
			parens++
		case ')':
			parens--
		case '{':
			if parens > 0 && !opened {
				continue
			}
			depth++
			opened = true
		case '}':
			if parens > 0 && !opened {
				continue
			}
			depth--
			if opened && depth == 0 {
				return d.lineAt(i)
			}
		case ';':
			if !opened && depth == 0 && parens == 0 {
				return d.lineAt(i)
			}
		}
	}
	return d.lineAt(from)
}
