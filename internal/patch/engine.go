// Package patch rewrites addressed elements under optimistic concurrency
// control. Every edit is gated by a SHA-256 fingerprint of the element's
// current text.
package patch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/internal/address"
	"github.com/jacekjursza/codehem/internal/extractor"
	"github.com/jacekjursza/codehem/providers/catalog"
)

// Mode selects how new text is spliced into the addressed element.
type Mode int

const (
	// Replace substitutes the element's lines.
	Replace Mode = iota
	// Append adds lines at the end of the element's body.
	Append
)

func (m Mode) String() string {
	if m == Append {
		return "append"
	}
	return "replace"
}

// ParseMode parses "replace" or "append".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "replace":
		return Replace, nil
	case "append":
		return Append, nil
	}
	return Replace, fmt.Errorf("unknown patch mode %q", s)
}

// Result is the outcome of a successful Apply.
type Result struct {
	Status       string     `json:"status"`
	Code         string     `json:"code"`
	LinesAdded   int        `json:"lines_added"`
	LinesRemoved int        `json:"lines_removed"`
	Range        core.Range `json:"range"`
	Before       string     `json:"before_fingerprint"`
	After        string     `json:"after_fingerprint"`
	Diff         string     `json:"diff,omitempty"`
}

// Engine applies guarded patches for one language.
type Engine struct {
	lang    *catalog.Language
	locator *address.Locator
	logger  *slog.Logger
	unit    string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithIndentUnit sets the indentation added for a body that has no lines yet.
func WithIndentUnit(unit string) Option {
	return func(e *Engine) { e.unit = unit }
}

// New creates an engine that addresses elements with ex.
func New(ex *extractor.Extractor, opts ...Option) *Engine {
	e := &Engine{
		lang:    ex.Catalog(),
		locator: address.NewLocator(ex),
		logger:  slog.Default(),
		unit:    "    ",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fingerprint hashes text with SHA-256 and returns lowercase hex.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns the fingerprint of the element path addresses in source.
func (e *Engine) Fingerprint(source, path string) (string, error) {
	lines := splitLines(source)
	rng, err := e.target(source, lines, path)
	if err != nil {
		return "", err
	}
	return Fingerprint(span(lines, rng)), nil
}

// Apply splices newText into the element path addresses. When expected is
// non-empty it must equal the element's current fingerprint; otherwise a
// *core.ConflictError is returned and nothing is changed. The only errors
// are *core.NotFoundError and *core.ConflictError.
func (e *Engine) Apply(source, path, newText string, mode Mode, expected string) (*Result, error) {
	lines := splitLines(source)
	rng, err := e.target(source, lines, path)
	if err != nil {
		return nil, err
	}

	before := span(lines, rng)
	actual := Fingerprint(before)
	if expected != "" && expected != actual {
		e.logger.Debug("patch.conflict", "path", path, "expected", expected, "actual", actual)
		return nil, &core.ConflictError{Path: path, Expected: expected, Actual: actual}
	}

	var (
		out     []string
		updated core.Range
	)
	switch mode {
	case Append:
		out, updated = e.appendLines(lines, rng, newText, isFileRoot(path))
	default:
		insert := reindent(newText, indentOf(lines[rng.Start-1]))
		out = splice(lines, rng.Start-1, rng.End, insert)
		updated = core.Range{Start: rng.Start, End: rng.Start + max(len(insert), 1) - 1}
	}

	after := span(out, updated)
	added, removed := lineDelta(strings.Split(before, "\n"), strings.Split(after, "\n"))
	code := strings.Join(out, "\n")
	return &Result{
		Status:       "ok",
		Code:         code,
		LinesAdded:   added,
		LinesRemoved: removed,
		Range:        updated,
		Before:       actual,
		After:        Fingerprint(after),
		Diff:         unifiedDiff(source, code),
	}, nil
}

// target resolves path to a line range. The bare FILE root spans the whole
// file without its trailing newline.
func (e *Engine) target(source string, lines []string, path string) (core.Range, error) {
	p, err := address.Parse(path)
	if err != nil {
		return core.NotFound, &core.NotFoundError{Path: path}
	}
	if len(p.Elements()) == 0 {
		return core.Range{Start: 1, End: max(contentLines(lines), 1)}, nil
	}
	rng := e.locator.LocatePath(p, source)
	if !rng.Found() || rng.End > len(lines) {
		return core.NotFound, &core.NotFoundError{Path: path}
	}
	return rng, nil
}

// appendLines inserts text as the last lines of the element body. For
// braced blocks the text goes before the closing brace, which is first moved
// to its own line when it shares one with the body. An indented one-line
// body is moved below its header first.
func (e *Engine) appendLines(lines []string, rng core.Range, text string, fileRoot bool) ([]string, core.Range) {
	if fileRoot {
		end := contentLines(lines)
		insert := reindent(text, "")
		return splice(lines, end, end, insert), core.Range{Start: 1, End: end + len(insert)}
	}

	header := indentOf(lines[rng.Start-1])
	last := lines[rng.End-1]
	switch e.lang.Block {
	case catalog.BlockBraces:
		trimmed := strings.TrimSpace(last)
		if rng.End == rng.Start || !strings.HasPrefix(trimmed, "}") {
			if i := strings.LastIndex(last, "}"); i >= 0 {
				head := strings.TrimRight(last[:i], " \t")
				lines = splice(lines, rng.End-1, rng.End, []string{head, header + last[i:]})
				rng.End++
			}
		}
		if strings.HasPrefix(strings.TrimSpace(lines[rng.End-1]), "}") && rng.End > rng.Start {
			return e.insertBody(lines, rng, rng.End-1, header, text)
		}
	default:
		if bodyIndent(lines, rng.Start, rng.End, header) == "" {
			if i := inlineBodyColon(last); i >= 0 {
				lineHeader := indentOf(last)
				body := strings.TrimSpace(last[i+1:])
				lines = splice(lines, rng.End-1, rng.End, []string{last[:i+1], lineHeader + e.unit + body})
				rng.End++
			}
		}
	}
	return e.insertBody(lines, rng, rng.End, header, text)
}

// insertBody places text after line at, indented like the body lines of rng.
func (e *Engine) insertBody(lines []string, rng core.Range, at int, header, text string) ([]string, core.Range) {
	body := bodyIndent(lines, rng.Start, at, header)
	if body == "" {
		body = header + e.unit
	}
	insert := reindent(text, body)
	return splice(lines, at, at, insert), core.Range{Start: rng.Start, End: rng.End + len(insert)}
}

// inlineBodyColon returns the index of the colon that ends a block header
// followed by a statement on the same line, as in "def f(): return 1", or
// -1. Colons inside brackets or string literals are ignored.
func inlineBodyColon(line string) int {
	depth := 0
	var quote rune
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '#':
			return -1
		case strings.ContainsRune("([{", r):
			depth++
		case strings.ContainsRune(")]}", r):
			depth--
		case r == ':' && depth == 0:
			rest := strings.TrimSpace(line[i+1:])
			if rest == "" || strings.HasPrefix(rest, "#") {
				return -1
			}
			return i
		}
	}
	return -1
}

func isFileRoot(path string) bool {
	p, err := address.Parse(path)
	return err == nil && len(p.Elements()) == 0
}

// splitLines splits source on newlines; a trailing newline yields a final
// empty element that keeps the newline when lines are joined again.
func splitLines(source string) []string {
	return strings.Split(source, "\n")
}

// contentLines is the number of lines excluding the empty tail produced
// by a trailing newline.
func contentLines(lines []string) int {
	n := len(lines)
	if n > 0 && lines[n-1] == "" {
		n--
	}
	return n
}

func span(lines []string, r core.Range) string {
	if !r.Found() || r.Start > len(lines) {
		return ""
	}
	return strings.Join(lines[r.Start-1:min(r.End, len(lines))], "\n")
}

// splice returns lines with lines[from:to] replaced by insert.
func splice(lines []string, from, to int, insert []string) []string {
	out := make([]string, 0, len(lines)-(to-from)+len(insert))
	out = append(out, lines[:from]...)
	out = append(out, insert...)
	return append(out, lines[to:]...)
}

func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// bodyIndent returns the indentation of the first non-blank line in
// (start, end] that is deeper than header.
func bodyIndent(lines []string, start, end int, header string) string {
	for n := start + 1; n <= end && n <= len(lines); n++ {
		l := lines[n-1]
		if strings.TrimSpace(l) == "" {
			continue
		}
		if ind := indentOf(l); len(ind) > len(header) {
			return ind
		}
	}
	return ""
}

// reindent strips the common indentation of text and prefixes every
// non-blank line with indent. Trailing newlines are dropped so the result
// ends with exactly one line break once spliced.
func reindent(text, indent string) []string {
	text = strings.TrimRight(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := strings.Split(text, "\n")

	common := ""
	first := true
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		ind := indentOf(l)
		if first || len(ind) < len(common) {
			common = ind
			first = false
		}
	}

	out := make([]string, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out[i] = indent + strings.TrimPrefix(l, common)
	}
	return out
}

// lineDelta counts inserted and deleted lines between two spans using the
// opcodes of a line-level sequence match.
func lineDelta(before, after []string) (added, removed int) {
	m := difflib.NewMatcher(before, after)
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'r':
			removed += op.I2 - op.I1
			added += op.J2 - op.J1
		case 'd':
			removed += op.I2 - op.I1
		case 'i':
			added += op.J2 - op.J1
		}
	}
	return added, removed
}

func unifiedDiff(original, modified string) string {
	if original == modified {
		return ""
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(modified),
		FromFile: "original",
		ToFile:   "modified",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}
