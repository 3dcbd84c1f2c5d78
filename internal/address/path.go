// Package address implements dotted, kind-qualified path expressions for
// addressing extracted elements:
//
//	Foo                     // top-level function Foo
//	Foo.bar                 // method bar of class Foo
//	Foo[class].bar[method]  // the same, fully qualified
//	Cls.value[property_getter]
//	[import]                // the import block
//	FILE.calculate[function]
//
// A segment is an optional name followed by an optional bracketed kind.
// The leading FILE segment is an explicit, nameless root.
package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jacekjursza/codehem/core"
)

// FileRoot is the literal text of the explicit file root segment.
const FileRoot = "FILE"

// ErrInvalidPath is returned for expressions that do not follow the grammar.
var ErrInvalidPath = errors.New("invalid path expression")

// Node is one segment of a path expression.
type Node struct {
	Name string
	Kind core.Kind
	// Inferred marks a kind that was defaulted by Parse rather than written.
	Inferred bool
}

// Valid reports whether the node carries a name, a kind or both.
func (n Node) Valid() bool {
	return n.Name != "" || n.Kind != core.KindUnknown
}

// IsFile reports whether n is the explicit file root.
func (n Node) IsFile() bool {
	return n.Kind == core.KindFile && n.Name == ""
}

// String returns the canonical text of one segment.
func (n Node) String() string {
	if n.IsFile() {
		return FileRoot
	}
	if n.Inferred || n.Kind == core.KindUnknown {
		return n.Name
	}
	return n.Name + "[" + n.Kind.String() + "]"
}

// Path is a parsed path expression.
type Path []Node

// String formats p; it is the inverse of Parse.
func (p Path) String() string {
	var b strings.Builder
	for i, n := range p {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(n.String())
	}
	return b.String()
}

// Elements returns p without the leading file root.
func (p Path) Elements() Path {
	if len(p) > 0 && p[0].IsFile() {
		return p[1:]
	}
	return p
}

// Format returns the text of nodes.
func Format(nodes []Node) string {
	return Path(nodes).String()
}

// Parse splits text on top-level dots and reads each segment. Bare names
// get a default kind from their position: a root followed by more
// segments is a Class; a final name is a Method when exactly one named
// segment precedes it and a Function otherwise.
func Parse(text string) (Path, error) {
	tokens, err := split(text)
	if err != nil {
		return nil, err
	}

	path := make(Path, 0, len(tokens))
	ancestors := 0
	for i, tok := range tokens {
		if tok == FileRoot {
			if i != 0 {
				return nil, fmt.Errorf("%w: %q: %s must be the first segment", ErrInvalidPath, text, FileRoot)
			}
			path = append(path, Node{Kind: core.KindFile})
			continue
		}

		n, err := parseSegment(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, text, err)
		}
		if n.Kind == core.KindUnknown {
			n.Inferred = true
			switch {
			case i < len(tokens)-1:
				n.Kind = core.KindClass
			case ancestors == 1:
				n.Kind = core.KindMethod
			default:
				n.Kind = core.KindFunction
			}
		}
		ancestors++
		path = append(path, n)
	}
	return path, nil
}

// MustParse is Parse for expressions known to be valid.
func MustParse(text string) Path {
	p, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return p
}

// split tokenizes text on dots outside brackets.
func split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidPath)
	}
	var tokens []string
	depth, start := 0, 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: %q: unbalanced ']' at %d", ErrInvalidPath, text, i)
			}
		case '.':
			if depth == 0 {
				tokens = append(tokens, text[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: %q: unclosed '['", ErrInvalidPath, text)
	}
	tokens = append(tokens, text[start:])
	for i, tok := range tokens {
		if tok == "" {
			return nil, fmt.Errorf("%w: %q: empty segment %d", ErrInvalidPath, text, i+1)
		}
	}
	return tokens, nil
}

func parseSegment(tok string) (Node, error) {
	var n Node
	name := tok
	if open := strings.IndexByte(tok, '['); open >= 0 {
		if !strings.HasSuffix(tok, "]") {
			return n, fmt.Errorf("segment %q: text after kind qualifier", tok)
		}
		name = tok[:open]
		qualifier := tok[open+1 : len(tok)-1]
		kind, ok := core.ParseKind(qualifier)
		if !ok || kind == core.KindUnknown {
			return n, fmt.Errorf("segment %q: unknown kind %q", tok, qualifier)
		}
		n.Kind = kind
	}
	for _, r := range name {
		if !isNameRune(r) {
			return n, fmt.Errorf("segment %q: invalid character %q", tok, r)
		}
	}
	n.Name = name
	if !n.Valid() {
		return n, fmt.Errorf("segment %q: needs a name or a kind", tok)
	}
	return n, nil
}

func isNameRune(r rune) bool {
	return r == '_' || r == '$' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r > 0x7f
}
