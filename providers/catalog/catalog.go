package catalog

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jacekjursza/codehem/core"
)

// BlockStyle tells the fallback extractor how an element's body is delimited.
type BlockStyle int

const (
	BlockIndent BlockStyle = iota
	BlockBraces
)

// NodeTypes lists the syntax node types that open a definition scope.
type NodeTypes struct {
	Class    []string
	Callable []string
	Body     []string
	// Wrappers are transparent nodes around a definition, such as a
	// decorated definition or an export statement.
	Wrappers []string
}

// Language is the static table describing one supported language. Adding a
// language is a new Language value handed to the registry.
type Language struct {
	ID         string
	Extensions []string
	Grammar    func() *sitter.Language
	Block      BlockStyle
	Comment    string

	// Binders are first-parameter names that make a callable a method.
	Binders     []string
	Constructor string

	// GetterDecorators name decorators that turn a callable into a getter;
	// a decorator of the form <name><SetterSuffix> marks the setter.
	GetterDecorators []string
	SetterSuffix     string
	// AccessorKeywords enables get/set keyword detection on method headers.
	AccessorKeywords bool
	// StaticKeyword marks class-level fields; empty means every assignment
	// in a class body is static.
	StaticKeyword string
	// Reserved words are never accepted as element names by fallback patterns.
	Reserved []string

	Nodes        NodeTypes
	Placeholders map[core.Kind]map[string]string
	Overrides    map[core.Kind]Template
	Custom       []core.Kind
	Sniff        *regexp.Regexp
}

// Kinds returns every kind that has placeholders or an override template.
func (l *Language) Kinds() []core.Kind {
	var kinds []core.Kind
	for _, k := range core.AllKinds() {
		_, hasPlaceholders := l.Placeholders[k]
		_, hasOverride := l.Overrides[k]
		if hasPlaceholders || hasOverride {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// IsCustom reports whether kind needs bespoke post-processing.
func (l *Language) IsCustom(kind core.Kind) bool {
	for _, k := range l.Custom {
		if k == kind {
			return true
		}
	}
	return false
}

// IsBinder reports whether name is a self/this-style first parameter.
func (l *Language) IsBinder(name string) bool {
	for _, b := range l.Binders {
		if b == name {
			return true
		}
	}
	return false
}

// IsClassNode reports whether a syntax node type opens a class scope.
func (l *Language) IsClassNode(nodeType string) bool {
	return contains(l.Nodes.Class, nodeType)
}

// IsCallableNode reports whether a syntax node type opens a function scope.
func (l *Language) IsCallableNode(nodeType string) bool {
	return contains(l.Nodes.Callable, nodeType)
}

// IsBodyNode reports whether a syntax node type is a definition body.
func (l *Language) IsBodyNode(nodeType string) bool {
	return contains(l.Nodes.Body, nodeType)
}

// IsWrapperNode reports whether a syntax node type transparently wraps a definition.
func (l *Language) IsWrapperNode(nodeType string) bool {
	return contains(l.Nodes.Wrappers, nodeType)
}

// IsReserved reports whether name is a keyword of the language.
func (l *Language) IsReserved(name string) bool {
	return contains(l.Reserved, name)
}

// LanguageInfo captures extension metadata about a language.
type LanguageInfo struct {
	ID         string
	Extensions []string
}

// Info returns the extension metadata of l with normalized extensions.
func (l *Language) Info() LanguageInfo {
	return LanguageInfo{ID: l.ID, Extensions: uniqueExtensions(l.Extensions)}
}

func uniqueExtensions(exts []string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0, len(exts))
	for _, ext := range exts {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
