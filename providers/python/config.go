package python

import (
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/providers/catalog"
)

const identifier = `[A-Za-z_][A-Za-z0-9_]*`

var defPrefix = `(?:async[ \t]+)?def[ \t]+`

// Language returns the Python catalog table.
func Language() *catalog.Language {
	return &catalog.Language{
		ID:         "python",
		Extensions: []string{".py", ".pyw", ".pyi"},
		Grammar:    GetLanguage,
		Block:      catalog.BlockIndent,
		Comment:    "#",

		Binders:          []string{"self", "cls"},
		Constructor:      "__init__",
		GetterDecorators: []string{"property", "cached_property", "functools.cached_property"},
		SetterSuffix:     ".setter",

		Nodes: catalog.NodeTypes{
			Class:    []string{"class_definition"},
			Callable: []string{"function_definition", "lambda"},
			Body:     []string{"block"},
			Wrappers: []string{"decorated_definition", "expression_statement"},
		},

		Placeholders: map[core.Kind]map[string]string{
			core.KindClass: {
				"node":       "class_definition",
				"name_node":  "identifier",
				"prefix":     "",
				"identifier": identifier,
			},
			core.KindFunction: {
				"node":       "function_definition",
				"name_node":  "identifier",
				"prefix":     defPrefix,
				"suffix":     `\(`,
				"identifier": identifier,
			},
			core.KindMethod: {
				"node":       "function_definition",
				"name_node":  "identifier",
				"prefix":     defPrefix,
				"suffix":     `\(`,
				"identifier": identifier,
			},
			core.KindDecorator: {
				"node":       "decorator",
				"identifier": identifier,
			},
			core.KindImport: {
				"nodes":  "(import_statement) (import_from_statement) (future_import_statement)",
				"prefix": `(?:from[ \t]+[\w.]+[ \t]+)?import[ \t]+`,
			},
			core.KindProperty: {
				"binder":     "self",
				"identifier": identifier,
			},
			core.KindStaticProperty: {
				"identifier": identifier,
			},
		},

		Overrides: map[core.Kind]catalog.Template{
			core.KindProperty: {
				Query: `((assignment left: (attribute object: (identifier) @binder attribute: (identifier) @name)) @element (#eq? @binder "{binder}"))`,
				Fallback: `(?m)^(?P<indent>[ \t]+){binder}\.(?P<name>{identifier})[ \t]*(?::[^=\n]+)?=[^=]`,
			},
			core.KindStaticProperty: {
				Query:    `(expression_statement (assignment left: (identifier) @name)) @element`,
				Fallback: `(?m)^(?P<indent>[ \t]+)(?P<name>{identifier})[ \t]*(?::[^=\n]+)?=[^=]`,
			},
		},

		Custom: []core.Kind{core.KindImport},
		Sniff:  regexp.MustCompile(`(?m)^[ \t]*(?:def|class)[ \t]+\w+[^\n{]*:[ \t]*$`),
		Reserved: []string{
			"if", "elif", "else", "for", "while", "return", "import", "from", "with",
			"try", "except", "finally", "lambda", "pass", "raise", "yield",
		},
	}
}

// GetLanguage returns tree-sitter language for Python
func GetLanguage() *sitter.Language {
	return python.GetLanguage()
}
