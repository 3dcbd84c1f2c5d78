package typescript

import (
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/providers/catalog"
)

const identifier = `[A-Za-z_$][A-Za-z0-9_$]*`

const (
	exportPrefix   = `(?:export[ \t]+)?(?:default[ \t]+)?(?:declare[ \t]+)?`
	modifierPrefix = `(?:(?:public|private|protected|static|readonly|async|abstract|override|get|set)[ \t]+)*`
	fieldModifiers = `(?:(?:public|private|protected|readonly|declare|override)[ \t]+)*`
)

// Reserved keywords shared with the JavaScript table.
var Reserved = []string{
	"if", "else", "for", "while", "do", "switch", "case", "catch", "try", "finally",
	"return", "throw", "new", "delete", "typeof", "await", "yield", "function", "super", "this",
}

// Language returns the TypeScript catalog table.
func Language() *catalog.Language {
	return &catalog.Language{
		ID:         "typescript",
		Extensions: []string{".ts", ".tsx", ".mts", ".cts"},
		Grammar:    GetLanguage,
		Block:      catalog.BlockBraces,
		Comment:    "//",

		Constructor:      "constructor",
		GetterDecorators: nil,
		AccessorKeywords: true,
		StaticKeyword:    "static",

		Nodes: catalog.NodeTypes{
			Class:    []string{"class_declaration", "abstract_class_declaration", "class", "interface_declaration"},
			Callable: []string{"function_declaration", "generator_function_declaration", "method_definition", "arrow_function", "function_expression", "function"},
			Body:     []string{"class_body", "statement_block", "interface_body", "object_type"},
			Wrappers: []string{"export_statement", "lexical_declaration", "variable_declarator", "expression_statement", "ambient_declaration"},
		},

		Placeholders: map[core.Kind]map[string]string{
			core.KindClass: {
				"prefix":     exportPrefix + `(?:abstract[ \t]+)?`,
				"identifier": identifier,
			},
			core.KindFunction: {
				"prefix":     exportPrefix + `(?:async[ \t]+)?function[ \t]*\*?[ \t]*`,
				"suffix":     `(?:<[^>\n]*>)?\(`,
				"identifier": identifier,
			},
			core.KindMethod: {
				"node":       "method_definition",
				"name_node":  "property_identifier",
				"prefix":     modifierPrefix,
				"suffix":     `(?:<[^>\n]*>)?\([^)\n]*\)[^{;\n]*\{`,
				"identifier": identifier,
			},
			core.KindInterface: {
				"node":       "interface_declaration",
				"name_node":  "type_identifier",
				"prefix":     exportPrefix,
				"identifier": identifier,
			},
			core.KindTypeAlias: {
				"node":       "type_alias_declaration",
				"name_node":  "type_identifier",
				"prefix":     exportPrefix,
				"identifier": identifier,
			},
			core.KindEnum: {
				"node":       "enum_declaration",
				"name_node":  "identifier",
				"prefix":     exportPrefix + `(?:const[ \t]+)?`,
				"identifier": identifier,
			},
			core.KindNamespace: {
				"node":       "internal_module",
				"name_node":  "identifier",
				"prefix":     exportPrefix,
				"identifier": identifier,
			},
			core.KindDecorator: {
				"node":       "decorator",
				"identifier": identifier,
			},
			core.KindImport: {
				"nodes":  "(import_statement)",
				"prefix": `import[ \t]+`,
			},
			core.KindProperty: {
				"modifiers":  fieldModifiers,
				"identifier": identifier,
			},
			core.KindStaticProperty: {
				"modifiers":  fieldModifiers,
				"identifier": identifier,
			},
		},

		Overrides: map[core.Kind]catalog.Template{
			core.KindClass: {
				Query:    `[(class_declaration name: (type_identifier) @name) (abstract_class_declaration name: (type_identifier) @name)] @element`,
				Fallback: `(?m)^(?P<indent>[ \t]*){prefix}class[ \t]+(?P<name>{identifier})`,
			},
			core.KindFunction: {
				Query:    `[(function_declaration name: (identifier) @name) (generator_function_declaration name: (identifier) @name) (lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function)))] @element`,
				Fallback: `(?m)^(?P<indent>[ \t]*)(?:{prefix}(?P<name>{identifier})[ \t]*{suffix}|(?:export[ \t]+)?(?:const|let)[ \t]+(?P<arrow>{identifier})[ \t]*(?::[^=\n]+)?=[ \t]*(?:async[ \t]+)?\([^)\n]*\)[^=\n]*=>)`,
			},
			core.KindProperty: {
				Query:    `[(public_field_definition name: (property_identifier) @name) (assignment_expression left: (member_expression object: (this) property: (property_identifier) @name))] @element`,
				Fallback: `(?m)^(?P<indent>[ \t]+){modifiers}(?:this\.)?(?P<name>{identifier})[ \t]*[?!]?[ \t]*(?::[^=;\n]+)?(?:=[^=>]|;)`,
			},
			core.KindStaticProperty: {
				Query:    `(public_field_definition name: (property_identifier) @name) @element`,
				Fallback: `(?m)^(?P<indent>[ \t]+){modifiers}static[ \t]+(?:readonly[ \t]+)?(?P<name>{identifier})[ \t]*[?!]?[ \t]*(?::[^=;\n]+)?(?:=[^=>]|;)`,
			},
		},

		Custom:   []core.Kind{core.KindImport},
		Sniff:    regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:interface|type|enum)[ \t]+\w+|:\s*(?:string|number|boolean|void)\b`),
		Reserved: Reserved,
	}
}

// GetLanguage returns tree-sitter language for TypeScript
func GetLanguage() *sitter.Language {
	return typescript.GetLanguage()
}
