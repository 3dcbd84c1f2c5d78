package javascript

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/providers/catalog"
	"github.com/jacekjursza/codehem/providers/typescript"
)

// Language returns the JavaScript catalog table. It reuses the TypeScript
// placeholders where the two grammars agree and drops the type-only kinds.
func Language() *catalog.Language {
	lang := typescript.Language()
	lang.ID = "javascript"
	lang.Extensions = []string{".js", ".jsx", ".mjs", ".cjs"}
	lang.Grammar = GetLanguage
	lang.Sniff = nil
	lang.Reserved = typescript.Reserved

	for _, k := range []core.Kind{core.KindInterface, core.KindTypeAlias, core.KindEnum, core.KindNamespace} {
		delete(lang.Placeholders, k)
	}

	lang.Overrides[core.KindClass] = catalog.Template{
		Query:    `(class_declaration name: (identifier) @name) @element`,
		Fallback: `(?m)^(?P<indent>[ \t]*){prefix}class[ \t]+(?P<name>{identifier})`,
	}
	lang.Overrides[core.KindProperty] = catalog.Template{
		Query:    `[(field_definition property: (property_identifier) @name) (assignment_expression left: (member_expression object: (this) property: (property_identifier) @name))] @element`,
		Fallback: lang.Overrides[core.KindProperty].Fallback,
	}
	lang.Overrides[core.KindStaticProperty] = catalog.Template{
		Query:    `(field_definition property: (property_identifier) @name) @element`,
		Fallback: lang.Overrides[core.KindStaticProperty].Fallback,
	}
	lang.Placeholders[core.KindClass]["prefix"] = `(?:export[ \t]+)?(?:default[ \t]+)?`
	lang.Placeholders[core.KindProperty]["modifiers"] = ``
	lang.Placeholders[core.KindStaticProperty]["modifiers"] = ``
	return lang
}

// GetLanguage returns tree-sitter language for JavaScript
func GetLanguage() *sitter.Language {
	return javascript.GetLanguage()
}
