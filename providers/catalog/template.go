package catalog

import (
	"fmt"
	"regexp"

	"github.com/jacekjursza/codehem/core"
)

// Template pairs a structural query skeleton with a fallback text pattern.
// Both may reference {placeholder} tokens.
type Template struct {
	Query    string
	Fallback string
}

// Descriptor is a fully substituted, ready-to-run template for one
// (language, kind) pair.
type Descriptor struct {
	Language      string
	Kind          core.Kind
	Query         string
	Fallback      *regexp.Regexp
	CustomExtract bool
}

// HasQuery reports whether a structural query is available.
func (d *Descriptor) HasQuery() bool { return d != nil && d.Query != "" }

// HasFallback reports whether a text pattern is available.
func (d *Descriptor) HasFallback() bool { return d != nil && d.Fallback != nil }

// Skeletons shared by every language. Captures: @element spans the whole
// element, @name carries its identifier. Fallback patterns expose the
// named groups "indent" and "name".
var skeletons = map[core.Kind]Template{
	core.KindClass: {
		Query:    `({node} name: ({name_node}) @name) @element`,
		Fallback: `(?m)^(?P<indent>[ \t]*){prefix}class[ \t]+(?P<name>{identifier})`,
	},
	core.KindFunction: {
		Query:    `({node} name: ({name_node}) @name) @element`,
		Fallback: `(?m)^(?P<indent>[ \t]*){prefix}(?P<name>{identifier})[ \t]*{suffix}`,
	},
	core.KindMethod: {
		Query:    `({node} name: ({name_node}) @name) @element`,
		Fallback: `(?m)^(?P<indent>[ \t]*){prefix}(?P<name>{identifier})[ \t]*{suffix}`,
	},
	core.KindInterface: {
		Query:    `({node} name: ({name_node}) @name) @element`,
		Fallback: `(?m)^(?P<indent>[ \t]*){prefix}interface[ \t]+(?P<name>{identifier})`,
	},
	core.KindTypeAlias: {
		Query:    `({node} name: ({name_node}) @name) @element`,
		Fallback: `(?m)^(?P<indent>[ \t]*){prefix}type[ \t]+(?P<name>{identifier})[^=\n]*=`,
	},
	core.KindEnum: {
		Query:    `({node} name: ({name_node}) @name) @element`,
		Fallback: `(?m)^(?P<indent>[ \t]*){prefix}enum[ \t]+(?P<name>{identifier})`,
	},
	core.KindNamespace: {
		Query:    `({node} name: ({name_node}) @name) @element`,
		Fallback: `(?m)^(?P<indent>[ \t]*){prefix}namespace[ \t]+(?P<name>{identifier})`,
	},
	core.KindDecorator: {
		Query:    `({node}) @element`,
		Fallback: `(?m)^(?P<indent>[ \t]*)@(?P<name>{identifier}(?:\.{identifier})*)`,
	},
	core.KindImport: {
		Query:    `[{nodes}] @element`,
		Fallback: `(?m)^(?P<indent>){prefix}`,
	},
}

// Skeleton returns the shared template for kind.
func Skeleton(kind core.Kind) (Template, bool) {
	t, ok := skeletons[kind]
	return t, ok
}

var placeholderRe = regexp.MustCompile(`\{([a-z_][a-z0-9_]*)\}`)

// Placeholders lists the placeholder names referenced by tmpl in order of
// first appearance.
func Placeholders(tmpl string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Substitute replaces every {name} token in tmpl. It fails closed: the first
// placeholder absent from values is returned and no partial result is produced.
func Substitute(tmpl string, values map[string]string) (string, string, bool) {
	for _, name := range Placeholders(tmpl) {
		if _, ok := values[name]; !ok {
			return "", name, false
		}
	}
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(tok string) string {
		return values[tok[1:len(tok)-1]]
	})
	return out, "", true
}

// Format instantiates tmpl for (language, kind).
func Format(language string, kind core.Kind, tmpl Template, values map[string]string, custom bool) (*Descriptor, error) {
	if tmpl.Query == "" && tmpl.Fallback == "" {
		return nil, &core.TemplateError{Language: language, Kind: kind, Reason: "no pattern template"}
	}

	d := &Descriptor{Language: language, Kind: kind, CustomExtract: custom}
	if tmpl.Query != "" {
		q, missing, ok := Substitute(tmpl.Query, values)
		if !ok {
			return nil, &core.TemplateError{Language: language, Kind: kind, Placeholder: missing}
		}
		d.Query = q
	}
	if tmpl.Fallback != "" {
		f, missing, ok := Substitute(tmpl.Fallback, values)
		if !ok {
			return nil, &core.TemplateError{Language: language, Kind: kind, Placeholder: missing}
		}
		re, err := regexp.Compile(f)
		if err != nil {
			return nil, &core.TemplateError{
				Language: language,
				Kind:     kind,
				Reason:   fmt.Sprintf("invalid fallback pattern: %v", err),
			}
		}
		d.Fallback = re
	}
	return d, nil
}

// Descriptor instantiates the descriptor for kind in l. Language overrides
// take precedence over the shared skeleton.
func (l *Language) Descriptor(kind core.Kind) (*Descriptor, error) {
	tmpl, ok := l.Overrides[kind]
	if !ok {
		tmpl, ok = skeletons[kind]
	}
	if !ok {
		return nil, &core.TemplateError{Language: l.ID, Kind: kind, Reason: "no template for kind"}
	}
	return Format(l.ID, kind, tmpl, l.Placeholders[kind], l.IsCustom(kind))
}
