package extractor

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jacekjursza/codehem/core"
)

// members locates the direct members of a class record in declaration order.
func (s *session) members(owner *record) []*record {
	node := owner.node
	if node == nil {
		node = s.classNodeAt(owner.header)
	}
	body := core.Range{Start: owner.header, End: owner.rng.End}
	bodyIndent := s.doc.bodyIndent(body, owner.indent)
	inBody := func(line int) bool { return line > owner.header && line <= owner.rng.End }

	methods := s.collect(core.KindMethod, scope{
		node:   node,
		span:   body,
		nodeOK: func(n *sitter.Node) bool { return sameNode(s.enclosing(n), node) },
		lineOK: func(line int, indent string) bool {
			return bodyIndent != "" && indent == bodyIndent && inBody(line)
		},
	})
	var ctor *record
	for _, m := range methods {
		m.kind = s.memberKind(m)
		if ctor == nil && m.name == s.lang.Constructor {
			ctor = m
		}
	}
	insideMethod := func(line int) bool {
		for _, m := range methods {
			if line >= m.rng.Start && line <= m.rng.End {
				return true
			}
		}
		return false
	}
	inCtor := func(line int, indent string) bool {
		return ctor != nil && line > ctor.header && line <= ctor.rng.End && len(indent) > len(ctor.indent)
	}
	classLevelFields := s.lang.StaticKeyword != ""

	props := s.collect(core.KindProperty, scope{
		node: node,
		span: body,
		nodeOK: func(n *sitter.Node) bool {
			enc := s.enclosing(n)
			if ctor != nil && sameNode(enc, ctor.node) {
				return true
			}
			return classLevelFields && sameNode(enc, node) && !hasChild(n, s.lang.StaticKeyword)
		},
		lineOK: func(line int, indent string) bool {
			if !inBody(line) {
				return false
			}
			if inCtor(line, indent) {
				return isQualifiedAssignment(s.doc.line(line))
			}
			return classLevelFields && indent == bodyIndent && !insideMethod(line)
		},
	})

	statics := s.collect(core.KindStaticProperty, scope{
		node: node,
		span: body,
		nodeOK: func(n *sitter.Node) bool {
			if !sameNode(s.enclosing(n), node) {
				return false
			}
			return !classLevelFields || hasChild(n, s.lang.StaticKeyword)
		},
		lineOK: func(line int, indent string) bool {
			return inBody(line) && indent == bodyIndent && !insideMethod(line)
		},
	})
	for _, st := range statics {
		st.static = true
	}

	all := append(methods, dedupeByName(props)...)
	all = append(all, dedupeByName(statics)...)
	sortRecords(all)
	return all
}

// isQualifiedAssignment reports whether the assignment target on line is
// an attribute such as self.x or this.x.
func isQualifiedAssignment(line string) bool {
	target, _, ok := strings.Cut(strings.TrimSpace(line), "=")
	return ok && strings.Contains(target, ".")
}

func dedupeByName(recs []*record) []*record {
	seen := make(map[string]bool, len(recs))
	out := recs[:0]
	for _, r := range recs {
		if seen[r.name] {
			continue
		}
		seen[r.name] = true
		out = append(out, r)
	}
	return out
}

// memberKind refines a class callable into a getter, setter or method.
func (s *session) memberKind(m *record) core.Kind {
	for _, d := range m.decos {
		for _, g := range s.lang.GetterDecorators {
			if d.name == g {
				return core.KindPropertyGetter
			}
		}
		if s.lang.SetterSuffix != "" && d.name == m.name+s.lang.SetterSuffix {
			return core.KindPropertySetter
		}
	}
	if s.lang.AccessorKeywords {
		switch {
		case hasChild(m.node, "get"):
			return core.KindPropertyGetter
		case hasChild(m.node, "set"):
			return core.KindPropertySetter
		}
		if m.node == nil {
			switch accessorKeyword(s.doc.line(m.header), m.name) {
			case "get":
				return core.KindPropertyGetter
			case "set":
				return core.KindPropertySetter
			}
		}
	}
	return core.KindMethod
}

// accessorKeyword returns the word directly before name on a method header.
func accessorKeyword(header, name string) string {
	i := strings.Index(header, name)
	if i < 0 {
		return ""
	}
	fields := strings.Fields(header[:i])
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

var firstParamRe = regexp.MustCompile(`^[ \t]*\(\s*([A-Za-z_$][\w$]*)`)

// firstParamIsBinder reports whether a callable's first parameter is a
// self/cls-style binder.
func (s *session) firstParamIsBinder(r *record) bool {
	if len(s.lang.Binders) == 0 {
		return false
	}
	if fn := s.callableNode(r.node); fn != nil {
		params := fn.ChildByFieldName("parameters")
		if params == nil || params.NamedChildCount() == 0 {
			return false
		}
		return s.lang.IsBinder(s.paramName(params.NamedChild(0)))
	}
	header := s.doc.line(r.header)
	i := strings.Index(header, r.name)
	if i < 0 {
		return false
	}
	m := firstParamRe.FindStringSubmatch(header[i+len(r.name):])
	return m != nil && s.lang.IsBinder(m[1])
}
