package extractor

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/providers/catalog"
)

// callableNode returns the node that owns the parameter list of a callable
// element, looking through declarations that bind an arrow function.
func (s *session) callableNode(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	if n.ChildByFieldName("parameters") != nil || n.ChildByFieldName("parameter") != nil {
		return n
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "variable_declarator" {
			continue
		}
		if v := c.ChildByFieldName("value"); v != nil && s.lang.IsCallableNode(v.Type()) {
			return v
		}
	}
	return nil
}

func (s *session) callablePayload(r *record) core.CallablePayload {
	p := core.CallablePayload{Static: r.static}
	for _, d := range r.decos {
		p.Decorators = append(p.Decorators, d.name)
	}
	if fn := s.callableNode(r.node); fn != nil {
		p.Async = hasChild(fn, "async") || hasChild(r.node, "async")
	} else {
		header := s.doc.line(r.header)
		if i := strings.Index(header, r.name); i >= 0 {
			for _, f := range strings.Fields(header[:i]) {
				if f == "async" {
					p.Async = true
				}
			}
		}
	}
	return p
}

// emitSignature adds parameter and return-value children for a callable.
func (s *session) emitSignature(tree *core.Tree, id core.ElementID, r *record) {
	fn := s.callableNode(r.node)
	if fn == nil {
		return
	}

	var params []*sitter.Node
	if list := fn.ChildByFieldName("parameters"); list != nil {
		for i := 0; i < int(list.NamedChildCount()); i++ {
			if p := list.NamedChild(i); p.Type() != "comment" {
				params = append(params, p)
			}
		}
	} else if p := fn.ChildByFieldName("parameter"); p != nil {
		params = append(params, p)
	}
	for i, p := range params {
		name := s.paramName(p)
		if i == 0 && (s.lang.IsBinder(name) || name == "this") {
			continue
		}
		tree.Add(id, core.Element{
			Kind:    core.KindParameter,
			Name:    name,
			Range:   s.e.syntax.NodeRange(p),
			Content: s.e.syntax.NodeText(p, s.src),
			Payload: s.paramPayload(p),
		})
	}

	ret, first := s.returnPayload(fn)
	// Unannotated callables anchor the element on their first return.
	anchor := fn.ChildByFieldName("return_type")
	if anchor == nil {
		anchor = first
	}
	if anchor == nil {
		return
	}
	tree.Add(id, core.Element{
		Kind:    core.KindReturnValue,
		Range:   s.e.syntax.NodeRange(anchor),
		Content: s.e.syntax.NodeText(anchor, s.src),
		Payload: ret,
	})
}

func (s *session) paramName(p *sitter.Node) string {
	for _, field := range []string{"name", "pattern", "left"} {
		if c := p.ChildByFieldName(field); c != nil {
			return s.e.syntax.NodeText(c, s.src)
		}
	}
	if p.Type() == "identifier" {
		return s.e.syntax.NodeText(p, s.src)
	}
	for i := 0; i < int(p.NamedChildCount()); i++ {
		if c := p.NamedChild(i); c.Type() == "identifier" {
			return s.e.syntax.NodeText(c, s.src)
		}
	}
	return strings.TrimSpace(s.e.syntax.NodeText(p, s.src))
}

func (s *session) paramPayload(p *sitter.Node) core.ParameterPayload {
	payload := core.ParameterPayload{
		Type:    typeText(s.fieldText(p, "type")),
		Default: s.fieldText(p, "value"),
	}
	if payload.Default == "" {
		payload.Default = s.fieldText(p, "right")
	}
	payload.Optional = p.Type() == "optional_parameter" || payload.Default != ""
	return payload
}

// returnPayload reads the declared return type and the expressions of the
// return statements that belong to fn itself. It also returns the first
// node yielding a value: a return statement or an expression body.
func (s *session) returnPayload(fn *sitter.Node) (core.ReturnPayload, *sitter.Node) {
	ret := core.ReturnPayload{Type: typeText(s.fieldText(fn, "return_type"))}
	body := fn.ChildByFieldName("body")
	if body == nil {
		return ret, nil
	}
	if !s.lang.IsBodyNode(body.Type()) {
		ret.Values = append(ret.Values, s.e.syntax.NodeText(body, s.src))
		return ret, body
	}

	var first *sitter.Node

	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			t := c.Type()
			if s.lang.IsCallableNode(t) || s.lang.IsClassNode(t) {
				continue
			}
			if t == "return_statement" {
				v := strings.TrimSpace(strings.TrimPrefix(s.e.syntax.NodeText(c, s.src), "return"))
				if v = strings.TrimSuffix(v, ";"); v != "" {
					ret.Values = append(ret.Values, v)
					if first == nil {
						first = c
					}
				}
				continue
			}
			visit(c)
		}
	}
	visit(body)
	return ret, first
}

func (s *session) fieldText(n *sitter.Node, field string) string {
	if n == nil {
		return ""
	}
	c := n.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(s.e.syntax.NodeText(c, s.src))
}

// typeText strips annotation punctuation from a type node's text.
func typeText(t string) string {
	t = strings.TrimSpace(t)
	t = strings.TrimPrefix(t, "->")
	t = strings.TrimPrefix(t, ":")
	return strings.TrimSpace(t)
}

var assignRe = regexp.MustCompile(`^[^=:]*?(?::([^=]+))?=(.*)$`)

func (s *session) propertyPayload(r *record) core.PropertyPayload {
	if n := r.node; n != nil {
		if n.Type() == "expression_statement" && n.NamedChildCount() > 0 {
			n = n.NamedChild(0)
		}
		p := core.PropertyPayload{
			Type:  typeText(s.fieldText(n, "type")),
			Value: s.fieldText(n, "value"),
		}
		if p.Value == "" {
			p.Value = s.fieldText(n, "right")
		}
		return p
	}
	m := assignRe.FindStringSubmatch(strings.TrimSpace(s.doc.line(r.header)))
	if m == nil {
		return core.PropertyPayload{}
	}
	return core.PropertyPayload{
		Type:  strings.TrimSpace(m[1]),
		Value: strings.TrimSuffix(strings.TrimSpace(m[2]), ";"),
	}
}

var extendsRe = regexp.MustCompile(`\b(?:extends|implements)\s+([^{]+)`)

// bases lists the superclasses or implemented types of a container.
func (s *session) bases(r *record) []string {
	if n := r.node; n != nil {
		if sup := n.ChildByFieldName("superclasses"); sup != nil {
			return s.namedTexts(sup)
		}
		var out []string
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() != "class_heritage" {
				continue
			}
			for j := 0; j < int(c.NamedChildCount()); j++ {
				clause := c.NamedChild(j)
				if strings.HasSuffix(clause.Type(), "_clause") {
					out = append(out, s.namedTexts(clause)...)
				} else {
					out = append(out, s.e.syntax.NodeText(clause, s.src))
				}
			}
		}
		return out
	}

	header := s.doc.line(r.header)
	if s.lang.Block == catalog.BlockIndent {
		open := strings.Index(header, "(")
		end := strings.LastIndex(header, ")")
		if open < 0 || end < open {
			return nil
		}
		return splitList(header[open+1 : end])
	}
	var out []string
	for _, m := range extendsRe.FindAllStringSubmatch(header, -1) {
		out = append(out, splitList(strings.NewReplacer("implements", ",").Replace(m[1]))...)
	}
	return out
}

func (s *session) namedTexts(n *sitter.Node) []string {
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		out = append(out, s.e.syntax.NodeText(c, s.src))
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
