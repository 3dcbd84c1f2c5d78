package extractor

import (
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/providers/catalog"
)

// strategy is one way of locating records. A failing strategy is treated
// as one that found nothing.
type strategy struct {
	name string
	run  func() ([]*record, error)
}

// firstNonEmpty runs strategies in order and returns the first non-empty result.
func (s *session) firstNonEmpty(kind core.Kind, strategies ...strategy) []*record {
	for i, st := range strategies {
		recs, err := attempt(st)
		if err != nil {
			s.e.logger.Debug("extractor.strategy_failed",
				"language", s.lang.ID, "kind", kind.String(), "strategy", st.name, "error", err)
			continue
		}
		if len(recs) == 0 {
			continue
		}
		if i > 0 {
			s.e.logger.Debug("extractor.fallback",
				"language", s.lang.ID, "kind", kind.String(), "strategy", st.name, "count", len(recs))
		}
		return recs
	}
	return nil
}

func attempt(st strategy) (recs []*record, err error) {
	defer func() {
		if r := recover(); r != nil {
			recs, err = nil, fmt.Errorf("%s strategy panicked: %v", st.name, r)
		}
	}()
	return st.run()
}

// scope restricts where records may be found. nodeOK filters structural
// matches, lineOK filters text matches by line and indentation.
type scope struct {
	node   *sitter.Node
	span   core.Range
	nodeOK func(n *sitter.Node) bool
	lineOK func(line int, indent string) bool
}

func (s *session) fileScope(kind core.Kind) scope {
	return scope{
		node: s.root,
		span: core.Range{Start: 1, End: len(s.doc.lines)},
		nodeOK: func(n *sitter.Node) bool {
			if kind == core.KindImport {
				return sameNode(n.Parent(), s.root)
			}
			return s.enclosing(n) == nil
		},
		lineOK: func(_ int, indent string) bool { return indent == "" },
	}
}

// collect locates every record of kind inside sc.
func (s *session) collect(kind core.Kind, sc scope) []*record {
	d, ok := s.e.entry.Descriptor(kind)
	if !ok {
		return nil
	}
	return s.firstNonEmpty(kind, s.queryStrategy(d, sc), s.textStrategy(d, sc))
}

// topLevel returns the file-scope records of kind.
func (s *session) topLevel(kind core.Kind) []*record {
	recs := s.collect(kind, s.fileScope(kind))
	switch kind {
	case core.KindImport:
		if d, ok := s.e.entry.Descriptor(kind); ok && d.CustomExtract {
			return s.mergeImports(recs)
		}
	case core.KindFunction:
		for _, r := range recs {
			if s.firstParamIsBinder(r) {
				r.kind = core.KindMethod
			}
		}
	}
	return recs
}

func (s *session) queryStrategy(d *catalog.Descriptor, sc scope) strategy {
	return strategy{name: "query", run: func() ([]*record, error) {
		if !d.HasQuery() || sc.node == nil {
			return nil, nil
		}
		matches, err := s.e.syntax.Query(d.Query, sc.node, s.src)
		if err != nil {
			return nil, err
		}
		var recs []*record
		seen := make(map[uint32]bool)
		for _, m := range matches {
			el := m.Node("element")
			if el == nil || seen[el.StartByte()] || !sc.nodeOK(el) {
				continue
			}
			if r := s.nodeRecord(d.Kind, el, m.Node("name")); r != nil {
				seen[el.StartByte()] = true
				recs = append(recs, r)
			}
		}
		return recs, nil
	}}
}

func (s *session) textStrategy(d *catalog.Descriptor, sc scope) strategy {
	return strategy{name: "pattern", run: func() ([]*record, error) {
		if !d.HasFallback() || !sc.span.Found() {
			return nil, nil
		}
		start := s.doc.offset(sc.span.Start)
		end := min(s.doc.offset(sc.span.End+1), len(s.doc.text))
		text := s.doc.text[start:end]

		re := d.Fallback
		groups := re.SubexpNames()
		var recs []*record
		seen := make(map[int]bool)
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			var indent, name string
			for i, g := range groups {
				if g == "" || m[2*i] < 0 {
					continue
				}
				v := text[m[2*i]:m[2*i+1]]
				if g == "indent" {
					indent = v
				} else if name == "" {
					name = v
				}
			}
			line := s.doc.lineAt(start + m[0])
			if seen[line] {
				continue
			}
			if d.Kind != core.KindImport && (name == "" || s.lang.IsReserved(name)) {
				continue
			}
			if !sc.lineOK(line, indent) {
				continue
			}
			seen[line] = true
			recs = append(recs, s.textRecord(d.Kind, name, line, indent))
		}
		return recs, nil
	}}
}

// nodeRecord builds a record from a structural match.
func (s *session) nodeRecord(kind core.Kind, el, nameNode *sitter.Node) *record {
	name := ""
	if nameNode != nil {
		name = s.e.syntax.NodeText(nameNode, s.src)
	}
	if kind != core.KindImport && (name == "" || s.lang.IsReserved(name)) {
		return nil
	}
	rng := s.e.syntax.NodeRange(el)
	header := rng.Start
	if nameNode != nil {
		header = int(nameNode.StartPoint().Row) + 1
	}
	r := &record{
		kind:   kind,
		name:   name,
		rng:    rng,
		header: header,
		indent: indentOf(s.doc.line(header)),
		node:   el,
		static: hasChild(el, s.lang.StaticKeyword),
		decos:  s.nodeDecorations(el),
	}
	if len(r.decos) > 0 && r.decos[0].rng.Start < r.rng.Start {
		r.rng.Start = r.decos[0].rng.Start
	}
	return r
}

// textRecord builds a record from a fallback pattern match on line.
func (s *session) textRecord(kind core.Kind, name string, line int, indent string) *record {
	r := &record{
		kind:   kind,
		name:   name,
		rng:    core.Range{Start: line, End: s.blockEnd(kind, line)},
		header: line,
		indent: indent,
		static: s.lineIsStatic(line, name),
		decos:  s.textDecorations(line, indent),
	}
	if len(r.decos) > 0 {
		r.rng.Start = r.decos[0].rng.Start
	}
	return r
}

func (s *session) blockEnd(kind core.Kind, line int) int {
	switch kind {
	case core.KindProperty, core.KindStaticProperty, core.KindImport, core.KindTypeAlias, core.KindDecorator:
		return s.doc.statementEnd(line)
	}
	if s.lang.Block == catalog.BlockIndent {
		return s.doc.indentBlockEnd(line)
	}
	return s.doc.braceBlockEnd(s.doc.offset(line))
}

// lineIsStatic reports whether the static keyword precedes name on line.
func (s *session) lineIsStatic(line int, name string) bool {
	kw := s.lang.StaticKeyword
	if kw == "" {
		return false
	}
	text := s.doc.line(line)
	if i := strings.Index(text, name); i >= 0 {
		text = text[:i]
	}
	for _, f := range strings.Fields(text) {
		if f == kw {
			return true
		}
	}
	return false
}

// enclosing returns the nearest ancestor of n that opens a class or
// callable scope, or nil when n sits at file scope.
func (s *session) enclosing(n *sitter.Node) *sitter.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		t := p.Type()
		if s.lang.IsClassNode(t) || s.lang.IsCallableNode(t) {
			return p
		}
	}
	return nil
}

// classNodeAt finds the class node whose name sits on line.
func (s *session) classNodeAt(line int) *sitter.Node {
	if s.root == nil {
		return nil
	}
	var found *sitter.Node
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if found != nil {
			return
		}
		if int(n.StartPoint().Row)+1 > line || int(n.EndPoint().Row)+1 < line {
			return
		}
		if s.lang.IsClassNode(n.Type()) {
			if name := n.ChildByFieldName("name"); name != nil && int(name.StartPoint().Row)+1 == line {
				found = n
				return
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(s.root)
	return found
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// hasChild reports whether n has a direct child token of the given type.
func hasChild(n *sitter.Node, nodeType string) bool {
	if n == nil || nodeType == "" {
		return false
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == nodeType {
			return true
		}
	}
	return false
}

// nodeDecorations collects decorators attached to el, whether held by a
// wrapper, by el itself or as preceding siblings.
func (s *session) nodeDecorations(el *sitter.Node) []decoration {
	var nodes []*sitter.Node
	collect := func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() == "decorator" {
				nodes = append(nodes, c)
			}
		}
	}
	if p := el.Parent(); p != nil && s.lang.IsWrapperNode(p.Type()) {
		collect(p)
	}
	collect(el)
	for sib := el.PrevNamedSibling(); sib != nil && sib.Type() == "decorator"; sib = sib.PrevNamedSibling() {
		nodes = append(nodes, sib)
	}
	if len(nodes) == 0 {
		return nil
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].StartByte() < nodes[j].StartByte() })
	decos := make([]decoration, 0, len(nodes))
	var last uint32
	for i, n := range nodes {
		if i > 0 && n.StartByte() == last {
			continue
		}
		last = n.StartByte()
		expr := strings.TrimSpace(s.e.syntax.NodeText(n, s.src))
		decos = append(decos, decoration{
			name: decoratorName(expr),
			expr: expr,
			rng:  s.e.syntax.NodeRange(n),
		})
	}
	return decos
}

// textDecorations collects the '@' lines directly above line at indent.
func (s *session) textDecorations(line int, indent string) []decoration {
	var decos []decoration
	for n := line - 1; n >= 1; n-- {
		l := s.doc.line(n)
		expr := strings.TrimSpace(l)
		if !strings.HasPrefix(expr, "@") || indentOf(l) != indent {
			break
		}
		decos = append([]decoration{{
			name: decoratorName(expr),
			expr: expr,
			rng:  core.Range{Start: n, End: n},
		}}, decos...)
	}
	return decos
}

func decoratorName(expr string) string {
	name := strings.TrimPrefix(expr, "@")
	if i := strings.IndexAny(name, "( \t"); i >= 0 {
		name = name[:i]
	}
	return name
}
