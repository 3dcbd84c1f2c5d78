package address

import (
	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/internal/extractor"
)

// Resolve walks p through tree and returns the addressed element, or nil.
// The first segment matches a top-level element; each further segment
// matches a child of the previous match. A single segment that matches no
// top-level element is looked up among class members.
//
// Import statements separated only by blank lines or comments form one
// nameless import block. Imports split by other code form separate blocks,
// and [import] addresses the first of them. The later blocks are only
// reachable through the tree's roots.
func Resolve(p Path, tree *core.Tree) *core.Element {
	nodes := p.Elements()
	if len(nodes) == 0 || tree == nil {
		return nil
	}

	cur := pick(tree.Roots(), nodes[0])
	if cur == nil && len(nodes) == 1 {
		return findMember(tree, nodes[0])
	}
	for _, n := range nodes[1:] {
		if cur == nil {
			return nil
		}
		cur = pick(tree.Children(cur.ID), n)
	}
	return cur
}

// findMember searches the members of every top-level container in order.
func findMember(tree *core.Tree, n Node) *core.Element {
	for _, root := range tree.Roots() {
		if !root.Kind.IsContainer() {
			continue
		}
		if el := pick(tree.Children(root.ID), n); el != nil {
			return el
		}
	}
	return nil
}

// pick selects the candidate that n addresses. An explicit kind must match
// exactly. An inferred kind prefers an exact match, then a setter, then a
// getter, then the first element with the name. Ties go to the element
// declared first.
func pick(candidates []*core.Element, n Node) *core.Element {
	var named []*core.Element
	for _, c := range candidates {
		if n.Name == "" || c.Name == n.Name {
			named = append(named, c)
		}
	}
	if len(named) == 0 {
		return nil
	}
	if !n.Inferred && n.Kind != core.KindUnknown {
		return firstOfKind(named, n.Kind)
	}
	for _, k := range []core.Kind{n.Kind, core.KindPropertySetter, core.KindPropertyGetter} {
		if el := firstOfKind(named, k); el != nil {
			return el
		}
	}
	return named[0]
}

func firstOfKind(elements []*core.Element, kind core.Kind) *core.Element {
	for _, el := range elements {
		if el.Kind == kind {
			return el
		}
	}
	return nil
}

// Canonical returns the fully qualified path of element id in tree,
// rooted at FILE, with every kind written out.
func Canonical(tree *core.Tree, id core.ElementID) string {
	var chain []Node
	for el := tree.Get(id); el != nil; el = tree.ParentOf(el.ID) {
		chain = append(chain, Node{Name: el.Name, Kind: el.Kind})
	}
	p := make(Path, 0, len(chain)+1)
	p = append(p, Node{Kind: core.KindFile})
	for i := len(chain) - 1; i >= 0; i-- {
		p = append(p, chain[i])
	}
	return p.String()
}

// Locator resolves path expressions directly against source text,
// extracting only the scope a path needs.
type Locator struct {
	ex *extractor.Extractor
}

// NewLocator creates a Locator backed by ex.
func NewLocator(ex *extractor.Extractor) *Locator {
	return &Locator{ex: ex}
}

// Locate returns the line range addressed by expr, or core.NotFound when
// expr is malformed or any segment fails to match.
func (l *Locator) Locate(expr, source string) core.Range {
	p, err := Parse(expr)
	if err != nil {
		return core.NotFound
	}
	return l.LocatePath(p, source)
}

// LocatePath is Locate for an already parsed path.
func (l *Locator) LocatePath(p Path, source string) core.Range {
	if el := l.Find(p, source); el != nil {
		return el.Range
	}
	return core.NotFound
}

// Find returns the element addressed by p in source, or nil.
func (l *Locator) Find(p Path, source string) *core.Element {
	nodes := p.Elements()
	if len(nodes) == 0 {
		return nil
	}
	return Resolve(nodes, l.scope(nodes, source))
}

// scope extracts the smallest tree that can answer nodes. An inferred root
// kind may be wrong, so it falls back to a full extraction.
func (l *Locator) scope(nodes Path, source string) *core.Tree {
	root := nodes[0]
	switch {
	case root.Inferred || root.Kind == core.KindUnknown:
		return l.ex.Extract(source)
	case len(nodes) == 1 && root.Kind.IsMember():
		return l.ex.ExtractKind(source, core.KindClass)
	case len(nodes) == 1:
		return l.ex.ExtractKind(source, root.Kind)
	case root.Name == "":
		return l.ex.ExtractKind(source, root.Kind)
	default:
		return l.ex.ExtractMembers(source, root.Kind, root.Name)
	}
}
