package core

// ElementID addresses an Element inside the Tree arena that owns it.
type ElementID int

// NoElement marks the absence of a parent.
const NoElement ElementID = -1

// Payload carries kind-specific side data. Implementations are the closed
// set of *Payload types declared in this file.
type Payload interface {
	payloadKind() string
}

// ClassPayload describes classes, interfaces and enums.
type ClassPayload struct {
	Bases []string `json:"bases,omitempty"`
}

// CallablePayload describes functions, methods, getters and setters.
type CallablePayload struct {
	Async      bool     `json:"async,omitempty"`
	Static     bool     `json:"static,omitempty"`
	Decorators []string `json:"decorators,omitempty"`
}

// ParameterPayload describes one formal parameter of a callable.
type ParameterPayload struct {
	Type     string `json:"type,omitempty"`
	Default  string `json:"default,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// ReturnPayload describes the declared return type and observed return expressions.
type ReturnPayload struct {
	Type   string   `json:"type,omitempty"`
	Values []string `json:"values,omitempty"`
}

// PropertyPayload describes instance and static attributes.
type PropertyPayload struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"value,omitempty"`
}

// DecoratorPayload records which element a decorator is attached to.
type DecoratorPayload struct {
	Expression string `json:"expression"`
	TargetKind Kind   `json:"target_type"`
	TargetName string `json:"target_name"`
}

// ImportPayload keeps the individual statements merged into an import block.
type ImportPayload struct {
	Statements []string `json:"statements,omitempty"`
}

func (ClassPayload) payloadKind() string     { return "class" }
func (CallablePayload) payloadKind() string  { return "callable" }
func (ParameterPayload) payloadKind() string { return "parameter" }
func (ReturnPayload) payloadKind() string    { return "return" }
func (PropertyPayload) payloadKind() string  { return "property" }
func (DecoratorPayload) payloadKind() string { return "decorator" }
func (ImportPayload) payloadKind() string    { return "import" }

// Element is one structural unit of source code.
type Element struct {
	ID         ElementID   `json:"id"`
	Kind       Kind        `json:"kind"`
	Name       string      `json:"name"`
	Content    string      `json:"content"`
	Range      Range       `json:"range"`
	ParentName string      `json:"parent_name,omitempty"`
	Parent     ElementID   `json:"parent"`
	Children   []ElementID `json:"children,omitempty"`
	Payload    Payload     `json:"payload,omitempty"`
}

// Tree is the element arena for one source file. Roots are kept in
// declaration order; every element's Children are in declaration order too.
type Tree struct {
	Language string
	elements []Element
	roots    []ElementID
}

// NewTree creates an empty tree for the given language.
func NewTree(language string) *Tree {
	return &Tree{Language: language}
}

// Add stores el under parent (NoElement for top level) and returns its ID.
// ParentName is filled from the parent when the caller left it empty.
func (t *Tree) Add(parent ElementID, el Element) ElementID {
	id := ElementID(len(t.elements))
	el.ID = id
	el.Parent = parent
	el.Children = nil
	if parent == NoElement {
		t.roots = append(t.roots, id)
	} else {
		p := &t.elements[parent]
		p.Children = append(p.Children, id)
		if el.ParentName == "" && p.Kind.IsContainer() {
			el.ParentName = p.Name
		}
	}
	t.elements = append(t.elements, el)
	return id
}

// Get returns the element with the given ID, or nil when out of range.
func (t *Tree) Get(id ElementID) *Element {
	if id < 0 || int(id) >= len(t.elements) {
		return nil
	}
	return &t.elements[id]
}

// Len returns the number of elements in the arena.
func (t *Tree) Len() int {
	return len(t.elements)
}

// Roots returns the top-level elements.
func (t *Tree) Roots() []*Element {
	return t.resolve(t.roots)
}

// Children returns the direct children of id.
func (t *Tree) Children(id ElementID) []*Element {
	el := t.Get(id)
	if el == nil {
		return nil
	}
	return t.resolve(el.Children)
}

// ParentOf returns the structural parent of id, or nil for top-level elements.
func (t *Tree) ParentOf(id ElementID) *Element {
	el := t.Get(id)
	if el == nil {
		return nil
	}
	return t.Get(el.Parent)
}

// Walk visits every element depth-first in declaration order. Returning
// false from fn stops descent into that element's children.
func (t *Tree) Walk(fn func(el *Element) bool) {
	var visit func(ids []ElementID)
	visit = func(ids []ElementID) {
		for _, id := range ids {
			el := &t.elements[id]
			if fn(el) {
				visit(el.Children)
			}
		}
	}
	visit(t.roots)
}

// OfKind returns every element of the given kinds, depth-first.
func (t *Tree) OfKind(kinds ...Kind) []*Element {
	var out []*Element
	t.Walk(func(el *Element) bool {
		for _, k := range kinds {
			if el.Kind == k {
				out = append(out, el)
				break
			}
		}
		return true
	})
	return out
}

func (t *Tree) Classes() []*Element   { return t.OfKind(KindClass) }
func (t *Tree) Functions() []*Element { return t.OfKind(KindFunction) }
func (t *Tree) Methods() []*Element {
	return t.OfKind(KindMethod, KindPropertyGetter, KindPropertySetter)
}
func (t *Tree) Properties() []*Element {
	return t.OfKind(KindProperty, KindStaticProperty, KindPropertyGetter, KindPropertySetter)
}
func (t *Tree) Imports() []*Element { return t.OfKind(KindImport) }

// Decorators returns the decorator children attached to id.
func (t *Tree) Decorators(id ElementID) []*Element {
	var out []*Element
	for _, child := range t.Children(id) {
		if child.Kind == KindDecorator || child.Kind == KindMetaElement {
			out = append(out, child)
		}
	}
	return out
}

func (t *Tree) resolve(ids []ElementID) []*Element {
	out := make([]*Element, 0, len(ids))
	for _, id := range ids {
		out = append(out, &t.elements[id])
	}
	return out
}
