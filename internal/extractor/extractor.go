// Package extractor turns source text into a core.Tree of structural
// elements. Every kind is located by a structural query first and by the
// language's fallback text pattern when the query yields nothing.
package extractor

import (
	"context"
	"log/slog"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/providers"
	"github.com/jacekjursza/codehem/providers/catalog"
)

// topLevelKinds are extracted at file scope, in this order of precedence
// when two kinds claim the same line.
var topLevelKinds = []core.Kind{
	core.KindImport,
	core.KindClass,
	core.KindInterface,
	core.KindEnum,
	core.KindTypeAlias,
	core.KindNamespace,
	core.KindFunction,
}

// Extractor extracts elements for one language. It is safe for concurrent
// use; every call parses its own syntax tree.
type Extractor struct {
	entry  *providers.Entry
	lang   *catalog.Language
	syntax providers.SyntaxProvider
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for fallback and strategy diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an extractor for language using the entries of registry.
func New(registry *providers.Registry, language string, opts ...Option) (*Extractor, error) {
	entry, err := registry.Get(language)
	if err != nil {
		return nil, err
	}
	return NewForEntry(entry, opts...), nil
}

// NewForEntry creates an extractor for an already resolved registry entry.
func NewForEntry(entry *providers.Entry, opts ...Option) *Extractor {
	e := &Extractor{
		entry:  entry,
		lang:   entry.Language,
		syntax: entry.Syntax,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Language returns the language ID this extractor handles.
func (e *Extractor) Language() string {
	return e.lang.ID
}

// Catalog returns the language table driving this extractor.
func (e *Extractor) Catalog() *catalog.Language {
	return e.lang
}

// Extract returns every top-level element of source with members nested
// under their classes.
func (e *Extractor) Extract(source string) *core.Tree {
	return e.ExtractContext(context.Background(), source)
}

// ExtractContext is Extract with a context bounding the parse.
func (e *Extractor) ExtractContext(ctx context.Context, source string) *core.Tree {
	s := e.open(ctx, source)
	defer s.close()

	var recs []*record
	for _, kind := range topLevelKinds {
		recs = append(recs, s.topLevel(kind)...)
	}
	sortRecords(recs)
	recs = dropOverlaps(recs)

	tree := core.NewTree(e.lang.ID)
	for _, r := range recs {
		s.emit(tree, core.NoElement, r)
	}
	return tree
}

// ExtractKind returns a tree whose roots are the top-level elements of kind.
// Member kinds only exist under a class; use ExtractMembers for them.
func (e *Extractor) ExtractKind(source string, kind core.Kind) *core.Tree {
	tree := core.NewTree(e.lang.ID)
	if kind.IsMember() {
		return tree
	}
	s := e.open(context.Background(), source)
	defer s.close()

	recs := s.topLevel(kind)
	sortRecords(recs)
	for _, r := range recs {
		s.emit(tree, core.NoElement, r)
	}
	return tree
}

// ExtractMembers returns a tree whose single root is the first top-level
// element of parentKind named parentName, with its members as children.
// The tree is empty when no such parent exists.
func (e *Extractor) ExtractMembers(source string, parentKind core.Kind, parentName string) *core.Tree {
	tree := core.NewTree(e.lang.ID)
	s := e.open(context.Background(), source)
	defer s.close()

	recs := s.topLevel(parentKind)
	sortRecords(recs)
	for _, r := range recs {
		if r.name == parentName {
			s.emit(tree, core.NoElement, r)
			break
		}
	}
	return tree
}

// session is the per-call state: the parsed tree and the line view.
type session struct {
	e    *Extractor
	lang *catalog.Language
	src  []byte
	doc  *document
	tree *sitter.Tree
	root *sitter.Node
}

func (e *Extractor) open(ctx context.Context, source string) *session {
	s := &session{
		e:    e,
		lang: e.lang,
		src:  []byte(source),
		doc:  newDocument(source),
	}
	tree, err := e.syntax.Parse(ctx, s.src)
	if err != nil {
		e.logger.Debug("extractor.parse_failed", "language", e.lang.ID, "error", err)
		return s
	}
	s.tree = tree
	s.root = tree.RootNode()
	return s
}

func (s *session) close() {
	if s.tree != nil {
		s.tree.Close()
	}
}

// record is an element located by either strategy, before it is emitted.
type record struct {
	kind   core.Kind
	name   string
	rng    core.Range // includes decorators
	header int        // first line of the definition itself
	indent string
	node   *sitter.Node // nil when found by the text pattern
	static bool
	decos  []decoration
	// statements of a merged import block
	statements []string
}

type decoration struct {
	name string
	expr string
	rng  core.Range
}

func sortRecords(recs []*record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].rng.Start < recs[j].rng.Start
	})
}

// dropOverlaps removes records that start inside an earlier record. Two
// kinds matching the same definition keep the one listed first.
func dropOverlaps(recs []*record) []*record {
	out := recs[:0]
	lastEnd := 0
	for _, r := range recs {
		if r.rng.Start <= lastEnd {
			continue
		}
		out = append(out, r)
		lastEnd = r.rng.End
	}
	return out
}

// emit adds r and everything nested under it to tree.
func (s *session) emit(tree *core.Tree, parent core.ElementID, r *record) core.ElementID {
	el := core.Element{
		Kind:    r.kind,
		Name:    r.name,
		Range:   r.rng,
		Content: s.doc.slice(r.rng),
	}
	switch {
	case r.kind == core.KindImport:
		el.Payload = core.ImportPayload{Statements: r.statements}
	case r.kind.IsCallable():
		el.Payload = s.callablePayload(r)
	case r.kind == core.KindProperty || r.kind == core.KindStaticProperty:
		el.Payload = s.propertyPayload(r)
	case r.kind.IsContainer():
		el.Payload = core.ClassPayload{Bases: s.bases(r)}
	}
	id := tree.Add(parent, el)

	for _, d := range r.decos {
		tree.Add(id, core.Element{
			Kind:    core.KindDecorator,
			Name:    d.name,
			Range:   d.rng,
			Content: s.doc.slice(d.rng),
			Payload: core.DecoratorPayload{
				Expression: d.expr,
				TargetKind: r.kind,
				TargetName: r.name,
			},
		})
	}

	switch {
	case r.kind.IsCallable():
		s.emitSignature(tree, id, r)
	case r.kind == core.KindClass:
		for _, m := range s.members(r) {
			s.emit(tree, id, m)
		}
	}
	return id
}
