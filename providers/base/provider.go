package base

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/providers"
)

// Provider is the tree-sitter backed SyntaxProvider. Parsers are pooled
// because a sitter.Parser must not be shared between goroutines.
type Provider struct {
	language string
	grammar  *sitter.Language
	parsers  sync.Pool
	queries  *QueryCache

	borrowed atomic.Int64
	returned atomic.Int64
}

// New creates a syntax provider for the given grammar.
func New(language string, grammar *sitter.Language) *Provider {
	if grammar == nil {
		panic(fmt.Sprintf("Failed to load %s language for tree-sitter", language))
	}
	p := &Provider{
		language: language,
		grammar:  grammar,
		queries:  NewQueryCache(grammar),
	}
	p.parsers.New = func() any {
		parser := sitter.NewParser()
		parser.SetLanguage(grammar)
		return parser
	}
	return p
}

// Language returns language identifier
func (p *Provider) Language() string {
	return p.language
}

// Parse parses source into a concrete syntax tree. The caller owns the
// returned tree and must Close it.
func (p *Provider) Parse(ctx context.Context, source []byte) (*sitter.Tree, error) {
	parser := p.parsers.Get().(*sitter.Parser)
	p.borrowed.Add(1)
	defer func() {
		parser.Reset()
		p.parsers.Put(parser)
		p.returned.Add(1)
	}()

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("failed to parse source: empty tree")
	}
	return tree, nil
}

// Query runs pattern against node and returns the matches that satisfy the
// pattern's predicates, in document order.
func (p *Provider) Query(pattern string, node *sitter.Node, source []byte) ([]providers.QueryMatch, error) {
	if node == nil {
		return nil, fmt.Errorf("query: nil node")
	}
	q, err := p.queries.Get(pattern)
	if err != nil {
		return nil, err
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, node)

	var matches []providers.QueryMatch
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		m = qc.FilterPredicates(m, source)
		if len(m.Captures) == 0 {
			continue
		}
		match := providers.QueryMatch{Captures: make([]providers.Capture, 0, len(m.Captures))}
		for _, c := range m.Captures {
			match.Captures = append(match.Captures, providers.Capture{
				Name: q.CaptureNameForId(c.Index),
				Node: c.Node,
			})
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// NodeText returns the exact source slice covered by node.
func (p *Provider) NodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return node.Content(source)
}

// NodeRange converts tree-sitter's 0-indexed points to a 1-indexed
// inclusive line range. A node ending at column 0 ends on the previous line.
func (p *Provider) NodeRange(node *sitter.Node) core.Range {
	if node == nil {
		return core.NotFound
	}
	start := int(node.StartPoint().Row) + 1
	end := int(node.EndPoint().Row) + 1
	if node.EndPoint().Column == 0 && end > start {
		end--
	}
	return core.Range{Start: start, End: end}
}

// Validate checks syntax
func (p *Provider) Validate(source []byte) providers.ValidationResult {
	tree, err := p.Parse(context.Background(), source)
	if err != nil {
		return providers.ValidationResult{
			Valid:  false,
			Errors: []string{"Failed to parse source"},
		}
	}
	defer tree.Close()

	var errors []string
	p.findErrors(tree.RootNode(), &errors)

	return providers.ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

// Stats reports parser-pool and query-cache counters.
func (p *Provider) Stats() providers.Stats {
	borrowed := p.borrowed.Load()
	returned := p.returned.Load()
	hits, misses := p.queries.Counts()
	return providers.Stats{
		BorrowCount: borrowed,
		ReturnCount: returned,
		Active:      borrowed - returned,
		QueryHits:   hits,
		QueryMisses: misses,
	}
}

// findErrors looks for syntax errors in AST
func (p *Provider) findErrors(node *sitter.Node, errors *[]string) {
	if node.Type() == "ERROR" || node.IsMissing() {
		*errors = append(*errors, fmt.Sprintf(
			"Syntax error at line %d, column %d",
			node.StartPoint().Row+1,
			node.StartPoint().Column+1,
		))
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.findErrors(node.Child(i), errors)
	}
}
