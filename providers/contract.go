package providers

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jacekjursza/codehem/core"
)

// SyntaxProvider is the narrow parsing service the extractor consumes.
// It never interprets code structure itself.
type SyntaxProvider interface {
	// Metadata
	Language() string

	// Core operations
	Parse(ctx context.Context, source []byte) (*sitter.Tree, error)
	Query(pattern string, node *sitter.Node, source []byte) ([]QueryMatch, error)
	NodeText(node *sitter.Node, source []byte) string
	NodeRange(node *sitter.Node) core.Range
	Validate(source []byte) ValidationResult

	// Observability
	Stats() Stats
}

// Capture is one named node captured by a structural query.
type Capture struct {
	Name string
	Node *sitter.Node
}

// QueryMatch groups the captures of a single pattern match.
type QueryMatch struct {
	Captures []Capture
}

// Node returns the first node captured under name, or nil.
func (m QueryMatch) Node(name string) *sitter.Node {
	for _, c := range m.Captures {
		if c.Name == name {
			return c.Node
		}
	}
	return nil
}

// ValidationResult from syntax check
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Stats captures parser-pool and query-cache metrics exposed by providers.
type Stats struct {
	BorrowCount int64 `json:"borrow_count"`
	ReturnCount int64 `json:"return_count"`
	Active      int64 `json:"active"`
	QueryHits   int64 `json:"query_hits"`
	QueryMisses int64 `json:"query_misses"`
}
