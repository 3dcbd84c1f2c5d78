package base

import (
	"fmt"
	"sync"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"
)

// QueryCache keeps compiled queries per pattern. Compiled queries are
// immutable and safe to share between cursors on different goroutines.
type QueryCache struct {
	grammar *sitter.Language
	cache   sync.Map // pattern -> *cachedQuery
	hits    atomic.Int64
	misses  atomic.Int64
}

type cachedQuery struct {
	once  sync.Once
	query *sitter.Query
	err   error
}

// NewQueryCache creates an empty cache bound to one grammar.
func NewQueryCache(grammar *sitter.Language) *QueryCache {
	return &QueryCache{grammar: grammar}
}

// Get returns the compiled query for pattern, compiling it on first use.
// Compilation errors are cached too so a bad pattern fails fast.
func (c *QueryCache) Get(pattern string) (*sitter.Query, error) {
	v, loaded := c.cache.LoadOrStore(pattern, &cachedQuery{})
	if loaded {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}

	entry := v.(*cachedQuery)
	entry.once.Do(func() {
		entry.query, entry.err = sitter.NewQuery([]byte(pattern), c.grammar)
		if entry.err != nil {
			entry.err = fmt.Errorf("compile query: %w", entry.err)
		}
	})
	return entry.query, entry.err
}

// Counts returns cache hits and misses.
func (c *QueryCache) Counts() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
