package extractor

import (
	"github.com/jacekjursza/codehem/core"
)

// mergeImports folds file-scope import statements into blocks. Statements
// separated only by blank or comment lines share a block; the block keeps
// the exact source slice from its first to its last statement.
func (s *session) mergeImports(recs []*record) []*record {
	sortRecords(recs)
	var blocks []*record
	for _, r := range recs {
		stmt := s.doc.slice(r.rng)
		if n := len(blocks); n > 0 && s.adjacent(blocks[n-1].rng.End, r.rng.Start) {
			last := blocks[n-1]
			last.rng.End = max(last.rng.End, r.rng.End)
			last.statements = append(last.statements, stmt)
			continue
		}
		blocks = append(blocks, &record{
			kind:       core.KindImport,
			rng:        r.rng,
			header:     r.rng.Start,
			statements: []string{stmt},
		})
	}
	return blocks
}

// adjacent reports whether only blank or comment lines lie between two lines.
func (s *session) adjacent(end, start int) bool {
	for n := end + 1; n < start; n++ {
		l := s.doc.line(n)
		if !isBlank(l) && !isComment(l, s.lang.Comment) {
			return false
		}
	}
	return true
}
