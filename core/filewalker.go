package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// FileScope selects the files a walk reports.
type FileScope struct {
	Path      string   `json:"path"`
	Include   []string `json:"include,omitempty"`   // e.g. *.py, src/**/*.ts
	Exclude   []string `json:"exclude,omitempty"`   // matched against files and directories
	MaxDepth  int      `json:"max_depth,omitempty"` // 0 = unlimited
	MaxFiles  int      `json:"max_files,omitempty"` // 0 = unlimited
	GitIgnore bool     `json:"gitignore"`           // honour the root .gitignore
	Language  string   `json:"language,omitempty"`  // forced language; detected when empty
}

// LanguageDetector maps a file path to a language ID.
type LanguageDetector func(path string) (string, bool)

// FileWalker discovers source files under a directory.
type FileWalker struct {
	bufferSize int
	detect     LanguageDetector
}

// NewFileWalker returns a walker. detect may be nil, in which case results
// carry no language.
func NewFileWalker(detect LanguageDetector) *FileWalker {
	return &FileWalker{bufferSize: 256, detect: detect}
}

// WalkResult is one discovered file.
type WalkResult struct {
	Path     string
	Info     fs.FileInfo
	Language string
	Error    error
}

// Walk streams the files of scope in lexical order. The channel is closed
// once the tree is exhausted or ctx ends.
func (fw *FileWalker) Walk(ctx context.Context, scope FileScope) (<-chan WalkResult, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	m := newScopeMatcher(scope)

	results := make(chan WalkResult, fw.bufferSize)
	go func() {
		defer close(results)
		emitted := 0
		_ = filepath.WalkDir(scope.Path, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			// Unreadable entries are skipped rather than aborting the walk.
			if err != nil || path == scope.Path {
				return nil
			}
			if m.skipped(path, d.IsDir()) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if scope.MaxDepth > 0 && m.depth(path) > scope.MaxDepth {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !m.included(path) {
				return nil
			}
			if scope.MaxFiles > 0 && emitted >= scope.MaxFiles {
				return fs.SkipAll
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case results <- fw.describe(path, d, scope):
				emitted++
			}
			return nil
		})
	}()
	return results, nil
}

func (fw *FileWalker) describe(path string, d fs.DirEntry, scope FileScope) WalkResult {
	info, err := d.Info()
	if err != nil {
		return WalkResult{Path: path, Error: err}
	}
	language := scope.Language
	if language == "" && fw.detect != nil {
		language, _ = fw.detect(path)
	}
	return WalkResult{Path: path, Info: info, Language: language}
}

// Collect walks scope and returns every discovered file sorted by path.
// Files that could not be stat'ed are left out.
func (fw *FileWalker) Collect(ctx context.Context, scope FileScope) ([]WalkResult, error) {
	results, err := fw.Walk(ctx, scope)
	if err != nil {
		return nil, err
	}

	var files []WalkResult
	for result := range results {
		if result.Error == nil {
			files = append(files, result)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func validateScope(scope FileScope) error {
	if scope.Path == "" {
		return errors.New("path is required")
	}
	info, err := os.Stat(scope.Path)
	if err != nil {
		return fmt.Errorf("cannot access path %s: %w", scope.Path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path %s is not a directory", scope.Path)
	}
	return nil
}

// scopeMatcher applies the include, exclude and .gitignore rules of a scope.
type scopeMatcher struct {
	root    string
	include []string
	exclude []string
	ignore  *ignore.GitIgnore
}

func newScopeMatcher(scope FileScope) *scopeMatcher {
	m := &scopeMatcher{root: scope.Path, include: scope.Include, exclude: scope.Exclude}
	if scope.GitIgnore {
		// A missing .gitignore simply means nothing is ignored.
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(scope.Path, ".gitignore")); err == nil {
			m.ignore = gi
		}
	}
	return m
}

func (m *scopeMatcher) rel(path string) string {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (m *scopeMatcher) depth(path string) int {
	return strings.Count(m.rel(path), "/") + 1
}

func (m *scopeMatcher) skipped(path string, dir bool) bool {
	rel := m.rel(path)
	if matchAny(rel, m.exclude) {
		return true
	}
	if m.ignore == nil {
		return false
	}
	if dir && m.ignore.MatchesPath(rel+"/") {
		return true
	}
	return m.ignore.MatchesPath(rel)
}

func (m *scopeMatcher) included(path string) bool {
	return len(m.include) == 0 || matchAny(m.rel(path), m.include)
}

// matchAny reports whether the slash-relative path rel matches one of the
// doublestar patterns. Patterns without a slash are also tried against the
// base name.
func matchAny(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, err := doublestar.Match(pattern, path.Base(rel)); err == nil && ok {
				return true
			}
		}
	}
	return false
}
