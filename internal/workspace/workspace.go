// Package workspace indexes every element under a directory and applies
// patches to its files one locked file at a time.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/db"
	"github.com/jacekjursza/codehem/internal/address"
	"github.com/jacekjursza/codehem/internal/config"
	"github.com/jacekjursza/codehem/internal/extractor"
	"github.com/jacekjursza/codehem/internal/patch"
	"github.com/jacekjursza/codehem/models"
	"github.com/jacekjursza/codehem/providers"
)

// ErrOutsideRoot is returned for file arguments that leave the workspace root.
var ErrOutsideRoot = errors.New("file is outside the workspace root")

// Key identifies index entries.
type Key struct {
	Name string
	Kind core.Kind
}

// Location is where an indexed element lives.
type Location struct {
	File  string     `json:"file"` // slash-separated, relative to the root
	Path  string     `json:"path"` // canonical path expression
	Range core.Range `json:"range"`
}

type entry struct {
	key Key
	loc Location
}

// Workspace is an opened directory: its element index plus the per-file
// lock-guarded patch pipeline.
type Workspace struct {
	root     string
	registry *providers.Registry
	langs    map[string]*language
	logger   *slog.Logger

	include   []string
	exclude   []string
	gitignore bool
	workers   int
	lockCfg core.LockConfig
	writer  *core.AtomicWriter
	journal *db.Journal
	session string

	mu      sync.RWMutex
	ordinal map[string]int // file -> walk position
	files   map[string][]entry
	index   map[Key][]Location
}

type language struct {
	extractor *extractor.Extractor
	engine    *patch.Engine
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the workspace logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithInclude restricts indexing to files matching any of the globs.
func WithInclude(globs ...string) Option {
	return func(w *Workspace) { w.include = globs }
}

// WithExclude skips files and directories matching any of the globs.
func WithExclude(globs ...string) Option {
	return func(w *Workspace) { w.exclude = globs }
}

// WithGitIgnore skips paths matched by the root .gitignore.
func WithGitIgnore(enabled bool) Option {
	return func(w *Workspace) { w.gitignore = enabled }
}

// WithWorkers bounds the number of files extracted in parallel by Open.
func WithWorkers(n int) Option {
	return func(w *Workspace) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithLockConfig tunes the per-file advisory lock.
func WithLockConfig(cfg core.LockConfig) Option {
	return func(w *Workspace) { w.lockCfg = cfg }
}

// WithWriteConfig tunes how patched files are written.
func WithWriteConfig(cfg core.AtomicWriteConfig) Option {
	return func(w *Workspace) { w.writer = core.NewAtomicWriter(cfg) }
}

// WithJournal records the session and every applied patch in j.
func WithJournal(j *db.Journal) Option {
	return func(w *Workspace) { w.journal = j }
}

// ConfigOptions translates a loaded configuration into options.
func ConfigOptions(cfg *config.Config) []Option {
	lock := core.DefaultLockConfig()
	lock.RetryInterval = cfg.Lock.RetryInterval
	lock.StaleAfter = cfg.Lock.StaleAfter

	write := core.DefaultAtomicConfig()
	write.UseFsync = cfg.Write.Fsync
	write.BackupOriginal = cfg.Write.Backup

	return []Option{
		WithInclude(cfg.Workspace.Include...),
		WithExclude(cfg.Workspace.Exclude...),
		WithGitIgnore(cfg.Workspace.GitIgnore),
		WithWorkers(cfg.Workspace.Workers),
		WithLockConfig(lock),
		WithWriteConfig(write),
	}
}

// Open walks root, extracts every file of a registered language and
// builds the index. Read or walk failures abort Open.
func Open(ctx context.Context, root string, registry *providers.Registry, opts ...Option) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}

	w := &Workspace{
		root:     abs,
		registry: registry,
		langs:    make(map[string]*language),
		logger:   slog.Default(),
		workers:  runtime.NumCPU(),
		lockCfg:  core.DefaultLockConfig(),
		writer:   core.NewAtomicWriter(core.DefaultAtomicConfig()),
		ordinal:  make(map[string]int),
		files:    make(map[string][]entry),
		index:    make(map[Key][]Location),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, id := range registry.Languages() {
		ex, err := extractor.New(registry, id, extractor.WithLogger(w.logger))
		if err != nil {
			return nil, err
		}
		w.langs[id] = &language{
			extractor: ex,
			engine:    patch.New(ex, patch.WithLogger(w.logger)),
		}
	}

	start := time.Now()
	walker := core.NewFileWalker(func(path string) (string, bool) {
		return registry.LookupByExtension(filepath.Ext(path))
	})
	found, err := walker.Collect(ctx, core.FileScope{
		Path:      abs,
		Include:   w.include,
		Exclude:   w.exclude,
		GitIgnore: w.gitignore,
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", abs, err)
	}

	var files []core.WalkResult
	for _, f := range found {
		if f.Language != "" {
			files = append(files, f)
		}
	}

	results := make([][]entry, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for i, f := range files {
		g.Go(func() error {
			src, err := os.ReadFile(f.Path)
			if err != nil {
				return fmt.Errorf("read %s: %w", f.Path, err)
			}
			rel := w.rel(f.Path)
			tree := w.langs[f.Language].extractor.ExtractContext(gctx, string(src))
			results[i] = entriesOf(rel, tree)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	elements := 0
	for i, f := range files {
		rel := w.rel(f.Path)
		w.ordinal[rel] = i
		w.files[rel] = results[i]
		for _, e := range results[i] {
			w.index[e.key] = append(w.index[e.key], e.loc)
		}
		elements += len(results[i])
	}

	w.logger.Info("workspace.open",
		"root", abs, "files", len(files), "elements", elements, "elapsed", time.Since(start))

	if w.journal != nil {
		session, err := w.journal.StartSession(abs, len(files), elements, map[string]any{
			"languages": registry.Languages(),
		})
		if err != nil {
			w.logger.Warn("workspace.journal_failed", "error", err)
		} else {
			w.session = session.ID
		}
	}
	return w, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// Files returns the indexed files in walk order.
func (w *Workspace) Files() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	files := make([]string, 0, len(w.ordinal))
	for f := range w.ordinal {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return w.ordinal[files[i]] < w.ordinal[files[j]] })
	return files
}

// Find returns the first indexed location of (name, kind) in walk order.
func (w *Workspace) Find(name string, kind core.Kind) (Location, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	locs := w.index[Key{Name: name, Kind: kind}]
	if len(locs) == 0 {
		return Location{}, false
	}
	return locs[0], true
}

// FindAll returns every indexed location of (name, kind) in walk order.
func (w *Workspace) FindAll(name string, kind core.Kind) []Location {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Location(nil), w.index[Key{Name: name, Kind: kind}]...)
}

// Len returns the number of index entries.
func (w *Workspace) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n := 0
	for _, entries := range w.files {
		n += len(entries)
	}
	return n
}

// Fingerprint returns the current fingerprint of the element path
// addresses in file.
func (w *Workspace) Fingerprint(file, path string) (string, error) {
	abs, _, lang, err := w.target(file)
	if err != nil {
		return "", err
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", file, err)
	}
	return lang.engine.Fingerprint(string(src), path)
}

// Extract reads file and returns its element tree.
func (w *Workspace) Extract(ctx context.Context, file string) (*core.Tree, error) {
	abs, _, lang, err := w.target(file)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return lang.extractor.ExtractContext(ctx, string(src)), nil
}

// Locate returns the line range path addresses in file.
func (w *Workspace) Locate(file, path string) (core.Range, error) {
	abs, _, lang, err := w.target(file)
	if err != nil {
		return core.NotFound, err
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return core.NotFound, fmt.Errorf("read %s: %w", file, err)
	}
	rng := address.NewLocator(lang.extractor).Locate(path, string(src))
	if !rng.Found() {
		return core.NotFound, &core.NotFoundError{Path: path}
	}
	return rng, nil
}

// ApplyPatch patches file under its advisory lock: the file is read after
// the lock is held, patched, written back and re-indexed before the lock
// is released. Errors from the patch engine leave the file and the index
// untouched.
func (w *Workspace) ApplyPatch(ctx context.Context, file, path, text string, mode patch.Mode, expected string) (*patch.Result, error) {
	abs, rel, lang, err := w.target(file)
	if err != nil {
		return nil, err
	}

	lock, err := core.AcquireLock(ctx, abs, w.lockCfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			w.logger.Error("workspace.unlock_failed", "file", rel, "error", err)
		}
	}()

	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}

	res, err := lang.engine.Apply(string(src), path, text, mode, expected)
	if err != nil {
		w.logger.Debug("workspace.patch_rejected", "file", rel, "path", path, "error", err)
		return nil, err
	}
	if res.Code != string(src) {
		if err := w.writer.WriteFile(abs, res.Code); err != nil {
			return nil, fmt.Errorf("write %s: %w", file, err)
		}
	}
	w.reindex(rel, lang.extractor.Extract(res.Code))

	w.logger.Info("workspace.patch",
		"file", rel, "path", path, "mode", mode.String(),
		"lines_added", res.LinesAdded, "lines_removed", res.LinesRemoved)
	w.record(rel, lang.extractor.Language(), path, mode, res)
	return res, nil
}

// Reindex re-extracts file from disk and replaces its index entries.
func (w *Workspace) Reindex(file string) error {
	abs, rel, lang, err := w.target(file)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	w.reindex(rel, lang.extractor.Extract(string(src)))
	return nil
}

// Close ends the journal session, if any. The journal itself stays open.
func (w *Workspace) Close() error {
	if w.journal == nil || w.session == "" {
		return nil
	}
	return w.journal.EndSession(w.session)
}

// reindex drops the entries of rel and inserts those of tree, keeping
// every key's locations in walk order.
func (w *Workspace) reindex(rel string, tree *core.Tree) {
	fresh := entriesOf(rel, tree)

	w.mu.Lock()
	defer w.mu.Unlock()

	ord, ok := w.ordinal[rel]
	if !ok {
		ord = len(w.ordinal)
		w.ordinal[rel] = ord
	}
	for _, e := range w.files[rel] {
		w.index[e.key] = removeFile(w.index[e.key], rel)
		if len(w.index[e.key]) == 0 {
			delete(w.index, e.key)
		}
	}
	w.files[rel] = fresh

	// Each entry lands after every location with ordinal <= ord, so entries
	// of one file keep their declaration order.
	for _, e := range fresh {
		locs := w.index[e.key]
		at := sort.Search(len(locs), func(i int) bool { return w.ordinal[locs[i].File] > ord })
		locs = append(locs, Location{})
		copy(locs[at+1:], locs[at:])
		locs[at] = e.loc
		w.index[e.key] = locs
	}
}

func removeFile(locs []Location, rel string) []Location {
	out := locs[:0]
	for _, l := range locs {
		if l.File != rel {
			out = append(out, l)
		}
	}
	return out
}

func entriesOf(rel string, tree *core.Tree) []entry {
	var entries []entry
	tree.Walk(func(el *core.Element) bool {
		entries = append(entries, entry{
			key: Key{Name: el.Name, Kind: el.Kind},
			loc: Location{File: rel, Path: address.Canonical(tree, el.ID), Range: el.Range},
		})
		return true
	})
	return entries
}

func (w *Workspace) record(rel, lang, path string, mode patch.Mode, res *patch.Result) {
	if w.journal == nil || w.session == "" {
		return
	}
	err := w.journal.Record(&models.PatchRecord{
		SessionID:         w.session,
		File:              rel,
		Path:              path,
		Language:          lang,
		Mode:              mode.String(),
		BeforeFingerprint: res.Before,
		AfterFingerprint:  res.After,
		LinesAdded:        res.LinesAdded,
		LinesRemoved:      res.LinesRemoved,
		Diff:              res.Diff,
	}, map[string]any{"range": res.Range})
	if err != nil {
		w.logger.Warn("workspace.journal_failed", "file", rel, "error", err)
	}
}

// target maps a file argument, relative to the root or absolute, to its
// absolute and slash-relative paths and the language its extension selects.
// Files outside the root and extensions no language claims are rejected,
// matching what Open indexes.
func (w *Workspace) target(file string) (string, string, *language, error) {
	abs := file
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.root, filepath.FromSlash(file))
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", nil, fmt.Errorf("%s: %w", file, ErrOutsideRoot)
	}

	ext := filepath.Ext(abs)
	id, ok := w.registry.LookupByExtension(ext)
	if !ok {
		return "", "", nil, &core.UnsupportedLanguageError{Language: ext}
	}
	lang, ok := w.langs[id]
	if !ok {
		return "", "", nil, &core.UnsupportedLanguageError{Language: id}
	}
	return abs, filepath.ToSlash(rel), lang, nil
}

func (w *Workspace) rel(abs string) string {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}
