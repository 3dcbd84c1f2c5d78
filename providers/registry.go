package providers

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/providers/catalog"
)

// Entry bundles everything known about one registered language.
type Entry struct {
	Language    *catalog.Language
	Syntax      SyntaxProvider
	Descriptors map[core.Kind]*catalog.Descriptor
}

// Descriptor returns the instantiated descriptor for kind, if any.
func (e *Entry) Descriptor(kind core.Kind) (*catalog.Descriptor, bool) {
	d, ok := e.Descriptors[kind]
	return d, ok
}

// Registry is the explicit language registry. Build it once at startup and
// pass it to every consumer; it is read-only after construction.
type Registry struct {
	entries map[string]*Entry
	byExt   map[string]string
	errs    []error
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*Entry),
		byExt:   make(map[string]string),
		logger:  logger,
	}
}

// Register adds a language. Descriptors whose templates cannot be
// instantiated are skipped and recorded; they do not fail the language.
func (r *Registry) Register(lang *catalog.Language, syntax SyntaxProvider) error {
	if lang == nil || lang.ID == "" {
		return fmt.Errorf("register: language id is required")
	}
	if syntax == nil {
		return fmt.Errorf("register %s: syntax provider is required", lang.ID)
	}

	entry := &Entry{
		Language:    lang,
		Syntax:      syntax,
		Descriptors: make(map[core.Kind]*catalog.Descriptor),
	}
	for _, kind := range lang.Kinds() {
		d, err := lang.Descriptor(kind)
		if err != nil {
			r.errs = append(r.errs, err)
			r.logger.Warn("catalog.descriptor_skipped", "language", lang.ID, "kind", kind.String(), "error", err)
			continue
		}
		entry.Descriptors[kind] = d
	}

	id := strings.ToLower(lang.ID)
	r.entries[id] = entry
	for _, ext := range lang.Info().Extensions {
		r.byExt[ext] = id
	}
	return nil
}

// Get retrieves a language entry by ID.
func (r *Registry) Get(language string) (*Entry, error) {
	entry, ok := r.entries[strings.ToLower(language)]
	if !ok {
		return nil, &core.UnsupportedLanguageError{Language: language}
	}
	return entry, nil
}

// LookupByExtension returns the language ID associated with a file extension.
func (r *Registry) LookupByExtension(ext string) (string, bool) {
	id, ok := r.byExt[strings.ToLower(ext)]
	return id, ok
}

// DetectLanguage resolves the language of path by extension, falling back
// to content sniffing when the extension is unknown.
func (r *Registry) DetectLanguage(path, source string) (string, error) {
	if path != "" {
		if id, ok := r.LookupByExtension(filepath.Ext(path)); ok {
			return id, nil
		}
	}
	if source != "" {
		for _, id := range r.Languages() {
			sniff := r.entries[id].Language.Sniff
			if sniff != nil && sniff.MatchString(source) {
				return id, nil
			}
		}
	}
	return "", &core.UnsupportedLanguageError{Language: filepath.Ext(path)}
}

// Languages returns all registered language IDs sorted.
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.entries))
	for k := range r.entries {
		langs = append(langs, k)
	}
	sort.Strings(langs)
	return langs
}

// Errors returns the descriptor errors collected during registration.
func (r *Registry) Errors() error {
	return errors.Join(r.errs...)
}
