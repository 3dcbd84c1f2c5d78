package core

import (
	"errors"
	"fmt"
)

var (
	ErrTemplate            = errors.New("template substitution failed")
	ErrNotFound            = errors.New("element not found")
	ErrConflict            = errors.New("fingerprint conflict")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// TemplateError reports a catalog descriptor that could not be instantiated.
type TemplateError struct {
	Language    string
	Kind        Kind
	Placeholder string
	Reason      string
}

func (e *TemplateError) Error() string {
	if e.Placeholder != "" {
		return fmt.Sprintf("template %s/%s: missing placeholder {%s}", e.Language, e.Kind, e.Placeholder)
	}
	return fmt.Sprintf("template %s/%s: %s", e.Language, e.Kind, e.Reason)
}

func (e *TemplateError) Is(target error) bool { return target == ErrTemplate }

// NotFoundError reports a path expression that resolved to nothing.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("element not found: %s", e.Path)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a stale fingerprint. Both hashes are kept so the
// caller can decide whether to re-read and retry.
type ConflictError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("fingerprint conflict at %s: expected %s, actual %s", e.Path, e.Expected, e.Actual)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// UnsupportedLanguageError reports a language with no registered catalog.
type UnsupportedLanguageError struct {
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	if e.Language == "" {
		return "unsupported language: could not detect language"
	}
	return fmt.Sprintf("unsupported language: %s", e.Language)
}

func (e *UnsupportedLanguageError) Is(target error) bool { return target == ErrUnsupportedLanguage }
