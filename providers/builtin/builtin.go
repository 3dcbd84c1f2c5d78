// Package builtin wires every bundled language into a providers.Registry.
package builtin

import (
	"fmt"
	"log/slog"

	"github.com/jacekjursza/codehem/providers"
	"github.com/jacekjursza/codehem/providers/catalog"
	"github.com/jacekjursza/codehem/providers/javascript"
	"github.com/jacekjursza/codehem/providers/python"
	"github.com/jacekjursza/codehem/providers/typescript"
)

type language struct {
	table  func() *catalog.Language
	syntax func() providers.SyntaxProvider
}

var languages = []language{
	{python.Language, func() providers.SyntaxProvider { return python.New() }},
	{typescript.Language, func() providers.SyntaxProvider { return typescript.New() }},
	{javascript.Language, func() providers.SyntaxProvider { return javascript.New() }},
}

// NewRegistry builds a registry holding every bundled language.
func NewRegistry(logger *slog.Logger) (*providers.Registry, error) {
	registry := providers.NewRegistry(logger)
	for _, l := range languages {
		table := l.table()
		if err := registry.Register(table, l.syntax()); err != nil {
			return nil, fmt.Errorf("failed to register %s provider: %w", table.ID, err)
		}
	}
	return registry, nil
}
