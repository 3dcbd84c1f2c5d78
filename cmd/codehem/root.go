package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jacekjursza/codehem/db"
	"github.com/jacekjursza/codehem/internal/config"
	"github.com/jacekjursza/codehem/internal/extractor"
	"github.com/jacekjursza/codehem/internal/patch"
	"github.com/jacekjursza/codehem/internal/workspace"
	"github.com/jacekjursza/codehem/providers"
	"github.com/jacekjursza/codehem/providers/builtin"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app holds what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	jsonOutput bool
	debug      bool

	cfg      *config.Config
	logger   *slog.Logger
	registry *providers.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "codehem",
		Short:         "Extract, address and patch code elements by structural path",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to the configuration file (default .codehem.yaml)")
	root.PersistentFlags().BoolVarP(&a.jsonOutput, "json", "j", false, "Output results in JSON format")
	root.PersistentFlags().BoolVarP(&a.debug, "debug", "v", false, "Enable debug logging")

	root.AddCommand(
		newExtractCmd(a),
		newLocateCmd(a),
		newFingerprintCmd(a),
		newPatchCmd(a),
		newFindCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) init(stderr io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Debug = true
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	registry, err := builtin.NewRegistry(a.logger)
	if err != nil {
		return err
	}
	a.registry = registry
	return nil
}

// source reads path and returns its contents with the extractor for its
// language.
func (a *app) source(path string) (string, *extractor.Extractor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", path, err)
	}
	lang, err := a.registry.DetectLanguage(path, string(data))
	if err != nil {
		return "", nil, err
	}
	ex, err := extractor.New(a.registry, lang, extractor.WithLogger(a.logger))
	if err != nil {
		return "", nil, err
	}
	return string(data), ex, nil
}

func (a *app) engine(ex *extractor.Extractor) *patch.Engine {
	return patch.New(ex, patch.WithLogger(a.logger))
}

// openWorkspace opens root with the configured options and, when a journal
// DSN is set, the patch journal. The returned closer ends both.
func (a *app) openWorkspace(cmd *cobra.Command, root string) (*workspace.Workspace, func(), error) {
	opts := append(workspace.ConfigOptions(a.cfg), workspace.WithLogger(a.logger))

	var journal *db.Journal
	if a.cfg.Journal.DSN != "" {
		j, err := db.Open(a.journalConfig())
		if err != nil {
			return nil, nil, err
		}
		journal = j
		opts = append(opts, workspace.WithJournal(j))
	}

	ws, err := workspace.Open(cmd.Context(), root, a.registry, opts...)
	if err != nil {
		if journal != nil {
			journal.Close()
		}
		return nil, nil, err
	}
	return ws, func() {
		if err := ws.Close(); err != nil {
			a.logger.Warn("workspace.close_failed", "error", err)
		}
		if journal != nil {
			journal.Close()
		}
	}, nil
}

func (a *app) journalConfig() db.Config {
	return db.Config{DSN: a.cfg.Journal.DSN, Driver: a.cfg.Journal.Driver, Debug: a.cfg.Debug}
}

// splitTarget turns a file argument into a workspace root and a path
// relative to it. An explicit root wins over the file's directory.
func splitTarget(root, file string) (string, string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", "", err
	}
	if root == "" {
		return filepath.Dir(abs), filepath.Base(abs), nil
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", "", err
	}
	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil {
		return "", "", err
	}
	return rootAbs, filepath.ToSlash(rel), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
