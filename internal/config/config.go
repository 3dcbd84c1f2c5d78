package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up when no path is given.
const DefaultFile = ".codehem.yaml"

// Config holds the application's configuration.
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Lock      LockConfig      `yaml:"lock"`
	Write     WriteConfig     `yaml:"write"`
	Journal   JournalConfig   `yaml:"journal"`
	Debug     bool            `yaml:"debug"`
}

// WorkspaceConfig selects the files a workspace indexes.
type WorkspaceConfig struct {
	Include   []string `yaml:"include"`
	Exclude   []string `yaml:"exclude"`
	GitIgnore bool     `yaml:"gitignore"`
	Workers   int      `yaml:"workers"`
}

// LockConfig tunes the per-file advisory lock.
type LockConfig struct {
	RetryInterval time.Duration `yaml:"retry_interval"`
	StaleAfter    time.Duration `yaml:"stale_after"`
}

// WriteConfig tunes how patched files are written back.
type WriteConfig struct {
	Fsync  bool `yaml:"fsync"`
	Backup bool `yaml:"backup"`
}

// JournalConfig enables the patch journal when DSN is set. Driver picks the
// local SQLite driver: "sqlite" (cgo) or "purego".
type JournalConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Exclude:   []string{".git", "node_modules", "vendor", "__pycache__"},
			GitIgnore: true,
			Workers:   runtime.NumCPU(),
		},
		Lock: LockConfig{
			RetryInterval: 25 * time.Millisecond,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// CODEHEM_* environment variables, in increasing precedence. A .env file in
// the working directory is loaded first when present. An empty path reads
// DefaultFile if it exists.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)
	if cfg.Workspace.Workers <= 0 {
		cfg.Workspace.Workers = runtime.NumCPU()
	}
	if cfg.Lock.RetryInterval <= 0 {
		cfg.Lock.RetryInterval = Default().Lock.RetryInterval
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CODEHEM_INCLUDE"); v != "" {
		cfg.Workspace.Include = splitList(v)
	}
	if v := os.Getenv("CODEHEM_EXCLUDE"); v != "" {
		cfg.Workspace.Exclude = splitList(v)
	}
	if v := os.Getenv("CODEHEM_GITIGNORE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Workspace.GitIgnore = b
		}
	}
	if v := os.Getenv("CODEHEM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workspace.Workers = n
		}
	}
	if v := os.Getenv("CODEHEM_LOCK_RETRY_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Lock.RetryInterval = d
		}
	}
	if v := os.Getenv("CODEHEM_LOCK_STALE_AFTER"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.Lock.StaleAfter = d
		}
	}
	if v := os.Getenv("CODEHEM_WRITE_FSYNC"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Write.Fsync = b
		}
	}
	if v := os.Getenv("CODEHEM_WRITE_BACKUP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Write.Backup = b
		}
	}
	if v := os.Getenv("CODEHEM_JOURNAL_DSN"); v != "" {
		cfg.Journal.DSN = v
	}
	if v := os.Getenv("CODEHEM_JOURNAL_DRIVER"); v != "" {
		cfg.Journal.Driver = v
	}
	if v := os.Getenv("CODEHEM_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
