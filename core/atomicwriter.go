package core

import (
	"fmt"
	"os"
	"time"
)

// AtomicWriteConfig controls how AtomicWriter replaces files.
type AtomicWriteConfig struct {
	UseFsync       bool   // sync the temporary file before the rename
	TempSuffix     string // suffix of the temporary file next to the target
	BackupOriginal bool   // keep a timestamped copy of the previous contents
}

// DefaultAtomicConfig returns the configuration used when none is given.
func DefaultAtomicConfig() AtomicWriteConfig {
	return AtomicWriteConfig{TempSuffix: ".codehem.tmp"}
}

// AtomicWriter replaces file contents through a temporary file and a
// rename. It does no locking; callers hold a FileLock around WriteFile.
type AtomicWriter struct {
	config AtomicWriteConfig
}

func NewAtomicWriter(config AtomicWriteConfig) *AtomicWriter {
	if config.TempSuffix == "" {
		config.TempSuffix = DefaultAtomicConfig().TempSuffix
	}
	return &AtomicWriter{config: config}
}

// WriteFile atomically writes content to path. An existing file keeps its
// mode; a new one is created 0644.
func (aw *AtomicWriter) WriteFile(path, content string) (err error) {
	mode := os.FileMode(0o644)
	info, statErr := os.Stat(path)
	if statErr == nil {
		mode = info.Mode().Perm()
		if aw.config.BackupOriginal {
			if _, err := aw.backup(path, mode); err != nil {
				return fmt.Errorf("backup %s: %w", path, err)
			}
		}
	}

	tmp := path + aw.config.TempSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if _, err = f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if aw.config.UseFsync {
		if err = f.Sync(); err != nil {
			f.Close()
			return fmt.Errorf("sync %s: %w", tmp, err)
		}
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	// OpenFile's mode is filtered by the umask when the file is new.
	if err = os.Chmod(tmp, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// backup copies path to path.bak.<timestamp> and returns the copy's path.
func (aw *AtomicWriter) backup(path string, mode os.FileMode) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	dst := path + ".bak." + time.Now().Format("20060102-150405.000000000")
	return dst, os.WriteFile(dst, content, mode)
}
