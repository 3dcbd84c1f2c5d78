package core

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// LockConfig controls advisory lock acquisition.
type LockConfig struct {
	Suffix        string        // Marker file suffix
	RetryInterval time.Duration // Busy-wait interval while the marker exists
	StaleAfter    time.Duration // Break markers of dead holders older than this; 0 never breaks
}

// DefaultLockConfig provides sensible defaults
func DefaultLockConfig() LockConfig {
	return LockConfig{
		Suffix:        ".lock",
		RetryInterval: 25 * time.Millisecond,
	}
}

// FileLock is a held advisory lock: a marker file next to the locked file,
// created exclusively and holding the owner's PID.
type FileLock struct {
	path   string
	marker string
	once   sync.Once
	err    error
}

// AcquireLock creates the lock marker for path, retrying at a fixed
// interval while another holder owns it. It gives up only when ctx ends.
func AcquireLock(ctx context.Context, path string, config LockConfig) (*FileLock, error) {
	if config.Suffix == "" {
		config.Suffix = DefaultLockConfig().Suffix
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = DefaultLockConfig().RetryInterval
	}
	marker := path + config.Suffix

	for {
		lockFile, err := os.OpenFile(marker, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(lockFile, "%d\n", os.Getpid())
			lockFile.Close()
			return &FileLock{path: path, marker: marker}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		if config.StaleAfter > 0 && isLockStale(marker, config.StaleAfter) {
			os.Remove(marker)
			continue
		}

		timer := time.NewTimer(config.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("waiting for lock on %s: %w", path, ctx.Err())
		case <-timer.C:
		}
	}
}

// Path returns the locked file path.
func (l *FileLock) Path() string { return l.path }

// Marker returns the lock marker path.
func (l *FileLock) Marker() string { return l.marker }

// Release removes the marker. It is safe to call more than once.
func (l *FileLock) Release() error {
	l.once.Do(func() {
		if err := os.Remove(l.marker); err != nil && !os.IsNotExist(err) {
			l.err = fmt.Errorf("failed to remove lock file: %w", err)
		}
	})
	return l.err
}

// isLockStale reports whether a marker is older than staleAfter and its
// recorded owner is no longer running.
func isLockStale(marker string, staleAfter time.Duration) bool {
	info, err := os.Stat(marker)
	if err != nil {
		return false
	}
	if time.Since(info.ModTime()) < staleAfter {
		return false
	}

	content, err := os.ReadFile(marker)
	if err != nil {
		return true
	}
	var pid int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(content)), "%d", &pid); err != nil {
		return true
	}
	return !isProcessAlive(pid)
}
