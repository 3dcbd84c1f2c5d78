//go:build !windows

package core

import (
	"errors"
	"syscall"
)

// isProcessAlive probes pid with signal 0. EPERM still means the process
// exists, it just belongs to another user.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
