//go:build !windows

package processstate

import (
	goerrors "errors"
	"os"
	"syscall"

	"github.com/domestic-ai/domestic-bot/pkg/errors"
)

// IsProcessRunning probes pid with signal 0. A process owned by another user
// (EPERM) counts as running.
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, errors.NewValidationError("invalid PID", nil).WithContext("pid", pid)
	}

	// FindProcess always succeeds on Unix
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, err
	}

	err = process.Signal(syscall.Signal(0))
	switch {
	case err == nil:
		return true, nil
	case goerrors.Is(err, os.ErrProcessDone), goerrors.Is(err, syscall.ESRCH):
		return false, nil
	case goerrors.Is(err, syscall.EPERM):
		return true, nil
	}
	return false, err
}
