//go:build !windows

package process

import (
	"syscall"
)

// sendTerminationSignal sends SIGTERM to the process itself. A discovered
// process need not lead its group, so the group is not signalled.
func sendTerminationSignal(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}
