//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// setupProcessAttributes starts the child in a new session so that it neither
// receives the supervisor's terminal signals nor dies with it
func setupProcessAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
