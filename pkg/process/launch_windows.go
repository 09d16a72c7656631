//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

const detachedProcess = 0x00000008

// setupProcessAttributes detaches the child from the supervisor's console and
// puts it in its own process group
func setupProcessAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
	}
}
