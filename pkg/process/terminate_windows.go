//go:build windows

package process

import (
	"github.com/domestic-ai/domestic-bot/pkg/errors"
)

// sendTerminationSignal has no graceful equivalent for a process outside our
// console, so termination goes straight to the forced kill
func sendTerminationSignal(pid int) error {
	return errors.NewUnsupportedError("graceful termination is not supported on windows", nil).WithContext("pid", pid)
}
