package process

import (
	"context"
	"os"
	"time"

	"github.com/domestic-ai/domestic-bot/pkg/errors"
	"github.com/domestic-ai/domestic-bot/pkg/logging"
	"github.com/domestic-ai/domestic-bot/pkg/processstate"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultGracePeriod = 5 * time.Second
	DefaultKillWait    = 2 * time.Second

	exitPollInterval = 100 * time.Millisecond
)

type TerminateOptions struct {
	// GracePeriod is how long to wait after the graceful signal before killing
	GracePeriod time.Duration `yaml:"grace_period,omitempty"`
	// KillWait is how long to wait for the process to vanish after the kill
	KillWait time.Duration `yaml:"kill_wait,omitempty"`
}

// Terminator stops a discovered process: graceful signal, grace period, forced kill
type Terminator struct {
	options TerminateOptions
	clock   clockwork.Clock
	logger  logging.Logger

	signalTerm func(pid int) error
	kill       func(pid int) error
	isRunning  func(pid int) (bool, error)
}

func NewTerminator(options TerminateOptions, clock clockwork.Clock, logger logging.Logger) *Terminator {
	if options.GracePeriod <= 0 {
		options.GracePeriod = DefaultGracePeriod
	}
	if options.KillWait <= 0 {
		options.KillWait = DefaultKillWait
	}
	return &Terminator{
		options:    options,
		clock:      clock,
		logger:     logger,
		signalTerm: sendTerminationSignal,
		kill:       killProcess,
		isRunning:  processstate.IsProcessRunning,
	}
}

// Terminate returns nil once the process is gone. Cancelling ctx during the
// grace period escalates straight to the forced kill.
func (t *Terminator) Terminate(ctx context.Context, handle ProcessHandle) error {
	pid := handle.PID
	if pid <= 0 {
		return errors.NewValidationError("invalid PID", nil).WithContext("pid", pid)
	}

	t.logger.Infof("Sending termination signal to PID %d (%s), grace period: %v", pid, handle.Name, t.options.GracePeriod)

	if err := t.signalTerm(pid); err != nil {
		if !t.running(pid) {
			t.logger.Infof("Process PID %d already exited", pid)
			return nil
		}
		t.logger.Warnf("Failed to send termination signal to PID %d: %v", pid, err)
	} else if t.waitForExit(ctx, pid, t.options.GracePeriod) {
		t.logger.Infof("Process PID %d terminated gracefully", pid)
		return nil
	}

	t.logger.Warnf("Process %d didn't terminate, forcing kill", pid)

	if err := t.kill(pid); err != nil {
		if !t.running(pid) {
			return nil
		}
		return errors.NewProcessError("failed to kill process", err).WithContext("pid", pid)
	}

	if t.waitForExit(context.Background(), pid, t.options.KillWait) {
		t.logger.Infof("Process PID %d force terminated", pid)
		return nil
	}
	return errors.NewTimeoutError("process did not terminate even after force termination", nil).WithContext("pid", pid)
}

func (t *Terminator) running(pid int) bool {
	running, err := t.isRunning(pid)
	if err != nil {
		t.logger.Debugf("Failed to check PID %d: %v", pid, err)
		return true
	}
	return running
}

// waitForExit polls until pid is gone, timeout elapses or ctx is done
func (t *Terminator) waitForExit(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := t.clock.Now().Add(timeout)
	for {
		if !t.running(pid) {
			return true
		}
		if !t.clock.Now().Before(deadline) {
			return false
		}
		select {
		case <-t.clock.After(exitPollInterval):
		case <-ctx.Done():
			return false
		}
	}
}

func killProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
