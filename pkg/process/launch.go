package process

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/domestic-ai/domestic-bot/pkg/errors"
	"github.com/domestic-ai/domestic-bot/pkg/logging"
	"github.com/domestic-ai/domestic-bot/pkg/services"
)

// LaunchOptions configures how launch commands are started
type LaunchOptions struct {
	// Interpreter runs the launch command as "<interpreter> <command>", e.g. "bash".
	// When empty the command is executed directly.
	Interpreter string
	// Environment is appended to the supervisor's own environment
	Environment []string
}

// Launcher spawns launch commands as detached background processes.
// It keeps no handle: a launched service is found again by its port.
type Launcher struct {
	options LaunchOptions
	logger  logging.Logger
}

func NewLauncher(options LaunchOptions, logger logging.Logger) *Launcher {
	return &Launcher{
		options: options,
		logger:  logger,
	}
}

// Launch starts the descriptor's launch command in its own session with stdio discarded.
// A nil error means the spawn succeeded, not that the service is healthy.
func (l *Launcher) Launch(ctx context.Context, descriptor services.Descriptor) error {
	if !descriptor.CanLaunch() {
		return errors.NewValidationError("no launch command configured", nil).WithContext("service", descriptor.Name)
	}
	if err := ctx.Err(); err != nil {
		return errors.NewCancelledError("launch cancelled", err).WithContext("service", descriptor.Name)
	}

	command := descriptor.LaunchCommand
	if err := ValidateLaunchCommand(command); err != nil {
		return errors.NewValidationError("invalid launch command", err).WithContext("service", descriptor.Name)
	}

	absPath, err := filepath.Abs(command)
	if err != nil {
		return errors.NewIOError("failed to get absolute path", err).WithContext("command", command)
	}

	var cmd *exec.Cmd
	if l.options.Interpreter != "" {
		cmd = exec.Command(l.options.Interpreter, absPath)
	} else {
		if err := ensureExecutable(absPath); err != nil {
			return errors.NewPermissionError("failed to ensure launch command is executable", err).
				WithContext("service", descriptor.Name).
				WithContext("command", command)
		}
		cmd = exec.Command(absPath)
	}
	cmd.Dir = filepath.Dir(absPath)
	cmd.Env = append(os.Environ(), l.options.Environment...)
	// Stdin, Stdout and Stderr stay nil, which connects them to the null device

	setupProcessAttributes(cmd)

	l.logger.Debugf("Launching service, name: %s, command: '%s', interpreter: '%s', dir: '%s'",
		descriptor.Name, command, l.options.Interpreter, cmd.Dir)

	if err := cmd.Start(); err != nil {
		return errors.NewProcessError("failed to start the process", err).
			WithContext("service", descriptor.Name).
			WithContext("command", command)
	}

	pid := cmd.Process.Pid
	l.logger.Infof("Started %s process with command: %s, PID: %d", descriptor.Name, command, pid)

	// Reap the child so it does not linger as a zombie; its lifetime is otherwise independent
	go func() {
		_ = cmd.Wait()
		l.logger.Debugf("Launched process exited, service: %s, PID: %d", descriptor.Name, pid)
	}()

	return nil
}

// ensureExecutable checks if a file is executable and makes it executable if it's not
func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.NewIOError("file does not exist", err).WithContext("path", path)
	}

	if runtime.GOOS == "windows" {
		// Executability is decided by extension on Windows
		return nil
	}

	mode := info.Mode()
	if mode&0111 != 0 {
		return nil
	}

	if err := os.Chmod(path, mode|0111); err != nil {
		return errors.NewPermissionError("failed to make file executable", err).WithContext("path", path)
	}
	return nil
}
