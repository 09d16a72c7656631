package process

import (
	"os"

	"github.com/domestic-ai/domestic-bot/pkg/errors"
)

// ValidateLaunchCommand checks that a launch command names an existing regular file
func ValidateLaunchCommand(path string) error {
	if path == "" {
		return errors.NewValidationError("launch command path is required", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("launch command not found: "+path, err)
		}
		if os.IsPermission(err) {
			return errors.NewPermissionError("launch command not accessible: "+path, err)
		}
		return errors.NewIOError("failed to stat launch command: "+path, err)
	}
	if info.IsDir() {
		return errors.NewValidationError("launch command is a directory: "+path, nil)
	}
	return nil
}

// ValidatePort validates a TCP/UDP port number
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return errors.NewValidationError("port must be between 1 and 65535", nil).WithContext("port", port)
	}
	return nil
}
