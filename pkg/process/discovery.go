package process

import (
	"github.com/domestic-ai/domestic-bot/pkg/errors"
	"github.com/domestic-ai/domestic-bot/pkg/logging"
)

// Discovery finds running processes by the port they bound
type Discovery struct {
	table  ProcessTable
	logger logging.Logger
}

func NewDiscovery(table ProcessTable, logger logging.Logger) *Discovery {
	return &Discovery{
		table:  table,
		logger: logger,
	}
}

// FindProcessByPort returns the first process with a local inet socket on port.
// Processes that vanish mid-scan or whose sockets cannot be read are skipped.
// found is false when no process holds the port; err is reserved for failures
// to read the process table itself.
func (d *Discovery) FindProcessByPort(port int) (handle ProcessHandle, found bool, err error) {
	if err := ValidatePort(port); err != nil {
		return ProcessHandle{}, false, err
	}

	entries, err := d.table.Processes()
	if err != nil {
		return ProcessHandle{}, false, errors.NewDiscoveryError("failed to list processes", err).WithContext("port", port)
	}

	d.logger.Debugf("Scanning %d processes for port %d", len(entries), port)

	for _, entry := range entries {
		sockets, err := entry.Sockets()
		if err != nil {
			d.logger.Debugf("Skipping process, PID: %d, error: %v", entry.PID(), err)
			continue
		}
		for _, socket := range sockets {
			if socket.LocalPort == port {
				handle := ProcessHandle{PID: entry.PID(), Name: entry.Name()}
				d.logger.Debugf("Found process on port %d, PID: %d, name: %s, protocol: %s",
					port, handle.PID, handle.Name, socket.Protocol)
				return handle, true, nil
			}
		}
	}

	return ProcessHandle{}, false, nil
}
