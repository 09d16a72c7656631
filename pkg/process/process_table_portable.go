package process

import (
	"context"
	"syscall"

	"github.com/domestic-ai/domestic-bot/pkg/errors"

	psnet "github.com/shirou/gopsutil/v4/net"
	psprocess "github.com/shirou/gopsutil/v4/process"
)

// NewPortableProcessTable lists processes and their inet sockets through gopsutil.
// It works wherever gopsutil reports per-process connections (linux, darwin, bsd, windows).
func NewPortableProcessTable() ProcessTable {
	return &portableTable{}
}

type portableTable struct{}

func (t *portableTable) Processes() ([]ProcessEntry, error) {
	ctx := context.Background()

	procs, err := psprocess.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.NewIOError("failed to list processes", err)
	}

	entries := make([]ProcessEntry, 0, len(procs))
	for _, proc := range procs {
		entries = append(entries, &portableEntry{ctx: ctx, proc: proc})
	}
	return entries, nil
}

type portableEntry struct {
	ctx  context.Context
	proc *psprocess.Process
}

func (e *portableEntry) PID() int {
	return int(e.proc.Pid)
}

func (e *portableEntry) Name() string {
	name, err := e.proc.NameWithContext(e.ctx)
	if err != nil {
		return ""
	}
	return name
}

func (e *portableEntry) Sockets() ([]Socket, error) {
	conns, err := e.proc.ConnectionsWithContext(e.ctx)
	if err != nil {
		return nil, errors.NewPermissionError("failed to read connections", err).WithContext("pid", e.proc.Pid)
	}

	var sockets []Socket
	for _, conn := range conns {
		protocol, ok := connectionProtocol(conn)
		if !ok || conn.Laddr.Port == 0 {
			continue
		}
		sockets = append(sockets, Socket{Protocol: protocol, LocalPort: int(conn.Laddr.Port)})
	}
	return sockets, nil
}

// connectionProtocol names an inet connection; unix sockets are rejected
func connectionProtocol(conn psnet.ConnectionStat) (string, bool) {
	var protocol string
	switch conn.Type {
	case syscall.SOCK_STREAM:
		protocol = "tcp"
	case syscall.SOCK_DGRAM:
		protocol = "udp"
	default:
		return "", false
	}

	switch conn.Family {
	case syscall.AF_INET:
		return protocol, true
	case syscall.AF_INET6:
		return protocol + "6", true
	default:
		return "", false
	}
}
