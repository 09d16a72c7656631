//go:build linux

package process

import (
	goerrors "errors"
	iofs "io/fs"
	"strconv"
	"strings"

	"github.com/domestic-ai/domestic-bot/pkg/errors"

	"github.com/prometheus/procfs"
)

// NewProcessTable reads processes and sockets from /proc
func NewProcessTable() (ProcessTable, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, errors.NewIOError("failed to open procfs", err)
	}
	return &procfsTable{fs: fs}, nil
}

// NewProcessTableAt reads a procfs tree mounted at mountPoint
func NewProcessTableAt(mountPoint string) (ProcessTable, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, errors.NewIOError("failed to open procfs", err).WithContext("mount_point", mountPoint)
	}
	return &procfsTable{fs: fs}, nil
}

type procfsTable struct {
	fs procfs.FS
}

func (t *procfsTable) Processes() ([]ProcessEntry, error) {
	inodes, err := t.socketInodes()
	if err != nil {
		return nil, err
	}

	procs, err := t.fs.AllProcs()
	if err != nil {
		return nil, errors.NewIOError("failed to list processes", err)
	}

	entries := make([]ProcessEntry, 0, len(procs))
	for _, proc := range procs {
		entries = append(entries, &procfsEntry{proc: proc, inodes: inodes})
	}
	return entries, nil
}

// socketInodes maps socket inode numbers to their local ports across the
// tcp, tcp6, udp and udp6 tables. Missing tables (no IPv6) are ignored.
func (t *procfsTable) socketInodes() (map[uint64]Socket, error) {
	result := make(map[uint64]Socket)
	add := func(protocol string, inode, port uint64) {
		result[inode] = Socket{Protocol: protocol, LocalPort: int(port)}
	}

	read := 0
	var lastErr error
	record := func(err error) bool {
		if err != nil {
			if !goerrors.Is(err, iofs.ErrNotExist) {
				lastErr = err
			}
			return false
		}
		read++
		return true
	}

	if lines, err := t.fs.NetTCP(); record(err) {
		for _, line := range lines {
			add("tcp", line.Inode, line.LocalPort)
		}
	}
	if lines, err := t.fs.NetTCP6(); record(err) {
		for _, line := range lines {
			add("tcp6", line.Inode, line.LocalPort)
		}
	}
	if lines, err := t.fs.NetUDP(); record(err) {
		for _, line := range lines {
			add("udp", line.Inode, line.LocalPort)
		}
	}
	if lines, err := t.fs.NetUDP6(); record(err) {
		for _, line := range lines {
			add("udp6", line.Inode, line.LocalPort)
		}
	}

	if read == 0 && lastErr != nil {
		return nil, errors.NewIOError("failed to read socket tables", lastErr)
	}
	return result, nil
}

type procfsEntry struct {
	proc   procfs.Proc
	inodes map[uint64]Socket
}

func (e *procfsEntry) PID() int {
	return e.proc.PID
}

func (e *procfsEntry) Name() string {
	comm, err := e.proc.Comm()
	if err != nil {
		return ""
	}
	return comm
}

func (e *procfsEntry) Sockets() ([]Socket, error) {
	targets, err := e.proc.FileDescriptorTargets()
	if err != nil {
		return nil, errors.NewPermissionError("failed to read file descriptors", err).WithContext("pid", e.proc.PID)
	}

	var sockets []Socket
	for _, target := range targets {
		inode, ok := parseSocketInode(target)
		if !ok {
			continue
		}
		if socket, ok := e.inodes[inode]; ok {
			sockets = append(sockets, socket)
		}
	}
	return sockets, nil
}

// parseSocketInode extracts the inode from a "socket:[12345]" descriptor link
func parseSocketInode(target string) (uint64, bool) {
	if !strings.HasPrefix(target, "socket:[") || !strings.HasSuffix(target, "]") {
		return 0, false
	}
	inode, err := strconv.ParseUint(target[len("socket:["):len(target)-1], 10, 64)
	if err != nil {
		return 0, false
	}
	return inode, true
}
