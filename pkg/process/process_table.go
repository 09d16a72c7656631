package process

// Socket is one inet socket held open by a process
type Socket struct {
	Protocol  string // "tcp", "tcp6", "udp", "udp6"
	LocalPort int
}

// ProcessEntry is a live process seen in a ProcessTable snapshot.
// Sockets may fail when the process exited or its descriptors are not readable.
type ProcessEntry interface {
	PID() int
	Name() string
	Sockets() ([]Socket, error)
}

// ProcessTable enumerates live processes of the host
type ProcessTable interface {
	Processes() ([]ProcessEntry, error)
}

// ProcessHandle identifies a discovered process. It is a PID, not an owned handle:
// the process may exit at any time after discovery.
type ProcessHandle struct {
	PID  int
	Name string
}
