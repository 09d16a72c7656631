//go:build !linux

package process

// NewProcessTable lists processes and sockets through gopsutil
func NewProcessTable() (ProcessTable, error) {
	return NewPortableProcessTable(), nil
}
