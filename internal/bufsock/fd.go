package bufsock

import (
	"fmt"
	"net"
	"syscall"
)

// connFD extracts the raw file descriptor backing conn so the reactor
// can register it directly with epoll/kqueue, mirroring how the teacher's
// internal/uring layer operates on raw fds rather than Go's runtime
// poller. conn must be a *net.TCPConn (or anything exposing SyscallConn).
func connFD(conn net.Conn) (int, error) {
	sccon, ok := conn.(interface {
		SyscallConn() (syscall.RawConn, error)
	})
	if !ok {
		return 0, fmt.Errorf("bufsock: connection type %T does not support SyscallConn", conn)
	}
	raw, err := sccon.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	if err := raw.Control(func(p uintptr) {
		fd = int(p)
	}); err != nil {
		return 0, err
	}
	return fd, nil
}
