// Package bufsock implements the buf_sock abstraction (spec.md §4.2):
// a connection bound to a read/write buffer pair plus a slot for the
// per-connection protocol state, poolable via internal/pool. The Channel
// abstraction keeps the worker's process loop transport-agnostic
// (spec.md §9 "Channel vtable"), grounded on the teacher's practice of
// hiding a raw OS resource behind a small interface (internal/interfaces)
// and on other_examples' net.Conn-wrapping connection handlers (e.g.
// nats-io gnatsd's client.go).
package bufsock

import (
	"net"

	"github.com/pelikan-go/pelikan/internal/buf"
	"github.com/pelikan-go/pelikan/internal/interfaces"
)

// Sock composes a connection, its read/write buffers, and a slot for
// whatever protocol-specific state the codec layer wants to stash between
// calls (e.g. a partially-parsed request). free guards against a double
// Return to the pool.
type Sock struct {
	Channel interfaces.Channel
	RBuf    *buf.DBuf
	WBuf    *buf.DBuf

	// Data is opaque per-connection protocol state, set by the codec
	// layer (e.g. a request being assembled across multiple reads).
	Data interface{}

	free bool
}

// New allocates a Sock with freshly sized read/write buffers. Used by
// the freepool's create function; borrowed instances are Reset instead
// of reallocated.
func New(initSize, maxSize int) *Sock {
	return &Sock{
		RBuf: buf.NewDBuf(initSize, maxSize),
		WBuf: buf.NewDBuf(initSize, maxSize),
	}
}

// Reset clears the channel and protocol state and marks the sock as
// in-use, mirroring buf_sock_reset in the original: every field is
// cleared so no byte-string from a prior connection leaks into the next
// one borrowed from the pool.
func (s *Sock) Reset() {
	s.Channel = nil
	s.Data = nil
	s.RBuf.Reset()
	s.WBuf.Reset()
	s.free = false
}

// Free reports whether this sock has already been returned to its pool.
func (s *Sock) Free() bool { return s.free }

// MarkFree flags the sock as returned, guarding against a double Return.
func (s *Sock) MarkFree() { s.free = true }

// TCPChannel adapts a net.Conn (as produced by a TCP listener's Accept)
// to interfaces.Channel.
type TCPChannel struct {
	conn   net.Conn
	connFD int
}

// NewTCPChannel wraps conn, extracting its file descriptor via
// SyscallConn for registration with the reactor's epoll/kqueue backend.
func NewTCPChannel(conn net.Conn) (*TCPChannel, error) {
	fd, err := connFD(conn)
	if err != nil {
		return nil, err
	}
	return &TCPChannel{conn: conn, connFD: fd}, nil
}

// FD returns the underlying socket descriptor.
func (c *TCPChannel) FD() int { return c.connFD }

// Recv reads into p, returning (0, io.EOF) on orderly peer close like a
// normal net.Conn.Read.
func (c *TCPChannel) Recv(p []byte) (int, error) {
	return c.conn.Read(p)
}

// Send writes p to the connection.
func (c *TCPChannel) Send(p []byte) (int, error) {
	return c.conn.Write(p)
}

// Close tears down the underlying connection.
func (c *TCPChannel) Close() error {
	return c.conn.Close()
}

var _ interfaces.Channel = (*TCPChannel)(nil)
