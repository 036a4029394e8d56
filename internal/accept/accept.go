// Package accept implements the acceptor thread (spec.md §4.10): accept a
// connection, borrow a buf_sock (or reject on pool exhaustion), push it
// onto a worker's SPSC ring, and wake that worker with a single pipe
// byte. Grounded on spec.md §4.10's three-step acceptor contract and on
// the teacher's practice of keeping a thread's single responsibility
// narrow (internal/queue.Runner owns exactly one queue; Acceptor owns
// exactly the listen socket and handoff).
//
// Unlike the worker and admin threads, the acceptor does not need its
// own epoll/kqueue reactor: net.Listener.Accept blocks the acceptor's
// goroutine cooperatively in the Go runtime's own poller without
// consuming an OS thread, which is the idiomatic Go equivalent of the
// original's single fd registered with its own event_wait loop.
package accept

import (
	"context"
	"errors"
	"net"

	"golang.org/x/sys/unix"

	"github.com/pelikan-go/pelikan/internal/bufsock"
	"github.com/pelikan-go/pelikan/internal/interfaces"
	"github.com/pelikan-go/pelikan/internal/pool"
	"github.com/pelikan-go/pelikan/internal/ring"
)

// Target is one worker's handoff endpoint: the ring it reads accepted
// sockets from, and the write end of the pipe it's woken up through.
type Target struct {
	Ring     *ring.Ring[bufsock.Sock]
	WakeupFD int
}

// Config configures an Acceptor.
type Config struct {
	Listener net.Listener
	SockPool *pool.Pool[bufsock.Sock]
	Workers  []Target

	Observer interfaces.Observer
	Logger   interfaces.Logger
}

// Acceptor runs the accept loop described in spec.md §4.10.
type Acceptor struct {
	cfg  Config
	next int
}

// New builds an Acceptor. cfg.Workers must be non-empty.
func New(cfg Config) *Acceptor {
	return &Acceptor{cfg: cfg}
}

// Run accepts connections until ctx is cancelled or the listener is
// closed, round-robining handoffs across cfg.Workers.
func (a *Acceptor) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = a.cfg.Listener.Close()
	}()

	for {
		conn, err := a.cfg.Listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if a.cfg.Logger != nil {
				a.cfg.Logger.Printf("accept: %v", err)
			}
			return err
		}
		a.handle(conn)
	}
}

// handle implements spec.md §4.10's three acceptor steps: borrow a
// buf_sock (or reject on OOM), push onto the next worker's ring, wake it.
func (a *Acceptor) handle(conn net.Conn) {
	sock := a.cfg.SockPool.Borrow()
	if sock == nil {
		// Pool exhausted: reject rather than stall waiting for a free
		// buf_sock (spec.md §4.10 "accept -> borrow a buf_sock (or reject
		// on OOM)").
		_ = conn.Close()
		return
	}

	ch, err := bufsock.NewTCPChannel(conn)
	if err != nil {
		_ = conn.Close()
		a.cfg.SockPool.Return(sock)
		return
	}
	sock.Reset()
	sock.Channel = ch

	target := a.cfg.Workers[a.next%len(a.cfg.Workers)]
	a.next++

	if !target.Ring.Push(sock) {
		a.reject(sock)
		return
	}

	if err := wake(target.WakeupFD); err != nil {
		if a.cfg.Logger != nil {
			a.cfg.Logger.Printf("accept: wakeup pipe write failed: %v", err)
		}
	}
}

// reject tears down a borrowed sock whose ring push failed, returning it
// to the pool rather than leaking it.
func (a *Acceptor) reject(sock *bufsock.Sock) {
	_ = sock.Channel.Close()
	sock.Reset()
	sock.MarkFree()
	a.cfg.SockPool.Return(sock)
}

// wake writes a single byte to fd, retrying on EINTR. A pipe write of
// one byte is always atomic per POSIX (well under PIPE_BUF), so no
// partial-write retry loop is needed here, unlike spec.md §5's general
// note about partial ring-array writes.
func wake(fd int) error {
	buf := [1]byte{1}
	for {
		_, err := unix.Write(fd, buf[:])
		if err == nil {
			return nil
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return err
	}
}
