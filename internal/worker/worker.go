// Package worker implements the per-connection process loop (spec.md
// §4.9): one OS thread running a single-threaded reactor that owns a
// storage engine outright and drives every accepted connection's
// read-parse-dispatch-compose-write cycle. Grounded on the teacher's
// ioLoop in internal/queue/runner.go (a pinned-thread, single-goroutine
// loop driven by repeated blocking waits on a kernel facility) and on
// spec.md §5's "storage engine owned by exactly one worker thread" rule.
package worker

import (
	"context"
	"errors"
	"io"
	"runtime"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pelikan-go/pelikan/internal/bufsock"
	"github.com/pelikan-go/pelikan/internal/codec"
	"github.com/pelikan-go/pelikan/internal/constants"
	"github.com/pelikan-go/pelikan/internal/interfaces"
	"github.com/pelikan-go/pelikan/internal/logging"
	"github.com/pelikan-go/pelikan/internal/pool"
	"github.com/pelikan-go/pelikan/internal/reactor"
	"github.com/pelikan-go/pelikan/internal/ring"
	"github.com/pelikan-go/pelikan/internal/store"

	"github.com/rs/xid"
)

// StatEntry is one "STAT <name> <value>" line (spec.md §6).
type StatEntry struct {
	Name  string
	Value string
}

// StatsProvider enumerates the current stats snapshot for a "stats"
// request. Satisfied by the root package's *Metrics (wired in by the
// server entrypoint); nil means the worker replies with a bare END.
type StatsProvider interface {
	Stats() []StatEntry
}

// Connection is a single accepted client, bound to a buf_sock and
// whatever request is currently mid-parse. ID is a short correlation ID
// surfaced in klog lines and connection-lifecycle log fields.
type Connection struct {
	Sock      *bufsock.Sock
	ID        string
	PeerAddr  string
	req       *codec.Request
	closing   bool
	wantWrite bool
}

// Config configures a Worker. Reactor, Ring and WakeupFD together form
// the acceptor->worker handoff path (spec.md §4.10): Ring carries newly
// accepted buf_socks, WakeupFD is the read end of the pipe the acceptor
// writes one byte to per push.
type Config struct {
	ID       int
	Reactor  reactor.Reactor
	Ring     *ring.Ring[bufsock.Sock]
	WakeupFD int

	Engine   store.Engine
	ReqPool  *codec.Pool
	SockPool *pool.Pool[bufsock.Sock]

	Observer interfaces.Observer
	Logger   interfaces.Logger
	Klog     *logging.Logger

	// KlogSampleRate samples one in every N completed requests into the
	// klog (spec.md §4.9 step 5); 0 or 1 logs every request.
	KlogSampleRate uint64
	// Stats answers the "stats" command (spec.md §4.9 step 3).
	Stats StatsProvider

	WaitTimeoutMs int
}

// Worker drives one reactor loop, owning its storage engine and its
// connection table exclusively (spec.md §5: no storage lock, no
// cross-thread pool traffic).
type Worker struct {
	cfg    Config
	conns  map[int]*Connection
	cmdSeq uint64
}

// New builds a Worker from cfg. The caller has already registered
// cfg.WakeupFD for read events on cfg.Reactor.
func New(cfg Config) *Worker {
	return &Worker{cfg: cfg, conns: make(map[int]*Connection)}
}

// Run pins the calling goroutine to its OS thread (mirroring the
// teacher's runtime.LockOSThread in ioLoop, since spec.md §5 models the
// worker as a single dedicated OS thread) and loops on Wait until ctx is
// cancelled or the reactor returns a fatal error.
func (w *Worker) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	timeout := constants.TimerTickDefault
	if w.cfg.WaitTimeoutMs > 0 {
		timeout = time.Duration(w.cfg.WaitTimeoutMs) * time.Millisecond
	}
	events := make([]reactor.Event, 0, constants.ReactorMaxEvents)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		evs, err := w.cfg.Reactor.Wait(events, timeout)
		if err != nil {
			return err
		}
		for _, ev := range evs {
			if ev.FD == w.cfg.WakeupFD {
				w.drainWakeup()
				continue
			}
			conn, ok := w.conns[ev.FD]
			if !ok {
				continue
			}
			if ev.Kind&reactor.Writable != 0 {
				w.flushWrite(conn)
			}
			if conn.closing {
				continue
			}
			if ev.Kind&reactor.Readable != 0 {
				w.handleReadable(conn)
			}
		}
	}
}

// drainWakeup takes up to RingArrayDefaultCap newly accepted sockets off
// the ring, registers each for read events, and drains exactly that many
// bytes from the wakeup pipe (spec.md §4.10).
func (w *Worker) drainWakeup() {
	taken := 0
	for taken < constants.RingArrayDefaultCap {
		sock, ok := w.cfg.Ring.Pop()
		if !ok {
			break
		}
		w.registerConn(sock)
		taken++
	}
	if taken == 0 {
		return
	}
	discard := make([]byte, taken)
	for {
		_, err := unix.Read(w.cfg.WakeupFD, discard)
		if err == nil || !errors.Is(err, unix.EINTR) {
			return
		}
	}
}

func (w *Worker) registerConn(sock *bufsock.Sock) {
	fd := sock.Channel.FD()
	conn := &Connection{Sock: sock, ID: xid.New().String()}
	w.conns[fd] = conn
	if err := w.cfg.Reactor.AddRead(fd); err != nil {
		if w.cfg.Logger != nil {
			w.cfg.Logger.Printf("worker %d: AddRead(%d) failed: %v", w.cfg.ID, fd, err)
		}
		w.closeConn(conn)
		return
	}
	if w.cfg.Observer != nil {
		w.cfg.Observer.ObserveConnection(1)
	}
}

// handleReadable implements spec.md §4.9 steps 1-2: grow rbuf if full,
// read once, then parse every complete request currently buffered.
func (w *Worker) handleReadable(conn *Connection) {
	if conn.Sock.RBuf.WSize() == 0 {
		if err := conn.Sock.RBuf.Double(); err != nil {
			codec.ComposeServerError(conn.Sock.WBuf, "out of buffer space")
			conn.closing = true
			w.flushWrite(conn)
			return
		}
	}

	n, err := conn.Sock.Channel.Recv(conn.Sock.RBuf.Writable())
	if n > 0 {
		conn.Sock.RBuf.Produced(n)
		if w.cfg.Observer != nil {
			w.cfg.Observer.ObserveBytes(uint64(n), 0)
		}
	}
	if err != nil {
		if !isAgain(err) {
			w.closeConn(conn)
			return
		}
	} else if n == 0 {
		w.closeConn(conn)
		return
	}

	w.processLoop(conn)
	w.flushWrite(conn)
}

// processLoop parses and dispatches every complete request currently
// readable in conn's rbuf, stopping on UNFINISHED (spec.md §4.9 step 2).
func (w *Worker) processLoop(conn *Connection) {
	for {
		if conn.req == nil {
			conn.req = w.cfg.ReqPool.Borrow()
			if conn.req == nil {
				codec.ComposeServerError(conn.Sock.WBuf, "out of memory")
				conn.closing = true
				return
			}
			conn.req.Reset()
		}

		st := codec.Parse(conn.req, conn.Sock.RBuf.Buf)
		switch st {
		case codec.StatusUnfinished:
			return
		case codec.StatusInvalid:
			codec.ComposeClientError(conn.Sock.WBuf, "bad command line format")
			conn.closing = true
			w.cfg.ReqPool.Return(conn.req)
			conn.req = nil
			return
		default: // StatusOK
			respSize := conn.Sock.WBuf.RSize()
			cmdSt := w.dispatch(conn, conn.req)
			w.klog(conn, conn.req, cmdSt, conn.Sock.WBuf.RSize()-respSize)
			if conn.req.Verb == codec.VerbQuit {
				conn.closing = true
			}
			w.cfg.ReqPool.Return(conn.req)
			conn.req = nil
			if conn.closing {
				return
			}
		}
	}
}

// flushWrite drains as much of wbuf as the channel accepts without
// blocking, registering for write readiness on a partial write (spec.md
// §7's "compose errors ... EAGAIN" propagation rule) and otherwise
// left-shifting/shrinking both buffers once the connection is drained.
func (w *Worker) flushWrite(conn *Connection) {
	var written int
	defer func() {
		if written > 0 && w.cfg.Observer != nil {
			w.cfg.Observer.ObserveBytes(0, uint64(written))
		}
	}()

	for conn.Sock.WBuf.RSize() > 0 {
		n, err := conn.Sock.Channel.Send(conn.Sock.WBuf.Readable())
		if n > 0 {
			conn.Sock.WBuf.Consumed(n)
			written += n
		}
		if err != nil {
			if isAgain(err) {
				break
			}
			w.closeConn(conn)
			return
		}
		if n == 0 {
			break
		}
	}

	fd := conn.Sock.Channel.FD()
	if conn.Sock.WBuf.RSize() > 0 {
		if !conn.wantWrite {
			_ = w.cfg.Reactor.ModReadWrite(fd)
			conn.wantWrite = true
		}
		return
	}

	if conn.wantWrite {
		_ = w.cfg.Reactor.ModRead(fd)
		conn.wantWrite = false
	}
	conn.Sock.RBuf.Shift()
	_ = conn.Sock.RBuf.Shrink()
	conn.Sock.WBuf.Shift()
	_ = conn.Sock.WBuf.Shrink()

	if conn.closing {
		w.closeConn(conn)
	}
}

// closeConn tears down a connection and returns its buf_sock to the
// pool, mirroring buf_sock_return's reset-then-free discipline.
func (w *Worker) closeConn(conn *Connection) {
	fd := conn.Sock.Channel.FD()
	_ = w.cfg.Reactor.Del(fd)
	_ = conn.Sock.Channel.Close()
	delete(w.conns, fd)

	if conn.req != nil {
		w.cfg.ReqPool.Return(conn.req)
		conn.req = nil
	}

	sock := conn.Sock
	sock.Reset()
	sock.MarkFree()
	w.cfg.SockPool.Return(sock)

	if w.cfg.Observer != nil {
		w.cfg.Observer.ObserveConnection(-1)
	}
}

// isAgain reports whether err represents "the channel would block right
// now", per spec.md §7's EAGAIN kind, rather than a fatal channel error.
// TCPChannel is backed by net.Conn, whose Read/Write block inside the Go
// runtime's own poller rather than surfacing EAGAIN directly; io.EOF and
// unix.EAGAIN/EWOULDBLOCK are checked for a future non-blocking-syscall
// Channel implementation, so this helper already does the right thing
// the day one exists.
func isAgain(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return false
	}
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
