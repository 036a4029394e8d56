package accept

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/pelikan-go/pelikan/internal/bufsock"
	"github.com/pelikan-go/pelikan/internal/constants"
	"github.com/pelikan-go/pelikan/internal/pool"
	"github.com/pelikan-go/pelikan/internal/ring"
)

func newTarget(t *testing.T) (Target, int) {
	t.Helper()
	fds, err := unix.Pipe2(unix.O_NONBLOCK)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return Target{
		Ring:     ring.New[bufsock.Sock](constants.RingArrayDefaultCap),
		WakeupFD: fds[1],
	}, fds[0]
}

func TestAcceptorHandsOffAndWakesWorker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	target, wakeupRead := newTarget(t)
	sockPool := pool.New(0, func() *bufsock.Sock { return bufsock.New(1024, 1<<20) }, nil)

	a := New(Config{
		Listener: ln,
		SockPool: sockPool,
		Workers:  []Target{target},
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = a.Run(ctx) }()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.Eventually(t, func() bool {
		return target.Ring.Len() == 1
	}, time.Second, time.Millisecond)

	sock, ok := target.Ring.Pop()
	require.True(t, ok)
	require.NotNil(t, sock.Channel)
	t.Cleanup(func() { sock.Channel.Close() })

	buf := make([]byte, 1)
	n, err := unix.Read(wakeupRead, buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

// TestAcceptorRejectsOnPoolExhaustion exhausts a bounded sock pool (nmax=1)
// before dialing, so the acceptor's Borrow call returns nil and the
// connection is closed without ever reaching the ring.
func TestAcceptorRejectsOnPoolExhaustion(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	target, _ := newTarget(t)
	sockPool := pool.New(1, func() *bufsock.Sock { return bufsock.New(1024, 1<<20) }, nil)
	held := sockPool.Borrow()
	require.NotNil(t, held)

	a := New(Config{Listener: ln, SockPool: sockPool, Workers: []Target{target}})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = a.Run(ctx) }()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	client.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	_, err = client.Read(buf)
	require.Error(t, err) // closed server-side, never handed off

	require.Equal(t, 0, target.Ring.Len())
}
