package bufsock

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTCPChannelFDAndIO(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	clientDone := make(chan struct{})
	go func() {
		defer close(clientDone)
		c, err := net.Dial("tcp", ln.Addr().String())
		require.NoError(t, err)
		defer c.Close()
		_, err = c.Write([]byte("ping"))
		require.NoError(t, err)
	}()

	conn, err := ln.Accept()
	require.NoError(t, err)
	defer conn.Close()

	ch, err := NewTCPChannel(conn)
	require.NoError(t, err)
	require.Greater(t, ch.FD(), 0)

	buf := make([]byte, 4)
	n, err := ch.Recv(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))

	<-clientDone
}

func TestSockResetClearsState(t *testing.T) {
	s := New(64, 1024)
	s.Data = "leftover"
	s.RBuf.Write([]byte("abc"))
	s.MarkFree()

	s.Reset()
	require.Nil(t, s.Data)
	require.Equal(t, 0, s.RBuf.RSize())
	require.False(t, s.Free())
}
