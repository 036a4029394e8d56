package buf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufWriteReadShift(t *testing.T) {
	b := New(16)
	require.True(t, b.Invariant())

	n := b.Write([]byte("hello"))
	require.Equal(t, 5, n)
	require.Equal(t, 5, b.RSize())

	out := make([]byte, 5)
	n = b.Read(out)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(out))
	require.Equal(t, 0, b.RSize())

	require.True(t, b.Invariant())
}

func TestBufShiftReclaimsPrefix(t *testing.T) {
	b := New(8)
	b.Write([]byte("abcdefgh"))
	out := make([]byte, 4)
	b.Read(out) // consume "abcd"

	b.Shift()
	require.Equal(t, "efgh", string(b.Readable()))
	require.Equal(t, 4, b.WSize())
}

func TestBufProducedConsumedOverrunPanics(t *testing.T) {
	b := New(4)
	require.Panics(t, func() { b.Produced(5) })
	b.Write([]byte("ab"))
	require.Panics(t, func() { b.Consumed(3) })
}
