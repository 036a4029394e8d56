package buf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDBufDoubleUpToMax(t *testing.T) {
	d := NewDBuf(16, 64)
	require.Equal(t, 16, d.Cap())

	require.NoError(t, d.Double())
	require.Equal(t, 32, d.Cap())

	require.NoError(t, d.Double())
	require.Equal(t, 64, d.Cap())

	require.ErrorIs(t, d.Double(), ErrWouldExceedMax)
	require.Equal(t, 64, d.Cap())
}

func TestDBufFitGrowsToSmallestPowerOfTwo(t *testing.T) {
	d := NewDBuf(16, 1024)
	require.NoError(t, d.Fit(100))
	require.Equal(t, 128, d.Cap())
}

func TestDBufFitRejectsWhenUnreadExceedsCap(t *testing.T) {
	d := NewDBuf(16, 1024)
	d.Write(make([]byte, 10))
	require.Error(t, d.Fit(5))
}

func TestDBufShrinkRoundTrip(t *testing.T) {
	d := NewDBuf(16, 1024)
	require.NoError(t, d.Fit(200))
	require.Equal(t, 256, d.Cap())

	// 10 unread bytes still fit in initSize, so shrink reduces the
	// capacity toward it without dropping the unread data.
	d.Write(make([]byte, 10))
	require.NoError(t, d.Shrink())
	require.True(t, d.Cap() >= 16)

	// once drained, shrink returns to initSize.
	out := make([]byte, d.RSize())
	d.Read(out)
	require.NoError(t, d.Shrink())
	require.Equal(t, 16, d.Cap())
}

func TestDBufPreservesRelativeOffsetsAcrossResize(t *testing.T) {
	d := NewDBuf(8, 256)
	d.Write([]byte("abcd"))
	out := make([]byte, 2)
	d.Read(out) // rpos=2, wpos=4

	require.NoError(t, d.Double())
	require.Equal(t, 2, d.RSize())
	require.Equal(t, "cd", string(d.Readable()))
}
