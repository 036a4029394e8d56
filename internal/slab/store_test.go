package slab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pelikan-go/pelikan/internal/codec"
	"github.com/pelikan-go/pelikan/internal/constants"
)

func newTestStore() *Store {
	var tick int64
	return New(Config{
		SlabSize:  64 * 1024,
		ChunkSize: 48,
		MaxBytes:  16 << 20,
		UseCAS:    true,
		UseFreeQ:  true,
		Prealloc:  false,
		HashPower: 8,
		Now:       func() int64 { return tick },
	})
}

func TestSetThenGetRoundTrip(t *testing.T) {
	s := newTestStore()
	st := s.Set([]byte("foo"), []byte("bar"), 0, 0)
	require.Equal(t, codec.StatusOK, st)

	it, st := s.Get([]byte("foo"))
	require.Equal(t, codec.StatusOK, st)
	require.Equal(t, "bar", string(it.Value))
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := newTestStore()
	_, st := s.Get([]byte("missing"))
	require.Equal(t, codec.StatusNotFound, st)
}

func TestDeleteThenGet(t *testing.T) {
	s := newTestStore()
	s.Set([]byte("foo"), []byte("bar"), 0, 0)
	require.Equal(t, codec.StatusOK, s.Delete([]byte("foo")))
	_, st := s.Get([]byte("foo"))
	require.Equal(t, codec.StatusNotFound, st)
}

func TestAddFailsIfAlreadyPresent(t *testing.T) {
	s := newTestStore()
	require.Equal(t, codec.StatusOK, s.Add([]byte("foo"), []byte("v1"), 0, 0))
	require.Equal(t, codec.StatusOther, s.Add([]byte("foo"), []byte("v2"), 0, 0))

	it, _ := s.Get([]byte("foo"))
	require.Equal(t, "v1", string(it.Value))
}

func TestCasMismatchReturnsOther(t *testing.T) {
	s := newTestStore()
	s.Set([]byte("foo"), []byte("bar"), 0, 0)
	it, _ := s.Get([]byte("foo"))

	require.Equal(t, codec.StatusOther, s.Cas([]byte("foo"), []byte("qux"), 0, 0, it.CAS+1))
	require.Equal(t, codec.StatusOK, s.Cas([]byte("foo"), []byte("qux"), 0, 0, it.CAS))
}

func TestIncrDecr(t *testing.T) {
	s := newTestStore()
	_, st := s.Incr([]byte("n"), 1)
	require.Equal(t, codec.StatusNotFound, st)

	s.Set([]byte("n"), []byte("4"), 0, 0)
	v, st := s.Incr([]byte("n"), 3)
	require.Equal(t, codec.StatusOK, st)
	require.EqualValues(t, 7, v)

	v, st = s.Decr([]byte("n"), 2)
	require.Equal(t, codec.StatusOK, st)
	require.EqualValues(t, 5, v)
}

func TestIncrDecrFastPathSurvivesOverwrite(t *testing.T) {
	s := newTestStore()
	s.Set([]byte("n"), []byte("10"), 0, 0)

	v, st := s.Incr([]byte("n"), 5)
	require.Equal(t, codec.StatusOK, st)
	require.EqualValues(t, 15, v)

	// a plain Set must invalidate the cached numeric value: re-reading
	// ASCII digits off a fresh write must still parse correctly.
	s.Set([]byte("n"), []byte("100"), 0, 0)
	v, st = s.Incr([]byte("n"), 1)
	require.Equal(t, codec.StatusOK, st)
	require.EqualValues(t, 101, v)

	it, _ := s.Get([]byte("n"))
	require.Equal(t, "101", string(it.Value))
}

func TestAppendPrepend(t *testing.T) {
	s := newTestStore()
	s.Set([]byte("k"), []byte("bb"), 0, 0)
	require.Equal(t, codec.StatusOK, s.Append([]byte("k"), []byte("cc")))
	it, _ := s.Get([]byte("k"))
	require.Equal(t, "bbcc", string(it.Value))

	require.Equal(t, codec.StatusOK, s.Prepend([]byte("k"), []byte("aa")))
	it, _ = s.Get([]byte("k"))
	require.Equal(t, "aabbcc", string(it.Value))
}

func TestOversizedValueRejected(t *testing.T) {
	s := newTestStore()
	huge := make([]byte, s.cfg.SlabSize*2)
	require.Equal(t, codec.StatusOversized, s.Set([]byte("k"), huge, 0, 0))
}

func TestFlushInvalidatesEverything(t *testing.T) {
	s := newTestStore()
	s.Set([]byte("a"), []byte("1"), 0, 0)
	s.Flush()
	_, st := s.Get([]byte("a"))
	require.Equal(t, codec.StatusNotFound, st)
}

func TestEvictionReclaimsSpaceWhenBudgetExhausted(t *testing.T) {
	s := New(Config{
		SlabSize:    4096,
		ChunkSize:   48,
		MaxBytes:    4096, // exactly one slab's worth
		UseCAS:      false,
		UseFreeQ:    true,
		EvictPolicy: constants.EvictRandomSlab,
		HashPower:   8,
		Now:         func() int64 { return 0 },
	})

	// Fill one class past its single slab's capacity so a later set must
	// evict an existing item of the same class to make room.
	c := classFor(s.classes, 3, 1, false)
	require.NotNil(t, c)

	for i := 0; i < c.nitem+5; i++ {
		key := []byte{'k', byte(i)}
		st := s.Set(key, []byte("v"), 0, 0)
		require.Equal(t, codec.StatusOK, st, "set %d should succeed via eviction once the slab fills", i)
	}
}
