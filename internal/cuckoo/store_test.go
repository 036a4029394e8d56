package cuckoo

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pelikan-go/pelikan/internal/codec"
	"github.com/pelikan-go/pelikan/internal/constants"
)

func newTestStore(t *testing.T, nitem int, policy constants.CuckooPolicy) *Store {
	t.Helper()
	var tick int64
	s, err := New(Config{
		NItem:    nitem,
		ItemSize: 64,
		UseCAS:   true,
		Policy:   policy,
		Now:      func() int64 { return tick },
	})
	require.NoError(t, err)
	return s
}

func TestSetThenGetRoundTrip(t *testing.T) {
	s := newTestStore(t, 64, constants.CuckooPolicyRandom)
	require.Equal(t, codec.StatusOK, s.Set([]byte("foo"), []byte("bar"), 0, 0))

	it, st := s.Get([]byte("foo"))
	require.Equal(t, codec.StatusOK, st)
	require.Equal(t, "bar", string(it.Value))
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := newTestStore(t, 64, constants.CuckooPolicyRandom)
	_, st := s.Get([]byte("nope"))
	require.Equal(t, codec.StatusNotFound, st)
}

func TestDeleteThenGet(t *testing.T) {
	s := newTestStore(t, 64, constants.CuckooPolicyRandom)
	s.Set([]byte("foo"), []byte("bar"), 0, 0)
	require.Equal(t, codec.StatusOK, s.Delete([]byte("foo")))
	_, st := s.Get([]byte("foo"))
	require.Equal(t, codec.StatusNotFound, st)
}

func TestAddFailsIfAlreadyPresent(t *testing.T) {
	s := newTestStore(t, 64, constants.CuckooPolicyRandom)
	require.Equal(t, codec.StatusOK, s.Add([]byte("foo"), []byte("v1"), 0, 0))
	require.Equal(t, codec.StatusOther, s.Add([]byte("foo"), []byte("v2"), 0, 0))
}

func TestCasMismatchReturnsOther(t *testing.T) {
	s := newTestStore(t, 64, constants.CuckooPolicyRandom)
	s.Set([]byte("foo"), []byte("bar"), 0, 0)
	it, _ := s.Get([]byte("foo"))

	require.Equal(t, codec.StatusOther, s.Cas([]byte("foo"), []byte("qux"), 0, 0, it.CAS+1))
	require.Equal(t, codec.StatusOK, s.Cas([]byte("foo"), []byte("qux"), 0, 0, it.CAS))
}

func TestIncrDecr(t *testing.T) {
	s := newTestStore(t, 64, constants.CuckooPolicyRandom)
	s.Set([]byte("n"), []byte("4"), 0, 0)

	v, st := s.Incr([]byte("n"), 3)
	require.Equal(t, codec.StatusOK, st)
	require.EqualValues(t, 7, v)

	v, st = s.Decr([]byte("n"), 10)
	require.Equal(t, codec.StatusOK, st)
	require.EqualValues(t, 0, v)
}

func TestIncrDecrFastPathSurvivesOverwrite(t *testing.T) {
	s := newTestStore(t, 64, constants.CuckooPolicyRandom)
	s.Set([]byte("n"), []byte("10"), 0, 0)

	v, st := s.Incr([]byte("n"), 5)
	require.Equal(t, codec.StatusOK, st)
	require.EqualValues(t, 15, v)

	s.Set([]byte("n"), []byte("100"), 0, 0)
	v, st = s.Incr([]byte("n"), 1)
	require.Equal(t, codec.StatusOK, st)
	require.EqualValues(t, 101, v)

	it, _ := s.Get([]byte("n"))
	require.Equal(t, "101", string(it.Value))
}

func TestAppendPrepend(t *testing.T) {
	s := newTestStore(t, 64, constants.CuckooPolicyRandom)
	s.Set([]byte("k"), []byte("bb"), 0, 0)
	require.Equal(t, codec.StatusOK, s.Append([]byte("k"), []byte("cc")))
	it, _ := s.Get([]byte("k"))
	require.Equal(t, "bbcc", string(it.Value))

	require.Equal(t, codec.StatusOK, s.Prepend([]byte("k"), []byte("aa")))
	it, _ = s.Get([]byte("k"))
	require.Equal(t, "aabbcc", string(it.Value))
}

func TestOversizedValueRejected(t *testing.T) {
	s := newTestStore(t, 64, constants.CuckooPolicyRandom)
	huge := make([]byte, 128)
	require.Equal(t, codec.StatusOversized, s.Set([]byte("k"), huge, 0, 0))
}

func TestFlushInvalidatesEverything(t *testing.T) {
	s := newTestStore(t, 64, constants.CuckooPolicyRandom)
	s.Set([]byte("a"), []byte("1"), 0, 0)
	s.Flush()
	_, st := s.Get([]byte("a"))
	require.Equal(t, codec.StatusNotFound, st)
}

// TestExpirePolicyEvictsSmallerExpiryForLarger mirrors spec.md §8's
// cuckoo testable property: under the EXPIRE policy, filling the table
// completely and then inserting one more key with a larger expiry than
// everything already stored must leave that key present and must not
// grow the occupied count past nitem (something with a smaller expiry
// is evicted to make room). Bounded-depth displacement means the exact
// evicted key isn't pinned down further than "had a smaller expiry than
// the newcomer", so the assertion stays at that level rather than
// claiming a precise global ranking.
func TestExpirePolicyEvictsSmallerExpiryForLarger(t *testing.T) {
	const nitem = 32
	s := newTestStore(t, nitem, constants.CuckooPolicyExpire)

	for i := 0; i < nitem; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		exptime := int32(30*86400 + 1 + i)
		require.Equal(t, codec.StatusOK, s.Set(key, []byte("v"), 0, exptime))
	}

	overflowExptime := int32(30*86400 + 1 + nitem + 1000)
	require.Equal(t, codec.StatusOK, s.Set([]byte("overflow"), []byte("v"), 0, overflowExptime))

	_, st := s.Get([]byte("overflow"))
	require.Equal(t, codec.StatusOK, st, "the newcomer with the largest expiry must survive")

	survivors := 0
	for i := 0; i < nitem; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		if _, st := s.Get(key); st == codec.StatusOK {
			survivors++
		}
	}
	require.Equal(t, nitem-1, survivors, "exactly one original key should have been evicted to make room")
}

func TestRandomPolicyHitRate(t *testing.T) {
	const nitem = 256
	s := newTestStore(t, nitem, constants.CuckooPolicyRandom)

	keys := make([][]byte, nitem)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("key-%04d", i))
		require.Equal(t, codec.StatusOK, s.Set(keys[i], []byte("v"), 0, 0))
	}

	hits := 0
	for _, k := range keys {
		if _, st := s.Get(k); st == codec.StatusOK {
			hits++
		}
	}
	require.GreaterOrEqual(t, float64(hits)/float64(nitem), 0.90)
}

func TestPersistedTableSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cuckoo.pelikan")

	var tick int64
	cfg := Config{
		NItem:       16,
		ItemSize:    64,
		UseCAS:      true,
		Policy:      constants.CuckooPolicyRandom,
		PersistPath: path,
		Signature:   "test-signature",
		Now:         func() int64 { return tick },
	}

	s1, err := New(cfg)
	require.NoError(t, err)
	require.True(t, s1.Fresh)
	require.Equal(t, codec.StatusOK, s1.Set([]byte("durable"), []byte("value"), 0, 0))
	require.NoError(t, s1.Close())

	s2, err := New(cfg)
	require.NoError(t, err)
	require.False(t, s2.Fresh)
	it, st := s2.Get([]byte("durable"))
	require.Equal(t, codec.StatusOK, st)
	require.Equal(t, "value", string(it.Value))
	require.NoError(t, s2.Close())
}

func TestPersistedTableSignatureMismatchIsHardError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cuckoo.pelikan")

	cfg := Config{NItem: 16, ItemSize: 64, PersistPath: path, Signature: "sig-a"}
	s1, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	cfg.Signature = "sig-b"
	_, err = New(cfg)
	require.Error(t, err)
}
