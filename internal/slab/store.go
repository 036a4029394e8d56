package slab

import (
	"strconv"

	"github.com/pelikan-go/pelikan/internal/codec"
	"github.com/pelikan-go/pelikan/internal/constants"
	"github.com/pelikan-go/pelikan/internal/interfaces"
	"github.com/pelikan-go/pelikan/internal/store"
)

// Config configures a Store at startup, mirroring bb_slab.h's
// SLAB_OPTION table (prealloc, evict_opt, use_freeq, slab_size,
// chunk_size, maxbytes, use_cas).
type Config struct {
	SlabSize    int
	ChunkSize   int
	MaxBytes    int64
	UseCAS      bool
	UseFreeQ    bool
	Prealloc    bool
	EvictPolicy constants.EvictPolicy
	HashPower   uint

	// Now returns the current relative clock reading in seconds since
	// process start; overridable in tests. Defaults to a real monotonic
	// clock when nil.
	Now func() int64

	// Observer, if non-nil, is notified of slab evictions and lazy item
	// expirations as they happen (spec.md §6/§4.9 step 3's "evictions"
	// and "expired" STATs).
	Observer interfaces.Observer
}

// Store is the slab-allocator storage core (spec.md §4.7).
type Store struct {
	cfg     Config
	classes []*Class
	hash    *hashTable

	casCounter   uint64
	flushBarrier int64
	usedBytes    int64
	now          func() int64
}

// New builds a Store from cfg, generating size classes and, if
// cfg.Prealloc is set, allocating one slab per class up front.
func New(cfg Config) *Store {
	if cfg.Now == nil {
		cfg.Now = defaultClock()
	}
	s := &Store{
		cfg:        cfg,
		classes:    buildClasses(cfg.ChunkSize, cfg.SlabSize),
		hash:       newHashTable(cfg.HashPower),
		casCounter: 1, // spec.md §9 "CAS of 0": the counter starts at 1
		// -1 so IsValid's createAt<=flushBarrier check never trips before
		// the first real Flush() (real clock readings are always >= 0).
		flushBarrier: -1,
		now:          cfg.Now,
	}
	if cfg.Prealloc {
		for _, c := range s.classes {
			s.growClass(c)
		}
	}
	return s
}

var _ store.Engine = (*Store)(nil)

func (s *Store) nextCAS() uint64 {
	v := s.casCounter
	s.casCounter++
	return v
}

// Get implements store.Engine.
func (s *Store) Get(key []byte) (store.Item, codec.Status) {
	it := s.lookupValid(key)
	if it == nil {
		return store.Item{}, codec.StatusNotFound
	}
	return store.Item{Key: it.Key(), Value: it.Value(), Flag: it.Flag(), CAS: it.CAS()}, codec.StatusOK
}

// lookupValid looks up key, lazily unlinking (and freeing) an expired
// item found along the way (spec.md §4.7 "item_get").
func (s *Store) lookupValid(key []byte) *Item {
	it := s.hash.lookup(key)
	if it == nil {
		return nil
	}
	if !it.IsValid(s.now(), s.flushBarrier) {
		s.hash.remove(key)
		s.free(it)
		if s.cfg.Observer != nil {
			s.cfg.Observer.ObserveExpiration(int(it.classID))
		}
		return nil
	}
	return it
}

// Set implements store.Engine.
func (s *Store) Set(key, val []byte, flag uint32, expiry int32) codec.Status {
	return s.store(key, val, flag, expiry)
}

// Add implements store.Engine.
func (s *Store) Add(key, val []byte, flag uint32, expiry int32) codec.Status {
	if s.lookupValid(key) != nil {
		return codec.StatusOther
	}
	return s.store(key, val, flag, expiry)
}

// Replace implements store.Engine.
func (s *Store) Replace(key, val []byte, flag uint32, expiry int32) codec.Status {
	if s.lookupValid(key) == nil {
		return codec.StatusOther
	}
	return s.store(key, val, flag, expiry)
}

// Append implements store.Engine.
func (s *Store) Append(key, val []byte) codec.Status {
	return s.annex(key, val, true)
}

// Prepend implements store.Engine.
func (s *Store) Prepend(key, val []byte) codec.Status {
	return s.annex(key, val, false)
}

func (s *Store) annex(key, val []byte, isAppend bool) codec.Status {
	it := s.lookupValid(key)
	if it == nil {
		return codec.StatusNotFound
	}
	cur := it.Value()
	combined := make([]byte, 0, len(cur)+len(val))
	if isAppend {
		combined = append(combined, cur...)
		combined = append(combined, val...)
	} else {
		combined = append(combined, val...)
		combined = append(combined, cur...)
	}
	return s.storeAbsolute(key, combined, it.Flag(), it.expireAt)
}

// Cas implements store.Engine.
func (s *Store) Cas(key, val []byte, flag uint32, expiry int32, cas uint64) codec.Status {
	it := s.lookupValid(key)
	if it == nil {
		return codec.StatusNotFound
	}
	if cas == 0 || it.CAS() != cas {
		return codec.StatusOther
	}
	return s.store(key, val, flag, expiry)
}

// Delete implements store.Engine.
func (s *Store) Delete(key []byte) codec.Status {
	it := s.lookupValid(key)
	if it == nil {
		return codec.StatusNotFound
	}
	s.hash.remove(key)
	s.free(it)
	return codec.StatusOK
}

// Incr implements store.Engine.
func (s *Store) Incr(key []byte, delta uint64) (uint64, codec.Status) {
	return s.incrDecr(key, delta, true)
}

// Decr implements store.Engine.
func (s *Store) Decr(key []byte, delta uint64) (uint64, codec.Status) {
	return s.incrDecr(key, delta, false)
}

func (s *Store) incrDecr(key []byte, delta uint64, incr bool) (uint64, codec.Status) {
	it := s.lookupValid(key)
	if it == nil {
		return 0, codec.StatusNotFound
	}
	n, cached := it.IntVal()
	if !cached {
		var err error
		n, err = strconv.ParseUint(string(it.Value()), 10, 64)
		if err != nil {
			return 0, codec.StatusOther
		}
	}
	if incr {
		n += delta
	} else if delta > n {
		n = 0
	} else {
		n -= delta
	}
	newVal := []byte(strconv.FormatUint(n, 10))
	st := s.storeAbsolute(key, newVal, it.Flag(), it.expireAt)
	if st != codec.StatusOK {
		return 0, st
	}
	// storeAbsolute allocates a fresh cell (possibly a different *Item
	// than it), so re-look-up to tag the one actually holding the new
	// value with the fast-path cache (spec.md's vtype/integer fast path).
	if newIt := s.lookupValid(key); newIt != nil {
		newIt.SetIntVal(n)
	}
	return n, codec.StatusOK
}

// Flush implements store.Engine by advancing the flush barrier to now,
// so IsValid's `createAt <= flushBarrier` check rejects every item
// created up to this second, without a scan (spec.md §4.7 "item_flush").
func (s *Store) Flush() {
	s.flushBarrier = s.now()
}

// store performs the common set/replace/cas path: reserve a cell sized
// for key+val, copy the payload in, and link it into the hash table.
// expiry is the raw wire-format exptime, normalized per spec.md §9.
func (s *Store) store(key, val []byte, flag uint32, expiry int32) codec.Status {
	return s.put(key, val, flag, normalizeExpiry(expiry, s.now()))
}

// storeAbsolute is like store but takes an already-normalized absolute
// expireAt (0 = never), used by append/prepend/incr/decr to preserve the
// existing item's expiry unchanged rather than reinterpreting it as a
// fresh wire-format exptime.
func (s *Store) storeAbsolute(key, val []byte, flag uint32, expireAt int64) codec.Status {
	return s.put(key, val, flag, expireAt)
}

func (s *Store) put(key, val []byte, flag uint32, expireAt int64) codec.Status {
	if len(key) == 0 || len(key) > constants.ItemMaxKLen {
		return codec.StatusInvalid
	}
	it, st := s.reserve(len(key), uint32(len(val)))
	if st != codec.StatusOK {
		return st
	}
	copy(it.Key(), key)
	copy(it.Value(), val)
	it.flag = flag
	it.expireAt = expireAt
	it.createAt = s.now()
	it.ClearIntVal()
	if it.hasCAS {
		it.SetCAS(s.nextCAS())
	}

	if old := s.hash.remove(key); old != nil {
		s.free(old)
	}
	s.hash.insert(it)
	return codec.StatusOK
}

// normalizeExpiry applies spec.md §9's "Expiry encoding ambiguity":
// values in (0, 30*86400] are relative to now; larger values are
// absolute Unix time; 0 means never.
func normalizeExpiry(exptime int32, now int64) int64 {
	const thirtyDays = 30 * 86400
	switch {
	case exptime == 0:
		return 0
	case exptime < 0:
		return now // already expired
	case exptime <= thirtyDays:
		return now + int64(exptime)
	default:
		return int64(exptime)
	}
}

// reserve implements the allocation algorithm from spec.md §4.7.
func (s *Store) reserve(klen int, vlen uint32) (*Item, codec.Status) {
	c := classFor(s.classes, klen, vlen, s.cfg.UseCAS)
	if c == nil {
		return nil, codec.StatusOversized
	}

	if s.cfg.UseFreeQ && c.freeHead != nil {
		it := c.freeHead
		c.freeHead = it.next
		c.nFreeQ--
		it.next = nil
		it.inFreeQ = false
		return s.prepItem(it, c, klen, vlen), codec.StatusOK
	}

	if c.curSlab != nil && c.nextIdx < c.nitem {
		it := s.carve(c)
		return s.prepItem(it, c, klen, vlen), codec.StatusOK
	}

	if s.growClass(c) {
		it := s.carve(c)
		return s.prepItem(it, c, klen, vlen), codec.StatusOK
	}

	victim := pickVictim(c, s.cfg.EvictPolicy)
	if victim == nil {
		return nil, codec.StatusNoMem
	}
	s.hash.removeSlab(victim)
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveEviction(int(c.id))
	}
	c.curSlab = victim
	c.curSlab.utime = s.now()
	c.nextIdx = 0
	it := s.carve(c)
	return s.prepItem(it, c, klen, vlen), codec.StatusOK
}

func (s *Store) prepItem(it *Item, c *Class, klen int, vlen uint32) *Item {
	it.classID = c.id
	it.klen = uint8(klen)
	it.vlen = vlen
	it.hasCAS = s.cfg.UseCAS
	return it
}

// carve allocates the next never-used cell of the current slab as a
// fresh Item.
func (s *Store) carve(c *Class) *Item {
	cell := c.curSlab.cell(c.nextIdx, c.itemSize)
	c.nextIdx++
	return &Item{slab: c.curSlab, raw: cell}
}

// growClass allocates a new slab for c if the memory budget allows,
// returning false if maxBytes would be exceeded.
func (s *Store) growClass(c *Class) bool {
	if s.cfg.MaxBytes > 0 && s.usedBytes+int64(s.cfg.SlabSize) > s.cfg.MaxBytes {
		return false
	}
	sl := newSlab(c.id, s.cfg.SlabSize, s.now())
	c.slabs = append(c.slabs, sl)
	c.curSlab = sl
	c.nextIdx = 0
	s.usedBytes += int64(s.cfg.SlabSize)
	return true
}

// free returns it to its class's free queue for reuse.
func (s *Store) free(it *Item) {
	if !s.cfg.UseFreeQ {
		return
	}
	c := s.classes[it.classID-1]
	it.inFreeQ = true
	it.next = c.freeHead
	c.freeHead = it
	c.nFreeQ++
}
