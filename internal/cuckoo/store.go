package cuckoo

import (
	"strconv"
	"time"

	"github.com/pelikan-go/pelikan/internal/codec"
	"github.com/pelikan-go/pelikan/internal/constants"
	"github.com/pelikan-go/pelikan/internal/interfaces"
	"github.com/pelikan-go/pelikan/internal/store"
)

// Config configures a Store at startup, mirroring legacy cuckoo.h's
// CUCKOO_OPTION table (cuckoo_nitem, cuckoo_item_size, cuckoo_item_cas,
// cuckoo_policy, cuckoo_displace).
type Config struct {
	NItem    int
	ItemSize int
	UseCAS   bool
	Policy   constants.CuckooPolicy

	// PersistPath, if set, backs the table with a memory-mapped file
	// whose header carries Signature (spec.md §6 "Persisted state
	// (cuckoo only)"); otherwise the table lives in a plain in-process
	// byte slice and Signature is unused.
	PersistPath string
	Signature   string

	// Now returns the current relative clock in seconds; overridable in
	// tests, defaults to a real monotonic clock when nil.
	Now func() int64

	// Observer, if non-nil, is notified of forced cuckoo evictions and
	// reclaimed-expired-cell events as they happen (spec.md §6/§4.9 step
	// 3's "evictions" and "expired" STATs). Cuckoo has no size classes,
	// so every call passes class 0.
	Observer interfaces.Observer
}

// Store is the cuckoo-table storage core (spec.md §4.8).
type Store struct {
	cfg          Config
	pool         *datapool // nil unless cfg.PersistPath is set
	cells        []*Item
	casCounter   uint64
	flushBarrier int64
	now          func() int64

	// Fresh reports whether the backing storage was freshly initialized
	// (new file, or a pre-existing file that didn't match) rather than
	// recovered from a prior run. Always true for non-persisted stores.
	Fresh bool
}

// New builds a Store with cfg.NItem preallocated, fixed-size cells,
// restoring from cfg.PersistPath if set and already populated.
func New(cfg Config) (*Store, error) {
	if cfg.Now == nil {
		start := time.Now()
		cfg.Now = func() int64 { return int64(time.Since(start).Seconds()) }
	}

	bodySize := cfg.NItem * cfg.ItemSize
	s := &Store{cfg: cfg, casCounter: 1, now: cfg.Now, Fresh: true}

	var body []byte
	if cfg.PersistPath != "" {
		pool, err := openDatapool(cfg.PersistPath, cfg.Signature, bodySize)
		if err != nil {
			return nil, err
		}
		s.pool = pool
		s.Fresh = pool.fresh
		body = pool.body()
	} else {
		body = make([]byte, bodySize)
	}

	cells := make([]*Item, cfg.NItem)
	for i := range cells {
		cells[i] = newItem(body[i*cfg.ItemSize:(i+1)*cfg.ItemSize], cfg.UseCAS)
	}
	s.cells = cells
	return s, nil
}

// Close releases the backing memory-mapped file, if any. No-op for a
// non-persisted store.
func (s *Store) Close() error {
	if s.pool == nil {
		return nil
	}
	return s.pool.close()
}

var _ store.Engine = (*Store)(nil)

func (s *Store) nextCAS() uint64 {
	v := s.casCounter
	s.casCounter++
	return v
}

// lookup returns the occupying item and its cell index for key, or
// (nil, -1) on a miss, mirroring cuckoo_lookup: scan all D candidate
// positions and return the first valid match.
func (s *Store) lookup(key []byte) (*Item, int) {
	cand := positions(key, len(s.cells))
	for _, p := range cand {
		it := s.cells[p]
		if it.IsValid(s.now(), s.flushBarrier) && string(it.Key()) == string(key) {
			return it, p
		}
	}
	return nil, -1
}

// Get implements store.Engine.
func (s *Store) Get(key []byte) (store.Item, codec.Status) {
	it, _ := s.lookup(key)
	if it == nil {
		return store.Item{}, codec.StatusNotFound
	}
	return store.Item{Key: it.Key(), Value: it.Value(), Flag: it.Flag(), CAS: it.CAS()}, codec.StatusOK
}

// Set implements store.Engine.
func (s *Store) Set(key, val []byte, flag uint32, expiry int32) codec.Status {
	return s.put(key, val, flag, normalizeExpiry(expiry, s.now()))
}

// Add implements store.Engine.
func (s *Store) Add(key, val []byte, flag uint32, expiry int32) codec.Status {
	if it, _ := s.lookup(key); it != nil {
		return codec.StatusOther
	}
	return s.put(key, val, flag, normalizeExpiry(expiry, s.now()))
}

// Replace implements store.Engine.
func (s *Store) Replace(key, val []byte, flag uint32, expiry int32) codec.Status {
	if it, _ := s.lookup(key); it == nil {
		return codec.StatusOther
	}
	return s.put(key, val, flag, normalizeExpiry(expiry, s.now()))
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
	it, _ := s.lookup(key)
	if it == nil {
		return codec.StatusNotFound
	}
	cur := append([]byte(nil), it.Value()...)
	combined := make([]byte, 0, len(cur)+len(val))
	if isAppend {
		combined = append(combined, cur...)
		combined = append(combined, val...)
	} else {
		combined = append(combined, val...)
		combined = append(combined, cur...)
	}
	return s.put(key, combined, it.Flag(), it.expireAt())
}

// Cas implements store.Engine.
func (s *Store) Cas(key, val []byte, flag uint32, expiry int32, cas uint64) codec.Status {
	it, _ := s.lookup(key)
	if it == nil {
		return codec.StatusNotFound
	}
	if cas == 0 || it.CAS() != cas {
		return codec.StatusOther
	}
	return s.put(key, val, flag, normalizeExpiry(expiry, s.now()))
}

// Delete implements store.Engine. Mirrors item_delete: expire = 0.
func (s *Store) Delete(key []byte) codec.Status {
	it, _ := s.lookup(key)
	if it == nil {
		return codec.StatusNotFound
	}
	it.clear()
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
	it, _ := s.lookup(key)
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
	st := s.put(key, newVal, it.Flag(), it.expireAt())
	if st != codec.StatusOK {
		return 0, st
	}
	// An existing key is always updated in its current cell (see put's
	// lookup-then-update-in-place branch above), so it is still the
	// cell holding the new value: safe to tag directly.
	it.SetIntVal(n)
	return n, codec.StatusOK
}

// Flush implements store.Engine by advancing the flush barrier and
// marking every cell empty (expire = 0), so every item is dropped
// whatever its own expiry, never-expiring ones included.
func (s *Store) Flush() {
	s.flushBarrier = s.now()
	for _, it := range s.cells {
		it.clear()
	}
}

// put installs key/val at an existing occupant's cell (update in place),
// an empty candidate cell, or a cell freed by displacement, mirroring
// cuckoo_insert/cuckoo_update.
func (s *Store) put(key, val []byte, flag uint32, expireAt int64) codec.Status {
	if len(key) == 0 || len(key) > constants.ItemMaxKLen {
		return codec.StatusInvalid
	}

	if it, _ := s.lookup(key); it != nil {
		if !it.fits(len(key), len(val)) {
			return codec.StatusOversized
		}
		it.set(key, val, flag, expireAt)
		if it.hasCAS {
			it.SetCAS(s.nextCAS())
		}
		return codec.StatusOK
	}

	if !cellFits(s.cfg.ItemSize, s.cfg.UseCAS, len(key), len(val)) {
		return codec.StatusOversized
	}
	cand := positions(key, len(s.cells))

	for _, p := range cand {
		if !s.cells[p].IsValid(s.now(), s.flushBarrier) {
			if s.cells[p].expireAt() != 0 && s.cfg.Observer != nil {
				// expireAt != 0 on an invalid cell means it held an item
				// that expired, as opposed to a pristine never-occupied
				// cell (expireAt == 0); only the former is an expiration.
				s.cfg.Observer.ObserveExpiration(0)
			}
			s.cells[p].set(key, val, flag, expireAt)
			if s.cells[p].hasCAS {
				s.cells[p].SetCAS(s.nextCAS())
			}
			return codec.StatusOK
		}
	}

	victim := selectVictim(cand, s.cells, s.cfg.Policy)
	res := s.findDisplacement(victim)
	evicted := s.applyPath(res) // frees res.path[0], evicting the tail occupant if res.evicted
	if s.cfg.Observer != nil {
		if evicted != nil {
			s.cfg.Observer.ObserveEviction(0)
		} else if res.reclaimedExpired {
			s.cfg.Observer.ObserveExpiration(0)
		}
	}

	target := res.path[0]
	s.cells[target].set(key, val, flag, expireAt)
	if s.cells[target].hasCAS {
		s.cells[target].SetCAS(s.nextCAS())
	}
	return codec.StatusOK
}

// normalizeExpiry mirrors internal/slab's rule (spec.md §9 "Expiry
// encoding ambiguity"): values in (0, 30d] are relative to now, larger
// are absolute Unix time, 0 means never. A cuckoo item is always given
// a concrete expiry even for "never", since cuckoo validity has no
// separate occupied flag (bb_item.h folds "empty" into expire == 0).
func normalizeExpiry(exptime int32, now int64) int64 {
	const thirtyDays = 30 * 86400
	const effectivelyForever = 1 << 48
	switch {
	case exptime == 0:
		return now + effectivelyForever
	case exptime < 0:
		return now // already expired
	case exptime <= thirtyDays:
		return now + int64(exptime)
	default:
		return int64(exptime)
	}
}
