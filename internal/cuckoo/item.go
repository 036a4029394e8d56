// Package cuckoo implements the fixed-capacity 4-way cuckoo-hashed item
// store (spec.md §4.8, the "slimcache" core), grounded on
// original_source's src/storage/cuckoo/bb_cuckoo.c and src/cuckoo/bb_item.h.
package cuckoo

import "encoding/binary"

// Cell layout, one fixed-size chunk per candidate position, mirroring
// bb_item.h's "every item chunk starts with a header followed by
// payload" comment. Unlike internal/slab/item.go (where only the payload
// is carved from shared storage and metadata lives as ordinary Go
// fields), every field here lives inside raw: a cuckoo table is the one
// engine that can be backed by a memory-mapped file (persist.go), so an
// item's metadata must round-trip through the same bytes that get
// persisted, not through transient Go struct state.
const (
	hdrExpireOffset = 0                  // int64, 0 == empty/deleted cell
	hdrFlagOffset   = hdrExpireOffset + 8 // uint32
	hdrKlenOffset   = hdrFlagOffset + 4   // uint8
	hdrVlenOffset   = hdrKlenOffset + 1   // uint32
	hdrSize         = hdrVlenOffset + 4
)

// Item is a view over one fixed-size cell of the cuckoo table's backing
// storage (either a plain Go slice or a window into a memory-mapped
// datapool). All state lives in raw; Item carries no cached fields that
// could drift out of sync with it.
type Item struct {
	raw    []byte // hdrSize bytes of header, then optional 8-byte CAS, then key, then value
	hasCAS bool

	// isInt/intVal are a transient (non-persisted) cache of the last
	// ASCII-digit value written by incr/decr (spec.md's "vtype /
	// integer fast path"), unlike everything else on Item which lives
	// in raw. They never survive a reload from persist.go's mmap'd
	// file, which is fine: the cache is purely a same-process
	// optimization, not part of the on-disk format.
	isInt  bool
	intVal uint64
}

func newItem(raw []byte, hasCAS bool) *Item {
	return &Item{raw: raw, hasCAS: hasCAS}
}

func (it *Item) casOffset() int {
	if it.hasCAS {
		return hdrSize + 8
	}
	return hdrSize
}

func (it *Item) klen() int { return int(it.raw[hdrKlenOffset]) }
func (it *Item) vlen() int { return int(binary.BigEndian.Uint32(it.raw[hdrVlenOffset:])) }

// Key returns the key bytes currently stored in the cell.
func (it *Item) Key() []byte {
	off := it.casOffset()
	return it.raw[off : off+it.klen()]
}

// Value returns the value bytes currently stored in the cell.
func (it *Item) Value() []byte {
	off := it.casOffset() + it.klen()
	return it.raw[off : off+it.vlen()]
}

func (it *Item) CAS() uint64 {
	if !it.hasCAS {
		return 1 // CUCKOO_ITEM_CAS disabled: gets still work, per bb_item.h item_cas
	}
	return binary.BigEndian.Uint64(it.raw[hdrSize : hdrSize+8])
}

func (it *Item) SetCAS(cas uint64) {
	if it.hasCAS {
		binary.BigEndian.PutUint64(it.raw[hdrSize:hdrSize+8], cas)
	}
}

func (it *Item) Flag() uint32 { return binary.BigEndian.Uint32(it.raw[hdrFlagOffset:]) }

// IntVal returns the item's cached integer value and whether the cache
// is valid, letting incr/decr skip reparsing the ASCII value.
func (it *Item) IntVal() (uint64, bool) { return it.intVal, it.isInt }

// SetIntVal tags the item as integer-typed with the given cached value.
func (it *Item) SetIntVal(v uint64) {
	it.isInt = true
	it.intVal = v
}

// ClearIntVal invalidates the cached integer value; called whenever the
// item's value is overwritten by anything other than incr/decr.
func (it *Item) ClearIntVal() {
	it.isInt = false
	it.intVal = 0
}

func (it *Item) expireAt() int64 {
	return int64(binary.BigEndian.Uint64(it.raw[hdrExpireOffset:]))
}

func (it *Item) setExpireAt(v int64) {
	binary.BigEndian.PutUint64(it.raw[hdrExpireOffset:], uint64(v))
}

// IsValid mirrors bb_item.h's item_valid: a concrete, non-expired,
// non-flushed expiry. Empty/deleted cells carry expireAt == 0.
func (it *Item) IsValid(now, flushBarrier int64) bool {
	e := it.expireAt()
	return e > now && e > flushBarrier
}

// fits reports whether klen+vlen(+cas) fit in this cell's fixed size.
func (it *Item) fits(klen, vlen int) bool {
	return it.casOffset()+klen+vlen <= len(it.raw)
}

// cellFits is the size check used before an item exists yet, mirroring
// cuckoo_insert's "key->len + vlen(val) + ITEM_OVERHEAD > chunk_size" guard.
func cellFits(itemSize int, hasCAS bool, klen, vlen int) bool {
	overhead := hdrSize
	if hasCAS {
		overhead += 8
	}
	return overhead+klen+vlen <= itemSize
}

// set overwrites the cell's key, value, flag and expiry, mirroring
// item_set/item_update. Caller must have already checked fits().
func (it *Item) set(key, val []byte, flag uint32, expireAt int64) {
	binary.BigEndian.PutUint32(it.raw[hdrFlagOffset:], flag)
	it.raw[hdrKlenOffset] = byte(len(key))
	binary.BigEndian.PutUint32(it.raw[hdrVlenOffset:], uint32(len(val)))
	off := it.casOffset()
	copy(it.raw[off:], key)
	copy(it.raw[off+len(key):], val)
	it.ClearIntVal()
	it.setExpireAt(expireAt) // write last: this is what makes the cell valid
}

// clear marks the cell empty (item_delete: expire = 0).
func (it *Item) clear() {
	it.setExpireAt(0)
}
