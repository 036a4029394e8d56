// Package slab implements the slab-allocator storage core (spec.md §4.7),
// grounded on original_source's src/storage/slab/{item.h,bb_slab.h}. Item
// headers are modeled as a Go struct rather than a packed byte layout —
// Go has no use for offsetof-style field packing — but key/CAS/value
// bytes are still carved out of each slab's real backing array, so the
// byte-accounting invariants from spec.md §8 ("Sum of linked items per
// class × class size ≤ slab_size × slabs-allocated-to-class") hold over
// actual memory, not just item counts.
package slab

// Item is one cache entry. It is always owned by exactly one Class and
// (while carved) one Slab; raw holds its carved cell, sliced into
// cas/key/value regions.
type Item struct {
	classID  uint8
	slab     *Slab
	raw      []byte // the cell's full carved region: [cas?][key][value]
	klen     uint8
	vlen     uint32
	hasCAS   bool
	flag     uint32
	expireAt int64 // 0 = never; else seconds since process start
	createAt int64

	linked  bool
	inFreeQ bool

	// isInt and intVal cache the parsed numeric value of a purely
	// ASCII-digit value last written by incr/decr (spec.md's "vtype /
	// integer fast path" in original_source's item.h V_STR/V_INT), so a
	// run of incr/decr calls skips the ASCII<->uint64 round trip on
	// every call. Any non-incr/decr write (store/annex) invalidates it.
	isInt  bool
	intVal uint64

	// next intrusively links this item into exactly one of: a hash
	// bucket chain (when linked) or a class free queue (when inFreeQ).
	// The two states are mutually exclusive, as in the original.
	next *Item
}

// Key returns the item's key bytes.
func (it *Item) Key() []byte {
	if it.hasCAS {
		return it.raw[8 : 8+int(it.klen)]
	}
	return it.raw[:it.klen]
}

// Value returns the item's value bytes.
func (it *Item) Value() []byte {
	start := int(it.klen)
	if it.hasCAS {
		start += 8
	}
	return it.raw[start : start+int(it.vlen)]
}

// CAS returns the item's CAS value, or 0 if CAS is disabled for this
// item (spec.md §9 "CAS of 0").
func (it *Item) CAS() uint64 {
	if !it.hasCAS {
		return 0
	}
	return beUint64(it.raw[:8])
}

// SetCAS overwrites the item's CAS value in place.
func (it *Item) SetCAS(cas uint64) {
	if it.hasCAS {
		putBeUint64(it.raw[:8], cas)
	}
}

// Flag returns the item's stored flag.
func (it *Item) Flag() uint32 { return it.flag }

// IntVal returns the item's cached integer value and whether the cache
// is valid, letting incr/decr skip reparsing the ASCII value.
func (it *Item) IntVal() (uint64, bool) { return it.intVal, it.isInt }

// SetIntVal tags the item as integer-typed with the given cached value,
// called by incr/decr after writing the ASCII representation back.
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

// IsValid reports whether the item has not expired and survives the
// flush barrier (spec.md §4.7 "item_flush logically expires everything").
// A flush invalidates by creation time, not by the item's own expiry, so
// a never-expiring item (expireAt == 0) must still be caught by it: the
// check is against createAt, independent of expireAt.
func (it *Item) IsValid(now, flushBarrier int64) bool {
	if it.createAt <= flushBarrier {
		return false
	}
	return it.expireAt == 0 || it.expireAt > now
}

// cellLen returns the number of bytes a key/value/cas combination needs
// within a slab cell.
func cellLen(klen int, vlen uint32, hasCAS bool) int {
	n := klen + int(vlen)
	if hasCAS {
		n += 8
	}
	return n
}

func beUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putBeUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
