package slab

import "github.com/cespare/xxhash/v2"

// hashTable is a chained, power-of-two-sized hash table of *Item, scanning
// buckets and comparing klen+key bytes on lookup (spec.md §4.7 "Hash
// table"). Uses xxhash for bucket placement — the same hash library the
// Prometheus client (and this module's metrics registry) already pulls
// in, reused here instead of hand-rolling one.
type hashTable struct {
	buckets []*Item
	mask    uint64
}

func newHashTable(hashPower uint) *hashTable {
	n := uint64(1) << hashPower
	return &hashTable{buckets: make([]*Item, n), mask: n - 1}
}

func (h *hashTable) bucketIndex(key []byte) uint64 {
	return xxhash.Sum64(key) & h.mask
}

// insert links it at the head of its bucket. Callers are responsible for
// unlinking (and freeing) any prior item with the same key first — see
// Store.put, which needs the evicted item back to recycle its cell
// (spec.md §4.7 "item_insert": "a prior item with the same key is
// unlinked first").
func (h *hashTable) insert(it *Item) {
	idx := h.bucketIndex(it.Key())
	it.next = h.buckets[idx]
	it.linked = true
	h.buckets[idx] = it
}

// lookup scans the bucket for key, returning the linked item or nil.
func (h *hashTable) lookup(key []byte) *Item {
	idx := h.bucketIndex(key)
	for it := h.buckets[idx]; it != nil; it = it.next {
		if string(it.Key()) == string(key) {
			return it
		}
	}
	return nil
}

// remove unlinks the item matching key, if any, returning it.
func (h *hashTable) remove(key []byte) *Item {
	idx := h.bucketIndex(key)
	var prev *Item
	for it := h.buckets[idx]; it != nil; it = it.next {
		if string(it.Key()) == string(key) {
			if prev == nil {
				h.buckets[idx] = it.next
			} else {
				prev.next = it.next
			}
			it.next = nil
			it.linked = false
			return it
		}
		prev = it
	}
	return nil
}

// removeSlab unlinks every item belonging to slab across all buckets,
// used by the eviction path to bulk-remove a victim slab's contents
// before recycling it (spec.md §4.7 "Allocation algorithm" step 5).
func (h *hashTable) removeSlab(victim *Slab) {
	for i, head := range h.buckets {
		var prev *Item
		for it := head; it != nil; {
			next := it.next
			if it.slab == victim {
				if prev == nil {
					h.buckets[i] = next
				} else {
					prev.next = next
				}
				it.linked = false
				it.next = nil
			} else {
				prev = it
			}
			it = next
		}
	}
}
