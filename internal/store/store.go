// Package store defines the engine-neutral interface implemented by both
// storage cores (internal/slab and internal/cuckoo), so the worker
// process loop (spec.md §4.9) can dispatch a parsed request without
// knowing which backend is running (spec.md §2's "two storage cores"
// sharing one pipeline). Grounded on the teacher's backend.Backend
// interface (backend.go) — a small, swappable interface in front of a
// concrete storage implementation (internal/backend/mem.go).
package store

import "github.com/pelikan-go/pelikan/internal/codec"

// Item is the engine-neutral view of a stored value returned to the
// worker for composing a response. Value aliases engine-owned memory and
// is only valid until the next engine call on the same key.
type Item struct {
	Key   []byte
	Value []byte
	Flag  uint32
	CAS   uint64
}

// Engine is implemented by internal/slab.Store and internal/cuckoo.Store.
// Every method maps directly onto one of spec.md §4.6's request verbs;
// Status follows the taxonomy in spec.md §7.
type Engine interface {
	// Get returns the item for key, or codec.StatusNotFound.
	Get(key []byte) (Item, codec.Status)

	// Set unconditionally stores key/val, creating or replacing.
	Set(key, val []byte, flag uint32, expiry int32) codec.Status

	// Add stores only if key is absent; codec.StatusOther ("NOT_STORED"
	// at the worker) if it already exists.
	Add(key, val []byte, flag uint32, expiry int32) codec.Status

	// Replace stores only if key is already present.
	Replace(key, val []byte, flag uint32, expiry int32) codec.Status

	// Append concatenates val onto the existing value, preserving flag
	// and expiry; codec.StatusNotFound if key is absent.
	Append(key, val []byte) codec.Status

	// Prepend concatenates val before the existing value.
	Prepend(key, val []byte) codec.Status

	// Cas stores only if the stored item's CAS equals cas.
	Cas(key, val []byte, flag uint32, expiry int32, cas uint64) codec.Status

	// Delete removes key, returning codec.StatusNotFound if absent.
	Delete(key []byte) codec.Status

	// Incr/Decr treat the stored value as a decimal-ASCII uint64,
	// returning the new value on success.
	Incr(key []byte, delta uint64) (uint64, codec.Status)
	Decr(key []byte, delta uint64) (uint64, codec.Status)

	// Flush logically expires every item: internal/slab advances a flush
	// barrier without a scan, internal/cuckoo marks every cell empty.
	Flush()
}
