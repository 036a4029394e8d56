// Package pool provides a bounded, intrusive-style free list generalizing
// original_source/legacy/deps/ccommon/include/cc_pool.h's FREEPOOL macros
// into a generic Go type, following the teacher's pooled-resource idiom in
// internal/queue/pool.go (pre-sized buckets, explicit borrow/return, no
// implicit GC-driven eviction of live objects).
package pool

import "sync"

// Pool is a bounded free list of *T. Unlike sync.Pool, items are never
// dropped by the GC while nused+nfree < nmax: Create is only called when
// the free list is empty and the pool has not yet reached nmax, mirroring
// FREEPOOL_BORROW's fall-through to allocation.
type Pool[T any] struct {
	mu      sync.Mutex
	free    []*T
	nused   uint32
	nmax    uint32
	create  func() *T
	destroy func(*T)
}

// New builds a Pool bounded at max items (0 means unbounded, per
// constants.PoolUnbounded). create allocates a fresh *T on a pool miss;
// destroy, if non-nil, is invoked by Drain on every pooled item.
func New[T any](max uint32, create func() *T, destroy func(*T)) *Pool[T] {
	return &Pool[T]{
		nmax:    max,
		create:  create,
		destroy: destroy,
	}
}

// Prealloc tops the free list up to n items, stopping early if Create
// starts returning nil (out of memory), mirroring FREEPOOL_PREALLOC.
func (p *Pool[T]) Prealloc(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.free) < n {
		v := p.create()
		if v == nil {
			break
		}
		p.free = append(p.free, v)
	}
}

// Borrow returns an item from the free list, or allocates a new one via
// Create if the pool has room (nused+nfree < nmax), or nil if the pool is
// exhausted at its configured maximum.
func (p *Pool[T]) Borrow() *T {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		v := p.free[n-1]
		p.free = p.free[:n-1]
		p.nused++
		return v
	}
	if p.nmax > 0 && uint32(len(p.free))+p.nused >= p.nmax {
		return nil
	}
	v := p.create()
	if v != nil {
		p.nused++
	}
	return v
}

// Return puts an item back onto the free list for reuse.
func (p *Pool[T]) Return(v *T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, v)
	if p.nused > 0 {
		p.nused--
	}
}

// NFree reports the number of items currently idle in the pool.
func (p *Pool[T]) NFree() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// NUsed reports the number of items currently borrowed out.
func (p *Pool[T]) NUsed() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nused
}

// Drain empties the free list, calling Destroy (if configured) on each
// item. Mirrors FREEPOOL_DESTROY; callers must ensure nused is 0 first,
// same as the original's assertion.
func (p *Pool[T]) Drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range p.free {
		if p.destroy != nil {
			p.destroy(v)
		}
	}
	p.free = nil
}
