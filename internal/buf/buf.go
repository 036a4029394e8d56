// Package buf provides a contiguous, pool-reusable read/write buffer
// (spec.md §3.1, §4.1), ported from the teacher's pooled-resource idiom
// (internal/queue.GetBuffer/PutBuffer) and grounded on
// original_source/src/buffer/cc_buf.c.
package buf

import "fmt"

// Buf is a contiguous byte region with begin <= rpos <= wpos <= end.
// Readable bytes are [rpos, wpos); writable bytes are [wpos, end).
type Buf struct {
	data []byte
	rpos int
	wpos int
}

// New allocates a Buf with the given total capacity.
func New(size int) *Buf {
	return &Buf{data: make([]byte, size)}
}

// Reset clears rpos/wpos back to the start, discarding any unread data.
// Mirrors buf_reset in the original, called on every freepool borrow.
func (b *Buf) Reset() {
	b.rpos = 0
	b.wpos = 0
}

// Cap returns the total buffer capacity (end - begin).
func (b *Buf) Cap() int { return len(b.data) }

// RSize returns the number of unread bytes (wpos - rpos).
func (b *Buf) RSize() int { return b.wpos - b.rpos }

// WSize returns the number of writable bytes (end - wpos).
func (b *Buf) WSize() int { return len(b.data) - b.wpos }

// Readable returns a view of the unread bytes. The slice aliases the
// buffer's backing array and is invalidated by any subsequent Shift,
// Write past capacity, or pool Return — callers must not retain it
// across those operations (spec.md §9 "Pointer-into-buffer keys").
func (b *Buf) Readable() []byte { return b.data[b.rpos:b.wpos] }

// Writable returns a view of the free tail region for in-place writes
// (e.g. a direct socket Read). Caller must call Produced(n) after
// writing n bytes into it.
func (b *Buf) Writable() []byte { return b.data[b.wpos:] }

// Produced advances wpos after the caller has written n bytes directly
// into the slice returned by Writable.
func (b *Buf) Produced(n int) {
	if n < 0 || b.wpos+n > len(b.data) {
		panic(fmt.Sprintf("buf: Produced(%d) overruns buffer (wpos=%d cap=%d)", n, b.wpos, len(b.data)))
	}
	b.wpos += n
}

// Consumed advances rpos after the caller has consumed n bytes from
// the slice returned by Readable, without copying.
func (b *Buf) Consumed(n int) {
	if n < 0 || b.rpos+n > b.wpos {
		panic(fmt.Sprintf("buf: Consumed(%d) overruns readable region (rpos=%d wpos=%d)", n, b.rpos, b.wpos))
	}
	b.rpos += n
}

// Write copies p into the writable tail, returning the number of
// bytes written (less than len(p) if the buffer doesn't have room).
func (b *Buf) Write(p []byte) int {
	n := copy(b.data[b.wpos:], p)
	b.wpos += n
	return n
}

// Read copies up to len(p) unread bytes into p, advancing rpos, and
// returns the number of bytes copied.
func (b *Buf) Read(p []byte) int {
	n := copy(p, b.data[b.rpos:b.wpos])
	b.rpos += n
	return n
}

// Shift left-shifts the unread region down to the start of the
// buffer, reclaiming the consumed prefix. Invalidates any slices
// returned by Readable/Writable taken before the call.
func (b *Buf) Shift() {
	if b.rpos == 0 {
		return
	}
	n := copy(b.data, b.data[b.rpos:b.wpos])
	b.rpos = 0
	b.wpos = n
}

// Invariant reports whether 0 <= rpos <= wpos <= cap holds, for tests
// asserting spec.md §8's buffer invariant.
func (b *Buf) Invariant() bool {
	return 0 <= b.rpos && b.rpos <= b.wpos && b.wpos <= len(b.data)
}
