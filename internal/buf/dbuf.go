package buf

import "fmt"

// DBuf is a Buf that can grow geometrically up to maxSize and later
// shrink back toward initSize once it's mostly empty again. Ported
// from original_source/src/buffer/cc_dbuf.c's dbuf_double/dbuf_fit/
// dbuf_shrink, generalized from the C single-process-wide max_size
// global into a per-instance field.
type DBuf struct {
	*Buf
	initSize int
	maxSize  int
}

// ErrWouldExceedMax is returned when growing the buffer would exceed
// its configured maximum size.
var ErrWouldExceedMax = fmt.Errorf("dbuf: resize would exceed configured maximum size")

// NewDBuf creates a doubling buffer starting at initSize bytes,
// willing to grow up to maxSize bytes.
func NewDBuf(initSize, maxSize int) *DBuf {
	return &DBuf{
		Buf:      New(initSize),
		initSize: initSize,
		maxSize:  maxSize,
	}
}

// resize reallocates the backing array to nsize, preserving the
// relative offsets of rpos and wpos (spec.md §4.1: "Reallocation
// preserves the relative offsets of rpos and wpos").
func (d *DBuf) resize(nsize int) error {
	if nsize > d.maxSize {
		return ErrWouldExceedMax
	}
	ndata := make([]byte, nsize)
	copy(ndata, d.data[:d.wpos])
	d.data = ndata
	return nil
}

// Double grows the buffer to twice its current size, failing with
// ErrWouldExceedMax if that would exceed maxSize.
func (d *DBuf) Double() error {
	return d.resize(d.Cap() * 2)
}

// Fit left-shifts the buffer and resizes it to the smallest
// initSize*2^k total capacity that is at least cap bytes, which can be
// smaller than the current capacity. Fails if the unread region alone
// already exceeds cap.
func (d *DBuf) Fit(cap int) error {
	if d.RSize() > cap {
		return fmt.Errorf("dbuf: unread size %d exceeds requested capacity %d", d.RSize(), cap)
	}
	d.Shift()

	nsize := d.initSize
	for nsize < cap {
		nsize *= 2
	}
	if nsize != d.Cap() {
		return d.resize(nsize)
	}
	return nil
}

// Shrink left-shifts the buffer and, if it has grown past its initial
// size AND the live unread region would still fit after shrinking,
// reallocates down toward initSize. This is the two-part gate from
// original_source's dbuf_shrink, applied opportunistically by the
// process loop after a full write-drain (spec.md §4.9, SPEC_FULL.md §5
// "cc_rbuf adaptive shrink").
func (d *DBuf) Shrink() error {
	if d.Cap() <= d.initSize {
		return nil
	}
	d.Shift()

	nsize := d.initSize
	for nsize < d.RSize() {
		nsize *= 2
	}
	if nsize < d.Cap() {
		return d.resize(nsize)
	}
	return nil
}
