package cuckoo

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/pelikan-go/pelikan/internal/constants"
)

// datapool is a memory-mapped region backing a cuckoo table's cells,
// grounded on original_source's test/datapool/check_datapool.c
// (datapool_open/datapool_size/datapool_addr/datapool_close) and
// spec.md §6 "Persisted state (cuckoo only)". The first
// constants.CuckooHeaderSize bytes hold a fixed header: magic, a
// signature string up to CuckooSignatureMaxLen bytes, and the pool size.
// Everything past the header is the raw cell storage cuckoo.Store writes
// its Item cells into, so a process restart against the same file and
// signature picks up exactly where it left off.
type datapool struct {
	file  *os.File
	data  []byte // full mmap, header + body
	fresh bool   // true if the file was just created or reinitialized
}

const (
	magicOffset = 0
	sizeOffset  = 4
	sigLenOffset = 12
	sigOffset    = 13
)

// openDatapool opens (or creates) path, mapping headerSize+bodySize bytes.
// signature must be non-empty and at most constants.CuckooSignatureMaxLen
// bytes. A mismatched magic or recorded size causes the region to be
// treated as fresh (zeroed); a mismatched signature is a hard error,
// mirroring the original's "mismatch in signature is a hard error" rule.
func openDatapool(path, signature string, bodySize int) (*datapool, error) {
	if len(signature) == 0 || len(signature) > constants.CuckooSignatureMaxLen {
		return nil, fmt.Errorf("cuckoo: signature must be 1..%d bytes, got %d", constants.CuckooSignatureMaxLen, len(signature))
	}

	total := constants.CuckooHeaderSize + bodySize
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "cuckoo: open datapool %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "cuckoo: stat datapool %s", path)
	}
	needsInit := info.Size() != int64(total)
	if needsInit {
		if err := f.Truncate(int64(total)); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "cuckoo: grow datapool %s to %d bytes", path, total)
		}
	}

	// Mmap failures here are frequently ENOMEM on an oversized table; a
	// stack trace is worth the extra allocation since this path only runs
	// once at startup.
	data, err := unix.Mmap(int(f.Fd()), 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "cuckoo: mmap datapool %s (%d bytes)", path, total)
	}

	dp := &datapool{file: f, data: data}

	magic := binary.LittleEndian.Uint32(data[magicOffset:])
	size := binary.LittleEndian.Uint64(data[sizeOffset:])
	if !needsInit && magic == constants.CuckooMagic && size == uint64(bodySize) {
		storedSigLen := int(data[sigLenOffset])
		stored := string(data[sigOffset : sigOffset+storedSigLen])
		if stored != signature {
			unix.Munmap(data)
			f.Close()
			return nil, fmt.Errorf("cuckoo: datapool signature mismatch: file has %q, want %q", stored, signature)
		}
		return dp, nil
	}

	// Fresh (or size-mismatched) pool: rewrite the header and zero the body.
	for i := range data {
		data[i] = 0
	}
	binary.LittleEndian.PutUint32(data[magicOffset:], constants.CuckooMagic)
	binary.LittleEndian.PutUint64(data[sizeOffset:], uint64(bodySize))
	data[sigLenOffset] = byte(len(signature))
	copy(data[sigOffset:], signature)
	dp.fresh = true
	return dp, nil
}

// body returns the cell-storage region, past the fixed header.
func (d *datapool) body() []byte {
	return d.data[constants.CuckooHeaderSize:]
}

func (d *datapool) close() error {
	if err := unix.Munmap(d.data); err != nil {
		d.file.Close()
		return err
	}
	return d.file.Close()
}
