package cuckoo

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/pelikan-go/pelikan/internal/constants"
)

// seeds mirrors bb_cuckoo.c's static iv[D] array: four arbitrary, fixed,
// distinct constants, one per candidate hash.
var seeds = [constants.CuckooWays]uint64{
	0x3ac5d673,
	0x6d7839d0,
	0x2b581cf5,
	0x4dd2be0a,
}

// positions computes the D candidate cell indices for key, mirroring
// cuckoo_hash's hashlittle(key, iv[i]) % max_item. xxhash has no public
// seeded-hash entry point, so the seed is folded in as an 8-byte prefix
// fed through a fresh digest, same idea as hashlittle's seed argument.
func positions(key []byte, nitem int) [constants.CuckooWays]int {
	var out [constants.CuckooWays]int
	var seedBuf [8]byte
	for i, seed := range seeds {
		binary.LittleEndian.PutUint64(seedBuf[:], seed)
		d := xxhash.New()
		d.Write(seedBuf[:])
		d.Write(key)
		out[i] = int(d.Sum64() % uint64(nitem))
	}
	return out
}
