// Package constants collects the tunables shared across the reactor,
// storage engines, and codec so that defaults live in one place.
package constants

import "time"

// Slab engine defaults (spec.md §4.7; original_source src/storage/slab/bb_slab.h).
const (
	SlabMagic      = 0xdeadbeef
	SlabMinSize    = 512
	SlabMaxSize    = 128 << 20
	SlabSize       = 1 << 20 // DefaultSlabSize
	SlabMinChunkSize = 44    // smallest size class chunk (payload only; ItemHeaderOverhead not included)
	SlabMaxClasses   = 254   // ids 1..254; 0 reserved for aggregation, 255 invalid
	SlabClassInvalid = 255

	ItemMagic    = 0xfeedface
	ItemCASSize  = 8 // bytes
	ItemMaxKLen  = 250
	// ItemHeaderOverhead models original_source's ITEM_HDR_SIZE
	// (offsetof(struct item, end)) for size-class arithmetic; our Item
	// header lives as a Go struct rather than packed bytes, so nothing
	// is actually carved out of the slab for it and slab class sizes do
	// not include it. It sizes the default cuckoo item (DefaultParams).
	ItemHeaderOverhead = 48
	DefaultMaxValueSize = SlabSize - SlabMinChunkSize

	DefaultMaxBytes    = 1 << 30 // GiB
	DefaultHashPower   = 16
	DefaultUseCAS      = true
	DefaultUseFreeQ    = true
	DefaultPrealloc    = true
)

// Eviction policies, shared naming across slab and cuckoo engines.
type EvictPolicy int

const (
	EvictNone EvictPolicy = iota
	EvictRandomSlab
	EvictLeastRecentlyCreated
)

// Cuckoo engine defaults (spec.md §4.8; original_source src/storage/cuckoo/bb_cuckoo.c).
const (
	CuckooWays       = 4 // D
	CuckooDisplace   = 2
	DefaultCuckooItems = 1 << 20
	CuckooSignatureMaxLen = 47
	CuckooHeaderSize      = 4096
	CuckooMagic           = 0xc0ffee01
)

type CuckooPolicy int

const (
	CuckooPolicyRandom CuckooPolicy = iota
	CuckooPolicyExpire
)

// Buffer defaults (spec.md §4.1; deps/ccommon/src/cc_rbuf.c).
const (
	DefaultBufInitSize = 16 * 1024
	DefaultBufMaxSize  = 1 << 20 // cap for doubling growth
)

// Ring / acceptor-worker handoff (spec.md §4.4, §4.10).
const (
	RingArrayDefaultCap = 1024
)

// Timer wheel geometry (spec.md §4.5).
const (
	TimerTickDefault     = 100 * time.Millisecond
	TimerSlotsDefault    = 3600 // 1 slot/tick covers 1h range at 1s ticks; scaled by TimerTickDefault
	TimerMaxTicksPerExec = 10000
)

// Process loop / klog (spec.md §4.9).
const (
	DefaultKlogSampleRate = 1 // log every command by default
)

// Pool defaults (spec.md §3.3, §9 "Pool + freelist").
const (
	PoolUnbounded = 0 // nmax == 0 means create-on-demand, no cap
)

// Reactor (spec.md §4.3).
const (
	ReactorMaxEvents  = 1024
	ReactorWaitForever = -1
)

// Networking defaults.
const (
	DefaultHost       = "0.0.0.0"
	DefaultPort       = 12211
	DefaultAdminPort  = 9999
	DefaultTimeoutMs  = 100
)
