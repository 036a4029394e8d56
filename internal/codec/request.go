package codec

import (
	"github.com/pelikan-go/pelikan/internal/pool"
)

// Verb identifies which command a Request carries, mirroring
// original_source's request_verb_t enum.
type Verb int

const (
	VerbUnknown Verb = iota
	VerbGet
	VerbGets
	VerbDelete
	VerbSet
	VerbAdd
	VerbReplace
	VerbCas
	VerbAppend
	VerbPrepend
	VerbIncr
	VerbDecr
	VerbStats
	VerbQuit
)

// parseState tracks where the parser is within a single request,
// mirroring bb_request.h's parse_state_t {REQ_HDR, REQ_VAL}.
type parseState int

const (
	stateHdr parseState = iota
	stateVal
)

// MaxBatchSize is the key capacity preallocated for each Request,
// mirroring the original's MAX_BATCH_SIZE array preallocation. Parse
// does not reject a multi-get with more keys; the slice grows instead.
const MaxBatchSize = 255

// Key is a borrowed view into a connection's read buffer: valid only
// until the request is Reset or the buffer is Shift-ed (spec.md §9
// "Pointer-into-buffer keys").
type Key []byte

// Request is a single parsed command. Keys and Value alias the owning
// connection's read buffer and must not be retained past Reset/Shift.
type Request struct {
	Verb Verb

	pstate  parseState
	tstate  int // sub-state within the header grammar for partial parses
	Keys    []Key
	Value   []byte
	ValLen  int // declared byte count for SET/CAS-family values, from the header

	Flag   uint32
	Expiry int32
	Delta  uint64
	CAS    uint64

	NoReply bool
	Swallow bool // true once header bytes remaining must be discarded to the next CRLF

	free bool
}

// Reset clears a Request for reuse from its pool, mirroring request_reset.
func (r *Request) Reset() {
	r.Verb = VerbUnknown
	r.pstate = stateHdr
	r.tstate = 0
	r.Keys = r.Keys[:0]
	r.Value = nil
	r.ValLen = 0
	r.Flag = 0
	r.Expiry = 0
	r.Delta = 0
	r.CAS = 0
	r.NoReply = false
	r.Swallow = false
	r.free = false
}

// NewRequest allocates a fresh Request with key-array capacity
// preallocated to MaxBatchSize, used as the freepool's Create function.
func NewRequest() *Request {
	r := &Request{Keys: make([]Key, 0, MaxBatchSize)}
	r.Reset()
	return r
}

// Pool is a bounded freepool of *Request (spec.md §9 "Pool + freelist").
type Pool = pool.Pool[Request]

// NewPool builds a Request pool bounded at max (0 = unbounded).
func NewPool(max uint32) *Pool {
	return pool.New(max, NewRequest, nil)
}
