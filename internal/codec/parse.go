package codec

import (
	"bytes"
	"strconv"

	"github.com/pelikan-go/pelikan/internal/buf"
)

var crlf = []byte("\r\n")

// verbTable maps the first token of a header line to a Verb, mirroring
// original_source's req_strings table indexed by request_verb_t.
var verbTable = map[string]Verb{
	"get":     VerbGet,
	"gets":    VerbGets,
	"delete":  VerbDelete,
	"set":     VerbSet,
	"add":     VerbAdd,
	"replace": VerbReplace,
	"cas":     VerbCas,
	"append":  VerbAppend,
	"prepend": VerbPrepend,
	"incr":    VerbIncr,
	"decr":    VerbDecr,
	"stats":   VerbStats,
	"quit":    VerbQuit,
}

// hasValue reports whether verb carries a value payload after its header
// line (the SET/CAS/ADD/REPLACE/APPEND/PREPEND family).
func hasValue(v Verb) bool {
	switch v {
	case VerbSet, VerbAdd, VerbReplace, VerbCas, VerbAppend, VerbPrepend:
		return true
	default:
		return false
	}
}

// Parse consumes one request from b, writing the result into req and
// advancing b's rpos only if a complete request was parsed. It returns
// StatusUnfinished (rpos unchanged) if no full header line is yet
// available, or if the header parsed but its declared value bytes have
// not fully arrived; the caller should retry Parse once more data has
// been read into b. This re-parses the header on each retry rather than
// resuming mid-value — simpler than original_source's REQ_VAL resumption
// state and behaviorally equivalent since header parsing has no side
// effects until a request is fully recognized.
func Parse(req *Request, b *buf.Buf) Status {
	readable := b.Readable()

	idx := bytes.Index(readable, crlf)
	if idx < 0 {
		if len(readable) > constantsMaxHeaderLine {
			return StatusInvalid
		}
		return StatusUnfinished
	}
	header := readable[:idx]
	headerConsumed := idx + len(crlf)

	fields := bytes.Fields(header)
	if len(fields) == 0 {
		return StatusInvalid
	}

	verb, ok := verbTable[string(fields[0])]
	if !ok {
		return StatusInvalid
	}
	req.Verb = verb

	switch verb {
	case VerbGet, VerbGets:
		if len(fields) < 2 {
			return StatusInvalid
		}
		for _, k := range fields[1:] {
			if !validKey(k) {
				return StatusInvalid
			}
			req.Keys = append(req.Keys, Key(k))
		}
		b.Consumed(headerConsumed)
		return StatusOK

	case VerbDelete:
		return parseDelete(req, fields, b, headerConsumed)

	case VerbIncr, VerbDecr:
		return parseIncrDecr(req, fields, b, headerConsumed)

	case VerbStats:
		if len(fields) != 1 {
			return StatusInvalid
		}
		b.Consumed(headerConsumed)
		return StatusOK

	case VerbQuit:
		if len(fields) != 1 {
			return StatusInvalid
		}
		b.Consumed(headerConsumed)
		return StatusOK

	case VerbSet, VerbAdd, VerbReplace, VerbAppend, VerbPrepend:
		return parseStore(req, fields, b, readable, headerConsumed, false)

	case VerbCas:
		return parseStore(req, fields, b, readable, headerConsumed, true)
	}

	return StatusInvalid
}

// constantsMaxHeaderLine bounds how many bytes we'll scan looking for a
// CRLF before declaring the line malformed, guarding against a client
// streaming an unbounded header with no terminator.
const constantsMaxHeaderLine = 8192

func validKey(k []byte) bool {
	if len(k) == 0 || len(k) > 250 {
		return false
	}
	for _, c := range k {
		if c <= ' ' || c == 0x7f {
			return false
		}
	}
	return true
}

func parseDelete(req *Request, fields [][]byte, b *buf.Buf, headerConsumed int) Status {
	if len(fields) < 2 || len(fields) > 3 {
		return StatusInvalid
	}
	if !validKey(fields[1]) {
		return StatusInvalid
	}
	req.Keys = append(req.Keys, Key(fields[1]))
	if len(fields) == 3 {
		if !bytes.Equal(fields[2], []byte("noreply")) {
			return StatusInvalid
		}
		req.NoReply = true
	}
	b.Consumed(headerConsumed)
	return StatusOK
}

func parseIncrDecr(req *Request, fields [][]byte, b *buf.Buf, headerConsumed int) Status {
	if len(fields) < 3 || len(fields) > 4 {
		return StatusInvalid
	}
	if !validKey(fields[1]) {
		return StatusInvalid
	}
	delta, err := strconv.ParseUint(string(fields[2]), 10, 64)
	if err != nil {
		return StatusInvalid
	}
	req.Keys = append(req.Keys, Key(fields[1]))
	req.Delta = delta
	if len(fields) == 4 {
		if !bytes.Equal(fields[3], []byte("noreply")) {
			return StatusInvalid
		}
		req.NoReply = true
	}
	b.Consumed(headerConsumed)
	return StatusOK
}

// parseStore handles SET/ADD/REPLACE/APPEND/PREPEND/CAS, all of which
// share "verb key flag exptime bytes [cas] [noreply]" followed by a value
// and a trailing CRLF.
func parseStore(req *Request, fields [][]byte, b *buf.Buf, readable []byte, headerConsumed int, withCas bool) Status {
	minFields, maxFields := 5, 6
	if withCas {
		minFields, maxFields = 6, 7
	}
	if len(fields) < minFields || len(fields) > maxFields {
		return StatusInvalid
	}
	if !validKey(fields[1]) {
		return StatusInvalid
	}

	flag, err := strconv.ParseUint(string(fields[2]), 10, 32)
	if err != nil {
		return StatusInvalid
	}
	exptime, err := strconv.ParseInt(string(fields[3]), 10, 32)
	if err != nil {
		return StatusInvalid
	}
	vlen, err := strconv.ParseUint(string(fields[4]), 10, 32)
	if err != nil {
		return StatusInvalid
	}

	next := 5
	var cas uint64
	if withCas {
		cas, err = strconv.ParseUint(string(fields[5]), 10, 64)
		if err != nil {
			return StatusInvalid
		}
		next = 6
	}

	noreply := false
	if len(fields) == next+1 {
		if !bytes.Equal(fields[next], []byte("noreply")) {
			return StatusInvalid
		}
		noreply = true
	} else if len(fields) != next {
		return StatusInvalid
	}

	total := headerConsumed + int(vlen) + len(crlf)
	if len(readable) < total {
		return StatusUnfinished
	}
	valueEnd := headerConsumed + int(vlen)
	if !bytes.Equal(readable[valueEnd:total], crlf) {
		return StatusInvalid
	}

	req.Keys = append(req.Keys, Key(fields[1]))
	req.Flag = uint32(flag)
	req.Expiry = int32(exptime)
	req.ValLen = int(vlen)
	req.Value = readable[headerConsumed:valueEnd]
	req.CAS = cas
	req.NoReply = noreply

	b.Consumed(total)
	return StatusOK
}
