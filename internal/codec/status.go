// Package codec implements the memcached ASCII text protocol: parsing
// requests out of a read buffer (spec.md §4.6) and composing responses
// into a write buffer. Grounded on original_source's
// src/protocol/memcache/{bb_request.h,bb_request.c,response.h} for the
// request/response shapes and lifecycle, and on other_examples'
// codeb2cc-gomemcache client.go for idiomatic ASCII line/token scanning
// in Go.
package codec

// Status is the engine/parser/composer status enum from spec.md §7.
type Status int

const (
	StatusOK Status = iota
	StatusUnfinished
	StatusInvalid
	StatusNotFound
	StatusOversized
	StatusNoMem
	StatusOther
	StatusAgain
	StatusRDHup
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusUnfinished:
		return "UNFINISHED"
	case StatusInvalid:
		return "INVALID"
	case StatusNotFound:
		return "ENOTFOUND"
	case StatusOversized:
		return "EOVERSIZED"
	case StatusNoMem:
		return "ENOMEM"
	case StatusOther:
		return "EOTHER"
	case StatusAgain:
		return "EAGAIN"
	case StatusRDHup:
		return "ERDHUP"
	default:
		return "UNKNOWN"
	}
}
