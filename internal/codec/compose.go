package codec

import (
	"fmt"
	"strconv"

	"github.com/pelikan-go/pelikan/internal/buf"
)

// Fixed reply strings, verbatim from spec.md §6.
const (
	ReplyOK        = "OK\r\n"
	ReplyEnd       = "END\r\n"
	ReplyStored    = "STORED\r\n"
	ReplyExists    = "EXISTS\r\n"
	ReplyDeleted   = "DELETED\r\n"
	ReplyNotFound  = "NOT_FOUND\r\n"
	ReplyNotStored = "NOT_STORED\r\n"
)

// ValueEntry is one item to emit as part of a get/gets response.
type ValueEntry struct {
	Key    []byte
	Flag   uint32
	Value  []byte
	CAS    uint64 // only emitted when HasCAS is set (a "gets" request)
	HasCAS bool
}

// composeInto writes s into b's writable tail, returning the number of
// bytes written or -1 if b doesn't have room, mirroring the composer
// contract in spec.md §4.6.
func composeInto(b *buf.DBuf, s string) int {
	if b.WSize() < len(s) {
		return -1
	}
	n := b.Write([]byte(s))
	return n
}

// ComposeSimple writes one of the fixed reply strings (STORED, EXISTS,
// DELETED, NOT_FOUND, NOT_STORED, OK, END).
func ComposeSimple(b *buf.DBuf, reply string) int {
	return composeInto(b, reply)
}

// ComposeClientError writes "CLIENT_ERROR <msg>\r\n".
func ComposeClientError(b *buf.DBuf, msg string) int {
	return composeInto(b, fmt.Sprintf("CLIENT_ERROR %s\r\n", msg))
}

// ComposeServerError writes "SERVER_ERROR <msg>\r\n".
func ComposeServerError(b *buf.DBuf, msg string) int {
	return composeInto(b, fmt.Sprintf("SERVER_ERROR %s\r\n", msg))
}

// ComposeValue writes one "VALUE <key> <flag> <bytes>[ <cas>]\r\n<value>\r\n"
// entry, without the trailing END (callers append ComposeSimple(ReplyEnd)
// once after the last entry).
func ComposeValue(b *buf.DBuf, e ValueEntry) int {
	var header string
	if e.HasCAS {
		header = fmt.Sprintf("VALUE %s %d %d %d\r\n", e.Key, e.Flag, len(e.Value), e.CAS)
	} else {
		header = fmt.Sprintf("VALUE %s %d %d\r\n", e.Key, e.Flag, len(e.Value))
	}
	need := len(header) + len(e.Value) + len(crlf)
	if b.WSize() < need {
		return -1
	}
	n := b.Write([]byte(header))
	n += b.Write(e.Value)
	n += b.Write(crlf)
	return n
}

// ComposeNumeric writes "<value>\r\n", used for incr/decr replies.
func ComposeNumeric(b *buf.DBuf, v uint64) int {
	return composeInto(b, strconv.FormatUint(v, 10)+"\r\n")
}

// ComposeStat writes one "STAT <name> <value>\r\n" line. Callers must
// write a trailing ComposeSimple(ReplyEnd) after the last stat.
func ComposeStat(b *buf.DBuf, name string, value string) int {
	return composeInto(b, fmt.Sprintf("STAT %s %s\r\n", name, value))
}
