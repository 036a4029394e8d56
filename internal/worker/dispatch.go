package worker

import (
	"time"

	"github.com/pelikan-go/pelikan/internal/codec"
)

// dispatch maps one fully-parsed request onto its storage-engine call
// (or the quit/stats control verbs), composes the reply into conn's
// wbuf, and returns the representative status for klog/metrics
// (spec.md §4.9 step 3's verb table).
func (w *Worker) dispatch(conn *Connection, req *codec.Request) codec.Status {
	start := time.Now()
	var st codec.Status
	switch req.Verb {
	case codec.VerbGet, codec.VerbGets:
		st = w.dispatchGet(conn, req)
	case codec.VerbDelete:
		st = w.cfg.Engine.Delete(req.Keys[0])
		w.replySimple(conn, req, st, codec.ReplyDeleted, codec.ReplyNotFound)
	case codec.VerbSet:
		st = w.cfg.Engine.Set(req.Keys[0], req.Value, req.Flag, req.Expiry)
		w.replyStore(conn, req, st)
	case codec.VerbAdd:
		st = w.cfg.Engine.Add(req.Keys[0], req.Value, req.Flag, req.Expiry)
		w.replyStore(conn, req, st)
	case codec.VerbReplace:
		st = w.cfg.Engine.Replace(req.Keys[0], req.Value, req.Flag, req.Expiry)
		w.replyStore(conn, req, st)
	case codec.VerbCas:
		st = w.cfg.Engine.Cas(req.Keys[0], req.Value, req.Flag, req.Expiry, req.CAS)
		w.replyCas(conn, req, st)
	case codec.VerbAppend:
		st = w.cfg.Engine.Append(req.Keys[0], req.Value)
		w.replySimple(conn, req, st, codec.ReplyStored, codec.ReplyNotStored)
	case codec.VerbPrepend:
		st = w.cfg.Engine.Prepend(req.Keys[0], req.Value)
		w.replySimple(conn, req, st, codec.ReplyStored, codec.ReplyNotStored)
	case codec.VerbIncr:
		var v uint64
		v, st = w.cfg.Engine.Incr(req.Keys[0], req.Delta)
		w.replyNumeric(conn, req, v, st)
	case codec.VerbDecr:
		var v uint64
		v, st = w.cfg.Engine.Decr(req.Keys[0], req.Delta)
		w.replyNumeric(conn, req, v, st)
	case codec.VerbStats:
		w.dispatchStats(conn)
		st = codec.StatusOK
	case codec.VerbQuit:
		// No reply; the process loop closes the connection once dispatch
		// returns (spec.md §4.9 step 3).
		st = codec.StatusOK
	}

	if w.cfg.Observer != nil {
		w.cfg.Observer.ObserveCommand(verbName(req.Verb), uint64(time.Since(start).Nanoseconds()), st == codec.StatusOK)
	}
	return st
}

func (w *Worker) dispatchGet(conn *Connection, req *codec.Request) codec.Status {
	withCAS := req.Verb == codec.VerbGets
	st := codec.StatusNotFound
	for _, key := range req.Keys {
		item, itemSt := w.cfg.Engine.Get(key)
		if itemSt != codec.StatusOK {
			continue
		}
		st = codec.StatusOK
		codec.ComposeValue(conn.Sock.WBuf, codec.ValueEntry{
			Key:    item.Key,
			Flag:   item.Flag,
			Value:  item.Value,
			CAS:    item.CAS,
			HasCAS: withCAS,
		})
	}
	codec.ComposeSimple(conn.Sock.WBuf, codec.ReplyEnd)
	return st
}

func (w *Worker) dispatchStats(conn *Connection) {
	if w.cfg.Stats != nil {
		for _, e := range w.cfg.Stats.Stats() {
			codec.ComposeStat(conn.Sock.WBuf, e.Name, e.Value)
		}
	}
	codec.ComposeSimple(conn.Sock.WBuf, codec.ReplyEnd)
}

// replySimple composes onOK or onMiss depending on st, used by
// delete/append/prepend which only distinguish found vs. not-found.
func (w *Worker) replySimple(conn *Connection, req *codec.Request, st codec.Status, onOK, onMiss string) {
	if req.NoReply {
		return
	}
	switch st {
	case codec.StatusOK:
		codec.ComposeSimple(conn.Sock.WBuf, onOK)
	case codec.StatusNotFound:
		codec.ComposeSimple(conn.Sock.WBuf, onMiss)
	case codec.StatusOversized:
		codec.ComposeClientError(conn.Sock.WBuf, "object too large for cache")
	default:
		codec.ComposeServerError(conn.Sock.WBuf, "object not stored")
	}
}

// replyStore composes the set/add/replace reply family (spec.md §7).
func (w *Worker) replyStore(conn *Connection, req *codec.Request, st codec.Status) {
	if req.NoReply {
		return
	}
	switch st {
	case codec.StatusOK:
		codec.ComposeSimple(conn.Sock.WBuf, codec.ReplyStored)
	case codec.StatusOther:
		codec.ComposeSimple(conn.Sock.WBuf, codec.ReplyNotStored)
	case codec.StatusOversized:
		codec.ComposeClientError(conn.Sock.WBuf, "object too large for cache")
	case codec.StatusInvalid:
		codec.ComposeClientError(conn.Sock.WBuf, "bad data chunk")
	default:
		codec.ComposeServerError(conn.Sock.WBuf, "out of memory storing object")
	}
}

// replyCas composes the cas-specific reply: EXISTS on a CAS mismatch
// instead of NOT_STORED.
func (w *Worker) replyCas(conn *Connection, req *codec.Request, st codec.Status) {
	if req.NoReply {
		return
	}
	switch st {
	case codec.StatusOK:
		codec.ComposeSimple(conn.Sock.WBuf, codec.ReplyStored)
	case codec.StatusNotFound:
		codec.ComposeSimple(conn.Sock.WBuf, codec.ReplyNotFound)
	case codec.StatusOther:
		codec.ComposeSimple(conn.Sock.WBuf, codec.ReplyExists)
	case codec.StatusOversized:
		codec.ComposeClientError(conn.Sock.WBuf, "object too large for cache")
	default:
		codec.ComposeServerError(conn.Sock.WBuf, "out of memory storing object")
	}
}

func (w *Worker) replyNumeric(conn *Connection, req *codec.Request, v uint64, st codec.Status) {
	if req.NoReply {
		return
	}
	switch st {
	case codec.StatusOK:
		codec.ComposeNumeric(conn.Sock.WBuf, v)
	case codec.StatusNotFound:
		codec.ComposeSimple(conn.Sock.WBuf, codec.ReplyNotFound)
	default:
		codec.ComposeClientError(conn.Sock.WBuf, "cannot increment or decrement non-numeric value")
	}
}

func verbName(v codec.Verb) string {
	switch v {
	case codec.VerbGet:
		return "get"
	case codec.VerbGets:
		return "gets"
	case codec.VerbDelete:
		return "delete"
	case codec.VerbSet:
		return "set"
	case codec.VerbAdd:
		return "add"
	case codec.VerbReplace:
		return "replace"
	case codec.VerbCas:
		return "cas"
	case codec.VerbAppend:
		return "append"
	case codec.VerbPrepend:
		return "prepend"
	case codec.VerbIncr:
		return "incr"
	case codec.VerbDecr:
		return "decr"
	case codec.VerbStats:
		return "stats"
	case codec.VerbQuit:
		return "quit"
	default:
		return "unknown"
	}
}
