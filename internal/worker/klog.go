package worker

import (
	"github.com/sirupsen/logrus"

	"github.com/pelikan-go/pelikan/internal/codec"
)

// klog emits one sampled per-command access log line (spec.md §4.9 step
// 5), enriched per SPEC_FULL.md's supplemented klog fields: peer
// address, verb, the first key involved (memcached's own access logs
// only ever name the first key of a multi-get), status, and the number
// of response bytes composed for this command.
func (w *Worker) klog(conn *Connection, req *codec.Request, st codec.Status, respBytes int) {
	w.cmdSeq++
	if w.cfg.Klog == nil {
		return
	}
	rate := w.cfg.KlogSampleRate
	if rate > 1 && w.cmdSeq%rate != 0 {
		return
	}

	var key string
	if len(req.Keys) > 0 {
		key = string(req.Keys[0])
	}

	w.cfg.Klog.WithFields(logrus.Fields{
		"conn":   conn.ID,
		"peer":   conn.PeerAddr,
		"verb":   verbName(req.Verb),
		"key":    key,
		"status": st.String(),
		"bytes":  respBytes,
	}).Info("cmd")
}
