package pelikan

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pelikan-go/pelikan/internal/interfaces"
)

// LatencyBuckets defines the command-latency histogram buckets in
// nanoseconds, logarithmically spaced from 1us to 10s. Grounded on the
// teacher's metrics.go LatencyBuckets, reused verbatim since command
// latency and I/O latency live on the same rough timescale.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks operational statistics for a running Server, and
// doubles as the default internal/interfaces.Observer implementation
// wired into every worker and the acceptor. Grounded on the teacher's
// Metrics (atomic-counter struct + Snapshot + Observer) in metrics.go,
// generalized from block-device read/write/discard/flush counters to
// cache-server command/byte/eviction/expiration/connection counters.
type Metrics struct {
	CmdTotal  atomic.Uint64
	CmdErrors atomic.Uint64

	BytesRead    atomic.Uint64
	BytesWritten atomic.Uint64

	Evictions atomic.Uint64
	Expired   atomic.Uint64

	Connections    atomic.Int64
	MaxConnections atomic.Int64

	TotalLatencyNs atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64

	mu       sync.Mutex
	perVerb  map[string]*verbCounters
}

type verbCounters struct {
	total atomic.Uint64
	errs  atomic.Uint64
}

// NewMetrics creates a fresh Metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{perVerb: make(map[string]*verbCounters)}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// ObserveCommand implements interfaces.Observer: records one completed
// command's verb, latency, and success for spec.md §4.9 step 3/5.
func (m *Metrics) ObserveCommand(verb string, latencyNs uint64, success bool) {
	m.CmdTotal.Add(1)
	if !success {
		m.CmdErrors.Add(1)
	}
	m.recordLatency(latencyNs)

	m.mu.Lock()
	vc, ok := m.perVerb[verb]
	if !ok {
		vc = &verbCounters{}
		m.perVerb[verb] = vc
	}
	m.mu.Unlock()
	vc.total.Add(1)
	if !success {
		vc.errs.Add(1)
	}
}

// ObserveBytes implements interfaces.Observer.
func (m *Metrics) ObserveBytes(read, written uint64) {
	m.BytesRead.Add(read)
	m.BytesWritten.Add(written)
}

// ObserveEviction implements interfaces.Observer. class is the slab
// class or cuckoo bucket the eviction came from; aggregated here since
// per-class breakdown isn't exposed over the STAT text protocol.
func (m *Metrics) ObserveEviction(class int) { m.Evictions.Add(1) }

// ObserveExpiration implements interfaces.Observer.
func (m *Metrics) ObserveExpiration(class int) { m.Expired.Add(1) }

// ObserveConnection implements interfaces.Observer: delta is +1 on
// accept, -1 on close (spec.md §4.10).
func (m *Metrics) ObserveConnection(delta int) {
	cur := m.Connections.Add(int64(delta))
	for {
		max := m.MaxConnections.Load()
		if cur <= max {
			break
		}
		if m.MaxConnections.CompareAndSwap(max, cur) {
			break
		}
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the server as stopped for uptime accounting.
func (m *Metrics) Stop() { m.StopTime.Store(time.Now().UnixNano()) }

// MetricsSnapshot is a point-in-time view of Metrics.
type MetricsSnapshot struct {
	CmdTotal  uint64
	CmdErrors uint64

	BytesRead    uint64
	BytesWritten uint64

	Evictions uint64
	Expired   uint64

	Connections    int64
	MaxConnections int64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	CmdRate   float64
	ErrorRate float64
}

// Snapshot builds a MetricsSnapshot from the current counters,
// computing derived rates and latency percentiles the same way the
// teacher's Metrics.Snapshot does (linear interpolation over the
// cumulative histogram).
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		CmdTotal:       m.CmdTotal.Load(),
		CmdErrors:      m.CmdErrors.Load(),
		BytesRead:      m.BytesRead.Load(),
		BytesWritten:   m.BytesWritten.Load(),
		Evictions:      m.Evictions.Load(),
		Expired:        m.Expired.Load(),
		Connections:    m.Connections.Load(),
		MaxConnections: m.MaxConnections.Load(),
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.CmdTotal > 0 {
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / snap.CmdTotal
		snap.ErrorRate = float64(snap.CmdErrors) / float64(snap.CmdTotal) * 100.0
	}
	if snap.UptimeNs > 0 {
		snap.CmdRate = float64(snap.CmdTotal) / (float64(snap.UptimeNs) / 1e9)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	if snap.CmdTotal > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	total := m.CmdTotal.Load()
	if total == 0 {
		return 0
	}
	targetCount := uint64(float64(total) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// statEntry is the package-local shape of a "STAT <name> <value>" line;
// internal/worker.StatEntry and internal/admin.StatEntry share this
// exact underlying struct type so a plain conversion adapts between
// them without either package importing the other.
type statEntry struct {
	Name  string
	Value string
}

// statEntries enumerates the current snapshot as STAT lines (spec.md
// §6), in a stable order.
func (m *Metrics) statEntries() []statEntry {
	snap := m.Snapshot()
	return []statEntry{
		{"cmd_total", fmt.Sprintf("%d", snap.CmdTotal)},
		{"cmd_errors", fmt.Sprintf("%d", snap.CmdErrors)},
		{"bytes_read", fmt.Sprintf("%d", snap.BytesRead)},
		{"bytes_written", fmt.Sprintf("%d", snap.BytesWritten)},
		{"evictions", fmt.Sprintf("%d", snap.Evictions)},
		{"expired", fmt.Sprintf("%d", snap.Expired)},
		{"curr_connections", fmt.Sprintf("%d", snap.Connections)},
		{"max_connections", fmt.Sprintf("%d", snap.MaxConnections)},
		{"cmd_latency_avg_ns", fmt.Sprintf("%d", snap.AvgLatencyNs)},
		{"cmd_latency_p50_ns", fmt.Sprintf("%d", snap.LatencyP50Ns)},
		{"cmd_latency_p99_ns", fmt.Sprintf("%d", snap.LatencyP99Ns)},
		{"uptime", fmt.Sprintf("%d", snap.UptimeNs/1e9)},
	}
}

var _ interfaces.Observer = (*Metrics)(nil)
