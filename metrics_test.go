package pelikan

import (
	"testing"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m.StartTime.Load() == 0 {
		t.Error("expected StartTime to be set")
	}
	snap := m.Snapshot()
	if snap.CmdTotal != 0 {
		t.Errorf("CmdTotal = %d, want 0", snap.CmdTotal)
	}
}

func TestObserveCommand(t *testing.T) {
	m := NewMetrics()
	m.ObserveCommand("get", 5_000, true)
	m.ObserveCommand("get", 15_000, false)

	snap := m.Snapshot()
	if snap.CmdTotal != 2 {
		t.Errorf("CmdTotal = %d, want 2", snap.CmdTotal)
	}
	if snap.CmdErrors != 1 {
		t.Errorf("CmdErrors = %d, want 1", snap.CmdErrors)
	}
	if snap.AvgLatencyNs != 10_000 {
		t.Errorf("AvgLatencyNs = %d, want 10000", snap.AvgLatencyNs)
	}
}

func TestObserveBytes(t *testing.T) {
	m := NewMetrics()
	m.ObserveBytes(100, 50)
	m.ObserveBytes(10, 0)

	snap := m.Snapshot()
	if snap.BytesRead != 110 {
		t.Errorf("BytesRead = %d, want 110", snap.BytesRead)
	}
	if snap.BytesWritten != 50 {
		t.Errorf("BytesWritten = %d, want 50", snap.BytesWritten)
	}
}

func TestObserveEvictionAndExpiration(t *testing.T) {
	m := NewMetrics()
	m.ObserveEviction(0)
	m.ObserveEviction(1)
	m.ObserveExpiration(0)

	snap := m.Snapshot()
	if snap.Evictions != 2 {
		t.Errorf("Evictions = %d, want 2", snap.Evictions)
	}
	if snap.Expired != 1 {
		t.Errorf("Expired = %d, want 1", snap.Expired)
	}
}

func TestObserveConnectionTracksMax(t *testing.T) {
	m := NewMetrics()
	m.ObserveConnection(1)
	m.ObserveConnection(1)
	m.ObserveConnection(1)
	m.ObserveConnection(-1)

	snap := m.Snapshot()
	if snap.Connections != 2 {
		t.Errorf("Connections = %d, want 2", snap.Connections)
	}
	if snap.MaxConnections != 3 {
		t.Errorf("MaxConnections = %d, want 3", snap.MaxConnections)
	}
}

func TestLatencyPercentiles(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 100; i++ {
		m.ObserveCommand("get", 1_000, true)
	}
	for i := 0; i < 10; i++ {
		m.ObserveCommand("get", 1_000_000_000, true)
	}

	snap := m.Snapshot()
	if snap.LatencyP50Ns == 0 {
		t.Error("expected non-zero p50 latency")
	}
	if snap.LatencyP99Ns < snap.LatencyP50Ns {
		t.Error("expected p99 latency to be >= p50")
	}
}

func TestStatEntriesReflectSnapshot(t *testing.T) {
	m := NewMetrics()
	m.ObserveCommand("get", 1_000, true)
	m.ObserveBytes(10, 20)

	entries := m.statEntries()
	found := map[string]string{}
	for _, e := range entries {
		found[e.Name] = e.Value
	}

	if found["cmd_total"] != "1" {
		t.Errorf("cmd_total = %q, want \"1\"", found["cmd_total"])
	}
	if found["bytes_read"] != "10" {
		t.Errorf("bytes_read = %q, want \"10\"", found["bytes_read"])
	}
	if found["bytes_written"] != "20" {
		t.Errorf("bytes_written = %q, want \"20\"", found["bytes_written"])
	}
}

func TestMetricsSatisfiesObserverInterface(t *testing.T) {
	var observer interface {
		ObserveCommand(verb string, latencyNs uint64, success bool)
		ObserveBytes(read, written uint64)
		ObserveEviction(class int)
		ObserveExpiration(class int)
		ObserveConnection(delta int)
	} = NewMetrics()
	observer.ObserveConnection(1)
}
