//go:build !integration

// Package unit holds module-level tests that don't require a live
// server process, mirroring the teacher's test/unit split against
// test/integration.
package unit

import (
	"testing"

	pelikan "github.com/pelikan-go/pelikan"
	"github.com/pelikan-go/pelikan/internal/codec"
)

func TestDefaultParamsSane(t *testing.T) {
	params := pelikan.DefaultParams()
	if params.Port == 0 {
		t.Error("expected a non-zero default port")
	}
	if params.AdminPort == params.Port {
		t.Error("expected admin port to differ from the client port")
	}
}

func TestMockEngineRoundTrip(t *testing.T) {
	engine := pelikan.NewMockEngine()
	key, val := []byte("k"), []byte("v")

	if status := engine.Set(key, val, 0, 0); status != codec.StatusOK {
		t.Fatalf("Set returned status %v", status)
	}
	item, status := engine.Get(key)
	if status != codec.StatusOK {
		t.Fatalf("Get returned status %v", status)
	}
	if string(item.Value) != "v" {
		t.Errorf("Get returned value %q, want %q", item.Value, "v")
	}

	counts := engine.CallCounts()
	if counts["set"] != 1 || counts["get"] != 1 {
		t.Errorf("unexpected call counts: %+v", counts)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	err := pelikan.NewError("LISTEN", pelikan.ErrCodeListenFailed, "address in use")
	if !pelikan.IsCode(err, pelikan.ErrCodeListenFailed) {
		t.Error("expected IsCode to match ErrCodeListenFailed")
	}
}
