package pelikan

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestDefaultParams(t *testing.T) {
	params := DefaultParams()
	if params.Host != DefaultHost {
		t.Errorf("Host = %q, want %q", params.Host, DefaultHost)
	}
	if params.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", params.Port, DefaultPort)
	}
	if params.Engine != EngineTwemcache {
		t.Errorf("Engine = %v, want EngineTwemcache", params.Engine)
	}
}

func TestCreateAndServeSlimcache(t *testing.T) {
	params := DefaultParams()
	params.Host = "127.0.0.1"
	params.Port = 0
	params.AdminPort = 0
	params.Engine = EngineSlimcache

	srv, err := CreateAndServe(context.Background(), params, &Options{})
	if err != nil {
		t.Fatalf("CreateAndServe failed: %v", err)
	}
	defer Shutdown(context.Background(), srv)

	if !srv.IsRunning() {
		t.Error("expected server to be running")
	}
	if srv.NumWorkers() != 1 {
		t.Errorf("NumWorkers() = %d, want 1", srv.NumWorkers())
	}
	if srv.ListenAddr() == "" {
		t.Error("expected non-empty ListenAddr")
	}
}

func TestCreateAndServeAcceptsConnections(t *testing.T) {
	params := DefaultParams()
	params.Host = "127.0.0.1"
	params.Port = 0
	params.AdminPort = 0

	srv, err := CreateAndServe(context.Background(), params, &Options{})
	if err != nil {
		t.Fatalf("CreateAndServe failed: %v", err)
	}
	defer Shutdown(context.Background(), srv)

	conn, err := net.DialTimeout("tcp", srv.ListenAddr(), time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(time.Second))
	if _, err := conn.Write([]byte("stats\r\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if n == 0 {
		t.Error("expected non-empty response")
	}
}

func TestShutdownNilServer(t *testing.T) {
	err := Shutdown(context.Background(), nil)
	if !IsCode(err, ErrCodeInvalidParameters) {
		t.Errorf("expected ErrCodeInvalidParameters, got %v", err)
	}
}

func TestShutdownStopsAcceptingConnections(t *testing.T) {
	params := DefaultParams()
	params.Host = "127.0.0.1"
	params.Port = 0
	params.AdminPort = 0

	srv, err := CreateAndServe(context.Background(), params, &Options{})
	if err != nil {
		t.Fatalf("CreateAndServe failed: %v", err)
	}
	addr := srv.ListenAddr()

	if err := Shutdown(context.Background(), srv); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if srv.IsRunning() {
		t.Error("expected server to report stopped after Shutdown")
	}

	// give the listener a moment to actually close
	time.Sleep(50 * time.Millisecond)
	if _, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		t.Error("expected dial to fail after shutdown")
	}
}

func TestBuildEngineDefaultsToTwemcache(t *testing.T) {
	params := DefaultParams()
	params.Engine = EngineKind(99)
	engine, err := buildEngine(params, nil)
	if err != nil {
		t.Fatalf("buildEngine failed: %v", err)
	}
	if engine == nil {
		t.Error("expected a non-nil engine for an unrecognized EngineKind (falls back to twemcache)")
	}
}
