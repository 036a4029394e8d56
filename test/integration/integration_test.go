//go:build integration

// Package integration exercises a real running Server over TCP,
// mirroring the teacher's test/integration split against test/unit.
package integration

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	pelikan "github.com/pelikan-go/pelikan"
)

func startServer(t *testing.T, engine pelikan.EngineKind) *pelikan.Server {
	t.Helper()
	params := pelikan.DefaultParams()
	params.Host = "127.0.0.1"
	params.Port = 0
	params.AdminPort = 0
	params.Engine = engine

	srv, err := pelikan.CreateAndServe(context.Background(), params, &pelikan.Options{})
	if err != nil {
		t.Fatalf("CreateAndServe failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		pelikan.Shutdown(ctx, srv)
	})
	return srv
}

func dial(t *testing.T, addr string) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	return conn, bufio.NewReader(conn)
}

func TestSetGetRoundTripTwemcache(t *testing.T) {
	srv := startServer(t, pelikan.EngineTwemcache)
	conn, r := dial(t, srv.ListenAddr())
	defer conn.Close()

	if _, err := conn.Write([]byte("set foo 0 0 3\r\nbar\r\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if line != "STORED\r\n" {
		t.Fatalf("got %q, want STORED", line)
	}

	if _, err := conn.Write([]byte("get foo\r\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	valueLine, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if valueLine != "VALUE foo 0 3\r\n" {
		t.Fatalf("got %q, want VALUE header", valueLine)
	}
	data, err := r.ReadString('\n')
	if err != nil || data != "bar\r\n" {
		t.Fatalf("got %q, %v, want \"bar\\r\\n\"", data, err)
	}
	end, err := r.ReadString('\n')
	if err != nil || end != "END\r\n" {
		t.Fatalf("got %q, %v, want END", end, err)
	}
}

func TestSetGetRoundTripSlimcache(t *testing.T) {
	srv := startServer(t, pelikan.EngineSlimcache)
	conn, r := dial(t, srv.ListenAddr())
	defer conn.Close()

	if _, err := conn.Write([]byte("set baz 0 0 2\r\nhi\r\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	line, err := r.ReadString('\n')
	if err != nil || line != "STORED\r\n" {
		t.Fatalf("got %q, %v, want STORED", line, err)
	}
}

func TestStatsAndQuitOverAdminListener(t *testing.T) {
	srv := startServer(t, pelikan.EngineTwemcache)
	conn, r := dial(t, srv.AdminAddr())
	defer conn.Close()

	if _, err := conn.Write([]byte("stats\r\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if line == "END\r\n" {
			break
		}
	}
}
