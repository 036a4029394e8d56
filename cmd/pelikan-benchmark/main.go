// Command pelikan-benchmark is a small load-generating client, the Go
// equivalent of original_source/client/src/client.c and
// benchmarks/bench_storage.c: it opens N connections against a running
// server, pipelines a fixed-size set-then-get workload on each, and
// reports aggregate throughput and latency once the requested duration
// elapses.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pelikan-go/pelikan/internal/sysexit"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		addr        = flag.String("addr", "127.0.0.1:12211", "server address")
		conns       = flag.Int("conns", 8, "number of concurrent connections")
		duration    = flag.Duration("duration", 5*time.Second, "benchmark duration")
		valueSize   = flag.Int("value-size", 64, "value size in bytes")
		pipelineLen = flag.Int("pipeline", 1, "requests pipelined per round trip")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *duration+2*time.Second)
	defer cancel()

	var (
		opsTotal   atomic.Uint64
		errorTotal atomic.Uint64
		latencyNs  atomic.Uint64
	)

	stop := make(chan struct{})
	time.AfterFunc(*duration, func() { close(stop) })

	var wg sync.WaitGroup
	for i := 0; i < *conns; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := runConn(ctx, *addr, id, *valueSize, *pipelineLen, stop, &opsTotal, &errorTotal, &latencyNs); err != nil {
				errorTotal.Add(1)
			}
		}(i)
	}
	wg.Wait()

	ops := opsTotal.Load()
	errs := errorTotal.Load()
	elapsed := duration.Seconds()
	var avgLatencyUs float64
	if ops > 0 {
		avgLatencyUs = float64(latencyNs.Load()) / float64(ops) / 1000.0
	}

	fmt.Printf("connections: %d\n", *conns)
	fmt.Printf("duration: %s\n", *duration)
	fmt.Printf("total ops: %d\n", ops)
	fmt.Printf("errors: %d\n", errs)
	if elapsed > 0 {
		fmt.Printf("throughput: %.1f ops/sec\n", float64(ops)/elapsed)
	}
	fmt.Printf("avg latency: %.2f us\n", avgLatencyUs)
	return sysexit.OK
}

func runConn(ctx context.Context, addr string, id, valueSize, pipelineLen int, stop <-chan struct{}, opsTotal, errorTotal, latencyNs *atomic.Uint64) error {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	value := make([]byte, valueSize)
	for i := range value {
		value[i] = 'a' + byte(i%26)
	}
	key := []byte(fmt.Sprintf("bench:%d", id))

	for {
		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		start := time.Now()
		for n := 0; n < pipelineLen; n++ {
			fmt.Fprintf(conn, "set %s 0 0 %d\r\n", key, len(value))
			conn.Write(value)
			conn.Write([]byte("\r\n"))
		}
		for n := 0; n < pipelineLen; n++ {
			if _, err := r.ReadString('\n'); err != nil {
				errorTotal.Add(1)
				return err
			}
		}

		fmt.Fprintf(conn, "get %s\r\n", key)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				errorTotal.Add(1)
				return err
			}
			if line == "END\r\n" {
				break
			}
			if len(line) >= 5 && line[:5] == "VALUE" {
				// consume the data line + trailing CRLF
				if _, err := r.ReadString('\n'); err != nil {
					errorTotal.Add(1)
					return err
				}
			}
		}

		latencyNs.Add(uint64(time.Since(start).Nanoseconds()))
		opsTotal.Add(uint64(pipelineLen + 1))
	}
}
