// Package admin implements the admin thread (spec.md §4.9 item 3): a
// separate stats/quit listener plus a background goroutine that fires
// recurring maintenance callbacks (log flush, klog flush, metrics
// snapshot refresh) off a timer wheel. Grounded on
// original_source/src/core/background.c's recurring-callback loop and
// on the teacher's internal/ctrl package for a narrow, single-purpose
// control surface distinct from the worker's data path.
package admin

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/pelikan-go/pelikan/internal/interfaces"
	"github.com/pelikan-go/pelikan/internal/timer"
)

// StatEntry is one "STAT <name> <value>" line, mirroring
// internal/worker.StatEntry (kept separate to avoid an internal/worker
// <-> internal/admin import dependency neither package needs otherwise).
type StatEntry struct {
	Name  string
	Value string
}

// StatsProvider answers the admin stats listener's text-protocol "stats"
// command and is also consulted on each metrics-snapshot tick.
type StatsProvider interface {
	Stats() []StatEntry
}

// MaintenanceFunc is one recurring callback driven off the timer wheel:
// a log flush, a klog flush, or a metrics snapshot refresh.
type MaintenanceFunc func()

// Config configures an Admin.
type Config struct {
	// StatsAddr is the admin thread's own listen address for the native
	// "stats"/"quit" text endpoint (spec.md §4.9 item 3), e.g. ":9999".
	StatsAddr string
	// MetricsAddr, if non-empty, serves a Prometheus-format /metrics
	// page via promhttp alongside the native stats endpoint.
	MetricsAddr string
	Gatherer    http.Handler

	Stats StatsProvider

	// Wheel, Tick and Maintenance together implement the background
	// maintenance loop (SPEC_FULL.md §5): Execute is driven once every
	// Tick by a dedicated goroutine, and Maintenance callbacks are
	// themselves the recurring events inserted onto Wheel by the
	// caller before Run starts.
	Wheel *timer.Wheel
	Tick  time.Duration

	// Shutdown is invoked once when a client sends "quit" on the stats
	// listener, giving the caller a chance to cancel the server's
	// top-level context.
	Shutdown func()

	Logger interfaces.Logger
}

// Admin runs the admin thread's two independent duties: the stats/quit
// text listener, and the timer-wheel maintenance loop.
type Admin struct {
	cfg        Config
	statsLn    net.Listener
	metricsSrv *http.Server
}

// New builds an Admin from cfg.
func New(cfg Config) *Admin {
	return &Admin{cfg: cfg}
}

// Run starts the stats listener, the optional metrics HTTP server, and
// the maintenance ticker, supervising all three with an errgroup so that
// any one's fatal error tears down the others (mirroring aistore's use
// of x/sync/errgroup for supervising its goroutine fleet).
func (a *Admin) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.StatsAddr != "" {
		ln, err := net.Listen("tcp", a.cfg.StatsAddr)
		if err != nil {
			return fmt.Errorf("admin: listen stats: %w", err)
		}
		a.statsLn = ln
		g.Go(func() error { return a.serveStats(ctx) })
	}

	if a.cfg.MetricsAddr != "" {
		handler := a.cfg.Gatherer
		if handler == nil {
			handler = promhttp.Handler()
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", handler)
		a.metricsSrv = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}
		g.Go(func() error {
			errc := make(chan error, 1)
			go func() { errc <- a.metricsSrv.ListenAndServe() }()
			select {
			case <-ctx.Done():
				_ = a.metricsSrv.Close()
				return nil
			case err := <-errc:
				if err == http.ErrServerClosed {
					return nil
				}
				return err
			}
		})
	}

	if a.cfg.Wheel != nil && a.cfg.Tick > 0 {
		g.Go(func() error { return a.runMaintenance(ctx) })
	}

	return g.Wait()
}

// runMaintenance ticks the timer wheel once every cfg.Tick, flushing any
// remaining events on shutdown (spec.md §4.5, SPEC_FULL.md §5).
func (a *Admin) runMaintenance(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.cfg.Wheel.Flush()
			return nil
		case <-ticker.C:
			a.cfg.Wheel.Execute()
		}
	}
}

// serveStats accepts connections on the admin listener, answering the
// text-protocol "stats" and "quit" commands described in spec.md §6/§4.9
// item 3. Unlike the worker's buffered, multi-request-per-read pipeline,
// each admin connection is a short-lived one-command exchange.
func (a *Admin) serveStats(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = a.statsLn.Close()
	}()

	for {
		conn, err := a.statsLn.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if a.cfg.Logger != nil {
				a.cfg.Logger.Printf("admin: accept: %v", err)
			}
			return err
		}
		go a.handleStatsConn(conn)
	}
}

func (a *Admin) handleStatsConn(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		switch trimCRLF(line) {
		case "stats":
			a.writeStats(conn)
		case "quit":
			if a.cfg.Shutdown != nil {
				a.cfg.Shutdown()
			}
			return
		default:
			fmt.Fprintf(conn, "CLIENT_ERROR bad command line format\r\n")
			return
		}
	}
}

func (a *Admin) writeStats(conn net.Conn) {
	if a.cfg.Stats != nil {
		for _, e := range a.cfg.Stats.Stats() {
			fmt.Fprintf(conn, "STAT %s %s\r\n", e.Name, e.Value)
		}
	}
	fmt.Fprint(conn, "END\r\n")
}

func trimCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
