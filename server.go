// Package pelikan provides the main API for running a pelikan-go cache
// server: an acceptor thread handing TCP connections off to a single
// worker thread that owns the one storage engine instance (spec.md §2,
// §4.7/§4.8), plus an admin thread for stats/quit and background
// maintenance (spec.md §4.9 item 3). Grounded on the teacher's
// CreateAndServe/Device API shape in backend.go, generalized from a
// single block device with N I/O queues to a single listener with one
// worker reactor — mirroring the original's single-threaded core
// (original_source's src/twemcache/bb_core.c, src/slimcache/bb_core.c)
// rather than introducing the partitioned-cache bug that comes from
// giving each of several workers its own independent engine: a `set`
// on one connection would be invisible to a `get` on another
// connection the acceptor happened to route to a different worker.
package pelikan

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pelikan-go/pelikan/internal/accept"
	"github.com/pelikan-go/pelikan/internal/admin"
	"github.com/pelikan-go/pelikan/internal/bufsock"
	"github.com/pelikan-go/pelikan/internal/codec"
	"github.com/pelikan-go/pelikan/internal/constants"
	"github.com/pelikan-go/pelikan/internal/cuckoo"
	"github.com/pelikan-go/pelikan/internal/interfaces"
	"github.com/pelikan-go/pelikan/internal/logging"
	"github.com/pelikan-go/pelikan/internal/pool"
	"github.com/pelikan-go/pelikan/internal/reactor"
	"github.com/pelikan-go/pelikan/internal/ring"
	"github.com/pelikan-go/pelikan/internal/slab"
	"github.com/pelikan-go/pelikan/internal/store"
	"github.com/pelikan-go/pelikan/internal/timer"
	"github.com/pelikan-go/pelikan/internal/worker"

	"golang.org/x/sys/unix"
)

// pipe2NonBlock opens a non-blocking pipe for an acceptor->worker
// wakeup channel (spec.md §4.10).
func pipe2NonBlock() ([2]int, error) {
	fds, err := unix.Pipe2(unix.O_NONBLOCK)
	if err != nil {
		return [2]int{}, err
	}
	return [2]int{fds[0], fds[1]}, nil
}

// EngineKind selects which of the two storage cores (spec.md §2) backs
// a server.
type EngineKind int

const (
	// EngineTwemcache is the slab allocator core (spec.md §4.7).
	EngineTwemcache EngineKind = iota
	// EngineSlimcache is the cuckoo hash-table core (spec.md §4.8).
	EngineSlimcache
)

// ServerParams configures a server at startup.
type ServerParams struct {
	// Engine selects the storage core. Mutually exclusive with
	// supplying a pre-built store.Engine via Options.Engine.
	Engine EngineKind

	// Host/Port is the client-facing ASCII protocol listener address.
	Host string
	Port int

	// AdminHost/AdminPort is the admin thread's stats/quit listener
	// address (spec.md §4.9 item 3).
	AdminHost string
	AdminPort int
	// MetricsAddr, if set, serves Prometheus metrics over HTTP from the
	// admin thread (SPEC_FULL.md §4).
	MetricsAddr string

	// Slab engine tunables (spec.md §4.7), used when Engine ==
	// EngineTwemcache.
	SlabSize    int
	ChunkSize   int
	MaxBytes    int64
	UseCAS      bool
	UseFreeQ    bool
	Prealloc    bool
	EvictPolicy constants.EvictPolicy
	HashPower   uint

	// Cuckoo engine tunables (spec.md §4.8), used when Engine ==
	// EngineSlimcache.
	CuckooItems    int
	CuckooItemSize int
	CuckooPolicy   constants.CuckooPolicy
	PersistPath    string
	Signature      string

	// KlogSampleRate samples one in every N completed commands into the
	// access log (spec.md §4.9 step 5); 0 or 1 logs every command.
	KlogSampleRate uint64

	// MaintenanceTick is how often the admin thread's timer wheel
	// advances (spec.md §4.5); 0 uses constants.TimerTickDefault.
	MaintenanceTick time.Duration
}

// DefaultParams returns sensible defaults for a twemcache-flavored
// server listening on the standard pelikan ports.
func DefaultParams() ServerParams {
	return ServerParams{
		Engine:      EngineTwemcache,
		Host:        constants.DefaultHost,
		Port:        constants.DefaultPort,
		AdminHost:   constants.DefaultHost,
		AdminPort:   constants.DefaultAdminPort,
		SlabSize:    constants.SlabSize,
		ChunkSize:   constants.SlabMinChunkSize,
		MaxBytes:    constants.DefaultMaxBytes,
		UseCAS:      constants.DefaultUseCAS,
		UseFreeQ:    constants.DefaultUseFreeQ,
		Prealloc:    constants.DefaultPrealloc,
		EvictPolicy: constants.EvictLeastRecentlyCreated,
		HashPower:   constants.DefaultHashPower,

		CuckooItems:    constants.DefaultCuckooItems,
		CuckooItemSize: constants.ItemHeaderOverhead + 64,
		CuckooPolicy:   constants.CuckooPolicyExpire,

		KlogSampleRate:  constants.DefaultKlogSampleRate,
		MaintenanceTick: constants.TimerTickDefault,
	}
}

// Options carries dependencies that don't belong in ServerParams: a
// cancellable context, logging, metrics, and (mainly for tests) a
// pre-built storage engine shared by every worker.
type Options struct {
	// Context for cancellation; context.Background() if nil.
	Context context.Context

	// Logger receives lifecycle and error messages. Defaults to
	// logging.Default() if nil.
	Logger interfaces.Logger
	// Klog receives one line per completed command (spec.md §4.9 step
	// 5). Defaults to logging.Default() if nil.
	Klog *logging.Logger

	// Observer collects metrics events; defaults to a fresh *Metrics.
	Observer interfaces.Observer

	// Engine, if non-nil, is used as the worker's storage engine instead
	// of building one from ServerParams (tests only).
	Engine store.Engine
}

// Server is a running pelikan-go instance: one acceptor, a single
// worker reactor owning the single storage engine (spec.md §2, §5: the
// storage engine is owned by exactly one worker thread, thread-local,
// no lock — which this implementation satisfies by running exactly
// one worker rather than by locking a shared engine across several),
// and one admin thread.
type Server struct {
	params ServerParams

	listener  net.Listener
	adminAddr string

	metrics  *Metrics
	observer interfaces.Observer

	ctx    context.Context
	cancel context.CancelFunc

	acceptor *accept.Acceptor
	workers  []*worker.Worker
	admin    *admin.Admin

	done chan struct{}
}

// CreateAndServe builds a Server from params and starts it: binding the
// client listener, spinning up the single worker reactor and its
// storage engine, registering the acceptor's handoff target, and
// starting the admin thread. The server runs until its context is
// cancelled or Shutdown is called.
func CreateAndServe(ctx context.Context, params ServerParams, options *Options) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if options == nil {
		options = &Options{}
	}
	if options.Context != nil {
		ctx = options.Context
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Default()
	}
	klog := options.Klog
	if klog == nil {
		klog = logging.Default()
	}

	metrics := NewMetrics()
	observer := options.Observer
	if observer == nil {
		observer = metrics
	}

	host := params.Host
	if host == "" {
		host = constants.DefaultHost
	}
	listenAddr := fmt.Sprintf("%s:%d", host, params.Port)
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, WrapError("LISTEN", err)
	}

	srv := &Server{
		params:   params,
		listener: ln,
		metrics:  metrics,
		observer: observer,
		done:     make(chan struct{}),
	}
	srv.ctx, srv.cancel = context.WithCancel(ctx)

	sockPool := pool.New(constants.PoolUnbounded, func() *bufsock.Sock {
		return bufsock.New(constants.DefaultBufInitSize, constants.DefaultBufMaxSize)
	}, nil)

	// Exactly one engine, owned by exactly one worker (spec.md §5): see
	// the package doc comment for why a worker pool of N engines is not
	// an option here.
	engine := options.Engine
	if engine == nil {
		engine, err = buildEngine(params, observer)
		if err != nil {
			ln.Close()
			return nil, WrapError("ENGINE_INIT", err)
		}
	}

	r, err := reactor.New()
	if err != nil {
		ln.Close()
		return nil, WrapError("REACTOR_INIT", err)
	}
	fds, err := pipe2NonBlock()
	if err != nil {
		ln.Close()
		return nil, WrapError("PIPE_INIT", err)
	}
	if err := r.AddRead(fds[0]); err != nil {
		ln.Close()
		return nil, WrapError("REACTOR_INIT", err)
	}

	workerRing := ring.New[bufsock.Sock](constants.RingArrayDefaultCap)
	w := worker.New(worker.Config{
		ID:             0,
		Reactor:        r,
		Ring:           workerRing,
		WakeupFD:       fds[0],
		Engine:         engine,
		ReqPool:        codec.NewPool(constants.PoolUnbounded),
		SockPool:       sockPool,
		Observer:       observer,
		Logger:         logger,
		Klog:           klog,
		KlogSampleRate: params.KlogSampleRate,
		Stats:          workerStatsAdapter{metrics},
	})
	srv.workers = append(srv.workers, w)
	targets := []accept.Target{{Ring: workerRing, WakeupFD: fds[1]}}

	srv.acceptor = accept.New(accept.Config{
		Listener: ln,
		SockPool: sockPool,
		Workers:  targets,
		Observer: observer,
		Logger:   logger,
	})

	adminHost := params.AdminHost
	if adminHost == "" {
		adminHost = constants.DefaultHost
	}
	adminAddr := fmt.Sprintf("%s:%d", adminHost, params.AdminPort)
	srv.adminAddr = adminAddr

	tick := params.MaintenanceTick
	if tick <= 0 {
		tick = constants.TimerTickDefault
	}
	wheel := timer.New(tick, constants.TimerSlotsDefault, 1)
	wheel.Start()
	_, _ = wheel.Insert(1, true, func(interface{}) { klog.Printf("flush") }, nil)

	srv.admin = admin.New(admin.Config{
		StatsAddr:   adminAddr,
		MetricsAddr: params.MetricsAddr,
		Stats:       adminStatsAdapter{metrics},
		Wheel:       wheel,
		Tick:        tick,
		Shutdown:    srv.cancel,
		Logger:      logger,
	})

	srv.start(logger)
	return srv, nil
}

func (s *Server) start(logger interfaces.Logger) {
	for i, w := range s.workers {
		w := w
		i := i
		go func() {
			if err := w.Run(s.ctx); err != nil && logger != nil {
				logger.Printf("worker %d exited: %v", i, err)
			}
		}()
	}
	go func() {
		if err := s.acceptor.Run(s.ctx); err != nil && logger != nil {
			logger.Printf("acceptor exited: %v", err)
		}
	}()
	go func() {
		if err := s.admin.Run(s.ctx); err != nil && logger != nil {
			logger.Printf("admin exited: %v", err)
		}
		close(s.done)
	}()
}

func buildEngine(params ServerParams, observer interfaces.Observer) (store.Engine, error) {
	switch params.Engine {
	case EngineSlimcache:
		return cuckoo.New(cuckoo.Config{
			NItem:       params.CuckooItems,
			ItemSize:    params.CuckooItemSize,
			UseCAS:      params.UseCAS,
			Policy:      params.CuckooPolicy,
			PersistPath: params.PersistPath,
			Signature:   params.Signature,
			Observer:    observer,
		})
	default:
		return slab.New(slab.Config{
			SlabSize:    params.SlabSize,
			ChunkSize:   params.ChunkSize,
			MaxBytes:    params.MaxBytes,
			UseCAS:      params.UseCAS,
			UseFreeQ:    params.UseFreeQ,
			Prealloc:    params.Prealloc,
			EvictPolicy: params.EvictPolicy,
			HashPower:   params.HashPower,
			Observer:    observer,
		}), nil
	}
}

// ServerState represents the current lifecycle state of a Server.
type ServerState string

const (
	ServerStateRunning ServerState = "running"
	ServerStateStopped ServerState = "stopped"
)

// State reports whether the server is still accepting and serving.
func (s *Server) State() ServerState {
	if s == nil {
		return ServerStateStopped
	}
	select {
	case <-s.ctx.Done():
		return ServerStateStopped
	default:
		return ServerStateRunning
	}
}

// IsRunning reports whether the server is currently serving.
func (s *Server) IsRunning() bool { return s.State() == ServerStateRunning }

// NumWorkers returns the number of worker reactor threads. Always 1
// (spec.md §5: a single worker owns the single storage engine).
func (s *Server) NumWorkers() int { return len(s.workers) }

// ListenAddr returns the address the client-facing listener is bound to.
func (s *Server) ListenAddr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// AdminAddr returns the address the admin stats/quit listener is bound
// to.
func (s *Server) AdminAddr() string { return s.adminAddr }

// Metrics returns the server's metrics instance.
func (s *Server) Metrics() *Metrics {
	if s == nil {
		return nil
	}
	return s.metrics
}

// MetricsSnapshot returns a point-in-time snapshot of server metrics.
func (s *Server) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.Snapshot()
}

// Shutdown stops accepting new connections, cancels every worker and
// the admin thread, and waits (bounded by ctx) for them to exit.
func Shutdown(ctx context.Context, s *Server) error {
	if s == nil {
		return ErrInvalidParameters
	}
	s.cancel()
	s.metrics.Stop()

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// workerStatsAdapter adapts *Metrics to internal/worker.StatsProvider
// without internal/worker importing the root package (which would
// create an import cycle, since the root package imports
// internal/worker).
type workerStatsAdapter struct{ m *Metrics }

func (a workerStatsAdapter) Stats() []worker.StatEntry {
	entries := a.m.statEntries()
	out := make([]worker.StatEntry, len(entries))
	for i, e := range entries {
		out[i] = worker.StatEntry(e)
	}
	return out
}

// adminStatsAdapter is the same adaptation for internal/admin.StatsProvider.
type adminStatsAdapter struct{ m *Metrics }

func (a adminStatsAdapter) Stats() []admin.StatEntry {
	entries := a.m.statEntries()
	out := make([]admin.StatEntry, len(entries))
	for i, e := range entries {
		out[i] = admin.StatEntry(e)
	}
	return out
}
