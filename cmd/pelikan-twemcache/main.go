package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	pelikan "github.com/pelikan-go/pelikan"
	"github.com/pelikan-go/pelikan/internal/config"
	"github.com/pelikan-go/pelikan/internal/logging"
	"github.com/pelikan-go/pelikan/internal/sysexit"
)

const version = "pelikan-twemcache 0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		showHelp    = flag.Bool("h", false, "show usage")
		showHelp2   = flag.Bool("help", false, "show usage")
		showVersion = flag.Bool("v", false, "show version")
		showVersion2 = flag.Bool("version", false, "show version")
		verbose     = flag.Bool("verbose", false, "debug-level logging")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-h|--help] [-v|--version] [config-file]\n", os.Args[0])
	}
	flag.Parse()

	if *showHelp || *showHelp2 {
		flag.Usage()
		return sysexit.OK
	}
	if *showVersion || *showVersion2 {
		fmt.Println(version)
		return sysexit.OK
	}
	if flag.NArg() > 1 {
		flag.Usage()
		return sysexit.Usage
	}

	logLevel := logrus.InfoLevel
	if *verbose {
		logLevel = logrus.DebugLevel
	}
	logger := logging.NewLogger(&logging.Config{Level: logLevel, Output: os.Stderr})
	logging.SetDefault(logger)

	params := pelikan.DefaultParams()
	params.Engine = pelikan.EngineTwemcache

	var pidFile string
	if flag.NArg() == 1 {
		loader := config.New()
		var (
			host, adminHost, persistPath, signature, pidPath string
			port, adminPort                                  uint64
			slabSize, chunkSize, maxBytes, hashPower          uint64
			useCAS, useFreeQ, prealloc                        bool
			klogSampleRate                                    uint64
		)
		loader.String("host", params.Host, &host)
		loader.Uint("port", uint64(params.Port), &port)
		loader.String("admin_host", params.AdminHost, &adminHost)
		loader.Uint("admin_port", uint64(params.AdminPort), &adminPort)
		loader.Uint("slab_size", uint64(params.SlabSize), &slabSize)
		loader.Uint("chunk_size", uint64(params.ChunkSize), &chunkSize)
		loader.Uint("maxbytes", uint64(params.MaxBytes), &maxBytes)
		loader.Bool("use_cas", params.UseCAS, &useCAS)
		loader.Bool("use_freeq", params.UseFreeQ, &useFreeQ)
		loader.Bool("prealloc", params.Prealloc, &prealloc)
		loader.Uint("hash_power", uint64(params.HashPower), &hashPower)
		loader.Uint("klog_sample_rate", params.KlogSampleRate, &klogSampleRate)
		loader.String("persist_path", "", &persistPath)
		loader.String("signature", "", &signature)
		loader.String("pid_file", "", &pidPath)

		if err := loader.LoadFile(flag.Arg(0)); err != nil {
			logger.Error("failed to load config", "error", err)
			return sysexit.Config
		}

		params.Host = host
		params.Port = int(port)
		params.AdminHost = adminHost
		params.AdminPort = int(adminPort)
		params.SlabSize = int(slabSize)
		params.ChunkSize = int(chunkSize)
		params.MaxBytes = int64(maxBytes)
		params.UseCAS = useCAS
		params.UseFreeQ = useFreeQ
		params.Prealloc = prealloc
		params.HashPower = uint(hashPower)
		params.KlogSampleRate = klogSampleRate
		params.PersistPath = persistPath
		params.Signature = signature
		pidFile = pidPath
	}

	if pidFile != "" {
		if err := writePidFile(pidFile); err != nil {
			logger.Error("failed to write pid file", "error", err)
			return sysexit.CantCreat
		}
		defer os.Remove(pidFile)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := pelikan.CreateAndServe(ctx, params, &pelikan.Options{Logger: logger, Klog: logger})
	if err != nil {
		logger.Error("failed to start server", "error", err)
		return sysexit.IOErr
	}

	logger.Info("server started",
		"listen", srv.ListenAddr(),
		"admin", srv.AdminAddr(),
		"workers", srv.NumWorkers(),
		"engine", "twemcache")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := pelikan.Shutdown(shutdownCtx, srv); err != nil {
		logger.Error("error during shutdown", "error", err)
		return sysexit.IOErr
	}
	return sysexit.OK
}

func writePidFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d", os.Getpid())), 0644)
}
