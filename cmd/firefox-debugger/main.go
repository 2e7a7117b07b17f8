// Package main is the entry point for the Firefox debug adapter.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/SkyN9ne/firefox-debugger/internal/config"
	"github.com/SkyN9ne/firefox-debugger/internal/dap"
	"github.com/SkyN9ne/firefox-debugger/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		listenAddr  string
		logLevel    string
		logFile     string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&listenAddr, "listen", "", "Serve editors over TCP at this address instead of stdio")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&logFile, "log-file", "", "Log destination (default stderr)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "firefox-debugger - debug adapter for Firefox\n\n")
		fmt.Fprintf(os.Stderr, "Usage: firefox-debugger [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  firefox-debugger                    Serve one editor over stdio\n")
		fmt.Fprintf(os.Stderr, "  firefox-debugger -listen :4711      Serve editors over TCP\n")
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("firefox-debugger %s (%s)\n", version, commit)
		return 0
	}

	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		return 1
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	log, err := logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: initialize logging: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	if listenAddr == "" {
		server := dap.NewServer(dap.NewStdioTransport(), cfg, log)
		if err := server.Run(ctx); err != nil {
			log.Error("session ended with error", zap.Error(err))
			return 1
		}
		return 0
	}

	if err := serveTCP(ctx, listenAddr, cfg, log); err != nil {
		log.Error("listener failed", zap.Error(err))
		return 1
	}
	return 0
}

// serveTCP accepts editor connections and serves them one at a time: an
// adapter session owns the browser it debugs.
func serveTCP(ctx context.Context, addr string, cfg config.Config, log *zap.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	defer listener.Close()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	log.Info("listening for editors", zap.String("addr", addr))
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("accept: %w", err)
		}

		log.Info("editor connected", zap.String("remote", conn.RemoteAddr().String()))
		server := dap.NewServer(dap.NewStreamTransport(conn), cfg, log)
		if err := server.Run(ctx); err != nil {
			log.Warn("session ended with error", zap.Error(err))
		}
	}
}
