// telemetryd serves robot telemetry over HTTP and a websocket stream.
// Usage: go run ./cmd/telemetryd --config configs/telemetryd.example.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/robot-telemetry/internal/api"
	"github.com/rickgao/robot-telemetry/internal/clock"
	"github.com/rickgao/robot-telemetry/internal/config"
	"github.com/rickgao/robot-telemetry/internal/logging"
	"github.com/rickgao/robot-telemetry/internal/snapshot"
	"github.com/rickgao/robot-telemetry/internal/store"
	"github.com/rickgao/robot-telemetry/internal/stream"
	"github.com/rickgao/robot-telemetry/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "telemetryd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.StringP("config", "c", "", "path to config file (defaults when empty)")
	addr := pflag.String("addr", "", "listen address, overrides server.addr")
	storePath := pflag.String("store", "", "robot data file, overrides store.path")
	showVersion := pflag.Bool("version", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return nil
	}

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting telemetryd",
		"version", version.Version,
		"commit", version.Commit,
		"addr", cfg.Server.Addr,
		"store", cfg.Store.Path,
		"stream_path", cfg.Stream.Path,
		"stream_interval", cfg.Stream.Interval,
	)

	loader := store.NewFileStore(cfg.Store.Path)
	streams := stream.NewServer(stream.Config{
		Interval:       cfg.Stream.Interval,
		WriteTimeout:   cfg.Stream.WriteTimeout,
		ReadLimit:      cfg.Stream.ReadLimit,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, loader, clock.Real(), logger)
	server := api.NewServer(cfg, snapshot.New(loader, logger), streams, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("telemetryd stopped with error", "error", err)
		return err
	}

	logger.Info("telemetryd stopped")
	return nil
}
