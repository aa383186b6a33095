// Command server runs the SentinelX trust and risk API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sentinel-labs/sentinelx/internal/config"
	"github.com/sentinel-labs/sentinelx/internal/logging"
	"github.com/sentinel-labs/sentinelx/internal/server"
	"github.com/sentinel-labs/sentinelx/internal/traces"
)

// Set by ldflags at release time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sentinelx:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	format := "text"
	if cfg.IsProduction() {
		format = "json"
	}
	logger := logging.New(cfg.LogLevel, format)

	logger.Info("starting sentinelx",
		"version", version,
		"commit", commit,
		"env", cfg.Env,
		"batch_size", cfg.BatchSize,
		"batch_interval", cfg.BatchInterval.String(),
	)

	// No-op unless an OTLP endpoint is configured.
	shutdownTraces, err := traces.Init(context.Background(), cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Warn("failed to initialize tracing", "error", err)
	}

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	runErr := srv.Run(context.Background())

	if shutdownTraces != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := shutdownTraces(ctx); err != nil {
			logger.Warn("trace shutdown error", "error", err)
		}
		cancel()
	}

	return runErr
}
