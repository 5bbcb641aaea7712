// Package main is the entry point for the Solana DEX arbitrage engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dexarb/solarb/business/arbitrage"
	"github.com/dexarb/solarb/business/blockchain"
	"github.com/dexarb/solarb/business/execution"
	executionDI "github.com/dexarb/solarb/business/execution/di"
	"github.com/dexarb/solarb/business/pricing"
	"github.com/dexarb/solarb/internal/apm"
	"github.com/dexarb/solarb/internal/config"
	"github.com/dexarb/solarb/internal/health"
	"github.com/dexarb/solarb/internal/logger"
	"github.com/dexarb/solarb/internal/metrics"
	"github.com/dexarb/solarb/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("solarb %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}
	log := logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
	log.Info(ctx, "starting solarb",
		"version", version,
		"environment", cfg.App.Environment,
	)

	// Observability
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(cfg.Telemetry.ServiceName, log,
			apm.WithProvider(apm.Provider(cfg.Telemetry.TraceProvider), log))
		log.Info(ctx, "tracing initialized", "provider", cfg.Telemetry.TraceProvider)

		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.NewPrometheusConfig()),
		)

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	healthPort := cfg.Telemetry.HealthPort
	if healthPort == 0 {
		healthPort = 8081
	}
	healthServer := health.NewServer(healthPort, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", healthPort)
	}
	defer healthServer.Stop(ctx)

	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}

	// Modules in dependency order
	modules := []monolith.Module{
		&blockchain.Module{}, // Must be first - provides chain access
		&pricing.Module{},    // Depends on blockchain for the RPC client
		&arbitrage.Module{},  // Depends on blockchain and pricing
		&execution.Module{},  // Depends on everything above
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	log.Info(ctx, "all modules started")
	<-ctx.Done()

	// Give any submitted trade a chance to confirm before exiting.
	log.Info(ctx, "shutting down", "drain_timeout", cfg.Execution.DrainTimeout)
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Execution.DrainTimeout)
	defer cancel()
	engine := executionDI.GetEngine(mono.Services())
	if err := engine.Drain(drainCtx); err != nil {
		log.Warn(ctx, "drain timed out with a trade still in flight", "error", err)
	}
	return nil
}
