package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/costpulse/azure-cost-exporter/internal/azure"
	"github.com/costpulse/azure-cost-exporter/internal/collector"
	"github.com/costpulse/azure-cost-exporter/internal/config"
	"github.com/costpulse/azure-cost-exporter/internal/logger"
	"github.com/costpulse/azure-cost-exporter/internal/metrics"
	"github.com/costpulse/azure-cost-exporter/internal/server"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultShutdownTimeout is the maximum time to wait for graceful shutdown
	DefaultShutdownTimeout = 30 * time.Second
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
	version    = "dev"
)

func main() {
	flag.Parse()

	// Load configuration first (need log level from config)
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Azure Cost Exporter starting",
		"version", version,
		"config_path", *configPath)

	logger.Info("Configuration loaded successfully",
		"targets", len(cfg.Targets),
		"polling_interval_seconds", cfg.PollingInterval,
		"http_port", cfg.HTTPPort,
		"metric_name", cfg.MetricName,
		"metric_name_usd", cfg.MetricNameUSD,
		"grouping_enabled", cfg.GroupBy.Enabled,
		"api_timeout_seconds", cfg.APITimeout)

	if cfg.GroupBy.Enabled {
		logger.Info("Grouping configuration",
			"dimensions", len(cfg.GroupBy.Groups),
			"merge_minor_cost", cfg.GroupBy.MergeMinorCost.Enabled)
	}

	// The label schema is fixed once, from the first target and the
	// group-by policy.
	schema := metrics.NewSchema(cfg.Targets[0], cfg.GroupBy)
	native := metrics.NewRegistry(cfg.MetricName, "Daily cost of an Azure account in billing currency", schema)
	usd := metrics.NewRegistry(cfg.MetricNameUSD, "Daily cost of an Azure account in USD", schema)

	for _, registry := range []*metrics.Registry{native, usd} {
		if err := prometheus.Register(registry); err != nil {
			logger.Error("Failed to register cost registry", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("Cost registries registered with Prometheus", "labels", schema.Names())

	// Register Go runtime metrics (memory, goroutines, GC stats)
	if err := prometheus.Register(prometheus.NewGoCollector()); err != nil {
		logger.Warn("Failed to register Go collector", "error", err)
	}

	// Register process metrics (CPU, memory, file descriptors)
	if err := prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
		logger.Warn("Failed to register process collector", "error", err)
	}

	logger.Info("Initializing Azure Cost Management client")
	azureClient, err := azure.NewClient(cfg, logger)
	if err != nil {
		logger.Error("Failed to create Azure client", "error", err)
		os.Exit(1)
	}
	logger.Info("Azure client initialized successfully")

	fetcher := collector.NewFetcher(azureClient, cfg, native, usd, prometheus.DefaultRegisterer, logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Starting fetch cycle")
	fetchErrors := make(chan error, 1)
	go func() {
		fetchErrors <- fetcher.Run(ctx)
	}()

	logger.Info("Creating HTTP server", "port", cfg.HTTPPort)
	srv := server.NewServer(cfg, fetcher, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	// Wait for interrupt signal, a fatal fetch error or a server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", "error", err)
		os.Exit(1)

	case err := <-fetchErrors:
		if err != nil {
			logger.Error("Fetch cycle failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Fetch cycle stopped")

	case sig := <-shutdown:
		logger.Info("Received shutdown signal, starting graceful shutdown", "signal", sig.String())

		// Stop the fetch loop
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during server shutdown", "error", err)
			os.Exit(1)
		}

		logger.Info("Server stopped gracefully")
	}
}
