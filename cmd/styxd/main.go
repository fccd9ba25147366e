// Package main is the entry point for the styx acquisition daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/SherwinAllen/styx/internal/acquisition"
	"github.com/SherwinAllen/styx/internal/artifact"
	"github.com/SherwinAllen/styx/internal/config"
	"github.com/SherwinAllen/styx/internal/controller"
	"github.com/SherwinAllen/styx/internal/controller/handlers"
	"github.com/SherwinAllen/styx/internal/device"
	"github.com/SherwinAllen/styx/internal/logger"
	"github.com/SherwinAllen/styx/internal/observability"
	"github.com/SherwinAllen/styx/internal/pipeline"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	artifacts, err := artifact.Open(cfg.ArtifactDBPath)
	if err != nil {
		log.Error("failed to open artifact store", "error", err)
		os.Exit(1)
	}
	defer artifacts.Close()

	// Tracing
	shutdownTracer, err := observability.InitTracing(ctx, "styx", cfg.OTELEndpoint)
	if err != nil {
		log.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Warn("failed to shutdown tracer", "error", err)
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Warn("failed to shutdown metrics", "error", err)
		}
	}()

	store := acquisition.NewStore()

	// Observable gauge reads the store only when scraped.
	meter := otel.Meter("styx")
	_, err = meter.Int64ObservableGauge("styx.acquisitions.active",
		metric.WithDescription("Number of acquisitions currently in a non-terminal state"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			obs.Observe(store.ActiveCount())
			return nil
		}),
	)
	if err != nil {
		log.Warn("failed to register active acquisitions gauge", "error", err)
	}

	orch, err := pipeline.New(ctx, store, artifacts, cfg, log)
	if err != nil {
		log.Error("failed to create orchestrator", "error", err)
		os.Exit(1)
	}

	go store.RunSweeper(ctx, time.Hour, cfg.JobRetention, log)

	bridge := device.NewBridge(cfg.AdbBin, log)
	h := handlers.New(orch, store, artifacts, bridge)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(addr, h, metricsHandler, cfg.RateLimit, cfg.RateLimitBurst)

	log.Info("styx daemon starting", "addr", addr, "scripts_dir", cfg.ScriptsDir)
	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("server exited properly")
}
