package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vendapos/pos-edge-cache/internal/adapter/backend"
	"github.com/vendapos/pos-edge-cache/internal/adapter/sqlite"
	"github.com/vendapos/pos-edge-cache/internal/compress"
	"github.com/vendapos/pos-edge-cache/internal/config"
	"github.com/vendapos/pos-edge-cache/internal/domain/event"
	"github.com/vendapos/pos-edge-cache/internal/logger"
	"github.com/vendapos/pos-edge-cache/internal/service/cache"
	"github.com/vendapos/pos-edge-cache/internal/service/gateway"
	"github.com/vendapos/pos-edge-cache/internal/service/monitor"
	"github.com/vendapos/pos-edge-cache/internal/service/syncqueue"
)

const version = "0.1.0"

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	zapLogger := logger.GetZapLogger()
	zapLogger.Info("starting pos-edge-cache",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Open database
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "pos-edge-cache.db"
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		zapLogger.Fatal("failed to open database", zap.Error(err), zap.String("path", dbPath))
	}
	defer store.Close()

	// Create backend client
	backendClient := backend.NewClient(&backend.ClientConfig{
		BaseURL:    cfg.Backend.BaseURL,
		HealthPath: cfg.Backend.HealthPath,
		Timeout:    cfg.Backend.GetTimeout(),
	})

	// Event dispatcher shared by all services
	events := event.NewInMemoryDispatcher(true)

	// Create cache service
	cacheCfg := &cache.Config{
		DefaultTTL: cfg.Cache.GetDefaultTTL(),
		QuotaBytes: cfg.Cache.GetQuotaBytes(),
	}
	cacheService := cache.New(cacheCfg, store, store, store, compress.New(), zapLogger)

	// Create sync queue service
	queueCfg := &syncqueue.Config{
		MaxRetries: cfg.Sync.MaxRetries,
	}
	queueService := syncqueue.New(queueCfg, store, store, backendClient, events, zapLogger)

	// Create connectivity and usage monitor
	monitorCfg := &monitor.Config{
		ProbeInterval:      cfg.Monitor.GetProbeInterval(),
		QuotaCheckInterval: cfg.Monitor.GetQuotaCheckInterval(),
		StatusInterval:     cfg.Monitor.GetStatusInterval(),
		WarnUsagePct:       cfg.Monitor.WarnUsagePct,
		CriticalUsagePct:   cfg.Monitor.CriticalUsagePct,
		EvictionInterval:   cfg.Monitor.GetEvictionInterval(),
		SweepInterval:      cfg.Cache.GetSweepInterval(),
	}
	monitorService := monitor.New(monitorCfg, backendClient, cacheService, queueService, events, zapLogger)
	queueService.SetOnlineProbe(monitorService.Online)

	// Create interception gateway
	gatewayCfg := &gateway.Config{
		BindAddr:      cfg.Gateway.BindAddr,
		Version:       cfg.Gateway.Version,
		APIPrefix:     cfg.Gateway.APIPrefix,
		ShellAssets:   cfg.Gateway.ShellAssets,
		AdminUsername: cfg.Gateway.AdminUsername,
		AdminPassword: cfg.Gateway.AdminPassword,
		ReadTimeout:   cfg.Gateway.GetReadTimeout(),
		WriteTimeout:  cfg.Gateway.GetWriteTimeout(),
		IdleTimeout:   cfg.Gateway.GetIdleTimeout(),
	}
	gatewayService := gateway.New(gatewayCfg, backendClient, store, store, cacheService, queueService, monitorService, events, zapLogger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start gateway
	go func() {
		if err := gatewayService.Start(ctx); err != nil {
			zapLogger.Fatal("gateway failed", zap.Error(err))
		}
	}()

	// Start monitor
	go func() {
		if err := monitorService.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("monitor stopped with error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	zapLogger.Info("application started successfully",
		zap.String("gateway_addr", cfg.Gateway.BindAddr),
		zap.String("backend_url", cfg.Backend.BaseURL),
		zap.String("db_path", dbPath),
	)
	<-sigChan

	zapLogger.Info("shutdown signal received, stopping services...")

	// Cancel context to stop the monitor loops
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop services
	monitorService.Stop()
	if err := gatewayService.Stop(shutdownCtx); err != nil {
		zapLogger.Error("failed to stop gateway gracefully", zap.Error(err))
	}

	zapLogger.Info("application stopped successfully")
}
