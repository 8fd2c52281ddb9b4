package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stl-ledger/internal/api_gateway"
	"github.com/stl-ledger/internal/api_gateway/service"
	"github.com/stl-ledger/internal/config"
	"github.com/stl-ledger/internal/data/memory"
	"github.com/stl-ledger/internal/data/mongo"
	redisdata "github.com/stl-ledger/internal/data/redis"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/ledger_core/components"
	ledgerservice "github.com/stl-ledger/internal/ledger_core/service"
	"github.com/stl-ledger/internal/logger"
	"github.com/stl-ledger/internal/platform/metrics"
	"github.com/stl-ledger/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting API Gateway",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"storage", cfg.Ledger.Storage,
	)

	// Optional Redis: status index and cross-instance chain lock
	var (
		statusIndex status.Index
		chainLocker ledgerservice.ChainLocker
	)
	if cfg.Redis.Enabled {
		redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
		if err != nil {
			log.Error("Failed to initialize Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()

		statusIndex = redisdata.NewStatusIndex(log.With("component", "status_index"), redisClient, cfg.Redis.StatusIndexTTL)
		if cfg.Ledger.ChainLock == config.ChainLockRedis {
			chainLocker = redisdata.NewChainLocker(log.With("component", "chain_locker"), redisClient, redisdata.LockOptions{
				Expiry: cfg.Ledger.ChainLockExpiry,
			})
		}
	}

	// Metrics
	var (
		ledgerMetrics  metrics.LedgerMetrics = metrics.NoOpMetrics{}
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		promMetrics := metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
		if err := promMetrics.Register(registry); err != nil {
			log.Error("Failed to register metrics", "error", err)
			os.Exit(1)
		}
		ledgerMetrics = promMetrics
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	// Initialize storage
	var (
		stores     components.LedgerStores
		postgresDB *persistence.PostgresDB
		mongoDB    *persistence.MongoDB
		views      service.ViewReader
	)
	switch cfg.Ledger.Storage {
	case config.StorageMemory:
		stores = components.MemoryStores(memory.NewStore(), nil, statusIndex)
		log.Warn("Ledger runs on in-memory storage, records are lost on restart")
	default:
		postgresDB, err = persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
		if err != nil {
			log.Error("Failed to initialize PostgreSQL", "error", err)
			os.Exit(1)
		}
		stores = components.PostgresStores(postgresDB, statusIndex, log)

		// The read model is projected by the ledger processor from the outbox
		mongoDB, err = persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
		if err != nil {
			log.Error("Failed to initialize MongoDB", "error", err)
			os.Exit(1)
		}
		views = mongo.NewViewRepository(log.With("repository", "transaction_views"), mongoDB.Database())
	}

	core, err := components.CreateLedgerCore(stores, cfg, components.CoreOptions{
		ChainLocker: chainLocker,
		Metrics:     ledgerMetrics,
	}, log)
	if err != nil {
		log.Error("Failed to initialize ledger core", "error", err)
		os.Exit(1)
	}

	// Initialize services
	transactionService := service.NewTransactionService(log.With("service", "transactions"), core.Writer, core.Query, views)
	recordService := service.NewRecordService(log.With("service", "records"), core.Writer, core.Query)
	referenceService := service.NewReferenceService(core.Query)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, api_gateway.Services{
		Transactions: transactionService,
		Records:      recordService,
		References:   referenceService,
		Health:       core.Query,
		Metrics:      metricsHandler,
	})
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before the writer goes away
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	core.Shutdown()

	if postgresDB != nil {
		postgresDB.Close()
	}

	if mongoDB != nil {
		if err = mongoDB.Close(shutdownCtx); err != nil {
			log.Error("Error closing MongoDB connection", "error", err)
		}
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
