package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stl-ledger/internal/config"
	"github.com/stl-ledger/internal/data/mongo"
	"github.com/stl-ledger/internal/data/postgres"
	redisdata "github.com/stl-ledger/internal/data/redis"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/ledger_core/components"
	ledgerservice "github.com/stl-ledger/internal/ledger_core/service"
	"github.com/stl-ledger/internal/ledger_processor/consumer"
	"github.com/stl-ledger/internal/ledger_processor/outbox_poller"
	"github.com/stl-ledger/internal/logger"
	"github.com/stl-ledger/internal/platform/messaging/consumers"
	"github.com/stl-ledger/internal/platform/messaging/producers"
	"github.com/stl-ledger/internal/platform/metrics"
	"github.com/stl-ledger/internal/platform/persistence"
	"github.com/stl-ledger/internal/platform/resilience"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("ledger_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Ledger Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	if cfg.Ledger.Storage != config.StoragePostgres {
		// the outbox lives in the append transaction, only postgres has one
		log.Error("Ledger processor requires postgres storage", "storage", cfg.Ledger.Storage)
		os.Exit(1)
	}

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

	// Metrics are served on their own listener, the processor has no REST API
	var (
		ledgerMetrics metrics.LedgerMetrics = metrics.NoOpMetrics{}
		metricsServer *http.Server
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

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      mux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}
	}

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	outboxRepo := postgres.NewOutboxRepository(log.With("repository", "outbox"), postgresDB)
	viewRepo := mongo.NewViewRepository(log.With("repository", "transaction_views"), mongoDB.Database())
	if err := viewRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create read model indexes", "error", err)
		os.Exit(1)
	}

	// Initialize ledger core
	core, err := components.CreateLedgerCore(components.PostgresStores(postgresDB, statusIndex, log), cfg, components.CoreOptions{
		ChainLocker: chainLocker,
		Metrics:     ledgerMetrics,
	}, log)
	if err != nil {
		log.Error("Failed to initialize ledger core", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producers
	eventProducer, err := producers.NewEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize event Kafka producer", "error", err)
		os.Exit(1)
	}

	// dlqProducer is nil when no DLQ topic is configured, its methods are nil-safe
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka)
	commandHandler := consumer.NewCommandHandler(log.With("component", "command_handler"), core.Writer, dlqProducer)

	// Initialize outbox poller
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Name:                "kafka-events",
		MaxRequests:         cfg.Kafka.BreakerMaxRequests,
		Interval:            cfg.Kafka.BreakerInterval,
		Timeout:             cfg.Kafka.BreakerTimeout,
		ConsecutiveFailures: cfg.Kafka.BreakerConsecutiveFailures,
	}, ledgerMetrics, log.With("component", "breaker"))
	eventPublisher := outbox_poller.NewLedgerEventPublisher(
		outboxRepo,
		viewRepo,
		eventProducer,
		breaker,
		ledgerMetrics,
		log.With("component", "event_publisher"),
	)
	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		outboxRepo,
		eventPublisher,
		log.With("component", "outbox_poller"),
	)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.CommandsTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Run(appCtx, commandHandler.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	// Start periodic chain verification
	wg.Add(1)
	go func() {
		defer wg.Done()
		core.Verifier.Start(appCtx)
	}()

	if metricsServer != nil {
		go func() {
			log.Info("Starting metrics server", "addr", metricsServer.Addr, "path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	log.Info("Shutting down ledger writer")
	core.Shutdown()

	if metricsServer != nil {
		if err = metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Error stopping metrics server", "error", err)
		}
	}

	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing event Kafka producer", "error", err)
	}

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Ledger Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Ledger Processor shutdown completed with errors")
	} else {
		log.Info("Ledger Processor shutdown completed successfully")
	}
}
