/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the daily ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment), then apply flags
  2. Build the zap logger
  3. Initialize SQLite store
  4. Choose the per-key locker (Redis when REDIS_ADDRESS is set)
  5. Build service, batch publisher, scheduler, handler, router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -env     .env file to load (default: .env, missing is fine)
  -port    HTTP server port (overrides APP_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (a running batch starts no new shops)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  BATCH_PUBLISH_KEY=secret ./server -db="./data/barsheet.db"

  # Run with in-memory database
  BATCH_PUBLISH_KEY=secret ./server -db=":memory:"

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/barsheet-engine/api"
	"github.com/warp/barsheet-engine/config"
	"github.com/warp/barsheet-engine/ledger"
	"github.com/warp/barsheet-engine/lock"
	"github.com/warp/barsheet-engine/logger"
	"github.com/warp/barsheet-engine/store/sqlite"
)

func main() {
	// Flags
	envFile := flag.String("env", ".env", "Environment file to load")
	port := flag.String("port", "", "HTTP server port (overrides APP_PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DB_PATH)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	log := logger.Must(logger.New(cfg.Log.Level))

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg *config.Config, log *zap.Logger) error {
	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	locker, closeLocker, err := newLocker(cfg, log)
	if err != nil {
		return err
	}
	defer closeLocker()

	service := ledger.NewService(store, locker, logger.Named(log, "ledger"))
	batch := ledger.NewBatchPublisher(service, cfg.Batch.Concurrency, logger.Named(log, "batch"))

	handler := api.NewHandler(service, batch, store, logger.Named(log, "http"))
	handler.BatchKey = cfg.Batch.Key
	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.Server.CORSOrigins})

	var scheduler *api.BatchScheduler
	if cfg.Batch.SchedulerEnabled {
		scheduler, err = api.NewBatchScheduler(batch, api.ScheduleConfig{
			Spec:       cfg.Batch.CronSchedule,
			Location:   cfg.Batch.Location(),
			OffsetDays: cfg.Batch.TargetOffsetDays,
			Timeout:    cfg.Batch.RunTimeout,
		}, logger.Named(log, "scheduler"))
		if err != nil {
			return err
		}
		scheduler.Start()
	}

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", server.Addr), zap.String("db", cfg.Database.Path))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info("shutting down server")
	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// newLocker picks Redis when configured, otherwise an in-process keyed mutex.
func newLocker(cfg *config.Config, log *zap.Logger) (ledger.Locker, func(), error) {
	if cfg.Lock.RedisAddress == "" {
		log.Info("using in-process ledger locks")
		return lock.NewKeyMutex(), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := lock.NewRedisClient(ctx, cfg.Lock.RedisAddress)
	if err != nil {
		return nil, nil, err
	}
	log.Info("using redis ledger locks", zap.String("addr", cfg.Lock.RedisAddress), zap.Duration("ttl", cfg.Lock.TTL))
	return lock.NewRedis(rdb, cfg.Lock.TTL, logger.Named(log, "lock")), func() { rdb.Close() }, nil
}
