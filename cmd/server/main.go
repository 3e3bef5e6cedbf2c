/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the booking engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional), parse command-line flags
  2. Load configuration (defaults < YAML file < environment < flags)
  3. Initialize logging and the SQLite store
  4. Pick the notifier (SendGrid if an API key is set, else log-only)
  5. Pick the rate limiter (Redis if configured, else in-process)
  6. Start the cron scheduler and the HTTP server

COMMAND-LINE FLAGS:
  -config  YAML config file path (optional)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler, close the database
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/bookings.db"

  # Run with a config file
  ./server -config=config.yaml

SEE ALSO:
  - config/config.go: configuration precedence
  - api/server.go: router configuration
  - store/sqlite/sqlite.go: database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/warp/booking-engine/api"
	"github.com/warp/booking-engine/config"
	"github.com/warp/booking-engine/logger"
	"github.com/warp/booking-engine/notify"
	"github.com/warp/booking-engine/store/sqlite"
)

func main() {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	// Flags
	configPath := flag.String("config", "", "YAML config file path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Notifier: real email only when a SendGrid key is configured.
	var notifier notify.Notifier = notify.NewLogNotifier()
	if cfg.Email.SendGridAPIKey != "" {
		notifier = notify.NewSendGridNotifier(
			cfg.Email.SendGridAPIKey, cfg.Email.FromEmail, cfg.Email.FromName)
		logger.Info("sendgrid notifier enabled", "from", cfg.Email.FromEmail)
	}

	// Rate limiter: shared Redis window when configured, otherwise
	// in-process.
	var limiter api.Limiter
	if cfg.RateLimit.Enabled {
		if cfg.Redis.Addr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			limiter = api.NewRedisLimiter(rdb, cfg.RateLimit.RequestsPerMin, time.Minute)
			logger.Info("redis rate limiter enabled", "addr", cfg.Redis.Addr)
		} else {
			limiter = api.NewMemoryLimiter(cfg.RateLimit.RequestsPerMin, time.Minute)
		}
	}

	handler := api.NewHandler(store, notifier)
	router := api.NewRouter(handler, limiter)

	// Scheduler
	var scheduler *api.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler, err = api.NewScheduler(store, cfg.Scheduler)
		if err != nil {
			log.Fatalf("Failed to configure scheduler: %v", err)
		}
		scheduler.Start()
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port, "db", cfg.Database.Path)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	if scheduler != nil {
		scheduler.Stop()
	}

	logger.Info("server stopped")
}
