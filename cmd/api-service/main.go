package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/cuongbtq/job-dispatcher/internal/api/handler"
	"github.com/cuongbtq/job-dispatcher/internal/api/router"
	"github.com/cuongbtq/job-dispatcher/internal/config"
	"github.com/cuongbtq/job-dispatcher/internal/events"
	"github.com/cuongbtq/job-dispatcher/internal/jobs/engine"
	"github.com/cuongbtq/job-dispatcher/internal/jobs/query"
	"github.com/cuongbtq/job-dispatcher/internal/jobs/storage"
	"github.com/cuongbtq/job-dispatcher/internal/notify"
	"github.com/cuongbtq/job-dispatcher/shared/database"
	"github.com/cuongbtq/job-dispatcher/shared/logger"
	"github.com/cuongbtq/job-dispatcher/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("database", cfg.Database.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database client
	dbClient, err := database.NewClient(cfg.DatabaseClientConfig(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, dbClient.GetDB().DB, dbClient.Driver())
		if err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		appLogger.Info("Database schema is up to date", slog.Int("applied", len(applied)))
	}

	store := storage.NewStorage(dbClient.GetDB(), appLogger.Logger)

	// Initialize notifiers
	notifier, rabbitClient, err := initNotifier(ctx, cfg, appLogger.Logger)
	if err != nil {
		return err
	}
	if rabbitClient != nil {
		defer rabbitClient.Close()
	}

	// Live status stream
	hub := events.NewHub(appLogger.With(slog.String("component", "events")).Logger, cfg.CORS.AllowOrigin)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)
	defer func() {
		stopHub()
		<-hub.Done()
	}()

	// Initialize execution engine
	eng := engine.NewEngine(&engine.Config{
		Logger:        appLogger.With(slog.String("component", "engine")).Logger,
		Store:         store,
		Registry:      engine.NewRegistry(engine.DelayWorkUnit{Duration: cfg.Engine.WorkDuration}),
		Notifier:      notifier,
		Events:        hub,
		Concurrency:   cfg.Engine.Concurrency,
		JobTimeout:    cfg.Engine.JobTimeout,
		NotifyTimeout: cfg.Engine.NotifyTimeout,
	})

	if cfg.Engine.RecoverOnStart {
		if _, err := eng.Recover(ctx); err != nil {
			return fmt.Errorf("failed to recover interrupted jobs: %w", err)
		}
	}

	// Initialize router
	deps := &handler.Dependencies{
		Store:       store,
		Runner:      eng,
		Querier:     query.NewService(store),
		Events:      hub,
		Database:    dbClient,
		AllowOrigin: cfg.CORS.AllowOrigin,
		ServiceName: cfg.App.Name,
	}
	if rabbitClient != nil {
		deps.Broker = rabbitClient
	}
	r := initRouter(cfg, appLogger.Logger, deps)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Int("concurrency", cfg.Engine.Concurrency),
		slog.Duration("job_timeout", cfg.Engine.JobTimeout),
		slog.Bool("webhook_enabled", cfg.Notifier.Webhook.URL != ""),
		slog.Bool("amqp_enabled", cfg.Notifier.AMQP.Enabled),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal or a listener failure
	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down server...")
	case err := <-serverErr:
		if err != nil {
			appLogger.Error("Server failed", slog.Any("error", err))
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	// In-flight jobs get whatever time is left; the rest are recorded as failed.
	if err := eng.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("Execution engine interrupted in-flight jobs", slog.Any("error", err))
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableSource,
		TimeFormat:   timeFormat,
	})
}

// initNotifier builds the webhook notifier and, when enabled, the AMQP
// publisher. The returned client is nil unless AMQP is enabled.
func initNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (notify.Notifier, *rabbitmq.Client, error) {
	webhook := notify.NewWebhook(notify.WebhookConfig{
		URL:          cfg.Notifier.Webhook.URL,
		Timeout:      cfg.Notifier.Webhook.Timeout,
		RetryMax:     cfg.Notifier.Webhook.RetryMax,
		RetryWaitMin: cfg.Notifier.Webhook.RetryWaitMin,
		RetryWaitMax: cfg.Notifier.Webhook.RetryWaitMax,
		RateLimit:    cfg.Notifier.Webhook.RateLimit,
		RateBurst:    cfg.Notifier.Webhook.RateBurst,
	}, logger)

	if !cfg.Notifier.AMQP.Enabled {
		return webhook, nil, nil
	}

	rabbitClient, err := rabbitmq.NewClient(ctx, cfg.RabbitMQClientConfig(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	logger.Info("RabbitMQ connection established", slog.String("exchange", cfg.RabbitMQ.Exchange.Name))

	amqpNotifier := notify.NewAMQP(rabbitClient, cfg.RabbitMQ.Exchange.Name, logger)
	return notify.Multi{webhook, amqpNotifier}, rabbitClient, nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, deps *handler.Dependencies) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	deps.Logger = logger
	return router.SetupRouter(deps)
}
