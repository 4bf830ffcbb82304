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

	"github.com/cuongbtq/meeting-pipeline/internal/api/handler"
	"github.com/cuongbtq/meeting-pipeline/internal/api/router"
	"github.com/cuongbtq/meeting-pipeline/internal/config"
	"github.com/cuongbtq/meeting-pipeline/internal/queue"
	"github.com/cuongbtq/meeting-pipeline/internal/store"
	"github.com/cuongbtq/meeting-pipeline/internal/webhook"
	"github.com/cuongbtq/meeting-pipeline/migrations"
	"github.com/cuongbtq/meeting-pipeline/shared/logger"
	"github.com/cuongbtq/meeting-pipeline/shared/postgresql"
	"github.com/cuongbtq/meeting-pipeline/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
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

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	if cfg.Webhook.Secret == "" {
		// intake answers 500 until a secret is configured
		appLogger.Warn("Webhook secret is not configured")
	}

	dbClient, err := postgresql.NewClient(cfg.PostgresConfig(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	if cfg.Database.AutoMigrate {
		applied, err := dbClient.ApplyMigrations(context.Background(), migrations.FS)
		if err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		appLogger.Info("Database schema up to date", slog.Int("applied", len(applied)))
	}

	rabbitClient, err := rabbitmq.NewClient(cfg.RabbitMQClientConfig(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	r := initRouter(cfg, appLogger.Logger, dbClient, rabbitClient)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	appLogger.Info("API service is running", slog.String("address", addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initRouter wires stores, the job producer and the handlers
func initRouter(cfg *config.Config, logger *slog.Logger, dbClient *postgresql.Client, rabbitClient *rabbitmq.Client) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	db := dbClient.GetDB()

	deps := &handler.Dependencies{
		Logger:          logger,
		Runs:            store.NewRunStore(db, logger),
		Outputs:         store.NewOutputStore(db, logger),
		Jobs:            queue.NewProducer(rabbitClient, queue.NewStore(db, logger), logger),
		WebhookSecret:   cfg.Webhook.Secret,
		SignatureHeader: cfg.Webhook.SignatureHeader,
		QueueOptions:    cfg.QueueOptions(),
		ServiceName:     cfg.App.Name,
		Database:        dbClient,
	}

	// a nil *FathomClient must not end up inside the interface
	if fathom := webhook.NewFathomClient(webhook.FathomConfig{
		APIKey:  cfg.Fathom.APIKey,
		BaseURL: cfg.Fathom.BaseURL,
		Timeout: cfg.Fathom.Timeout,
	}, logger); fathom != nil {
		deps.Transcripts = fathom
	}

	return router.SetupRouter(deps)
}
