package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/classifier"
	"github.com/cuongbtq/meeting-pipeline/internal/config"
	"github.com/cuongbtq/meeting-pipeline/internal/generator"
	"github.com/cuongbtq/meeting-pipeline/internal/google"
	"github.com/cuongbtq/meeting-pipeline/internal/llm"
	"github.com/cuongbtq/meeting-pipeline/internal/pipeline"
	"github.com/cuongbtq/meeting-pipeline/internal/prompts"
	"github.com/cuongbtq/meeting-pipeline/internal/queue"
	"github.com/cuongbtq/meeting-pipeline/internal/research"
	"github.com/cuongbtq/meeting-pipeline/internal/store"
	"github.com/cuongbtq/meeting-pipeline/internal/worker"
	"github.com/cuongbtq/meeting-pipeline/migrations"
	"github.com/cuongbtq/meeting-pipeline/shared/logger"
	"github.com/cuongbtq/meeting-pipeline/shared/postgresql"
	"github.com/cuongbtq/meeting-pipeline/shared/rabbitmq"
	"github.com/cuongbtq/meeting-pipeline/shared/redis"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := postgresql.NewClient(cfg.PostgresConfig(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	if cfg.Database.AutoMigrate {
		if _, err := dbClient.ApplyMigrations(ctx, migrations.FS); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	rabbitClient, err := rabbitmq.NewClient(cfg.RabbitMQClientConfig(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	var publisher worker.ProgressPublisher
	if redisCfg := cfg.RedisClientConfig(); redisCfg != nil {
		redisClient, err := redis.NewClient(redisCfg, appLogger.Logger)
		if err != nil {
			// progress still lands in the job record
			appLogger.Warn("Redis unavailable, progress events disabled", slog.String("error", err.Error()))
		} else {
			defer redisClient.Close()
			publisher = redisClient
		}
	}

	gemini, err := llm.NewGeminiClient(ctx, llm.Config{
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		Burst:             cfg.LLM.Burst,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	defer gemini.Close()

	db := dbClient.GetDB()
	runStore := store.NewRunStore(db, appLogger.Logger)
	jobStore := queue.NewStore(db, appLogger.Logger)

	orchestrator, err := initPipeline(cfg, appLogger.Logger, dbClient, gemini, runStore)
	if err != nil {
		return err
	}

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:        appLogger.Logger,
		WorkerID:      workerID(),
		Broker:        rabbitClient,
		Processor:     orchestrator,
		Records:       jobStore,
		Progress:      worker.NewProgressReporter(jobStore, publisher, cfg.Redis.ProgressChannel, appLogger.Logger),
		Concurrency:   cfg.Worker.Concurrency,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
		JobTimeout:    cfg.Worker.JobTimeout,
	})

	pruner := queue.NewPruner(jobStore, cfg.PrunerConfig(), appLogger.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := workerInstance.Start(gctx)
		if err == nil && gctx.Err() == nil {
			// the broker closed the delivery channel
			return errors.New("worker stopped unexpectedly")
		}
		return err
	})
	g.Go(func() error {
		return pruner.Run(gctx)
	})

	appLogger.Info("Worker service started successfully")

	<-gctx.Done()
	appLogger.Info("Shutting down worker service...")
	workerInstance.Stop()

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	shutdownTimeout := cfg.Worker.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error("Worker error", slog.Any("error", err))
			return err
		}
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(shutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initPipeline builds the classifier, the generator registry and the orchestrator
func initPipeline(cfg *config.Config, logger *slog.Logger, dbClient *postgresql.Client, gen llm.Generator, runs *store.RunStore) (*pipeline.Orchestrator, error) {
	db := dbClient.GetDB()

	promptStore, err := prompts.NewStore(db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	identity := google.NewIdentityProvider(db, google.OAuthConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		Scopes:       google.Scopes,
	}, logger)
	workspace := google.NewWorkspace(identity, logger)

	registry, err := generator.NewDefaultRegistry(&generator.Deps{
		LLM:       gen,
		Prompts:   promptStore,
		Examples:  store.NewExampleStore(db),
		Documents: workspace,
		Mail:      workspace,
		Research: research.NewTavilyClient(research.Config{
			APIKey:     cfg.Research.APIKey,
			BaseURL:    cfg.Research.BaseURL,
			MaxResults: cfg.Research.MaxResults,
			Timeout:    cfg.Research.Timeout,
		}, logger),
		Outputs: store.NewOutputStore(db, logger),
		Folders: generator.Folders{
			Proposals:         cfg.Google.Folders.Proposals,
			LegalResearch:     cfg.Google.Folders.LegalResearch,
			ServiceAgreements: cfg.Google.Folders.ServiceAgreements,
			ScopeOfWork:       cfg.Google.Folders.ScopeOfWork,
		},
		DraftFallbackTo: cfg.Google.DraftFallback,
		ExampleLimit:    cfg.Google.ExampleLimit,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build generators: %w", err)
	}

	c := classifier.New(gen, cfg.Classifier.LegalKeywords, logger)

	return pipeline.NewOrchestrator(runs, c, registry, cfg.Classifier.MinConfidence, logger), nil
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
