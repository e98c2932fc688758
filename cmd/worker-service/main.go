package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/creatorsmantra/creatorsmantra-be/internal/config"
	"github.com/creatorsmantra/creatorsmantra-be/internal/scriptgen"
	"github.com/creatorsmantra/creatorsmantra-be/internal/worker"
	"github.com/creatorsmantra/creatorsmantra-be/internal/worker/storage"
	"github.com/creatorsmantra/creatorsmantra-be/shared/logger"
	"github.com/creatorsmantra/creatorsmantra-be/shared/postgresql"
	"github.com/creatorsmantra/creatorsmantra-be/shared/rabbitmq"
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

	logConfig := cfg.Logging.LoggerConfig()
	logConfig.Service = cfg.App.Name
	logConfig.Version = cfg.App.Version
	appLogger, err := logger.New(logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("environment", cfg.App.Environment),
	)

	generator, err := newGenerator(&cfg.Generator)
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %w", err)
	}

	dbConfig := cfg.Database.PostgresConfig()
	dbConfig.ApplicationName = cfg.App.Name
	dbClient, err := postgresql.NewClient(dbConfig, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	rabbitConfig := cfg.RabbitMQ.ClientConfig()
	rabbitConfig.AppID = cfg.App.Name
	rabbitClient, err := rabbitmq.NewClient(rabbitConfig, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	jobStore := storage.NewStorage(dbClient.GetDB(), appLogger.Logger)

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:            appLogger.Logger,
		Store:             jobStore,
		Broker:            rabbitClient,
		Generator:         generator,
		QueueName:         cfg.RabbitMQ.Queue.Name,
		Concurrency:       cfg.Worker.Concurrency,
		PrefetchCount:     cfg.RabbitMQ.Consumer.PrefetchCount,
		JobTimeout:        cfg.Worker.JobTimeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
	})

	reaper := worker.NewReaper(&worker.ReaperConfig{
		Logger:     appLogger.Logger,
		Store:      jobStore,
		Interval:   cfg.Worker.ReaperInterval,
		StaleAfter: cfg.Worker.StaleAfter,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workerInstance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	if err := reaper.Start(); err != nil {
		return err
	}
	defer reaper.Stop()

	appLogger.Info("Worker service started successfully",
		slog.String("worker_id", workerInstance.ID()),
		slog.String("generator", generator.Name()),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case amqpErr := <-rabbitClient.NotifyClose():
		appLogger.Error("RabbitMQ channel closed", slog.Any("error", amqpErr))
	}

	cancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// newGenerator builds the script generator selected by configuration
func newGenerator(cfg *config.GeneratorConfig) (scriptgen.Generator, error) {
	switch cfg.Provider {
	case config.GeneratorOpenAI:
		var httpClient *http.Client
		if cfg.OpenAI.Timeout > 0 {
			httpClient = &http.Client{Timeout: cfg.OpenAI.Timeout}
		}
		gen, err := scriptgen.NewOpenAIGenerator(scriptgen.OpenAIOptions{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			HTTPClient:  httpClient,
		})
		if err != nil {
			return nil, err
		}
		return gen, nil
	case config.GeneratorTemplate, "":
		return scriptgen.NewTemplateGenerator(cfg.StepDelay), nil
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
}
