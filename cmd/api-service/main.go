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

	"github.com/creatorsmantra/creatorsmantra-be/internal/api/handler"
	"github.com/creatorsmantra/creatorsmantra-be/internal/api/router"
	"github.com/creatorsmantra/creatorsmantra-be/internal/api/storage"
	"github.com/creatorsmantra/creatorsmantra-be/internal/config"
	"github.com/creatorsmantra/creatorsmantra-be/migrations"
	"github.com/creatorsmantra/creatorsmantra-be/shared/logger"
	"github.com/creatorsmantra/creatorsmantra-be/shared/postgresql"
	"github.com/creatorsmantra/creatorsmantra-be/shared/rabbitmq"
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

	logConfig := cfg.Logging.LoggerConfig()
	logConfig.Service = cfg.App.Name
	logConfig.Version = cfg.App.Version
	appLogger, err := logger.New(logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting script API service",
		slog.String("environment", cfg.App.Environment),
	)

	dbConfig := cfg.Database.PostgresConfig()
	dbConfig.ApplicationName = cfg.App.Name
	dbClient, err := postgresql.NewClient(dbConfig, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	if cfg.Database.RunMigrations {
		if err := dbClient.RunMigrations(migrations.FS); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	rabbitConfig := cfg.RabbitMQ.ClientConfig()
	rabbitConfig.AppID = cfg.App.Name
	rabbitClient, err := rabbitmq.NewClient(rabbitConfig, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r := router.SetupRouter(&handler.Dependencies{
		Logger:    appLogger.Logger,
		Store:     storage.NewStorage(dbClient.GetDB()),
		Publisher: rabbitClient,
		DBHealth:  dbClient,
		Defaults: handler.JobDefaults{
			TimeoutSeconds: int(cfg.Worker.JobTimeout.Seconds()),
		},
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting HTTP server", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down server",
			slog.String("signal", sig.String()),
		)
	case err := <-serverErr:
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
