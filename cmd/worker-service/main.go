package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cuongbtq/content-pipeline/internal/app"
	"github.com/cuongbtq/content-pipeline/internal/config"
	"github.com/cuongbtq/content-pipeline/internal/worker"
	"github.com/cuongbtq/content-pipeline/shared/logger"
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
	runOnStart := flag.Bool("run-on-start", false, "Run every enabled orchestrator once at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging, cfg.App.Environment)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Flush(2 * time.Second)

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	startCtx, startCancel := context.WithTimeout(context.Background(), time.Minute)
	services, err := app.Build(startCtx, cfg, appLogger.Logger)
	startCancel()
	if err != nil {
		return err
	}

	var tasks []worker.Task
	if cfg.Jobs.Translation.Enabled {
		tasks = append(tasks, worker.Task{Name: "translation", Interval: cfg.Jobs.Translation.Interval, Runner: services.Translation})
	}
	if cfg.Jobs.Publish.Enabled {
		tasks = append(tasks, worker.Task{Name: "publish", Interval: cfg.Jobs.Publish.Interval, Runner: services.Publish})
	}
	if cfg.Jobs.Sync.Enabled {
		tasks = append(tasks, worker.Task{Name: "sync", Interval: cfg.Jobs.Sync.Interval, Runner: services.Sync})
	}

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:     appLogger.Logger,
		Tasks:      tasks,
		RunOnStart: *runOnStart,
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- workerInstance.Start(context.Background())
	}()

	appLogger.Info("Worker service started successfully", slog.String("worker_id", services.WorkerID))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		_ = services.Close()
		return err
	}

	shutdownCtx, shutdownCancel := app.ShutdownContext(cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	if err := workerInstance.Stop(shutdownCtx); err != nil {
		appLogger.Warn("Worker shutdown timeout exceeded, in-flight runs canceled", slog.Any("error", err))
	}

	if err := services.Close(); err != nil {
		appLogger.Warn("Failed to close resources cleanly", slog.Any("error", err))
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig, environment string) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:             cfg.Level,
		Format:            cfg.Format,
		Output:            cfg.Output,
		EnableSource:      cfg.EnableCaller,
		TimeFormat:        time.RFC3339,
		SentryDSN:         cfg.SentryDSN,
		SentryEnvironment: cfg.SentryEnvironment,
	}
	if loggerCfg.SentryEnvironment == "" {
		loggerCfg.SentryEnvironment = environment
	}

	return logger.New(loggerCfg)
}
