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

	"github.com/cuongbtq/content-pipeline/internal/api/handler"
	"github.com/cuongbtq/content-pipeline/internal/api/router"
	"github.com/cuongbtq/content-pipeline/internal/app"
	"github.com/cuongbtq/content-pipeline/internal/config"
	"github.com/cuongbtq/content-pipeline/internal/signature"
	"github.com/cuongbtq/content-pipeline/internal/webhook"
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

	appLogger, err := initLogger(&cfg.Logging, cfg.App.Environment)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Flush(2 * time.Second)

	appLogger.Info("Starting API service",
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

	r := initRouter(cfg, appLogger.Logger, services)

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
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-serverErr:
		appLogger.Error("Server failed", slog.Any("error", err))
		_ = services.Close()
		return err
	}

	ctx, cancel := app.ShutdownContext(cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
	}

	if err := services.Close(); err != nil {
		appLogger.Warn("Failed to close resources cleanly", slog.Any("error", err))
	}

	appLogger.Info("Server shutdown complete")
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

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, services *app.Services) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	syncReceiver := webhook.NewReceiver(
		"sync",
		signature.NewVerifier(cfg.Webhook.SyncSecret, cfg.Webhook.MaxAge),
		webhook.ContentSyncEvents,
		handler.ForwardContentEvents(services.Sync, logger),
		logger,
	)
	paymentReceiver := webhook.NewReceiver(
		"payment",
		signature.NewVerifier(cfg.Webhook.PaymentSecret, cfg.Webhook.MaxAge),
		webhook.PaymentEvents,
		handler.LogPaymentEvents(logger),
		logger,
	)

	checks := make(map[string]handler.HealthCheck, len(services.HealthChecks))
	for name, check := range services.HealthChecks {
		checks[name] = check
	}

	handlerDeps := &handler.Dependencies{
		Logger:       logger,
		ServiceName:  cfg.App.Name,
		TriggerToken: cfg.Auth.TriggerToken,
		Store:        services.Store,
		HealthChecks: checks,
		Orchestrators: map[string]handler.Runner{
			"translation": services.Translation,
			"publish":     services.Publish,
			"sync":        services.Sync,
		},
		Sync:            services.Sync,
		SyncReceiver:    syncReceiver,
		PaymentReceiver: paymentReceiver,
	}

	return router.SetupRouter(handlerDeps)
}
