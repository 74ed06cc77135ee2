// Package app assembles the store, claim protocols and orchestrators both services run.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/cuongbtq/content-pipeline/internal/action"
	"github.com/cuongbtq/content-pipeline/internal/claim"
	"github.com/cuongbtq/content-pipeline/internal/config"
	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/notify"
	"github.com/cuongbtq/content-pipeline/internal/orchestrator"
	"github.com/cuongbtq/content-pipeline/internal/retry"
	"github.com/cuongbtq/content-pipeline/internal/storage"
	"github.com/cuongbtq/content-pipeline/internal/webhook"
	"github.com/cuongbtq/content-pipeline/migrations"
	"github.com/cuongbtq/content-pipeline/shared/postgresql"
	"github.com/cuongbtq/content-pipeline/shared/rabbitmq"
	sharedredis "github.com/cuongbtq/content-pipeline/shared/redis"
)

// Services holds everything wired from one Config
type Services struct {
	WorkerID    string
	Store       storage.Store
	Dispatcher  *webhook.Dispatcher
	Translation *orchestrator.Translation
	Publish     *orchestrator.Publish
	Sync        *orchestrator.Sync
	// HealthChecks probes each opened backing service by name
	HealthChecks map[string]func(context.Context) error

	closers []func() error
}

// Build connects the backing services and assembles the orchestrators
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	s := &Services{
		WorkerID:     workerID(cfg.Worker.ID),
		HealthChecks: make(map[string]func(context.Context) error),
	}

	if err := s.openStore(ctx, cfg, logger); err != nil {
		_ = s.Close()
		return nil, err
	}

	var leaseClient goredis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := sharedredis.Open(ctx, &sharedredis.Config{
			URL:           cfg.Redis.URL,
			PoolSize:      cfg.Redis.PoolSize,
			MinIdleConns:  cfg.Redis.MinIdleConns,
			DialTimeout:   cfg.Redis.DialTimeout,
			ReadTimeout:   cfg.Redis.ReadTimeout,
			WriteTimeout:  cfg.Redis.WriteTimeout,
			RetryAttempts: cfg.Redis.RetryAttempts,
			RetryInterval: cfg.Redis.RetryInterval,
		}, logger)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		s.HealthChecks["redis"] = sharedredis.Healthcheck(client)
		leaseClient = client
		logger.Info("Redis claim lease enabled")
	}

	notifier, err := s.buildNotifier(ctx, cfg, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	policies := make(map[domain.JobKind]retry.Policy, 3)
	for kind, job := range map[domain.JobKind]config.JobConfig{
		domain.JobKindTranslation:      cfg.Jobs.Translation,
		domain.JobKindScheduledPublish: cfg.Jobs.Publish,
		domain.JobKindSync:             cfg.Jobs.Sync,
	} {
		policy, err := BuildPolicy(job)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("invalid %s retry policy: %w", kind, err)
		}
		policies[kind] = policy
	}

	s.Dispatcher = webhook.NewDispatcher(webhook.DispatcherConfig{
		Timeout:     cfg.Webhook.Timeout,
		MaxAttempts: cfg.Webhook.MaxAttempts,
		BaseDelay:   cfg.Webhook.BaseDelay,
	}, logger.With(slog.String("component", "dispatcher")))

	protocol := func(kind domain.JobKind, autoPublishOnly bool) *claim.Protocol {
		var opts []claim.Option
		if leaseClient != nil {
			opts = append(opts, claim.WithLease(claim.NewRedisLease(leaseClient, s.WorkerID)))
		}
		return claim.NewProtocol(s.Store, claim.Config{
			Kind:            kind,
			WorkerID:        s.WorkerID,
			Staleness:       cfg.Worker.StalenessThreshold,
			AutoPublishOnly: autoPublishOnly,
		}, logger, opts...)
	}
	run := orchestrator.RunConfig{
		BatchSize:   cfg.Worker.BatchSize,
		Concurrency: cfg.Worker.Concurrency,
	}

	s.Translation = orchestrator.NewTranslation(
		protocol(domain.JobKindTranslation, false),
		s.Store,
		policies[domain.JobKindTranslation],
		action.NewHTTPTranslator(s.Dispatcher, endpoint(cfg.Integrations.Translation)),
		orchestrator.TranslationConfig{RunConfig: run, LanguageTimeout: cfg.Jobs.Translation.ActionTimeout},
		logger,
	)

	s.Publish = orchestrator.NewPublish(
		protocol(domain.JobKindScheduledPublish, true),
		s.Store,
		policies[domain.JobKindScheduledPublish],
		action.NewWebhookPublisher(s.Dispatcher, endpoint(cfg.Integrations.InternalPublish)),
		action.NewWebhookPublisher(s.Dispatcher, endpoint(cfg.Integrations.ExternalPublish)),
		notifier,
		orchestrator.PublishConfig{
			RunConfig:        run,
			ActionTimeout:    cfg.Jobs.Publish.ActionTimeout,
			DefaultLanguages: cfg.Jobs.Publish.AutoTranslateLanguages,
		},
		logger,
	)

	s.Sync = orchestrator.NewSync(
		protocol(domain.JobKindSync, false),
		s.Store,
		s.Store,
		s.Store,
		policies[domain.JobKindSync],
		s.Dispatcher,
		orchestrator.SyncConfig{
			RunConfig:   run,
			Timeout:     cfg.Jobs.Sync.ActionTimeout,
			FanoutLimit: cfg.Jobs.Sync.FanoutLimit,
		},
		logger,
	)

	logger.Info("Services assembled",
		slog.String("worker_id", s.WorkerID),
		slog.String("storage_driver", cfg.Storage.Driver),
	)
	return s, nil
}

func (s *Services) openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		logger.Warn("Using in-memory job store; state is lost on restart")
		s.Store = storage.NewMemory()
		s.HealthChecks["storage"] = s.Store.Ping
		return nil
	}

	dbClient, err := postgresql.NewClient(ctx, &postgresql.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		RetryAttempts:   cfg.Database.RetryAttempts,
		RetryInterval:   cfg.Database.RetryInterval,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.closers = append(s.closers, dbClient.Close)
	s.HealthChecks["database"] = dbClient.HealthCheck

	if cfg.Database.AutoMigrate {
		if err := dbClient.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	s.Store = storage.NewPostgres(dbClient.GetDB(), logger)
	logger.Info("Database connection established")
	return nil
}

// buildNotifier returns nil when no notifier is configured so Publish skips announcements
func (s *Services) buildNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (orchestrator.Notifier, error) {
	var notifiers []notify.Named

	if cfg.RabbitMQ.Enabled {
		rabbitClient, err := rabbitmq.NewClient(ctx, &rabbitmq.Config{
			Host:               cfg.RabbitMQ.Host,
			Port:               cfg.RabbitMQ.Port,
			User:               cfg.RabbitMQ.User,
			Password:           cfg.RabbitMQ.Password,
			VHost:              cfg.RabbitMQ.VHost,
			ExchangeName:       cfg.RabbitMQ.Exchange.Name,
			ExchangeType:       cfg.RabbitMQ.Exchange.Type,
			ExchangeDurable:    cfg.RabbitMQ.Exchange.Durable,
			RetryAttempts:      cfg.RabbitMQ.Connection.RetryAttempts,
			RetryInterval:      cfg.RabbitMQ.Connection.RetryInterval,
			Heartbeat:          cfg.RabbitMQ.Connection.Heartbeat,
			PublishRetries:     cfg.RabbitMQ.Publish.RetryAttempts,
			PublishRetryDelay:  cfg.RabbitMQ.Publish.RetryInterval,
			PublishBackoffMult: cfg.RabbitMQ.Publish.BackoffMultiplier,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		s.closers = append(s.closers, rabbitClient.Close)
		s.HealthChecks["rabbitmq"] = func(context.Context) error {
			if !rabbitClient.IsConnected() {
				return rabbitmq.ErrNotConnected
			}
			return nil
		}
		notifiers = append(notifiers, notify.Named{
			Name:     "rabbitmq",
			Notifier: notify.NewRabbitNotifier(rabbitClient, cfg.Notify.RoutingKey),
		})
		logger.Info("RabbitMQ connection established")
	}

	if len(cfg.Notify.PingURLs) > 0 {
		notifiers = append(notifiers, notify.Named{
			Name:     "ping",
			Notifier: notify.NewPingNotifier(cfg.Notify.PingURLs, cfg.Notify.PingTimeout, logger),
		})
	}

	if len(notifiers) == 0 {
		return nil, nil
	}
	return notify.NewFanout(logger, notifiers...), nil
}

// Close releases connections in reverse order of opening
func (s *Services) Close() error {
	if s.Publish != nil {
		s.Publish.Wait()
	}

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// BuildPolicy turns one jobs.<kind> section into a retry policy. Zero values keep the defaults.
func BuildPolicy(job config.JobConfig) (retry.Policy, error) {
	terminal, err := retry.ParseTerminalPolicy(job.TerminalPolicy)
	if err != nil {
		return retry.Policy{}, err
	}

	policy := retry.DefaultPolicy(terminal)
	if job.MaxRetries > 0 {
		policy.MaxRetries = job.MaxRetries
	}
	if len(job.Backoff) > 0 {
		policy.Backoff = retry.Backoff(job.Backoff)
	}
	if job.RescheduleWindow > 0 {
		policy.RescheduleWindow = job.RescheduleWindow
	}

	substrings := append(append([]string{}, retry.DefaultTerminalSubstrings...), job.TerminalErrors...)
	classifier := retry.NewSubstringClassifier(substrings)
	// 408 and 429 are worth another try later; the rest of 4xx is not
	classifier.Next = retry.NewStatusClassifier(
		retry.StatusRange{Min: 400, Max: 407},
		retry.StatusRange{Min: 409, Max: 428},
		retry.StatusRange{Min: 430, Max: 499},
	)
	policy.Classifier = classifier

	return policy, nil
}

func endpoint(cfg config.EndpointConfig) action.Endpoint {
	return action.Endpoint{URL: cfg.URL, Secret: cfg.Secret, Timeout: cfg.Timeout}
}

func workerID(configured string) string {
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

// ShutdownContext bounds how long Close may wait for in-flight work
func ShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
