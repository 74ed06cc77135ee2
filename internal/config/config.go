package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Storage drivers
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config represents the complete application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Storage      StorageConfig      `yaml:"storage"`
	RabbitMQ     RabbitMQConfig     `yaml:"rabbitmq"`
	Redis        RedisConfig        `yaml:"redis"`
	Logging      LoggingConfig      `yaml:"logging"`
	App          AppConfig          `yaml:"app"`
	Worker       WorkerConfig       `yaml:"worker"`
	Jobs         JobsConfig         `yaml:"jobs"`
	Webhook      WebhookConfig      `yaml:"webhook"`
	Auth         AuthConfig         `yaml:"auth"`
	Integrations IntegrationsConfig `yaml:"integrations"`
	Notify       NotifyConfig       `yaml:"notify"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// StorageConfig selects the job store implementation
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

// RabbitMQConfig holds the RabbitMQ connection used for publish notifications
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// RedisConfig holds the Redis connection used for claim leases
type RedisConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	PoolSize      int           `yaml:"pool_size"`
	MinIdleConns  int           `yaml:"min_idle_conns"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level             string `yaml:"level"`
	Format            string `yaml:"format"`
	Output            string `yaml:"output"`
	EnableCaller      bool   `yaml:"enable_caller"`
	SentryDSN         string `yaml:"sentry_dsn"`
	SentryEnvironment string `yaml:"sentry_environment"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds settings shared by every orchestrator
type WorkerConfig struct {
	ID                 string        `yaml:"id"`
	Concurrency        int           `yaml:"concurrency"`
	BatchSize          int           `yaml:"batch_size"`
	StalenessThreshold time.Duration `yaml:"staleness_threshold"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
}

// JobsConfig holds per-kind settings
type JobsConfig struct {
	Translation JobConfig `yaml:"translation"`
	Publish     JobConfig `yaml:"publish"`
	Sync        JobConfig `yaml:"sync"`
}

// JobConfig configures one orchestrator and its retry policy
type JobConfig struct {
	Enabled          bool            `yaml:"enabled"`
	Interval         time.Duration   `yaml:"interval"`
	MaxRetries       int             `yaml:"max_retries"`
	Backoff          []time.Duration `yaml:"backoff"`
	TerminalPolicy   string          `yaml:"terminal_policy"`
	RescheduleWindow time.Duration   `yaml:"reschedule_window"`
	TerminalErrors   []string        `yaml:"terminal_errors"`
	ActionTimeout    time.Duration   `yaml:"action_timeout"`
	// AutoTranslateLanguages are chained after publish when the job names none (publish only)
	AutoTranslateLanguages []string `yaml:"auto_translate_languages"`
	// FanoutLimit bounds concurrent destination deliveries (sync only)
	FanoutLimit int `yaml:"fanout_limit"`
}

// WebhookConfig holds outbound dispatch and inbound verification settings
type WebhookConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxAttempts   int           `yaml:"max_attempts"`
	BaseDelay     time.Duration `yaml:"base_delay"`
	MaxAge        time.Duration `yaml:"max_age"`
	SyncSecret    string        `yaml:"sync_secret"`
	PaymentSecret string        `yaml:"payment_secret"`
}

// AuthConfig holds the bearer token for trigger and event endpoints
type AuthConfig struct {
	TriggerToken string `yaml:"trigger_token"`
}

// IntegrationsConfig holds the HTTP endpoints the orchestrators act on
type IntegrationsConfig struct {
	Translation     EndpointConfig `yaml:"translation"`
	InternalPublish EndpointConfig `yaml:"internal_publish"`
	ExternalPublish EndpointConfig `yaml:"external_publish"`
}

// EndpointConfig is one signed HTTP integration
type EndpointConfig struct {
	URL     string        `yaml:"url"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout"`
}

// NotifyConfig holds best-effort publish notification settings
type NotifyConfig struct {
	PingURLs    []string      `yaml:"ping_urls"`
	PingTimeout time.Duration `yaml:"ping_timeout"`
	RoutingKey  string        `yaml:"routing_key"`
}

// Load reads and parses the configuration file, then applies environment overrides
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv(os.LookupEnv)
	config.applyDefaults()

	return &config, nil
}

// applyEnv lets secrets live outside the YAML file
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	overrides := map[string]*string{
		"DATABASE_PASSWORD":          &c.Database.Password,
		"RABBITMQ_PASSWORD":          &c.RabbitMQ.Password,
		"REDIS_URL":                  &c.Redis.URL,
		"SENTRY_DSN":                 &c.Logging.SentryDSN,
		"TRIGGER_TOKEN":              &c.Auth.TriggerToken,
		"WEBHOOK_SYNC_SECRET":        &c.Webhook.SyncSecret,
		"WEBHOOK_PAYMENT_SECRET":     &c.Webhook.PaymentSecret,
		"TRANSLATION_SERVICE_SECRET": &c.Integrations.Translation.Secret,
		"PUBLISH_INTERNAL_SECRET":    &c.Integrations.InternalPublish.Secret,
		"PUBLISH_EXTERNAL_SECRET":    &c.Integrations.ExternalPublish.Secret,
		"WORKER_ID":                  &c.Worker.ID,
	}
	for key, target := range overrides {
		if v, ok := lookup(key); ok && v != "" {
			*target = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageDriverPostgres
	}
	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = 1
	}
	if c.Jobs.Translation.TerminalPolicy == "" {
		c.Jobs.Translation.TerminalPolicy = "fail"
	}
	if c.Jobs.Publish.TerminalPolicy == "" {
		c.Jobs.Publish.TerminalPolicy = "reschedule"
	}
	if c.Jobs.Sync.TerminalPolicy == "" {
		c.Jobs.Sync.TerminalPolicy = "fail"
	}
}

// ValidateAPIConfig checks the settings the API service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.Auth.TriggerToken == "" {
		return errors.New("auth trigger_token is required")
	}

	if c.Webhook.SyncSecret == "" {
		return errors.New("webhook sync_secret is required")
	}

	if c.Webhook.PaymentSecret == "" {
		return errors.New("webhook payment_secret is required")
	}

	return c.validateShared()
}

// ValidateWorkerConfig checks the settings the worker service needs
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return errors.New("worker shutdown_timeout must be greater than 0")
	}

	kinds := map[string]JobConfig{
		"translation": c.Jobs.Translation,
		"publish":     c.Jobs.Publish,
		"sync":        c.Jobs.Sync,
	}
	for name, job := range kinds {
		if job.Enabled && job.Interval <= 0 {
			return fmt.Errorf("jobs.%s interval must be greater than 0", name)
		}
	}

	return c.validateShared()
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case StorageDriverMemory:
		return nil
	case StorageDriverPostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Database.Host == "" {
		return errors.New("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return errors.New("database name is required")
	}

	return nil
}

func (c *Config) validateShared() error {
	if c.Worker.Concurrency < 1 {
		return errors.New("worker concurrency must be at least 1")
	}

	if c.Worker.BatchSize < 0 {
		return errors.New("worker batch_size must not be negative")
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return errors.New("rabbitmq host is required")
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.RabbitMQ.Exchange.Name == "" {
			return errors.New("rabbitmq exchange name is required")
		}
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return errors.New("redis url is required when redis is enabled")
	}

	policies := map[string]JobConfig{
		"translation": c.Jobs.Translation,
		"publish":     c.Jobs.Publish,
		"sync":        c.Jobs.Sync,
	}
	for name, job := range policies {
		if job.MaxRetries < 0 {
			return fmt.Errorf("jobs.%s max_retries must not be negative", name)
		}
		switch job.TerminalPolicy {
		case "fail", "reschedule":
		default:
			return fmt.Errorf("jobs.%s terminal_policy must be fail or reschedule, got %q", name, job.TerminalPolicy)
		}
		for _, d := range job.Backoff {
			if d <= 0 {
				return fmt.Errorf("jobs.%s backoff entries must be positive", name)
			}
		}
	}

	return nil
}
