package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "localhost", cfg.Database.Host)
			assert.Equal(t, "content_pipeline", cfg.Database.Database)
			assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
			assert.Equal(t, "content_events", cfg.RabbitMQ.Exchange.Name)
			assert.Equal(t, "content-pipeline", cfg.App.Name)
			assert.Equal(t, 15*time.Minute, cfg.Worker.StalenessThreshold)
			assert.Equal(t, []time.Duration{5 * time.Minute, 30 * time.Minute, 2 * time.Hour}, cfg.Jobs.Translation.Backoff)
			assert.Equal(t, "reschedule", cfg.Jobs.Publish.TerminalPolicy)
			assert.Equal(t, []string{"ja-JP", "fr-FR"}, cfg.Jobs.Publish.AutoTranslateLanguages)
			assert.Equal(t, 8, cfg.Jobs.Sync.FanoutLimit)
			// defaulted
			assert.Equal(t, "fail", cfg.Jobs.Sync.TerminalPolicy)
		})
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{TriggerToken: "from-file"}}
	env := map[string]string{
		"TRIGGER_TOKEN":       "from-env",
		"WEBHOOK_SYNC_SECRET": "sync",
		"DATABASE_PASSWORD":   "",
	}
	cfg.Database.Password = "keep"

	cfg.applyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})

	assert.Equal(t, "from-env", cfg.Auth.TriggerToken)
	assert.Equal(t, "sync", cfg.Webhook.SyncSecret)
	assert.Equal(t, "keep", cfg.Database.Password)
}

func validConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "content_pipeline",
		},
		Worker: WorkerConfig{Concurrency: 1, ShutdownTimeout: time.Second},
		Jobs: JobsConfig{
			Translation: JobConfig{Enabled: true, Interval: time.Minute},
			Publish:     JobConfig{Enabled: true, Interval: time.Minute},
			Sync:        JobConfig{Enabled: true, Interval: time.Minute},
		},
		Webhook: WebhookConfig{SyncSecret: "a", PaymentSecret: "b"},
		Auth:    AuthConfig{TriggerToken: "token"},
	}
	cfg.applyDefaults()
	return cfg
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			errString: "invalid server port",
		},
		{
			name:      "missing database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			errString: "database host is required",
		},
		{
			name:      "invalid database port",
			mutate:    func(c *Config) { c.Database.Port = -1 },
			errString: "invalid database port",
		},
		{
			name:      "missing database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			errString: "database name is required",
		},
		{
			name: "memory driver skips database checks",
			mutate: func(c *Config) {
				c.Storage.Driver = StorageDriverMemory
				c.Database = DatabaseConfig{}
			},
		},
		{
			name:      "unknown driver",
			mutate:    func(c *Config) { c.Storage.Driver = "sqlite" },
			errString: "unknown storage driver",
		},
		{
			name:      "missing trigger token",
			mutate:    func(c *Config) { c.Auth.TriggerToken = "" },
			errString: "trigger_token is required",
		},
		{
			name:      "missing sync secret",
			mutate:    func(c *Config) { c.Webhook.SyncSecret = "" },
			errString: "sync_secret is required",
		},
		{
			name:      "missing payment secret",
			mutate:    func(c *Config) { c.Webhook.PaymentSecret = "" },
			errString: "payment_secret is required",
		},
		{
			name: "rabbitmq enabled without exchange",
			mutate: func(c *Config) {
				c.RabbitMQ = RabbitMQConfig{Enabled: true, Host: "localhost", Port: 5672}
			},
			errString: "rabbitmq exchange name is required",
		},
		{
			name: "rabbitmq enabled with bad port",
			mutate: func(c *Config) {
				c.RabbitMQ = RabbitMQConfig{Enabled: true, Host: "localhost", Port: 0}
			},
			errString: "invalid rabbitmq port",
		},
		{
			name:      "redis enabled without url",
			mutate:    func(c *Config) { c.Redis.Enabled = true },
			errString: "redis url is required",
		},
		{
			name:      "unknown terminal policy",
			mutate:    func(c *Config) { c.Jobs.Publish.TerminalPolicy = "ignore" },
			errString: "jobs.publish terminal_policy",
		},
		{
			name:      "negative max retries",
			mutate:    func(c *Config) { c.Jobs.Sync.MaxRetries = -1 },
			errString: "jobs.sync max_retries",
		},
		{
			name:      "non-positive backoff",
			mutate:    func(c *Config) { c.Jobs.Translation.Backoff = []time.Duration{time.Minute, 0} },
			errString: "jobs.translation backoff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{
			name:   "api-only fields are not required",
			mutate: func(c *Config) { c.Server.Port = 0; c.Auth.TriggerToken = "" },
		},
		{
			name:      "missing shutdown timeout",
			mutate:    func(c *Config) { c.Worker.ShutdownTimeout = 0 },
			errString: "worker shutdown_timeout",
		},
		{
			name:      "enabled kind without interval",
			mutate:    func(c *Config) { c.Jobs.Sync.Interval = 0 },
			errString: "jobs.sync interval",
		},
		{
			name: "disabled kind without interval",
			mutate: func(c *Config) {
				c.Jobs.Sync.Enabled = false
				c.Jobs.Sync.Interval = 0
			},
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			errString: "worker concurrency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}
