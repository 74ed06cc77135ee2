package redis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrEmptyConnectionURL = errors.New("redis: empty connection url")
	ErrFailedToParseURL   = errors.New("redis: failed to parse connection url")
	ErrConnectionFailed   = errors.New("redis: connection failed")
	ErrHealthcheckFailed  = errors.New("redis: healthcheck failed")
)

// Config holds Redis connection configuration
type Config struct {
	URL           string
	PoolSize      int
	MinIdleConns  int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	RetryAttempts int
	RetryInterval time.Duration
}

// Open parses a redis:// or rediss:// URL and connects, retrying with a linearly growing wait.
func Open(ctx context.Context, config *Config, logger *slog.Logger) (redis.UniversalClient, error) {
	if config.URL == "" {
		return nil, ErrEmptyConnectionURL
	}
	if !strings.HasPrefix(config.URL, "redis://") && !strings.HasPrefix(config.URL, "rediss://") {
		return nil, ErrFailedToParseURL
	}

	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseURL, err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.MinIdleConns > 0 {
		opts.MinIdleConns = config.MinIdleConns
	}
	if config.DialTimeout > 0 {
		opts.DialTimeout = config.DialTimeout
	}
	if config.ReadTimeout > 0 {
		opts.ReadTimeout = config.ReadTimeout
	}
	if config.WriteTimeout > 0 {
		opts.WriteTimeout = config.WriteTimeout
	}

	attempts := max(config.RetryAttempts, 1)
	for i := range attempts {
		client := redis.NewClient(opts)

		err := client.Ping(ctx).Err()
		if err == nil {
			logger.Info("Successfully connected to Redis", slog.String("addr", opts.Addr))
			return client, nil
		}
		_ = client.Close()

		logger.Error("Failed to connect to Redis",
			slog.Any("error", err),
			slog.Int("attempt", i+1),
			slog.Int("max_attempts", attempts),
		)

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrConnectionFailed, ctx.Err())
		case <-time.After(time.Duration(i+1) * config.RetryInterval):
		}
	}

	return nil, ErrConnectionFailed
}

// Healthcheck returns a closure that validates Redis connectivity for health endpoints
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if client == nil {
			return ErrHealthcheckFailed
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
