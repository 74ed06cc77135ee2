package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/lmittmann/tint"
)

// Config holds logger configuration
type Config struct {
	Level             string // debug, info, warn, error
	Format            string // json, console
	Output            string // stdout, stderr
	EnableSource      bool
	TimeFormat        string
	SentryDSN         string
	SentryEnvironment string

	writer io.Writer
}

// Logger wraps slog.Logger
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to the configured output. When SentryDSN is set,
// warnings and errors are also forwarded to Sentry.
func New(config *Config) (*Logger, error) {
	level := parseLevel(config.Level)
	handler := newOutputHandler(config, level)

	if config.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.SentryDSN,
			Environment: config.SentryEnvironment,
			EnableLogs:  true,
		}); err != nil {
			return nil, fmt.Errorf("failed to initialize sentry: %w", err)
		}

		sentryHandler := sentryslog.Option{
			EventLevel: []slog.Level{slog.LevelError},
			LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
		}.NewSentryHandler(context.Background())

		handler = newMultiHandler(handler, sentryHandler)
	}

	return &Logger{Logger: slog.New(handler)}, nil
}

func newOutputHandler(config *Config, level slog.Level) slog.Handler {
	writer := config.writer
	if writer == nil {
		switch config.Output {
		case "stderr":
			writer = os.Stderr
		default:
			writer = os.Stdout
		}
	}

	switch config.Format {
	case "console", "":
		timeFormat := config.TimeFormat
		if timeFormat == "" {
			timeFormat = time.RFC3339
		}
		return tint.NewHandler(writer, &tint.Options{
			Level:      level,
			AddSource:  config.EnableSource,
			TimeFormat: timeFormat,
		})
	default:
		return slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level:     level,
			AddSource: config.EnableSource,
		})
	}
}

// NewDefault creates a console logger at info level
func NewDefault() *Logger {
	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.TimeOnly,
	})

	return &Logger{Logger: slog.New(handler)}
}

// Flush waits for buffered Sentry events to be sent
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With creates a new logger with additional key-value pairs
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithGroup creates a new logger with a group namespace
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{Logger: l.Logger.WithGroup(name)}
}
