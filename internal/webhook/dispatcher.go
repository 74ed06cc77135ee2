package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/signature"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second

	// SnippetLimit caps how much of a response body is kept for diagnostics
	SnippetLimit = 500

	userAgent = "content-pipeline-webhook/1.0"
)

// DispatcherConfig configures outbound delivery
type DispatcherConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
}

// Request is one outbound delivery
type Request struct {
	URL     string
	Secret  string
	Payload any
	// Timeout overrides the per-attempt timeout when positive
	Timeout time.Duration
	Headers map[string]string
}

// Result is the final outcome of a delivery after all attempts
type Result struct {
	Success     bool
	StatusCode  int
	BodySnippet string
	Err         error
	Duration    time.Duration
	Attempts    int
}

// Dispatcher sends signed JSON webhooks with attempt-level retry.
// 2xx is success; 5xx, network errors and timeouts are retried with a linear delay; 4xx is final.
type Dispatcher struct {
	client *http.Client
	config DispatcherConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher, applying defaults for unset config values
func NewDispatcher(config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.BaseDelay < 0 {
		config.BaseDelay = DefaultBaseDelay
	}

	return &Dispatcher{
		client: &http.Client{},
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Send delivers req, retrying retryable failures. It never returns a Go error;
// failures are described by Result.Err using the domain error taxonomy.
func (d *Dispatcher) Send(ctx context.Context, req Request) Result {
	start := time.Now()
	result := Result{}

	body, err := json.Marshal(req.Payload)
	if err != nil {
		result.Err = fmt.Errorf("%w: failed to marshal payload: %v", domain.ErrValidation, err)
		return result
	}

	timeout := d.config.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	err = goretry.Do(ctx, d.backoff(), func(ctx context.Context) error {
		result.Attempts++

		status, snippet, err := d.attempt(ctx, req, body, timeout)
		result.StatusCode = status
		result.BodySnippet = snippet
		if err == nil {
			return nil
		}

		d.logger.Warn("Webhook attempt failed",
			slog.String("url", req.URL),
			slog.Int("attempt", result.Attempts),
			slog.Int("status_code", status),
			slog.Any("error", err),
		)

		if isRetryable(err) {
			return goretry.RetryableError(err)
		}
		return err
	})

	result.Duration = time.Since(start)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", domain.ErrTimeout, err)
		}
		result.Err = err
		return result
	}

	result.Success = true
	d.logger.Info("Webhook delivered",
		slog.String("url", req.URL),
		slog.Int("status_code", result.StatusCode),
		slog.Int("attempts", result.Attempts),
		slog.Duration("duration", result.Duration),
	)
	return result
}

// backoff waits BaseDelay × attempt between attempts and stops after MaxAttempts
func (d *Dispatcher) backoff() goretry.Backoff {
	var attempt int64
	linear := goretry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * d.config.BaseDelay, false
	})
	return goretry.WithMaxRetries(uint64(d.config.MaxAttempts-1), linear)
}

func (d *Dispatcher) attempt(ctx context.Context, req Request, body []byte, timeout time.Duration) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("%w: invalid url %q: %v", domain.ErrValidation, req.URL, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	signature.SignRequest(httpReq, req.Secret, body, d.now())

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return 0, "", transportError(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, SnippetLimit))
	_, _ = io.Copy(io.Discard, resp.Body)
	snippet := string(raw)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, snippet, nil
	}
	return resp.StatusCode, snippet, &domain.RemoteError{StatusCode: resp.StatusCode, Body: snippet}
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
}

func isRetryable(err error) bool {
	var remoteErr *domain.RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.IsServerError()
	}
	return errors.Is(err, domain.ErrNetwork) || errors.Is(err, domain.ErrTimeout)
}
