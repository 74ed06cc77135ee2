package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/orchestrator"
)

const defaultPingTimeout = 10 * time.Second

// PingNotifier sends GET pings (for example search-engine or sitemap pings) for a published URL.
// Endpoints may contain "{url}", replaced by the escaped article URL; otherwise ?url= is appended.
type PingNotifier struct {
	endpoints []string
	client    *http.Client
	logger    *slog.Logger
}

// NewPingNotifier creates a ping notifier
func NewPingNotifier(endpoints []string, timeout time.Duration, logger *slog.Logger) *PingNotifier {
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	return &PingNotifier{
		endpoints: endpoints,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// Notify implements orchestrator.Notifier
func (n *PingNotifier) Notify(ctx context.Context, content orchestrator.PublishedContent) error {
	if content.URL == "" {
		return nil
	}

	var errs []error
	for _, endpoint := range n.endpoints {
		if err := n.ping(ctx, pingURL(endpoint, content.URL)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *PingNotifier) ping(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: invalid ping url: %v", domain.ErrValidation, err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ping %s: %v", domain.ErrNetwork, req.URL.Host, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return &domain.RemoteError{StatusCode: resp.StatusCode}
	}

	n.logger.Debug("Ping sent", slog.String("host", req.URL.Host), slog.Int("status_code", resp.StatusCode))
	return nil
}

func pingURL(endpoint, articleURL string) string {
	escaped := url.QueryEscape(articleURL)
	if strings.Contains(endpoint, "{url}") {
		return strings.ReplaceAll(endpoint, "{url}", escaped)
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "url=" + escaped
}
