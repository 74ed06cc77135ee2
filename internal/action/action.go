// Package action holds the HTTP side effects the orchestrators perform: publishing an article
// to an internal or external destination and requesting one translation.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/orchestrator"
	"github.com/cuongbtq/content-pipeline/internal/webhook"
)

// Endpoint is a signed HTTP integration target
type Endpoint struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

func (e Endpoint) validate() error {
	if e.URL == "" {
		return fmt.Errorf("%w: endpoint url is not configured", domain.ErrValidation)
	}
	return nil
}

// send delivers payload and turns a failed Result into its error
func send(ctx context.Context, sender orchestrator.Dispatcher, endpoint Endpoint, payload any, headers map[string]string) error {
	if err := endpoint.validate(); err != nil {
		return err
	}

	result := sender.Send(ctx, webhook.Request{
		URL:     endpoint.URL,
		Secret:  endpoint.Secret,
		Payload: payload,
		Timeout: endpoint.Timeout,
		Headers: headers,
	})
	if result.Success {
		return nil
	}
	if result.Err == nil {
		return errors.New("delivery failed without error")
	}
	return result.Err
}

type publishRequest struct {
	JobID         string                 `json:"job_id"`
	TenantID      string                 `json:"tenant_id"`
	ArticleID     string                 `json:"article_id"`
	Destination   domain.DestinationKind `json:"destination"`
	DestinationID string                 `json:"destination_id,omitempty"`
	Title         string                 `json:"title,omitempty"`
	URL           string                 `json:"url,omitempty"`
	RequestedAt   time.Time              `json:"requested_at"`
}

// WebhookPublisher publishes an article by posting it to the configured endpoint
type WebhookPublisher struct {
	sender   orchestrator.Dispatcher
	endpoint Endpoint
	now      func() time.Time
}

// NewWebhookPublisher creates a publisher for one destination kind
func NewWebhookPublisher(sender orchestrator.Dispatcher, endpoint Endpoint) *WebhookPublisher {
	return &WebhookPublisher{sender: sender, endpoint: endpoint, now: time.Now}
}

// Publish implements orchestrator.Publisher
func (p *WebhookPublisher) Publish(ctx context.Context, job *domain.Job, payload domain.PublishPayload) error {
	if payload.Destination == domain.DestinationExternal && payload.DestinationID == "" {
		return fmt.Errorf("%w: external publish requires destination_id", domain.ErrValidation)
	}

	req := publishRequest{
		JobID:         job.ID,
		TenantID:      job.TenantID,
		ArticleID:     job.ArticleID,
		Destination:   payload.Destination,
		DestinationID: payload.DestinationID,
		Title:         payload.Title,
		URL:           payload.URL,
		RequestedAt:   p.now().UTC(),
	}
	// the job id lets the receiver drop repeated publishes after a crash
	return send(ctx, p.sender, p.endpoint, req, map[string]string{"Idempotency-Key": "publish:" + job.ID})
}

type translateRequest struct {
	JobID     string `json:"job_id"`
	TenantID  string `json:"tenant_id"`
	ArticleID string `json:"article_id"`
	Language  string `json:"language"`
}

// HTTPTranslator asks the translation service to translate one article into one language
type HTTPTranslator struct {
	sender   orchestrator.Dispatcher
	endpoint Endpoint
}

// NewHTTPTranslator creates a translator
func NewHTTPTranslator(sender orchestrator.Dispatcher, endpoint Endpoint) *HTTPTranslator {
	return &HTTPTranslator{sender: sender, endpoint: endpoint}
}

// Translate implements orchestrator.Translator
func (t *HTTPTranslator) Translate(ctx context.Context, req orchestrator.TranslationRequest) error {
	body := translateRequest{
		JobID:     req.JobID,
		TenantID:  req.TenantID,
		ArticleID: req.ArticleID,
		Language:  req.Language,
	}
	return send(ctx, t.sender, t.endpoint, body, map[string]string{
		"Idempotency-Key": "translate:" + req.ArticleID + ":" + req.Language,
	})
}
