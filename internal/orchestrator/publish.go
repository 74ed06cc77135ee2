package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/content-pipeline/internal/claim"
	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/retry"
	"github.com/cuongbtq/content-pipeline/internal/storage"
)

const (
	DefaultPublishTimeout = 30 * time.Second
	defaultNotifyTimeout  = 30 * time.Second
)

// Publisher performs the publish side effect for one destination kind.
// Implementations must be idempotent per job.
type Publisher interface {
	Publish(ctx context.Context, job *domain.Job, payload domain.PublishPayload) error
}

// PublishedContent is announced to notifiers after a successful publish
type PublishedContent struct {
	JobID       string                 `json:"job_id"`
	TenantID    string                 `json:"tenant_id"`
	ArticleID   string                 `json:"article_id"`
	Destination domain.DestinationKind `json:"destination"`
	Title       string                 `json:"title,omitempty"`
	URL         string                 `json:"url,omitempty"`
	PublishedAt time.Time              `json:"published_at"`
}

// Notifier receives best-effort announcements of published content
type Notifier interface {
	Notify(ctx context.Context, content PublishedContent) error
}

// PublishConfig configures the scheduled-publish orchestrator
type PublishConfig struct {
	RunConfig
	ActionTimeout time.Duration
	// DefaultLanguages are chained when a payload enables auto-translate without listing languages
	DefaultLanguages []string
}

// Publish drives scheduled-publish jobs flagged for auto-publish
type Publish struct {
	*runner
	internal         Publisher
	external         Publisher
	jobs             storage.JobStore
	notifier         Notifier
	actionTimeout    time.Duration
	defaultLanguages []string
	notifications    sync.WaitGroup
}

// NewPublish creates the scheduled-publish orchestrator. notifier may be nil.
func NewPublish(claimer *claim.Protocol, store storage.JobStore, policy retry.Policy, internal, external Publisher, notifier Notifier, config PublishConfig, logger *slog.Logger) *Publish {
	if config.ActionTimeout <= 0 {
		config.ActionTimeout = DefaultPublishTimeout
	}
	return &Publish{
		runner:           newRunner(domain.JobKindScheduledPublish, claimer, store, policy, config.RunConfig, logger),
		internal:         internal,
		external:         external,
		jobs:             store,
		notifier:         notifier,
		actionTimeout:    config.ActionTimeout,
		defaultLanguages: config.DefaultLanguages,
	}
}

// Run claims due auto-publish jobs and publishes them
func (p *Publish) Run(ctx context.Context) (Summary, error) {
	return p.run(ctx, p.process)
}

// Wait blocks until in-flight notifications have finished
func (p *Publish) Wait() {
	p.notifications.Wait()
}

func (p *Publish) process(ctx context.Context, job *domain.Job) (Outcome, error) {
	var payload domain.PublishPayload
	if err := job.DecodePayload(&payload); err != nil {
		return p.terminate(ctx, job, err)
	}

	publisher, err := p.publisherFor(payload.Destination)
	if err != nil {
		return p.terminate(ctx, job, err)
	}

	actionCtx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	err = publisher.Publish(actionCtx, job, payload)
	if err != nil && errors.Is(actionCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w: publish exceeded %s: %v", domain.ErrTimeout, p.actionTimeout, err)
	}
	cancel()
	if err != nil {
		return p.fail(ctx, job, err)
	}

	if err := p.chainTranslation(ctx, job, payload); err != nil {
		return p.fail(ctx, job, err)
	}

	outcome, err := p.complete(ctx, job)
	if err != nil {
		return outcome, err
	}

	p.announce(ctx, job, payload)
	return outcome, nil
}

func (p *Publish) publisherFor(kind domain.DestinationKind) (Publisher, error) {
	var publisher Publisher
	switch kind {
	case domain.DestinationInternal:
		publisher = p.internal
	case domain.DestinationExternal:
		publisher = p.external
	default:
		return nil, fmt.Errorf("%w: unknown destination kind %q", domain.ErrValidation, kind)
	}
	if publisher == nil {
		return nil, fmt.Errorf("%w: no publisher configured for %q", domain.ErrValidation, kind)
	}
	return publisher, nil
}

// chainTranslation enqueues the follow-up translation job. The dedupe key makes re-runs of a
// double-claimed publish job insert it at most once.
func (p *Publish) chainTranslation(ctx context.Context, job *domain.Job, payload domain.PublishPayload) error {
	if !payload.AutoTranslate {
		return nil
	}

	languages := domain.NewLanguages(payload.TargetLanguages...)
	if len(languages) == 0 {
		languages = domain.NewLanguages(p.defaultLanguages...)
	}
	if len(languages) == 0 {
		p.logger.Warn("Auto-translate enabled without target languages", slog.String("job_id", job.ID))
		return nil
	}

	next := &domain.Job{
		Kind:            domain.JobKindTranslation,
		Status:          domain.JobStatusPending,
		TenantID:        job.TenantID,
		ArticleID:       job.ArticleID,
		DedupeKey:       "translation:" + job.ID,
		ScheduledAt:     p.now(),
		TargetLanguages: languages,
	}
	if err := next.SetPayload(map[string]string{"source_job_id": job.ID}); err != nil {
		return err
	}

	inserted, err := p.jobs.Insert(context.WithoutCancel(ctx), next)
	if err != nil {
		return fmt.Errorf("failed to chain translation job: %w", err)
	}

	p.logger.Info("Translation job chained",
		slog.String("job_id", job.ID),
		slog.String("translation_job_id", next.ID),
		slog.Bool("inserted", inserted),
	)
	return nil
}

// announce notifies in the background; failures are logged and never touch the job
func (p *Publish) announce(ctx context.Context, job *domain.Job, payload domain.PublishPayload) {
	if p.notifier == nil {
		return
	}

	content := PublishedContent{
		JobID:       job.ID,
		TenantID:    job.TenantID,
		ArticleID:   job.ArticleID,
		Destination: payload.Destination,
		Title:       payload.Title,
		URL:         payload.URL,
		PublishedAt: p.now(),
	}

	p.notifications.Add(1)
	go func() {
		defer p.notifications.Done()

		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultNotifyTimeout)
		defer cancel()

		if err := p.notifier.Notify(notifyCtx, content); err != nil {
			p.logger.Warn("Publish notification failed",
				slog.String("job_id", content.JobID),
				slog.Any("error", err),
			)
		}
	}()
}
