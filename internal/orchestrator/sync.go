package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/content-pipeline/internal/claim"
	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/retry"
	"github.com/cuongbtq/content-pipeline/internal/storage"
	"github.com/cuongbtq/content-pipeline/internal/webhook"
)

// DefaultFanoutLimit caps concurrent deliveries for one event
const DefaultFanoutLimit = 8

// Dispatcher delivers one signed webhook
type Dispatcher interface {
	Send(ctx context.Context, req webhook.Request) webhook.Result
}

// ContentEvent is a content change to propagate to sync destinations
type ContentEvent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	TenantID   string         `json:"tenant_id"`
	ArticleID  string         `json:"article_id"`
	Data       map[string]any `json:"data"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NotifyResult summarizes the immediate fan-out of one event
type NotifyResult struct {
	EventID    string `json:"event_id"`
	Matched    int    `json:"matched"`
	Enqueued   int    `json:"enqueued"`
	Duplicates int    `json:"duplicates"`
	Delivered  int    `json:"delivered"`
	Retrying   int    `json:"retrying"`
	Failed     int    `json:"failed"`
}

// SyncConfig configures the sync orchestrator
type SyncConfig struct {
	RunConfig
	Timeout     time.Duration
	FanoutLimit int
}

// Sync delivers content events to every matching destination as independent sync jobs,
// one per (event, destination), each with its own retry schedule and DeliveryLog.
type Sync struct {
	*runner
	jobs         storage.JobStore
	destinations storage.DestinationStore
	deliveries   storage.DeliveryStore
	dispatcher   Dispatcher
	timeout      time.Duration
	fanoutLimit  int
}

// NewSync creates the sync orchestrator
func NewSync(claimer *claim.Protocol, jobs storage.JobStore, destinations storage.DestinationStore, deliveries storage.DeliveryStore, policy retry.Policy, dispatcher Dispatcher, config SyncConfig, logger *slog.Logger) *Sync {
	if config.FanoutLimit <= 0 {
		config.FanoutLimit = DefaultFanoutLimit
	}
	return &Sync{
		runner:       newRunner(domain.JobKindSync, claimer, jobs, policy, config.RunConfig, logger),
		jobs:         jobs,
		destinations: destinations,
		deliveries:   deliveries,
		dispatcher:   dispatcher,
		timeout:      config.Timeout,
		fanoutLimit:  config.FanoutLimit,
	}
}

// Notify enqueues one sync job per matching destination and dispatches them concurrently.
// Re-notifying the same event id does not enqueue or deliver again.
func (s *Sync) Notify(ctx context.Context, event ContentEvent) (NotifyResult, error) {
	if !webhook.ContentSyncEvents.Contains(webhook.EventType(event.Type)) {
		return NotifyResult{}, fmt.Errorf("%w: unsupported event type %q", domain.ErrValidation, event.Type)
	}
	if event.TenantID == "" {
		return NotifyResult{}, fmt.Errorf("%w: tenant_id is required", domain.ErrValidation)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}

	result := NotifyResult{EventID: event.ID}

	dests, err := s.destinations.ListActiveDestinations(ctx, event.TenantID)
	if err != nil {
		return result, fmt.Errorf("failed to list destinations: %w", err)
	}

	// enqueue errors are collected; jobs claimed before or after one still get dispatched
	var (
		claimed    []*domain.Job
		enqueueErr error
	)
	for _, dest := range dests {
		if !dest.Matches(event.Type) {
			continue
		}
		result.Matched++

		job, inserted, err := s.enqueue(ctx, event, dest)
		if err != nil {
			s.logger.Error("Failed to enqueue sync job",
				slog.String("event_id", event.ID),
				slog.String("destination_id", dest.ID),
				slog.Any("error", err),
			)
			enqueueErr = errors.Join(enqueueErr, err)
			if job == nil {
				continue
			}
		}
		if !inserted {
			result.Duplicates++
			continue
		}
		result.Enqueued++

		won, err := s.claimer.Claim(ctx, job.ID)
		if err != nil {
			// left pending; Run will pick it up
			s.logger.Error("Failed to claim sync job",
				slog.String("job_id", job.ID),
				slog.Any("error", err),
			)
			continue
		}
		if won != nil {
			claimed = append(claimed, won)
		}
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.fanoutLimit)
	for _, job := range claimed {
		g.Go(func() error {
			outcome, err := s.processOne(ctx, job, s.process)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case OutcomeCompleted:
				result.Delivered++
			case OutcomeRetrying, OutcomeRescheduled:
				result.Retrying++
			case OutcomeFailed:
				result.Failed++
			}
			return err
		})
	}
	err = errors.Join(enqueueErr, g.Wait())

	s.logger.Info("Content event fanned out",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
		slog.Int("matched", result.Matched),
		slog.Int("delivered", result.Delivered),
		slog.Int("retrying", result.Retrying),
		slog.Int("failed", result.Failed),
	)

	return result, err
}

func (s *Sync) enqueue(ctx context.Context, event ContentEvent, dest *domain.Destination) (*domain.Job, bool, error) {
	job := &domain.Job{
		Kind:        domain.JobKindSync,
		Status:      domain.JobStatusPending,
		TenantID:    event.TenantID,
		ArticleID:   event.ArticleID,
		DedupeKey:   fmt.Sprintf("sync:%s:%s", event.ID, dest.ID),
		ScheduledAt: s.now(),
	}
	err := job.SetPayload(domain.SyncPayload{
		EventID:       event.ID,
		EventType:     event.Type,
		DestinationID: dest.ID,
		Data:          event.Data,
		OccurredAt:    event.OccurredAt,
	})
	if err != nil {
		return nil, false, err
	}

	inserted, err := s.jobs.Insert(ctx, job)
	if err != nil {
		return nil, false, fmt.Errorf("failed to enqueue sync job: %w", err)
	}
	if !inserted {
		return job, false, nil
	}

	err = s.deliveries.SaveDeliveryLog(ctx, &domain.DeliveryLog{
		EventID:       event.ID,
		DestinationID: dest.ID,
		EventType:     event.Type,
		Status:        domain.DeliveryStatusPending,
	})
	if err != nil {
		// the job exists; its delivery outcome writes the log later
		return job, true, fmt.Errorf("failed to create delivery log: %w", err)
	}
	return job, true, nil
}

// Run claims due sync jobs (first attempts left unclaimed and retries) and delivers them
func (s *Sync) Run(ctx context.Context) (Summary, error) {
	return s.run(ctx, s.process)
}

func (s *Sync) process(ctx context.Context, job *domain.Job) (Outcome, error) {
	var payload domain.SyncPayload
	if err := job.DecodePayload(&payload); err != nil {
		return s.terminate(ctx, job, err)
	}

	dest, err := s.destinations.GetDestination(ctx, payload.DestinationID)
	switch {
	case errors.Is(err, domain.ErrDestinationNotFound):
		return s.settle(ctx, job, payload, webhook.Result{Err: err}, s.terminate)
	case err != nil:
		return s.settle(ctx, job, payload, webhook.Result{Err: err}, s.fail)
	case !dest.Active:
		err := fmt.Errorf("%w: destination %s is inactive", domain.ErrValidation, dest.ID)
		return s.settle(ctx, job, payload, webhook.Result{Err: err}, s.terminate)
	}

	result := s.dispatcher.Send(ctx, webhook.Request{
		URL:    dest.URL,
		Secret: dest.Secret,
		Payload: webhook.OutboundEvent{
			ID:        payload.EventID,
			Type:      payload.EventType,
			Data:      payload.Data,
			Timestamp: payload.OccurredAt.UTC().Format(time.RFC3339),
		},
		Timeout: s.timeout,
		Headers: map[string]string{"X-Webhook-Event-ID": payload.EventID},
	})

	if result.Success {
		retries := job.RetryCount
		outcome, err := s.complete(ctx, job)
		if err != nil {
			return outcome, err
		}
		// the log keeps how many retries the delivery needed
		return outcome, s.recordDelivery(ctx, job, payload, result, retries)
	}
	return s.settle(ctx, job, payload, result, s.fail)
}

// settle persists a failed attempt through decide, then mirrors it into the DeliveryLog
func (s *Sync) settle(ctx context.Context, job *domain.Job, payload domain.SyncPayload, result webhook.Result, decide func(context.Context, *domain.Job, error) (Outcome, error)) (Outcome, error) {
	outcome, err := decide(ctx, job, result.Err)
	if err != nil {
		return outcome, err
	}
	return outcome, s.recordDelivery(ctx, job, payload, result, job.RetryCount)
}

func (s *Sync) recordDelivery(ctx context.Context, job *domain.Job, payload domain.SyncPayload, result webhook.Result, retryCount int) error {
	log := &domain.DeliveryLog{
		EventID:             payload.EventID,
		DestinationID:       payload.DestinationID,
		EventType:           payload.EventType,
		ResponseStatus:      result.StatusCode,
		ResponseBodySnippet: result.BodySnippet,
		ErrorMessage:        job.ErrorMessage,
		RetryCount:          retryCount,
		DurationMs:          result.Duration.Milliseconds(),
	}

	switch job.Status {
	case domain.JobStatusCompleted:
		log.Status = domain.DeliveryStatusSuccess
		log.DeliveredAt = job.CompletedAt
	case domain.JobStatusFailed:
		log.Status = domain.DeliveryStatusFailed
	default:
		next := job.ScheduledAt
		log.Status = domain.DeliveryStatusRetrying
		log.NextRetryAt = &next
	}

	if err := s.deliveries.SaveDeliveryLog(context.WithoutCancel(ctx), log); err != nil {
		s.logger.Error("Failed to record delivery",
			slog.String("event_id", log.EventID),
			slog.String("destination_id", log.DestinationID),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}
