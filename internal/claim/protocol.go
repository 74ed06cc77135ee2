package claim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/storage"
)

// DefaultStaleness is how long a processing job may go untouched before it can be reclaimed
const DefaultStaleness = 15 * time.Minute

// Claimer attempts to take exclusive ownership of a job
type Claimer interface {
	TryClaim(ctx context.Context, id string) (bool, error)
}

// Lease is an optional external guard consulted before the conditional update
type Lease interface {
	Acquire(ctx context.Context, jobID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, jobID string) error
}

// Config selects which jobs a Protocol claims and on behalf of whom
type Config struct {
	Kind            domain.JobKind
	WorkerID        string
	Staleness       time.Duration
	AutoPublishOnly bool
}

// Protocol claims jobs with a conditional write followed by a read-back.
// A claim is won only when the persisted started_at and claimed_by equal what this worker wrote.
type Protocol struct {
	store  storage.JobStore
	lease  Lease
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Protocol
type Option func(*Protocol)

// WithLease enables the lease guard
func WithLease(lease Lease) Option {
	return func(p *Protocol) {
		p.lease = lease
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Protocol) {
		p.now = now
	}
}

// NewProtocol creates a claim protocol for one job kind
func NewProtocol(store storage.JobStore, config Config, logger *slog.Logger, opts ...Option) *Protocol {
	if config.Staleness <= 0 {
		config.Staleness = DefaultStaleness
	}

	p := &Protocol{
		store:  store,
		config: config,
		logger: logger.With(slog.String("kind", string(config.Kind)), slog.String("worker_id", config.WorkerID)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the identity written into claimed_by
func (p *Protocol) WorkerID() string {
	return p.config.WorkerID
}

func (p *Protocol) filter(now time.Time) storage.ClaimFilter {
	return storage.ClaimFilter{
		Kind:            p.config.Kind,
		Statuses:        []domain.JobStatus{domain.JobStatusPending, domain.JobStatusRetrying},
		DueBefore:       now,
		StaleBefore:     now.Add(-p.config.Staleness),
		AutoPublishOnly: p.config.AutoPublishOnly,
	}
}

// ClaimBatch selects up to limit due or stale jobs and returns the ones this worker won.
// Only a failing candidate selection is returned as an error; per-job store errors are logged
// and the job is left for a later invocation.
func (p *Protocol) ClaimBatch(ctx context.Context, limit int) ([]*domain.Job, error) {
	now := p.clock()

	candidates, err := p.store.SelectCandidates(ctx, p.filter(now), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select claim candidates: %w", err)
	}

	claimed := make([]*domain.Job, 0, len(candidates))
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}

		job, err := p.Claim(ctx, candidate.ID)
		if err != nil {
			p.logger.Error("Failed to claim job",
				slog.String("job_id", candidate.ID),
				slog.Any("error", err),
			)
			continue
		}
		if job != nil {
			claimed = append(claimed, job)
		}
	}

	p.logger.Debug("Claim batch finished",
		slog.Int("candidates", len(candidates)),
		slog.Int("claimed", len(claimed)),
	)

	return claimed, nil
}

// TryClaim implements Claimer
func (p *Protocol) TryClaim(ctx context.Context, id string) (bool, error) {
	job, err := p.Claim(ctx, id)
	if err != nil {
		return false, err
	}
	return job != nil, nil
}

// Release drops the lease on a job once its outcome has been persisted
func (p *Protocol) Release(ctx context.Context, jobID string) {
	if p.lease == nil {
		return
	}
	if err := p.lease.Release(ctx, jobID); err != nil {
		p.logger.Warn("Failed to release claim lease",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}

// Claim claims one job by id. It returns the read-back job when this worker won and nil when
// it lost or the job is no longer eligible.
func (p *Protocol) Claim(ctx context.Context, id string) (*domain.Job, error) {
	now := p.clock()

	if p.lease != nil {
		acquired, err := p.lease.Acquire(ctx, id, p.config.Staleness)
		switch {
		case err != nil:
			// the store stays authoritative when the lease backend is unavailable
			p.logger.Warn("Claim lease unavailable, falling back to store claim",
				slog.String("job_id", id),
				slog.Any("error", err),
			)
		case !acquired:
			p.logger.Debug("Claim lease held elsewhere", slog.String("job_id", id))
			return nil, nil
		}
	}

	fields := storage.ClaimFields{
		Status:    domain.JobStatusProcessing,
		StartedAt: now,
		ClaimedBy: p.config.WorkerID,
	}

	updated, err := p.store.ConditionalUpdate(ctx, id, p.filter(now), fields)
	if err != nil {
		p.Release(ctx, id)
		return nil, fmt.Errorf("failed to update job %s: %w", id, err)
	}
	if !updated {
		p.Release(ctx, id)
		p.logger.Debug("Job no longer eligible", slog.String("job_id", id))
		return nil, nil
	}

	job, err := p.store.ReadBack(ctx, id)
	if err != nil {
		p.Release(ctx, id)
		return nil, fmt.Errorf("failed to read back job %s: %w", id, err)
	}

	if job.StartedAt == nil || !job.StartedAt.Equal(now) || job.ClaimedBy != p.config.WorkerID {
		p.Release(ctx, id)
		p.logger.Info("Lost claim race",
			slog.String("job_id", id),
			slog.String("claimed_by", job.ClaimedBy),
		)
		return nil, nil
	}

	p.logger.Info("Job claimed",
		slog.String("job_id", id),
		slog.Int("retry_count", job.RetryCount),
	)
	return job, nil
}

// clock truncates to microseconds, the precision of a Postgres timestamptz
func (p *Protocol) clock() time.Time {
	return p.now().UTC().Truncate(time.Microsecond)
}
