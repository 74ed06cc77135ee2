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

// DefaultBatchSize caps how many jobs one invocation claims
const DefaultBatchSize = 20

// Outcome is the persisted result of processing one claimed job
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeRetrying    Outcome = "retrying"
	OutcomeFailed      Outcome = "failed"
	OutcomeRescheduled Outcome = "rescheduled"
	// OutcomeSkipped means the outcome could not be persisted; the job will be reclaimed once stale
	OutcomeSkipped Outcome = "skipped"
)

// Summary describes one orchestrator invocation
type Summary struct {
	Kind        domain.JobKind `json:"kind"`
	Claimed     int            `json:"claimed"`
	Completed   int            `json:"completed"`
	Retrying    int            `json:"retrying"`
	Failed      int            `json:"failed"`
	Rescheduled int            `json:"rescheduled"`
	Skipped     int            `json:"skipped"`
	Duration    time.Duration  `json:"duration"`
}

func (s *Summary) record(o Outcome) {
	switch o {
	case OutcomeCompleted:
		s.Completed++
	case OutcomeRetrying:
		s.Retrying++
	case OutcomeFailed:
		s.Failed++
	case OutcomeRescheduled:
		s.Rescheduled++
	default:
		s.Skipped++
	}
}

// RunConfig is shared by all orchestrators
type RunConfig struct {
	BatchSize   int
	Concurrency int
}

// processFunc handles one claimed job and persists its outcome.
// A returned error is a store failure; domain failures are persisted on the job.
type processFunc func(ctx context.Context, job *domain.Job) (Outcome, error)

// runner drives the claim, process, persist cycle shared by every job kind
type runner struct {
	kind        domain.JobKind
	claimer     *claim.Protocol
	store       storage.JobStore
	policy      retry.Policy
	batchSize   int
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

func newRunner(kind domain.JobKind, claimer *claim.Protocol, store storage.JobStore, policy retry.Policy, config RunConfig, logger *slog.Logger) *runner {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &runner{
		kind:        kind,
		claimer:     claimer,
		store:       store,
		policy:      policy,
		batchSize:   config.BatchSize,
		concurrency: config.Concurrency,
		logger:      logger.With(slog.String("kind", string(kind))),
		now:         time.Now,
	}
}

// run claims one batch and processes it on the bounded pool
func (r *runner) run(ctx context.Context, process processFunc) (Summary, error) {
	start := time.Now()
	summary := Summary{Kind: r.kind}

	jobs, err := r.claimer.ClaimBatch(ctx, r.batchSize)
	if err != nil {
		summary.Duration = time.Since(start)
		return summary, err
	}
	summary.Claimed = len(jobs)

	var (
		mu      sync.Mutex
		runErrs []error
	)
	r.spawnPool(ctx, jobs, func(ctx context.Context, job *domain.Job) {
		outcome, err := r.processOne(ctx, job, process)

		mu.Lock()
		defer mu.Unlock()
		summary.record(outcome)
		if err != nil {
			runErrs = append(runErrs, err)
		}
	})

	summary.Duration = time.Since(start)
	r.logger.Info("Orchestrator run finished",
		slog.Int("claimed", summary.Claimed),
		slog.Int("completed", summary.Completed),
		slog.Int("retrying", summary.Retrying),
		slog.Int("failed", summary.Failed),
		slog.Int("rescheduled", summary.Rescheduled),
		slog.Int("skipped", summary.Skipped),
		slog.Duration("duration", summary.Duration),
	)

	return summary, errors.Join(runErrs...)
}

func (r *runner) processOne(ctx context.Context, job *domain.Job, process processFunc) (outcome Outcome, err error) {
	defer r.claimer.Release(context.WithoutCancel(ctx), job.ID)
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Job processing panicked",
				slog.String("job_id", job.ID),
				slog.Any("panic", rec),
			)
			outcome, err = r.fail(ctx, job, domain.NewRetryableError(fmt.Errorf("panic: %v", rec)))
		}
	}()

	return process(ctx, job)
}

// complete marks job completed and persists it
func (r *runner) complete(ctx context.Context, job *domain.Job) (Outcome, error) {
	r.policy.OnSuccess(job, r.now())
	if err := r.save(ctx, job); err != nil {
		return OutcomeSkipped, err
	}

	r.logger.Info("Job completed", slog.String("job_id", job.ID))
	return OutcomeCompleted, nil
}

// fail applies the retry policy to cause and persists the decision
func (r *runner) fail(ctx context.Context, job *domain.Job, cause error) (Outcome, error) {
	d := r.policy.Fail(job, cause, r.now())
	return r.persistDecision(ctx, job, d, cause)
}

// terminate fails job without consulting the classifier
func (r *runner) terminate(ctx context.Context, job *domain.Job, cause error) (Outcome, error) {
	d := r.policy.Terminate(job, cause, r.now())
	return r.persistDecision(ctx, job, d, cause)
}

func (r *runner) persistDecision(ctx context.Context, job *domain.Job, d retry.Decision, cause error) (Outcome, error) {
	if err := r.save(ctx, job); err != nil {
		return OutcomeSkipped, err
	}

	r.logger.Warn("Job attempt failed",
		slog.String("job_id", job.ID),
		slog.String("class", d.Class.String()),
		slog.String("status", string(job.Status)),
		slog.Int("retry_count", job.RetryCount),
		slog.Time("next_attempt_at", job.ScheduledAt),
		slog.Any("error", cause),
	)

	switch d.Outcome {
	case retry.OutcomeRetry:
		return OutcomeRetrying, nil
	case retry.OutcomeRescheduled:
		return OutcomeRescheduled, nil
	default:
		return OutcomeFailed, nil
	}
}

// save persists job even when ctx has been canceled mid-run
func (r *runner) save(ctx context.Context, job *domain.Job) error {
	if err := r.store.Save(context.WithoutCancel(ctx), job); err != nil {
		r.logger.Error("Failed to persist job",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.Status)),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to persist job %s: %w", job.ID, err)
	}
	return nil
}
