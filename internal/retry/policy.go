package retry

import (
	"fmt"
	"time"

	"github.com/cuongbtq/content-pipeline/internal/domain"
)

// DefaultRescheduleWindow is how far an exhausted job is pushed out under the reschedule policy
const DefaultRescheduleWindow = 2 * time.Hour

// TerminalPolicy decides what happens once a job exhausts its retries
type TerminalPolicy string

const (
	// PolicyFail marks the job failed; it needs manual intervention
	PolicyFail TerminalPolicy = "fail"
	// PolicyReschedule returns the job to pending after RescheduleWindow with retry_count reset
	PolicyReschedule TerminalPolicy = "reschedule"
)

// ParseTerminalPolicy validates a configured policy name
func ParseTerminalPolicy(s string) (TerminalPolicy, error) {
	switch TerminalPolicy(s) {
	case PolicyFail, PolicyReschedule:
		return TerminalPolicy(s), nil
	}
	return "", fmt.Errorf("unknown terminal policy %q", s)
}

// Outcome summarizes a Decision
type Outcome string

const (
	OutcomeRetry       Outcome = "retry"
	OutcomeFailed      Outcome = "failed"
	OutcomeRescheduled Outcome = "rescheduled"
)

// Decision is the next persisted state of a failed job
type Decision struct {
	Outcome      Outcome
	Class        Class
	Exhausted    bool
	Status       domain.JobStatus
	RetryCount   int
	ScheduledAt  time.Time
	ErrorMessage string
}

// Policy is the retry configuration of one job kind
type Policy struct {
	MaxRetries       int
	Backoff          Backoff
	Terminal         TerminalPolicy
	RescheduleWindow time.Duration
	Classifier       Classifier
}

// DefaultPolicy returns a policy with 3 retries, the default backoff table and the given terminal policy
func DefaultPolicy(terminal TerminalPolicy) Policy {
	return Policy{
		MaxRetries:       3,
		Backoff:          DefaultBackoff,
		Terminal:         terminal,
		RescheduleWindow: DefaultRescheduleWindow,
		Classifier:       DefaultClassifier{},
	}
}

// Classify runs the policy's classifier
func (p Policy) Classify(err error) Class {
	return next(p.Classifier).Classify(err)
}

// OnFailure decides the next state of job after err without mutating it
func (p Policy) OnFailure(job *domain.Job, err error, now time.Time) Decision {
	class := p.Classify(err)
	if class == Terminal {
		return Decision{
			Outcome:      OutcomeFailed,
			Class:        Terminal,
			Status:       domain.JobStatusFailed,
			RetryCount:   job.RetryCount,
			ScheduledAt:  job.ScheduledAt,
			ErrorMessage: err.Error(),
		}
	}

	retryCount := job.RetryCount + 1
	if retryCount < p.MaxRetries {
		return Decision{
			Outcome:      OutcomeRetry,
			Class:        Retryable,
			Status:       domain.JobStatusRetrying,
			RetryCount:   retryCount,
			ScheduledAt:  now.Add(p.Backoff.Delay(retryCount)),
			ErrorMessage: err.Error(),
		}
	}

	if p.Terminal == PolicyReschedule {
		window := p.RescheduleWindow
		if window <= 0 {
			window = DefaultRescheduleWindow
		}
		return Decision{
			Outcome:      OutcomeRescheduled,
			Class:        Retryable,
			Exhausted:    true,
			Status:       domain.JobStatusPending,
			RetryCount:   0,
			ScheduledAt:  now.Add(window),
			ErrorMessage: fmt.Sprintf("%s (rescheduled after %d retries)", err.Error(), retryCount),
		}
	}

	return Decision{
		Outcome:      OutcomeFailed,
		Class:        Retryable,
		Exhausted:    true,
		Status:       domain.JobStatusFailed,
		RetryCount:   retryCount,
		ScheduledAt:  job.ScheduledAt,
		ErrorMessage: fmt.Sprintf("%s: %s", domain.ErrMaxRetriesExceeded, err.Error()),
	}
}

// Terminate fails job immediately regardless of classification
func (p Policy) Terminate(job *domain.Job, err error, now time.Time) Decision {
	d := Decision{
		Outcome:      OutcomeFailed,
		Class:        Terminal,
		Status:       domain.JobStatusFailed,
		RetryCount:   job.RetryCount,
		ScheduledAt:  job.ScheduledAt,
		ErrorMessage: err.Error(),
	}
	p.Apply(job, d, now)
	return d
}

// Apply writes the decision onto job
func (p Policy) Apply(job *domain.Job, d Decision, now time.Time) {
	job.Status = d.Status
	job.RetryCount = d.RetryCount
	job.ScheduledAt = d.ScheduledAt
	job.ErrorMessage = d.ErrorMessage
	job.CurrentLanguage = ""
	job.UpdatedAt = now
	if d.Status == domain.JobStatusFailed {
		completedAt := now
		job.CompletedAt = &completedAt
	}
}

// Fail decides and applies a failure in one step
func (p Policy) Fail(job *domain.Job, err error, now time.Time) Decision {
	d := p.OnFailure(job, err, now)
	p.Apply(job, d, now)
	return d
}

// OnSuccess marks job completed and resets its retry budget
func (p Policy) OnSuccess(job *domain.Job, now time.Time) {
	completedAt := now
	job.Status = domain.JobStatusCompleted
	job.CompletedAt = &completedAt
	job.RetryCount = 0
	job.ErrorMessage = ""
	job.CurrentLanguage = ""
	job.UpdatedAt = now
}
