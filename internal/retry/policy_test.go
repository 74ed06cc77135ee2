package retry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/content-pipeline/internal/domain"
)

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{5 * time.Minute, 30 * time.Minute, 120 * time.Minute}

	assert.Equal(t, 5*time.Minute, b.Delay(0))
	assert.Equal(t, 5*time.Minute, b.Delay(1))
	assert.Equal(t, 30*time.Minute, b.Delay(2))
	assert.Equal(t, 120*time.Minute, b.Delay(3))
	assert.Equal(t, 120*time.Minute, b.Delay(7))
	assert.Equal(t, time.Duration(0), Backoff{}.Delay(1))
}

func TestPolicy_FailureSequence(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	errUpstream := &domain.RemoteError{StatusCode: 503}

	tests := []struct {
		name     string
		terminal TerminalPolicy
		check    func(t *testing.T, job *domain.Job, d Decision)
	}{
		{
			name:     "fail policy",
			terminal: PolicyFail,
			check: func(t *testing.T, job *domain.Job, d Decision) {
				assert.Equal(t, OutcomeFailed, d.Outcome)
				assert.True(t, d.Exhausted)
				assert.Equal(t, domain.JobStatusFailed, job.Status)
				assert.Equal(t, 3, job.RetryCount)
				require.NotNil(t, job.CompletedAt)
				assert.Contains(t, job.ErrorMessage, "max retries exceeded")
			},
		},
		{
			name:     "reschedule policy",
			terminal: PolicyReschedule,
			check: func(t *testing.T, job *domain.Job, d Decision) {
				assert.Equal(t, OutcomeRescheduled, d.Outcome)
				assert.True(t, d.Exhausted)
				assert.Equal(t, domain.JobStatusPending, job.Status)
				assert.Equal(t, 0, job.RetryCount)
				assert.Equal(t, now.Add(2*time.Hour), job.ScheduledAt)
				assert.Nil(t, job.CompletedAt)
				assert.Contains(t, job.ErrorMessage, "(rescheduled after 3 retries)")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy(tt.terminal)
			job := &domain.Job{ID: "job-1", Status: domain.JobStatusProcessing, ScheduledAt: now}

			d := p.Fail(job, errUpstream, now)
			assert.Equal(t, OutcomeRetry, d.Outcome)
			assert.Equal(t, domain.JobStatusRetrying, job.Status)
			assert.Equal(t, 1, job.RetryCount)
			assert.Equal(t, now.Add(5*time.Minute), job.ScheduledAt)

			d = p.Fail(job, errUpstream, now)
			assert.Equal(t, OutcomeRetry, d.Outcome)
			assert.Equal(t, 2, job.RetryCount)
			assert.Equal(t, now.Add(30*time.Minute), job.ScheduledAt)

			d = p.Fail(job, errUpstream, now)
			tt.check(t, job, d)
		})
	}
}

func TestPolicy_TerminalErrorFailsImmediately(t *testing.T) {
	now := time.Now()
	p := DefaultPolicy(PolicyReschedule)
	job := &domain.Job{ID: "job-1", Status: domain.JobStatusProcessing, RetryCount: 1}

	d := p.Fail(job, fmt.Errorf("publish: %w", domain.ErrValidation), now)

	assert.Equal(t, OutcomeFailed, d.Outcome)
	assert.Equal(t, Terminal, d.Class)
	assert.False(t, d.Exhausted)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, "publish: validation error", job.ErrorMessage)
}

func TestPolicy_OnSuccessResetsRetryCount(t *testing.T) {
	now := time.Now()
	p := DefaultPolicy(PolicyFail)
	job := &domain.Job{Status: domain.JobStatusProcessing, RetryCount: 2, ErrorMessage: "boom", CurrentLanguage: "ja-JP"}

	p.OnSuccess(job, now)

	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 0, job.RetryCount)
	assert.Empty(t, job.ErrorMessage)
	assert.Empty(t, job.CurrentLanguage)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, now, *job.CompletedAt)
}

func TestPolicy_RetryCountNeverExceedsMaxWhileNonTerminal(t *testing.T) {
	now := time.Now()
	p := Policy{MaxRetries: 2, Backoff: Backoff{time.Minute}, Terminal: PolicyReschedule}
	job := &domain.Job{Status: domain.JobStatusProcessing}

	for i := 0; i < 10; i++ {
		p.Fail(job, errors.New("connection reset"), now)
		if !job.Status.IsTerminal() {
			assert.Less(t, job.RetryCount, p.MaxRetries)
		}
	}
}

func TestParseTerminalPolicy(t *testing.T) {
	got, err := ParseTerminalPolicy("reschedule")
	require.NoError(t, err)
	assert.Equal(t, PolicyReschedule, got)

	_, err = ParseTerminalPolicy("retry-forever")
	assert.Error(t, err)
}

func TestPolicy_Terminate(t *testing.T) {
	now := time.Now()
	p := DefaultPolicy(PolicyReschedule)
	job := &domain.Job{Status: domain.JobStatusProcessing, RetryCount: 1}

	d := p.Terminate(job, &domain.PartialFailure{Failed: map[string]string{"ja-JP": "unsupported"}}, now)

	assert.Equal(t, Terminal, d.Class)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "partial failure: ja-JP: unsupported", job.ErrorMessage)
	assert.Equal(t, 1, job.RetryCount)
}
