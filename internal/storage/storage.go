package storage

import (
	"context"
	"time"

	"github.com/cuongbtq/content-pipeline/internal/domain"
)

// ClaimFilter is the predicate shared by candidate selection and the conditional claim write.
// A job matches when it is of Kind and either
//   - its status is in Statuses and scheduled_at <= DueBefore, or
//   - it is processing and started_at < StaleBefore.
type ClaimFilter struct {
	Kind            domain.JobKind
	Statuses        []domain.JobStatus
	DueBefore       time.Time
	StaleBefore     time.Time
	AutoPublishOnly bool
}

// Matches evaluates the predicate against a job in memory
func (f ClaimFilter) Matches(job *domain.Job) bool {
	if job.Kind != f.Kind {
		return false
	}
	if f.AutoPublishOnly && !job.AutoPublish {
		return false
	}
	if job.Status == domain.JobStatusProcessing {
		return job.StartedAt != nil && job.StartedAt.Before(f.StaleBefore)
	}
	for _, s := range f.Statuses {
		if job.Status == s {
			return !job.ScheduledAt.After(f.DueBefore)
		}
	}
	return false
}

// ClaimFields are written by a successful conditional claim
type ClaimFields struct {
	Status    domain.JobStatus
	StartedAt time.Time
	ClaimedBy string
}

// JobStore is the persistence contract required by the claim protocol and orchestrators
type JobStore interface {
	// SelectCandidates returns up to limit jobs matching filter, oldest scheduled first
	SelectCandidates(ctx context.Context, filter ClaimFilter, limit int) ([]*domain.Job, error)
	// ConditionalUpdate applies fields only if the job still matches filter at write time
	ConditionalUpdate(ctx context.Context, id string, filter ClaimFilter, fields ClaimFields) (bool, error)
	// ReadBack returns the current persisted state of a job
	ReadBack(ctx context.Context, id string) (*domain.Job, error)
	// Insert creates a job; a non-empty DedupeKey that already exists is a no-op returning false
	Insert(ctx context.Context, job *domain.Job) (bool, error)
	// Save persists the mutable outcome fields of a job
	Save(ctx context.Context, job *domain.Job) error
}

// JobFilter narrows ListJobs results
type JobFilter struct {
	TenantID string
	Kind     string
	Status   string
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is the keyset position for ListJobs pagination
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// JobReader serves the inspection API
type JobReader interface {
	ReadBack(ctx context.Context, id string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*domain.Job, error)
}

// DeliveryStore persists one DeliveryLog per (event, destination)
type DeliveryStore interface {
	// SaveDeliveryLog upserts by (event_id, destination_id)
	SaveDeliveryLog(ctx context.Context, log *domain.DeliveryLog) error
	GetDeliveryLog(ctx context.Context, eventID, destinationID string) (*domain.DeliveryLog, error)
	ListDeliveryLogs(ctx context.Context, eventID string) ([]*domain.DeliveryLog, error)
}

// DestinationStore resolves webhook destinations
type DestinationStore interface {
	ListActiveDestinations(ctx context.Context, tenantID string) ([]*domain.Destination, error)
	GetDestination(ctx context.Context, id string) (*domain.Destination, error)
}

// Store is everything the services need from persistence
type Store interface {
	JobStore
	JobReader
	DeliveryStore
	DestinationStore
	Ping(ctx context.Context) error
}
