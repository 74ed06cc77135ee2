package storage

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/google/uuid"
)

// Memory is a mutex-guarded in-process Store. Every value crossing its boundary is copied,
// so callers observe the same read-after-write semantics as a database.
type Memory struct {
	mu           sync.RWMutex
	jobs         map[string]*domain.Job
	dedupe       map[string]string
	deliveries   map[string]*domain.DeliveryLog
	destinations map[string]*domain.Destination
	now          func() time.Time
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		jobs:         make(map[string]*domain.Job),
		dedupe:       make(map[string]string),
		deliveries:   make(map[string]*domain.DeliveryLog),
		destinations: make(map[string]*domain.Destination),
		now:          time.Now,
	}
}

func deliveryKey(eventID, destinationID string) string {
	return eventID + "|" + destinationID
}

// SelectCandidates implements JobStore
func (m *Memory) SelectCandidates(ctx context.Context, filter ClaimFilter, limit int) ([]*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.Job
	for _, job := range m.jobs {
		if filter.Matches(job) {
			matched = append(matched, job)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.ScheduledAt.Equal(b.ScheduledAt) {
			return a.ScheduledAt.Before(b.ScheduledAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	result := make([]*domain.Job, len(matched))
	for i, job := range matched {
		result[i] = cloneJob(job)
	}
	return result, nil
}

// ConditionalUpdate implements JobStore
func (m *Memory) ConditionalUpdate(ctx context.Context, id string, filter ClaimFilter, fields ClaimFields) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok || !filter.Matches(job) {
		return false, nil
	}

	startedAt := fields.StartedAt
	job.Status = fields.Status
	job.StartedAt = &startedAt
	job.ClaimedBy = fields.ClaimedBy
	job.UpdatedAt = m.now()
	return true, nil
}

// ReadBack implements JobStore
func (m *Memory) ReadBack(ctx context.Context, id string) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// Insert implements JobStore
func (m *Memory) Insert(ctx context.Context, job *domain.Job) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job.DedupeKey != "" {
		if _, exists := m.dedupe[job.DedupeKey]; exists {
			return false, nil
		}
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := m.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = job.CreatedAt
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	job.UpdatedAt = now

	m.jobs[job.ID] = cloneJob(job)
	if job.DedupeKey != "" {
		m.dedupe[job.DedupeKey] = job.ID
	}
	return true, nil
}

// Save implements JobStore
func (m *Memory) Save(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; !ok {
		return domain.ErrJobNotFound
	}
	job.UpdatedAt = m.now()
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

// ListJobs implements JobReader, newest first
func (m *Memory) ListJobs(ctx context.Context, filter JobFilter) ([]*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var jobs []*domain.Job
	for _, job := range m.jobs {
		if filter.TenantID != "" && job.TenantID != filter.TenantID {
			continue
		}
		if filter.Kind != "" && string(job.Kind) != filter.Kind {
			continue
		}
		if filter.Status != "" && string(job.Status) != filter.Status {
			continue
		}
		if c := filter.Cursor; c != nil {
			if job.CreatedAt.After(c.CreatedAt) || (job.CreatedAt.Equal(c.CreatedAt) && job.ID >= c.JobID) {
				continue
			}
		}
		jobs = append(jobs, cloneJob(job))
	}

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID > jobs[j].ID
	})

	// one extra row tells the caller there is another page
	if filter.PageSize > 0 && len(jobs) > filter.PageSize+1 {
		jobs = jobs[:filter.PageSize+1]
	}
	return jobs, nil
}

// SaveDeliveryLog implements DeliveryStore
func (m *Memory) SaveDeliveryLog(ctx context.Context, log *domain.DeliveryLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := deliveryKey(log.EventID, log.DestinationID)
	now := m.now()
	if existing, ok := m.deliveries[key]; ok {
		log.ID = existing.ID
		log.CreatedAt = existing.CreatedAt
	} else {
		if log.ID == "" {
			log.ID = uuid.NewString()
		}
		log.CreatedAt = now
	}
	log.UpdatedAt = now

	stored := *log
	m.deliveries[key] = &stored
	return nil
}

// GetDeliveryLog implements DeliveryStore
func (m *Memory) GetDeliveryLog(ctx context.Context, eventID, destinationID string) (*domain.DeliveryLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log, ok := m.deliveries[deliveryKey(eventID, destinationID)]
	if !ok {
		return nil, domain.ErrDeliveryLogNotFound
	}
	copied := *log
	return &copied, nil
}

// ListDeliveryLogs implements DeliveryStore
func (m *Memory) ListDeliveryLogs(ctx context.Context, eventID string) ([]*domain.DeliveryLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var logs []*domain.DeliveryLog
	for _, log := range m.deliveries {
		if log.EventID == eventID {
			copied := *log
			logs = append(logs, &copied)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].DestinationID < logs[j].DestinationID })
	return logs, nil
}

// PutDestination registers or replaces a destination
func (m *Memory) PutDestination(dest *domain.Destination) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dest.ID == "" {
		dest.ID = uuid.NewString()
	}
	if dest.CreatedAt.IsZero() {
		dest.CreatedAt = m.now()
	}
	copied := *dest
	m.destinations[dest.ID] = &copied
}

// ListActiveDestinations implements DestinationStore
func (m *Memory) ListActiveDestinations(ctx context.Context, tenantID string) ([]*domain.Destination, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var dests []*domain.Destination
	for _, d := range m.destinations {
		if d.Active && d.TenantID == tenantID {
			copied := *d
			dests = append(dests, &copied)
		}
	}
	sort.Slice(dests, func(i, j int) bool { return dests[i].ID < dests[j].ID })
	return dests, nil
}

// GetDestination implements DestinationStore
func (m *Memory) GetDestination(ctx context.Context, id string) (*domain.Destination, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.destinations[id]
	if !ok {
		return nil, domain.ErrDestinationNotFound
	}
	copied := *d
	return &copied, nil
}

// Ping implements Store
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func cloneJob(job *domain.Job) *domain.Job {
	c := *job
	c.Payload = slices.Clone(job.Payload)
	c.TargetLanguages = slices.Clone(job.TargetLanguages)
	c.CompletedLanguages = slices.Clone(job.CompletedLanguages)
	c.FailedLanguages = maps.Clone(job.FailedLanguages)
	if job.StartedAt != nil {
		t := *job.StartedAt
		c.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
