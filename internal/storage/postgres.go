package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

const jobColumns = `
	id, kind, status, tenant_id, article_id, dedupe_key, auto_publish, payload,
	retry_count, claimed_by, started_at, scheduled_at, error_message, completed_at,
	created_at, updated_at, target_languages, completed_languages, failed_languages,
	progress, current_language`

const deliveryColumns = `
	id, event_id, destination_id, event_type, status, response_status, response_body_snippet,
	error_message, retry_count, next_retry_at, duration_ms, created_at, updated_at, delivered_at`

const destinationColumns = `
	id, tenant_id, name, url, secret, active, notify_on_create, notify_on_update,
	notify_on_delete, created_at`

// Postgres is the sqlx-backed Store
type Postgres struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgres creates a new Postgres store
func NewPostgres(db *sqlx.DB, logger *slog.Logger) *Postgres {
	return &Postgres{
		db:     db,
		logger: logger,
	}
}

// claimPredicate renders filter as a WHERE fragment, appending its arguments to args
func claimPredicate(f ClaimFilter, args []any) (string, []any) {
	statuses := make([]string, len(f.Statuses))
	for i, s := range f.Statuses {
		statuses[i] = string(s)
	}

	args = append(args, string(f.Kind), pq.Array(statuses), f.DueBefore, f.StaleBefore)
	n := len(args)

	clause := fmt.Sprintf(
		`kind = $%d AND ((status = ANY($%d) AND scheduled_at <= $%d) OR (status = '%s' AND started_at < $%d))`,
		n-3, n-2, n-1, domain.JobStatusProcessing, n,
	)
	if f.AutoPublishOnly {
		clause += ` AND auto_publish`
	}
	return clause, args
}

// SelectCandidates implements JobStore
func (s *Postgres) SelectCandidates(ctx context.Context, filter ClaimFilter, limit int) ([]*domain.Job, error) {
	where, args := claimPredicate(filter, nil)
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM jobs
		WHERE %s
		ORDER BY scheduled_at ASC, created_at ASC
		LIMIT $%d
	`, jobColumns, where, len(args))

	var jobs []*domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select candidates: %w", err)
	}
	return jobs, nil
}

// ConditionalUpdate implements JobStore
func (s *Postgres) ConditionalUpdate(ctx context.Context, id string, filter ClaimFilter, fields ClaimFields) (bool, error) {
	args := []any{string(fields.Status), fields.StartedAt, fields.ClaimedBy, id}
	where, args := claimPredicate(filter, args)

	query := fmt.Sprintf(`
		UPDATE jobs
		SET status = $1,
		    started_at = $2,
		    claimed_by = $3,
		    updated_at = NOW()
		WHERE id = $4
		  AND %s
	`, where)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// ReadBack implements JobStore
func (s *Postgres) ReadBack(ctx context.Context, id string) (*domain.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE id = $1`, jobColumns)

	var job domain.Job
	if err := s.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// Insert implements JobStore
func (s *Postgres) Insert(ctx context.Context, job *domain.Job) (bool, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = job.CreatedAt
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	if len(job.Payload) == 0 {
		job.Payload = types.JSONText("{}")
	}
	job.UpdatedAt = now

	query := `
		INSERT INTO jobs (
			id, kind, status, tenant_id, article_id, dedupe_key, auto_publish, payload,
			retry_count, scheduled_at, error_message, created_at, updated_at,
			target_languages, completed_languages, failed_languages, progress, current_language
		) VALUES (
			:id, :kind, :status, :tenant_id, :article_id, :dedupe_key, :auto_publish, :payload,
			:retry_count, :scheduled_at, :error_message, :created_at, :updated_at,
			:target_languages, :completed_languages, :failed_languages, :progress, :current_language
		)
		ON CONFLICT (dedupe_key) WHERE dedupe_key <> '' DO NOTHING
	`

	result, err := s.db.NamedExecContext(ctx, query, job)
	if err != nil {
		return false, fmt.Errorf("failed to insert job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Debug("Job insert skipped - dedupe key exists",
			slog.String("dedupe_key", job.DedupeKey),
		)
	}
	return rowsAffected == 1, nil
}

// Save implements JobStore
func (s *Postgres) Save(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE jobs
		SET status = :status,
		    retry_count = :retry_count,
		    claimed_by = :claimed_by,
		    started_at = :started_at,
		    scheduled_at = :scheduled_at,
		    error_message = :error_message,
		    completed_at = :completed_at,
		    completed_languages = :completed_languages,
		    failed_languages = :failed_languages,
		    progress = :progress,
		    current_language = :current_language,
		    updated_at = NOW()
		WHERE id = :id
	`

	result, err := s.db.NamedExecContext(ctx, query, job)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}

	s.logger.Debug("Job saved",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.Status)),
	)
	return nil
}

// ListJobs implements JobReader
func (s *Postgres) ListJobs(ctx context.Context, filter JobFilter) ([]*domain.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE 1=1`, jobColumns)
	args := []any{}
	argIdx := 1

	if filter.TenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, filter.TenantID)
		argIdx++
	}

	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, filter.Kind)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []*domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// SaveDeliveryLog implements DeliveryStore
func (s *Postgres) SaveDeliveryLog(ctx context.Context, log *domain.DeliveryLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}

	query := `
		INSERT INTO delivery_logs (
			id, event_id, destination_id, event_type, status, response_status,
			response_body_snippet, error_message, retry_count, next_retry_at, duration_ms,
			delivered_at, created_at, updated_at
		) VALUES (
			:id, :event_id, :destination_id, :event_type, :status, :response_status,
			:response_body_snippet, :error_message, :retry_count, :next_retry_at, :duration_ms,
			:delivered_at, NOW(), NOW()
		)
		ON CONFLICT (event_id, destination_id) DO UPDATE
		SET status = EXCLUDED.status,
		    response_status = EXCLUDED.response_status,
		    response_body_snippet = EXCLUDED.response_body_snippet,
		    error_message = EXCLUDED.error_message,
		    retry_count = EXCLUDED.retry_count,
		    next_retry_at = EXCLUDED.next_retry_at,
		    duration_ms = EXCLUDED.duration_ms,
		    delivered_at = EXCLUDED.delivered_at,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	bound, args, err := sqlx.Named(query, log)
	if err != nil {
		return fmt.Errorf("failed to bind delivery log: %w", err)
	}

	row := s.db.QueryRowxContext(ctx, s.db.Rebind(bound), args...)
	if err := row.Scan(&log.ID, &log.CreatedAt, &log.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save delivery log: %w", err)
	}
	return nil
}

// GetDeliveryLog implements DeliveryStore
func (s *Postgres) GetDeliveryLog(ctx context.Context, eventID, destinationID string) (*domain.DeliveryLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM delivery_logs WHERE event_id = $1 AND destination_id = $2`, deliveryColumns)

	var log domain.DeliveryLog
	if err := s.db.GetContext(ctx, &log, query, eventID, destinationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDeliveryLogNotFound
		}
		return nil, fmt.Errorf("failed to get delivery log: %w", err)
	}
	return &log, nil
}

// ListDeliveryLogs implements DeliveryStore
func (s *Postgres) ListDeliveryLogs(ctx context.Context, eventID string) ([]*domain.DeliveryLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM delivery_logs WHERE event_id = $1 ORDER BY destination_id`, deliveryColumns)

	var logs []*domain.DeliveryLog
	if err := s.db.SelectContext(ctx, &logs, query, eventID); err != nil {
		return nil, fmt.Errorf("failed to list delivery logs: %w", err)
	}
	return logs, nil
}

// ListActiveDestinations implements DestinationStore
func (s *Postgres) ListActiveDestinations(ctx context.Context, tenantID string) ([]*domain.Destination, error) {
	query := fmt.Sprintf(`SELECT %s FROM webhook_destinations WHERE tenant_id = $1 AND active ORDER BY id`, destinationColumns)

	var dests []*domain.Destination
	if err := s.db.SelectContext(ctx, &dests, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list destinations: %w", err)
	}
	return dests, nil
}

// GetDestination implements DestinationStore
func (s *Postgres) GetDestination(ctx context.Context, id string) (*domain.Destination, error) {
	query := fmt.Sprintf(`SELECT %s FROM webhook_destinations WHERE id = $1`, destinationColumns)

	var dest domain.Destination
	if err := s.db.GetContext(ctx, &dest, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDestinationNotFound
		}
		return nil, fmt.Errorf("failed to get destination: %w", err)
	}
	return &dest, nil
}

// Ping implements Store
func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
