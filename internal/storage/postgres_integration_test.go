//go:build integration

package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/migrations"
)

// Run with: DATABASE_URL=postgres://... go test -tags integration ./internal/storage/
func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.FS)
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.UpContext(context.Background(), db.DB, "."))

	_, err = db.Exec(`TRUNCATE delivery_logs, webhook_destinations, jobs`)
	require.NoError(t, err)

	return NewPostgres(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPostgres_ClaimCycle(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := &domain.Job{
		Kind:            domain.JobKindTranslation,
		TenantID:        "t1",
		ArticleID:       "a1",
		DedupeKey:       "translation:a1",
		ScheduledAt:     now.Add(-time.Minute),
		TargetLanguages: domain.Languages{"ja-JP", "fr-FR"},
	}
	inserted, err := store.Insert(ctx, job)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = store.Insert(ctx, &domain.Job{Kind: domain.JobKindTranslation, DedupeKey: "translation:a1"})
	require.NoError(t, err)
	assert.False(t, inserted)

	filter := ClaimFilter{
		Kind:        domain.JobKindTranslation,
		Statuses:    []domain.JobStatus{domain.JobStatusPending, domain.JobStatusRetrying},
		DueBefore:   now,
		StaleBefore: now.Add(-15 * time.Minute),
	}
	candidates, err := store.SelectCandidates(ctx, filter, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	ok, err := store.ConditionalUpdate(ctx, job.ID, filter, ClaimFields{Status: domain.JobStatusProcessing, StartedAt: now, ClaimedBy: "w1"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ConditionalUpdate(ctx, job.ID, filter, ClaimFields{Status: domain.JobStatusProcessing, StartedAt: now, ClaimedBy: "w2"})
	require.NoError(t, err)
	assert.False(t, ok)

	claimed, err := store.ReadBack(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "w1", claimed.ClaimedBy)
	require.NotNil(t, claimed.StartedAt)
	assert.True(t, claimed.StartedAt.Equal(now))

	claimed.MarkLanguageCompleted("ja-JP")
	claimed.MarkLanguageFailed("fr-FR", "unsupported language")
	claimed.Status = domain.JobStatusFailed
	require.NoError(t, store.Save(ctx, claimed))

	saved, err := store.ReadBack(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Languages{"ja-JP"}, saved.CompletedLanguages)
	assert.Equal(t, "unsupported language", saved.FailedLanguages["fr-FR"])
	assert.Equal(t, 100, saved.Progress)

	assert.ErrorIs(t, store.Save(ctx, &domain.Job{ID: "00000000-0000-0000-0000-000000000000"}), domain.ErrJobNotFound)
}

func TestPostgres_Deliveries(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO webhook_destinations (id, tenant_id, url) VALUES ('d1', 't1', 'http://example.invalid'), ('d2', 't1', 'http://example.invalid')`)
	require.NoError(t, err)

	dests, err := store.ListActiveDestinations(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, dests, 2)

	first := &domain.DeliveryLog{EventID: "e1", DestinationID: "d1", EventType: domain.EventArticleCreated, Status: domain.DeliveryStatusPending}
	require.NoError(t, store.SaveDeliveryLog(ctx, first))

	update := &domain.DeliveryLog{EventID: "e1", DestinationID: "d1", EventType: domain.EventArticleCreated, Status: domain.DeliveryStatusSuccess, ResponseStatus: 200}
	require.NoError(t, store.SaveDeliveryLog(ctx, update))

	log, err := store.GetDeliveryLog(ctx, "e1", "d1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, log.ID)
	assert.Equal(t, domain.DeliveryStatusSuccess, log.Status)

	_, err = store.GetDeliveryLog(ctx, "e1", "d2")
	assert.ErrorIs(t, err, domain.ErrDeliveryLogNotFound)
}
