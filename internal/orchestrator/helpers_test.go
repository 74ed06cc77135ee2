package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/content-pipeline/internal/claim"
	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/storage"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestProtocol(store storage.JobStore, kind domain.JobKind, clock *testClock, autoPublishOnly bool) *claim.Protocol {
	return claim.NewProtocol(store, claim.Config{
		Kind:            kind,
		WorkerID:        "test-worker",
		Staleness:       10 * time.Minute,
		AutoPublishOnly: autoPublishOnly,
	}, testLogger, claim.WithClock(clock.Now))
}

func mustInsert(t *testing.T, store *storage.Memory, job *domain.Job) *domain.Job {
	t.Helper()
	inserted, err := store.Insert(context.Background(), job)
	require.NoError(t, err)
	require.True(t, inserted)
	return job
}

func mustRead(t *testing.T, store *storage.Memory, id string) *domain.Job {
	t.Helper()
	job, err := store.ReadBack(context.Background(), id)
	require.NoError(t, err)
	return job
}
