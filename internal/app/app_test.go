package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/content-pipeline/internal/config"
	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/orchestrator"
	"github.com/cuongbtq/content-pipeline/internal/retry"
	"github.com/cuongbtq/content-pipeline/internal/storage"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestBuildPolicy(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		policy, err := BuildPolicy(config.JobConfig{TerminalPolicy: "fail"})
		require.NoError(t, err)

		assert.Equal(t, 3, policy.MaxRetries)
		assert.Equal(t, retry.DefaultBackoff, policy.Backoff)
		assert.Equal(t, retry.PolicyFail, policy.Terminal)
		assert.Equal(t, retry.DefaultRescheduleWindow, policy.RescheduleWindow)
	})

	t.Run("overrides", func(t *testing.T) {
		policy, err := BuildPolicy(config.JobConfig{
			TerminalPolicy:   "reschedule",
			MaxRetries:       5,
			Backoff:          []time.Duration{time.Minute},
			RescheduleWindow: time.Hour,
			TerminalErrors:   []string{"Quota Exhausted"},
		})
		require.NoError(t, err)

		assert.Equal(t, 5, policy.MaxRetries)
		assert.Equal(t, retry.Backoff{time.Minute}, policy.Backoff)
		assert.Equal(t, retry.PolicyReschedule, policy.Terminal)
		assert.Equal(t, time.Hour, policy.RescheduleWindow)
		assert.Equal(t, retry.Terminal, policy.Classify(&domain.RemoteError{StatusCode: 500, Body: "quota exhausted for today"}))
	})

	t.Run("status classification", func(t *testing.T) {
		policy, err := BuildPolicy(config.JobConfig{TerminalPolicy: "fail"})
		require.NoError(t, err)

		assert.Equal(t, retry.Terminal, policy.Classify(&domain.RemoteError{StatusCode: 404}))
		assert.Equal(t, retry.Retryable, policy.Classify(&domain.RemoteError{StatusCode: 429}))
		assert.Equal(t, retry.Retryable, policy.Classify(&domain.RemoteError{StatusCode: 408}))
		assert.Equal(t, retry.Retryable, policy.Classify(&domain.RemoteError{StatusCode: 503}))
		assert.Equal(t, retry.Terminal, policy.Classify(&domain.RemoteError{StatusCode: 500, Body: "Unsupported language"}))
		assert.Equal(t, retry.Retryable, policy.Classify(domain.ErrNetwork))
	})

	t.Run("unknown terminal policy", func(t *testing.T) {
		_, err := BuildPolicy(config.JobConfig{TerminalPolicy: "drop"})
		assert.Error(t, err)
	})
}

func TestWorkerID(t *testing.T) {
	assert.Equal(t, "worker-a", workerID("worker-a"))

	generated := workerID("")
	assert.NotEmpty(t, generated)
	assert.NotEqual(t, generated, workerID(""))
}

func memoryConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{Driver: config.StorageDriverMemory},
		Worker:  config.WorkerConfig{ID: "test-worker", Concurrency: 1},
		Jobs: config.JobsConfig{
			Translation: config.JobConfig{TerminalPolicy: "fail"},
			Publish:     config.JobConfig{TerminalPolicy: "reschedule"},
			Sync:        config.JobConfig{TerminalPolicy: "fail"},
		},
		Webhook: config.WebhookConfig{Timeout: 2 * time.Second, MaxAttempts: 1},
	}
}

func TestBuild_MemoryStoreEndToEnd(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	services, err := Build(context.Background(), memoryConfig(), testLogger)
	require.NoError(t, err)
	defer func() { require.NoError(t, services.Close()) }()

	assert.Equal(t, "test-worker", services.WorkerID)
	require.Contains(t, services.HealthChecks, "storage")
	assert.NoError(t, services.HealthChecks["storage"](context.Background()))
	memory, ok := services.Store.(*storage.Memory)
	require.True(t, ok)

	memory.PutDestination(&domain.Destination{
		ID:             "dest-1",
		TenantID:       "tenant-1",
		URL:            server.URL,
		Secret:         "secret",
		Active:         true,
		NotifyOnCreate: true,
	})

	result, err := services.Sync.Notify(context.Background(), orchestrator.ContentEvent{
		ID:        "evt-1",
		Type:      domain.EventArticleCreated,
		TenantID:  "tenant-1",
		ArticleID: "a-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	log, err := services.Store.GetDeliveryLog(context.Background(), "evt-1", "dest-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusSuccess, log.Status)
}

func TestBuild_InvalidPolicy(t *testing.T) {
	cfg := memoryConfig()
	cfg.Jobs.Sync.TerminalPolicy = "drop"

	_, err := Build(context.Background(), cfg, testLogger)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid sync retry policy"))
}
