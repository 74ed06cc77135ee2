package action

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/orchestrator"
	"github.com/cuongbtq/content-pipeline/internal/signature"
	"github.com/cuongbtq/content-pipeline/internal/webhook"
)

func newDispatcher() *webhook.Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return webhook.NewDispatcher(webhook.DispatcherConfig{
		Timeout:     2 * time.Second,
		MaxAttempts: 2,
		BaseDelay:   0,
	}, logger)
}

func TestWebhookPublisher_Publish(t *testing.T) {
	var received publishRequest
	var idempotencyKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idempotencyKey = r.Header.Get("Idempotency-Key")
		assert.NotEmpty(t, r.Header.Get(signature.HeaderSignature))
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	publisher := NewWebhookPublisher(newDispatcher(), Endpoint{URL: server.URL, Secret: "s3cret"})
	job := &domain.Job{ID: "job-1", TenantID: "t-1", ArticleID: "a-1"}

	err := publisher.Publish(context.Background(), job, domain.PublishPayload{
		Destination:   domain.DestinationExternal,
		DestinationID: "medium",
		Title:         "Launch",
	})
	require.NoError(t, err)

	assert.Equal(t, "publish:job-1", idempotencyKey)
	assert.Equal(t, "a-1", received.ArticleID)
	assert.Equal(t, "medium", received.DestinationID)
	assert.Equal(t, domain.DestinationExternal, received.Destination)
}

func TestWebhookPublisher_Errors(t *testing.T) {
	job := &domain.Job{ID: "job-1"}

	t.Run("external without destination id", func(t *testing.T) {
		publisher := NewWebhookPublisher(newDispatcher(), Endpoint{URL: "http://127.0.0.1:1"})
		err := publisher.Publish(context.Background(), job, domain.PublishPayload{Destination: domain.DestinationExternal})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("endpoint not configured", func(t *testing.T) {
		publisher := NewWebhookPublisher(newDispatcher(), Endpoint{})
		err := publisher.Publish(context.Background(), job, domain.PublishPayload{Destination: domain.DestinationInternal})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("remote rejection keeps status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("forbidden"))
		}))
		defer server.Close()

		publisher := NewWebhookPublisher(newDispatcher(), Endpoint{URL: server.URL})
		err := publisher.Publish(context.Background(), job, domain.PublishPayload{Destination: domain.DestinationInternal})

		var remoteErr *domain.RemoteError
		require.True(t, errors.As(err, &remoteErr))
		assert.Equal(t, http.StatusForbidden, remoteErr.StatusCode)
	})
}

func TestHTTPTranslator_Translate(t *testing.T) {
	var received translateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		if received.Language == "xx-XX" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte("unsupported language"))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	translator := NewHTTPTranslator(newDispatcher(), Endpoint{URL: server.URL, Timeout: time.Second})

	err := translator.Translate(context.Background(), orchestrator.TranslationRequest{JobID: "job-1", ArticleID: "a-1", Language: "ja-JP"})
	require.NoError(t, err)
	assert.Equal(t, "ja-JP", received.Language)

	err = translator.Translate(context.Background(), orchestrator.TranslationRequest{JobID: "job-1", ArticleID: "a-1", Language: "xx-XX"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language")
}

type failingSender struct{}

func (failingSender) Send(ctx context.Context, req webhook.Request) webhook.Result {
	return webhook.Result{}
}

func TestSend_FailureWithoutError(t *testing.T) {
	err := send(context.Background(), failingSender{}, Endpoint{URL: "http://example.test"}, struct{}{}, nil)
	assert.EqualError(t, err, "delivery failed without error")
}
