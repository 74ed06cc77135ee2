package webhook

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

	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/signature"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestDispatcher(maxAttempts int, timeout time.Duration) *Dispatcher {
	return NewDispatcher(DispatcherConfig{Timeout: timeout, MaxAttempts: maxAttempts, BaseDelay: 0}, testLogger)
}

func TestDispatcher_SignsAndDelivers(t *testing.T) {
	const secret = "whsec_test"
	var verifyErr atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		err := signature.NewVerifier(secret, 0).VerifyRequest(
			r.Header.Get(signature.HeaderTimestamp),
			r.Header.Get(signature.HeaderSignature),
			body,
		)
		if err != nil {
			verifyErr.Store(err)
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "evt-1", r.Header.Get("X-Event-ID"))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	result := newTestDispatcher(3, time.Second).Send(context.Background(), Request{
		URL:     server.URL,
		Secret:  secret,
		Payload: OutboundEvent{ID: "evt-1", Type: "article.created", Data: map[string]any{"id": "a-1"}},
		Headers: map[string]string{"X-Event-ID": "evt-1"},
	})

	require.True(t, result.Success)
	assert.NoError(t, result.Err)
	assert.Equal(t, http.StatusAccepted, result.StatusCode)
	assert.Equal(t, `{"ok":true}`, result.BodySnippet)
	assert.Equal(t, 1, result.Attempts)
	assert.Nil(t, verifyErr.Load())
}

func TestDispatcher_UnsignedWithoutSecret(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(signature.HeaderSignature))
		assert.Empty(t, r.Header.Get(signature.HeaderTimestamp))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestDispatcher(1, time.Second).Send(context.Background(), Request{URL: server.URL, Payload: map[string]string{"a": "b"}})
	assert.True(t, result.Success)
}

func TestDispatcher_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestDispatcher(3, time.Second).Send(context.Background(), Request{URL: server.URL, Payload: struct{}{}})

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDispatcher_ExhaustsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer server.Close()

	result := newTestDispatcher(2, time.Second).Send(context.Background(), Request{URL: server.URL, Payload: struct{}{}})

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, http.StatusServiceUnavailable, result.StatusCode)

	var remoteErr *domain.RemoteError
	require.ErrorAs(t, result.Err, &remoteErr)
	assert.True(t, remoteErr.IsServerError())
	assert.Equal(t, "maintenance", remoteErr.Body)
}

func TestDispatcher_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(strings.Repeat("x", 2*SnippetLimit)))
	}))
	defer server.Close()

	result := newTestDispatcher(5, time.Second).Send(context.Background(), Request{URL: server.URL, Payload: struct{}{}})

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Len(t, result.BodySnippet, SnippetLimit)

	var remoteErr *domain.RemoteError
	require.ErrorAs(t, result.Err, &remoteErr)
	assert.True(t, remoteErr.IsClientError())
}

func TestDispatcher_TimeoutIsRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	result := newTestDispatcher(2, 50*time.Millisecond).Send(context.Background(), Request{URL: server.URL, Payload: struct{}{}})

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.ErrorIs(t, result.Err, domain.ErrTimeout)
}

func TestDispatcher_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	result := newTestDispatcher(2, time.Second).Send(context.Background(), Request{URL: url, Payload: struct{}{}})

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.ErrorIs(t, result.Err, domain.ErrNetwork)
}
