package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/content-pipeline/internal/orchestrator"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type notifierFunc func(ctx context.Context, content orchestrator.PublishedContent) error

func (f notifierFunc) Notify(ctx context.Context, content orchestrator.PublishedContent) error {
	return f(ctx, content)
}

func TestFanout_RunsEveryNotifier(t *testing.T) {
	var calls int32
	ok := notifierFunc(func(ctx context.Context, content orchestrator.PublishedContent) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	broken := notifierFunc(func(ctx context.Context, content orchestrator.PublishedContent) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	})

	fanout := NewFanout(testLogger,
		Named{Name: "first", Notifier: ok},
		Named{Name: "broken", Notifier: broken},
		Named{Name: "last", Notifier: ok},
	)

	err := fanout.Notify(context.Background(), orchestrator.PublishedContent{JobID: "job-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: boom")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 3, fanout.Len())
}

type fakePublisher struct {
	mu         sync.Mutex
	routingKey string
	body       []byte
}

func (p *fakePublisher) PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routingKey = routingKey
	p.body = body
	return nil
}

func TestRabbitNotifier(t *testing.T) {
	publisher := &fakePublisher{}
	n := NewRabbitNotifier(publisher, "")

	err := n.Notify(context.Background(), orchestrator.PublishedContent{JobID: "job-1", ArticleID: "a-1", URL: "https://blog.example/launch"})
	require.NoError(t, err)

	assert.Equal(t, DefaultRoutingKey, publisher.routingKey)
	var decoded orchestrator.PublishedContent
	require.NoError(t, json.Unmarshal(publisher.body, &decoded))
	assert.Equal(t, "a-1", decoded.ArticleID)
}

func TestPingNotifier(t *testing.T) {
	var got []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.URL.RequestURI())
		mu.Unlock()
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewPingNotifier([]string{server.URL + "/ping?sitemap={url}", server.URL + "/broken"}, 0, testLogger)
	err := n.Notify(context.Background(), orchestrator.PublishedContent{URL: "https://blog.example/a b"})

	require.Error(t, err)
	assert.Equal(t, []string{
		"/ping?sitemap=https%3A%2F%2Fblog.example%2Fa+b",
		"/broken?url=https%3A%2F%2Fblog.example%2Fa+b",
	}, got)

	require.NoError(t, n.Notify(context.Background(), orchestrator.PublishedContent{}))
}

func TestPingURL(t *testing.T) {
	assert.Equal(t, "https://x.test/p?a=1&url=u", pingURL("https://x.test/p?a=1", "u"))
	assert.Equal(t, "https://x.test/p?url=u", pingURL("https://x.test/p", "u"))
}
