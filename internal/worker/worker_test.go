package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/content-pipeline/internal/orchestrator"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(ctx context.Context) (orchestrator.Summary, error) {
	r.calls.Add(1)
	return orchestrator.Summary{Claimed: 1, Completed: 1}, r.err
}

func TestWorker_RunsTasks(t *testing.T) {
	translation := &countingRunner{}
	sync := &countingRunner{err: errors.New("store down")}

	w := NewWorker(&Config{
		Logger:     testLogger,
		RunOnStart: true,
		Tasks: []Task{
			{Name: "translation", Interval: time.Hour, Runner: translation},
			{Name: "sync", Interval: time.Hour, Runner: sync},
		},
	})

	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		return translation.calls.Load() == 1 && sync.calls.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestWorker_StartErrors(t *testing.T) {
	t.Run("no tasks", func(t *testing.T) {
		w := NewWorker(&Config{Logger: testLogger})
		assert.EqualError(t, w.Start(context.Background()), "no tasks configured")
	})

	t.Run("zero interval", func(t *testing.T) {
		w := NewWorker(&Config{
			Logger: testLogger,
			Tasks:  []Task{{Name: "publish", Runner: &countingRunner{}}},
		})
		err := w.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "task publish")
	})
}

func TestWorker_StartReturnsOnCancel(t *testing.T) {
	w := NewWorker(&Config{
		Logger: testLogger,
		Tasks:  []Task{{Name: "sync", Interval: time.Hour, Runner: &countingRunner{}}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
	require.NoError(t, w.Stop(context.Background()))
}
