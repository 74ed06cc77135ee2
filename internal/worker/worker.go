package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cuongbtq/content-pipeline/internal/orchestrator"
)

// Runner is one orchestrator invocation
type Runner interface {
	Run(ctx context.Context) (orchestrator.Summary, error)
}

// Task schedules a Runner at a fixed interval
type Task struct {
	Name     string
	Interval time.Duration
	Runner   Runner
}

// Config holds worker configuration
type Config struct {
	Logger *slog.Logger
	Tasks  []Task
	// RunOnStart triggers every task once when the worker starts
	RunOnStart bool
}

// Worker invokes orchestrators on a cron schedule. Overlapping runs of the same task are
// skipped; runs of different tasks and other processes coordinate through the claim protocol.
type Worker struct {
	logger     *slog.Logger
	tasks      []Task
	runOnStart bool
	cron       *cron.Cron

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	logger := cfg.Logger.With(slog.String("component", "worker"))
	cronLogger := &cronLogger{logger: logger}

	return &Worker{
		logger:     logger,
		tasks:      cfg.Tasks,
		runOnStart: cfg.RunOnStart,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}
}

// Start schedules every task and blocks until ctx is canceled
func (w *Worker) Start(ctx context.Context) error {
	if len(w.tasks) == 0 {
		return errors.New("no tasks configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	entries := make([]cron.EntryID, 0, len(w.tasks))
	for _, task := range w.tasks {
		if task.Interval <= 0 {
			return fmt.Errorf("task %s: interval must be greater than 0", task.Name)
		}
		schedule := fmt.Sprintf("@every %s", task.Interval)
		id, err := w.cron.AddFunc(schedule, w.invoke(runCtx, task))
		if err != nil {
			return fmt.Errorf("task %s: failed to schedule: %w", task.Name, err)
		}
		entries = append(entries, id)
		w.logger.Info("Task scheduled",
			slog.String("task", task.Name),
			slog.Duration("interval", task.Interval),
		)
	}

	w.cron.Start()
	w.logger.Info("Worker started", slog.Int("tasks", len(w.tasks)))

	if w.runOnStart {
		// the wrapped job carries the skip-if-running chain
		for _, id := range entries {
			go w.cron.Entry(id).WrappedJob.Run()
		}
	}

	<-runCtx.Done()
	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

func (w *Worker) invoke(ctx context.Context, task Task) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}

		summary, err := task.Runner.Run(ctx)
		if err != nil {
			w.logger.Error("Task run failed",
				slog.String("task", task.Name),
				slog.Any("error", err),
			)
		}
		if summary.Claimed == 0 {
			w.logger.Debug("Task found no due jobs", slog.String("task", task.Name))
			return
		}
		w.logger.Info("Task run finished",
			slog.String("task", task.Name),
			slog.Int("claimed", summary.Claimed),
			slog.Int("completed", summary.Completed),
			slog.Int("retrying", summary.Retrying),
			slog.Int("failed", summary.Failed),
			slog.Int("rescheduled", summary.Rescheduled),
			slog.Duration("duration", summary.Duration),
		)
	}
}

// Stop stops scheduling and waits for running tasks. When ctx expires first, in-flight
// runs are canceled; their jobs still persist an outcome.
func (w *Worker) Stop(ctx context.Context) error {
	w.logger.Info("Stopping worker...")

	done := w.cron.Stop()
	defer w.cancelRuns()

	select {
	case <-done.Done():
		w.logger.Info("Worker stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker stop: %w", ctx.Err())
	}
}

func (w *Worker) cancelRuns() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, slog.Any("error", err))...)
}
