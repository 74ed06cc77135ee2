// Package notify announces published content to downstream systems. Every notifier is
// best-effort: callers log failures and never let them change a job's status.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/content-pipeline/internal/orchestrator"
)

// Named is a notifier with a name for logging
type Named struct {
	Name     string
	Notifier orchestrator.Notifier
}

// Fanout calls every notifier concurrently
type Fanout struct {
	notifiers []Named
	logger    *slog.Logger
}

// NewFanout creates a fan-out over notifiers
func NewFanout(logger *slog.Logger, notifiers ...Named) *Fanout {
	return &Fanout{notifiers: notifiers, logger: logger}
}

// Len returns the number of notifiers
func (f *Fanout) Len() int {
	return len(f.notifiers)
}

// Notify implements orchestrator.Notifier. One notifier failing does not stop the others;
// the first error is returned after all have finished.
func (f *Fanout) Notify(ctx context.Context, content orchestrator.PublishedContent) error {
	var g errgroup.Group
	for _, n := range f.notifiers {
		g.Go(func() error {
			if err := n.Notifier.Notify(ctx, content); err != nil {
				f.logger.Warn("Notifier failed",
					slog.String("notifier", n.Name),
					slog.String("job_id", content.JobID),
					slog.Any("error", err),
				)
				return fmt.Errorf("%s: %w", n.Name, err)
			}
			f.logger.Debug("Notifier succeeded",
				slog.String("notifier", n.Name),
				slog.String("job_id", content.JobID),
			)
			return nil
		})
	}
	return g.Wait()
}
