package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/content-pipeline/internal/orchestrator"
	"github.com/cuongbtq/content-pipeline/internal/storage"
	"github.com/cuongbtq/content-pipeline/internal/webhook"
)

// Runner is one orchestrator invocation
type Runner interface {
	Run(ctx context.Context) (orchestrator.Summary, error)
}

// ContentNotifier fans a content event out to sync destinations
type ContentNotifier interface {
	Notify(ctx context.Context, event orchestrator.ContentEvent) (orchestrator.NotifyResult, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	ServiceName  string
	TriggerToken string
	Store        storage.Store
	// HealthChecks is keyed by dependency name; empty means ping Store
	HealthChecks map[string]HealthCheck
	// Orchestrators is keyed by the trigger path segment: translation, publish, sync
	Orchestrators   map[string]Runner
	Sync            ContentNotifier
	SyncReceiver    *webhook.Receiver
	PaymentReceiver *webhook.Receiver
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	store  storage.Store
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		store:  deps.Store,
	}
}
