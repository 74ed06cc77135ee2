package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/content-pipeline/internal/api/dto"
	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/orchestrator"
	"github.com/cuongbtq/content-pipeline/internal/storage"
	"github.com/cuongbtq/content-pipeline/internal/webhook"
)

// webhookIDLength is how many hex digest characters name an inbound event without an id
const webhookIDLength = 32

// EventHandler accepts content events and exposes their delivery logs
type EventHandler struct {
	logger     *slog.Logger
	sync       ContentNotifier
	deliveries storage.DeliveryStore
}

// NewEventHandler creates a new EventHandler instance
func NewEventHandler(deps *Dependencies) *EventHandler {
	return &EventHandler{
		logger:     deps.Logger,
		sync:       deps.Sync,
		deliveries: deps.Store,
	}
}

// PublishContentEvent handles POST /api/v1/content/events
func (h *EventHandler) PublishContentEvent(c *gin.Context) {
	var req dto.ContentEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid content event", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	event := orchestrator.ContentEvent{
		ID:        req.ID,
		Type:      req.Type,
		TenantID:  req.TenantID,
		ArticleID: req.ArticleID,
		Data:      req.Data,
	}
	if req.OccurredAt != nil {
		event.OccurredAt = req.OccurredAt.UTC()
	}

	result, err := h.sync.Notify(c.Request.Context(), event)
	if errors.Is(err, domain.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to fan out content event", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to process content event",
			"result": result,
		})
		return
	}

	c.JSON(http.StatusAccepted, result)
}

// ListDeliveries handles GET /api/v1/deliveries?event_id=
func (h *EventHandler) ListDeliveries(c *gin.Context) {
	var req dto.ListDeliveriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "event_id is required",
		})
		return
	}

	logs, err := h.deliveries.ListDeliveryLogs(c.Request.Context(), req.EventID)
	if err != nil {
		h.logger.Error("Failed to list deliveries", slog.String("event_id", req.EventID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list deliveries",
		})
		return
	}

	deliveries := make([]dto.DeliveryDTO, len(logs))
	for i, log := range logs {
		deliveries[i] = dto.FromDeliveryLog(log)
	}

	c.JSON(http.StatusOK, dto.ListDeliveriesResponse{
		EventID:    req.EventID,
		Deliveries: deliveries,
	})
}

// contentEventFromWebhook maps a verified inbound content-sync webhook onto a ContentEvent.
// tenant_id and article_id are read from data. Without data.id the event id derives from
// the body digest so a redelivered webhook deduplicates.
func contentEventFromWebhook(event *webhook.Event) (orchestrator.ContentEvent, error) {
	contentEvent := orchestrator.ContentEvent{
		Type: string(event.Type),
		Data: event.Data,
	}

	var ok bool
	if contentEvent.TenantID, ok = event.Data["tenant_id"].(string); !ok || contentEvent.TenantID == "" {
		return contentEvent, fmt.Errorf("%w: data.tenant_id is required", domain.ErrValidation)
	}
	if contentEvent.ArticleID, ok = event.Data["article_id"].(string); !ok || contentEvent.ArticleID == "" {
		return contentEvent, fmt.Errorf("%w: data.article_id is required", domain.ErrValidation)
	}

	contentEvent.ID, _ = event.Data["id"].(string)
	if contentEvent.ID == "" && len(event.Digest) >= webhookIDLength {
		contentEvent.ID = "wh_" + event.Digest[:webhookIDLength]
	}

	if ts, err := time.Parse(time.RFC3339, event.Timestamp); err == nil {
		contentEvent.OccurredAt = ts.UTC()
	}
	return contentEvent, nil
}
