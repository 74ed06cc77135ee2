package dto

import (
	"time"

	"github.com/cuongbtq/content-pipeline/internal/domain"
)

type ContentEventRequest struct {
	ID         string         `json:"id"`
	Type       string         `json:"type" binding:"required,oneof=article.created article.updated article.deleted"`
	TenantID   string         `json:"tenant_id" binding:"required"`
	ArticleID  string         `json:"article_id" binding:"required"`
	Data       map[string]any `json:"data"`
	OccurredAt *time.Time     `json:"occurred_at"`
}

type ListDeliveriesRequest struct {
	EventID string `form:"event_id" binding:"required"`
}

type DeliveryDTO struct {
	EventID             string `json:"event_id"`
	DestinationID       string `json:"destination_id"`
	EventType           string `json:"event_type"`
	Status              string `json:"status"`
	ResponseStatus      int    `json:"response_status,omitempty"`
	ResponseBodySnippet string `json:"response_body_snippet,omitempty"`
	ErrorMessage        string `json:"error_message,omitempty"`
	RetryCount          int    `json:"retry_count"`
	NextRetryAt         string `json:"next_retry_at,omitempty"`
	DurationMs          int64  `json:"duration_ms"`
	DeliveredAt         string `json:"delivered_at,omitempty"`
	UpdatedAt           string `json:"updated_at"`
}

type ListDeliveriesResponse struct {
	EventID    string        `json:"event_id"`
	Deliveries []DeliveryDTO `json:"deliveries"`
}

// FromDeliveryLog converts a delivery log into its API representation
func FromDeliveryLog(log *domain.DeliveryLog) DeliveryDTO {
	dto := DeliveryDTO{
		EventID:             log.EventID,
		DestinationID:       log.DestinationID,
		EventType:           log.EventType,
		Status:              string(log.Status),
		ResponseStatus:      log.ResponseStatus,
		ResponseBodySnippet: log.ResponseBodySnippet,
		ErrorMessage:        log.ErrorMessage,
		RetryCount:          log.RetryCount,
		DurationMs:          log.DurationMs,
		UpdatedAt:           log.UpdatedAt.Format(time.RFC3339),
	}
	if log.NextRetryAt != nil {
		dto.NextRetryAt = log.NextRetryAt.Format(time.RFC3339)
	}
	if log.DeliveredAt != nil {
		dto.DeliveredAt = log.DeliveredAt.Format(time.RFC3339)
	}
	return dto
}
