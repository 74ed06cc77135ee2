package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/content-pipeline/internal/signature"
	"github.com/cuongbtq/content-pipeline/internal/webhook"
)

// maxWebhookBody bounds how much of an inbound webhook is read
const maxWebhookBody = 1 << 20

// WebhookHandler serves the signed inbound webhook endpoints
type WebhookHandler struct {
	logger  *slog.Logger
	sync    *webhook.Receiver
	payment *webhook.Receiver
}

// NewWebhookHandler creates a new WebhookHandler instance
func NewWebhookHandler(deps *Dependencies) *WebhookHandler {
	return &WebhookHandler{
		logger:  deps.Logger,
		sync:    deps.SyncReceiver,
		payment: deps.PaymentReceiver,
	}
}

// ReceiveSync handles POST /webhooks/sync
func (h *WebhookHandler) ReceiveSync(c *gin.Context) {
	h.receive(c, h.sync)
}

// ReceivePayment handles POST /webhooks/payment
func (h *WebhookHandler) ReceivePayment(c *gin.Context) {
	h.receive(c, h.payment)
}

func (h *WebhookHandler) receive(c *gin.Context, receiver *webhook.Receiver) {
	if receiver == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Webhook receiver not configured",
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read request body",
		})
		return
	}

	resp := receiver.Receive(
		c.Request.Context(),
		c.GetHeader(signature.HeaderTimestamp),
		c.GetHeader(signature.HeaderSignature),
		body,
	)
	c.JSON(resp.Status, resp.Body)
}

// ForwardContentEvents returns the sync receiver's handler: verified article events are
// fanned out to tenant destinations.
func ForwardContentEvents(sync ContentNotifier, logger *slog.Logger) webhook.EventHandler {
	return webhook.EventHandlerFunc(func(ctx context.Context, event *webhook.Event) error {
		contentEvent, err := contentEventFromWebhook(event)
		if err != nil {
			return err
		}

		result, err := sync.Notify(ctx, contentEvent)
		if err != nil {
			return err
		}

		logger.Info("Inbound content event forwarded",
			slog.String("event_id", result.EventID),
			slog.String("event_type", contentEvent.Type),
			slog.Int("matched", result.Matched),
		)
		return nil
	})
}

// LogPaymentEvents returns the payment receiver's handler. Payment handling belongs to the
// billing service; this side records receipt only.
func LogPaymentEvents(logger *slog.Logger) webhook.EventHandler {
	return webhook.EventHandlerFunc(func(ctx context.Context, event *webhook.Event) error {
		logger.Info("Payment event received",
			slog.String("event_type", string(event.Type)),
			slog.String("timestamp", event.Timestamp),
		)
		return nil
	})
}
