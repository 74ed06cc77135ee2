package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/content-pipeline/internal/orchestrator"
)

// DefaultRoutingKey is used when none is configured
const DefaultRoutingKey = "content.published"

// MessagePublisher is satisfied by *rabbitmq.Client
type MessagePublisher interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// RabbitNotifier publishes a JSON message per published article
type RabbitNotifier struct {
	publisher  MessagePublisher
	routingKey string
}

// NewRabbitNotifier creates a RabbitMQ-backed notifier
func NewRabbitNotifier(publisher MessagePublisher, routingKey string) *RabbitNotifier {
	if routingKey == "" {
		routingKey = DefaultRoutingKey
	}
	return &RabbitNotifier{publisher: publisher, routingKey: routingKey}
}

// Notify implements orchestrator.Notifier
func (n *RabbitNotifier) Notify(ctx context.Context, content orchestrator.PublishedContent) error {
	body, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return n.publisher.PublishWithRetry(ctx, n.routingKey, body, "application/json")
}
