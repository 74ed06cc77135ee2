package domain

import "time"

// DeliveryLog records the final outcome of one event delivered to one destination
type DeliveryLog struct {
	ID                  string         `db:"id"`
	EventID             string         `db:"event_id"`
	DestinationID       string         `db:"destination_id"`
	EventType           string         `db:"event_type"`
	Status              DeliveryStatus `db:"status"`
	ResponseStatus      int            `db:"response_status"`
	ResponseBodySnippet string         `db:"response_body_snippet"`
	ErrorMessage        string         `db:"error_message"`
	RetryCount          int            `db:"retry_count"`
	NextRetryAt         *time.Time     `db:"next_retry_at"`
	DurationMs          int64          `db:"duration_ms"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
	DeliveredAt         *time.Time     `db:"delivered_at"`
}

// Destination is a tenant-configured webhook endpoint for content-sync events
type Destination struct {
	ID             string    `db:"id"`
	TenantID       string    `db:"tenant_id"`
	Name           string    `db:"name"`
	URL            string    `db:"url"`
	Secret         string    `db:"secret"`
	Active         bool      `db:"active"`
	NotifyOnCreate bool      `db:"notify_on_create"`
	NotifyOnUpdate bool      `db:"notify_on_update"`
	NotifyOnDelete bool      `db:"notify_on_delete"`
	CreatedAt      time.Time `db:"created_at"`
}

// Content event types delivered to sync destinations
const (
	EventArticleCreated = "article.created"
	EventArticleUpdated = "article.updated"
	EventArticleDeleted = "article.deleted"
)

// Matches reports whether the destination wants events of the given type
func (d *Destination) Matches(eventType string) bool {
	if !d.Active {
		return false
	}
	switch eventType {
	case EventArticleCreated:
		return d.NotifyOnCreate
	case EventArticleUpdated:
		return d.NotifyOnUpdate
	case EventArticleDeleted:
		return d.NotifyOnDelete
	}
	return false
}
