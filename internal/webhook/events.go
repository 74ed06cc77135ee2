package webhook

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// EventType is the "type" field of an inbound webhook event
type EventType string

// Payment events
const (
	EventPaymentSuccess   EventType = "payment.success"
	EventPaymentFailed    EventType = "payment.failed"
	EventPeriodAuthorized EventType = "period.authorized"
	EventPeriodDeducted   EventType = "period.deducted"
	EventPeriodFailed     EventType = "period.failed"
)

// Content-sync events
const (
	EventArticleCreated EventType = "article.created"
	EventArticleUpdated EventType = "article.updated"
	EventArticleDeleted EventType = "article.deleted"
)

// EventSet is a closed enumeration of accepted event types
type EventSet map[EventType]struct{}

// NewEventSet builds an EventSet
func NewEventSet(types ...EventType) EventSet {
	set := make(EventSet, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

// Contains reports whether t is accepted
func (s EventSet) Contains(t EventType) bool {
	_, ok := s[t]
	return ok
}

var (
	PaymentEvents = NewEventSet(
		EventPaymentSuccess,
		EventPaymentFailed,
		EventPeriodAuthorized,
		EventPeriodDeducted,
		EventPeriodFailed,
	)
	ContentSyncEvents = NewEventSet(
		EventArticleCreated,
		EventArticleUpdated,
		EventArticleDeleted,
	)
)

// Event is a validated inbound webhook event
type Event struct {
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
	// Digest is the hex SHA-256 of the raw body; a sender retrying the same body keeps it
	Digest string `json:"-"`
}

// OutboundEvent is the body of a content-sync delivery to a destination
type OutboundEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
}

// parseEnvelope checks shape only: type is a string, data an object, timestamp a string.
// It returns the stage code that failed, or "" on success.
func parseEnvelope(body []byte) (*Event, ErrorCode) {
	if !json.Valid(body) {
		return nil, CodeInvalidJSON
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, CodeInvalidEventFormat
	}

	var (
		eventType string
		timestamp string
	)
	if !decodeString(raw["type"], &eventType) || !decodeString(raw["timestamp"], &timestamp) {
		return nil, CodeInvalidEventFormat
	}

	data := bytes.TrimSpace(raw["data"])
	if len(data) == 0 || data[0] != '{' {
		return nil, CodeInvalidEventFormat
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, CodeInvalidEventFormat
	}

	sum := sha256.Sum256(body)
	return &Event{
		Type:      EventType(eventType),
		Data:      payload,
		Timestamp: timestamp,
		Digest:    hex.EncodeToString(sum[:]),
	}, ""
}

func decodeString(raw json.RawMessage, dst *string) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
