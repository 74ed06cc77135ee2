package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/content-pipeline/internal/domain"
	"github.com/cuongbtq/content-pipeline/internal/signature"
)

// ErrorCode identifies the receiver stage that rejected a request
type ErrorCode string

const (
	CodeMissingSignature   ErrorCode = "MISSING_SIGNATURE"
	CodeInvalidSignature   ErrorCode = "INVALID_SIGNATURE"
	CodeInvalidJSON        ErrorCode = "INVALID_JSON"
	CodeInvalidEventFormat ErrorCode = "INVALID_EVENT_FORMAT"
	CodeUnknownEventType   ErrorCode = "UNKNOWN_EVENT_TYPE"
	CodeInternalError      ErrorCode = "INTERNAL_ERROR"
)

// EventHandler processes a validated event. Errors wrapping domain.ErrValidation reject the
// payload with 400; any other error is answered with 500.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *Event) error
}

// EventHandlerFunc adapts a function to EventHandler
type EventHandlerFunc func(ctx context.Context, event *Event) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Response is the HTTP status and JSON body a receiver answers with
type Response struct {
	Status int
	Body   ResponseBody
}

// ResponseBody is serialized as the response payload
type ResponseBody struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	EventType EventType `json:"event_type,omitempty"`
	Error     ErrorCode `json:"error,omitempty"`
}

// Receiver validates inbound webhooks in a fixed order:
// signature present, signature and timestamp valid, JSON, envelope shape, known type, handler.
type Receiver struct {
	name     string
	verifier *signature.Verifier
	events   EventSet
	handler  EventHandler
	logger   *slog.Logger
}

// NewReceiver creates a receiver for one event family
func NewReceiver(name string, verifier *signature.Verifier, events EventSet, handler EventHandler, logger *slog.Logger) *Receiver {
	return &Receiver{
		name:     name,
		verifier: verifier,
		events:   events,
		handler:  handler,
		logger:   logger.With(slog.String("receiver", name)),
	}
}

// Receive runs the validation state machine over one request
func (r *Receiver) Receive(ctx context.Context, timestampHeader, signatureHeader string, body []byte) Response {
	if err := r.verifier.VerifyRequest(timestampHeader, signatureHeader, body); err != nil {
		if errors.Is(err, signature.ErrMissingSignature) {
			return r.reject(http.StatusUnauthorized, CodeMissingSignature, "Missing webhook signature", err)
		}
		return r.reject(http.StatusUnauthorized, CodeInvalidSignature, invalidSignatureMessage(err), err)
	}

	event, code := parseEnvelope(body)
	switch code {
	case CodeInvalidJSON:
		return r.reject(http.StatusBadRequest, code, "Request body is not valid JSON", nil)
	case CodeInvalidEventFormat:
		return r.reject(http.StatusBadRequest, code, "Event must have string type, object data and string timestamp", nil)
	}

	if !r.events.Contains(event.Type) {
		return r.reject(http.StatusBadRequest, CodeUnknownEventType, fmt.Sprintf("Unknown event type %q", event.Type), nil)
	}

	err := r.handler.HandleEvent(ctx, event)
	if errors.Is(err, domain.ErrValidation) {
		return r.reject(http.StatusBadRequest, CodeInvalidEventFormat, err.Error(), err)
	}
	if err != nil {
		r.logger.Error("Webhook handler failed",
			slog.String("event_type", string(event.Type)),
			slog.Any("error", err),
		)
		return Response{
			Status: http.StatusInternalServerError,
			Body: ResponseBody{
				Message:   "Failed to process event",
				EventType: event.Type,
				Error:     CodeInternalError,
			},
		}
	}

	r.logger.Info("Webhook event processed", slog.String("event_type", string(event.Type)))

	return Response{
		Status: http.StatusOK,
		Body: ResponseBody{
			Success:   true,
			Message:   "Event processed",
			EventType: event.Type,
		},
	}
}

func (r *Receiver) reject(status int, code ErrorCode, message string, err error) Response {
	attrs := []any{slog.String("code", string(code)), slog.Int("status", status)}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	r.logger.Warn("Webhook rejected", attrs...)

	return Response{
		Status: status,
		Body:   ResponseBody{Message: message, Error: code},
	}
}

func invalidSignatureMessage(err error) string {
	switch {
	case errors.Is(err, signature.ErrExpired):
		return "Webhook timestamp is too old"
	case errors.Is(err, signature.ErrFutureTimestamp):
		return "Webhook timestamp is in the future"
	case errors.Is(err, signature.ErrInvalidTimestamp):
		return "Webhook timestamp is malformed"
	default:
		return "Webhook signature does not match"
	}
}
