package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrymomot/eventgateway/core/eventlog"
)

// Handler is a side effect run for every dispatched event of its type,
// before the event is multicast.
type Handler interface {
	EventType() string
	Handle(ctx context.Context, ev *eventlog.Event) error
}

// HandlerFunc processes the raw event.
type HandlerFunc func(ctx context.Context, ev *eventlog.Event) error

// PayloadHandlerFunc processes a decoded payload.
type PayloadHandlerFunc[T any] func(ctx context.Context, payload T, ev *eventlog.Event) error

// NewHandler creates a handler for eventType.
func NewHandler(eventType string, fn HandlerFunc) Handler {
	return &funcHandler{eventType: eventType, fn: fn}
}

// NewPayloadHandler creates a handler that decodes the JSON payload into T.
func NewPayloadHandler[T any](eventType string, fn PayloadHandlerFunc[T]) Handler {
	return &payloadHandler[T]{eventType: eventType, fn: fn}
}

type funcHandler struct {
	eventType string
	fn        HandlerFunc
}

func (h *funcHandler) EventType() string { return h.eventType }

func (h *funcHandler) Handle(ctx context.Context, ev *eventlog.Event) error {
	return h.fn(ctx, ev)
}

type payloadHandler[T any] struct {
	eventType string
	fn        PayloadHandlerFunc[T]
}

func (h *payloadHandler[T]) EventType() string { return h.eventType }

func (h *payloadHandler[T]) Handle(ctx context.Context, ev *eventlog.Event) error {
	var payload T
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", h.eventType, err)
	}
	return h.fn(ctx, payload, ev)
}
