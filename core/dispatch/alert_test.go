package dispatch_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventgateway/core/dispatch"
	"github.com/dmitrymomot/eventgateway/core/eventlog"
)

func TestChannelAlerter(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 3)
	console := f.subscribe(t, "system:alerts")

	id := uuid.New()
	alerter := dispatch.NewChannelAlerter(f.broker, "system:alerts")
	err := alerter.Alert(context.Background(), dispatch.Alert{
		EventID:   id,
		EventType: "order_completed",
		Attempts:  4,
		Err:       &dispatch.RetryExhaustedError{EventID: id, Attempts: 4, Err: errors.New("boom")},
		At:        time.Now(),
	})
	require.NoError(t, err)

	frames := console.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, dispatch.FrameAlert, frames[0].Type)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(frames[0].Payload, &payload))
	assert.Equal(t, id.String(), payload["event_id"])
	assert.Equal(t, float64(4), payload["attempts"])
	assert.Contains(t, payload["error"], "boom")
}

func TestLogAlerter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	alerter := dispatch.NewLogAlerter(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, alerter.Alert(context.Background(), dispatch.Alert{
		EventID:   uuid.New(),
		EventType: "chat_message",
		Attempts:  2,
		Err:       errors.New("boom"),
	}))
	assert.Contains(t, buf.String(), "event retries exhausted")
	assert.Contains(t, buf.String(), "chat_message")
}

func TestMultiAlerter(t *testing.T) {
	t.Parallel()
	errA := errors.New("smtp down")
	var called int
	multi := dispatch.MultiAlerter(
		dispatch.AlertFunc(func(context.Context, dispatch.Alert) error { called++; return errA }),
		nil,
		dispatch.AlertFunc(func(context.Context, dispatch.Alert) error { called++; return nil }),
	)

	err := multi.Alert(context.Background(), dispatch.Alert{})
	assert.ErrorIs(t, err, errA)
	assert.Equal(t, 2, called)
}

func TestPayloadHandler(t *testing.T) {
	t.Parallel()

	type order struct {
		OrderID string  `json:"order_id"`
		Amount  float64 `json:"amount"`
	}

	var got order
	h := dispatch.NewPayloadHandler("order_completed", func(_ context.Context, p order, _ *eventlog.Event) error {
		got = p
		return nil
	})
	assert.Equal(t, "order_completed", h.EventType())

	require.NoError(t, h.Handle(context.Background(), &eventlog.Event{Payload: json.RawMessage(`{"order_id":"o1","amount":500}`)}))
	assert.Equal(t, order{OrderID: "o1", Amount: 500}, got)

	err := h.Handle(context.Background(), &eventlog.Event{Payload: json.RawMessage(`[1,2]`)})
	assert.Error(t, err)
}
