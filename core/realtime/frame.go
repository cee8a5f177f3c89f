package realtime

import (
	"context"
	"encoding/json"
	"time"
)

// Reserved frame types. Business frames use the event type instead.
const (
	FrameHeartbeat = "heartbeat"
	FrameAck       = "ack"
	FrameError     = "error"
)

// Frame is the unit pushed to subscribers.
type Frame struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	EventID   string          `json:"event_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// IsHeartbeat reports whether the frame is a liveness heartbeat.
func (f Frame) IsHeartbeat() bool { return f.Type == FrameHeartbeat }

// Sender is the transport side of a connection.
// Send must not block on a slow peer; implementations return an error instead.
type Sender interface {
	Send(ctx context.Context, f Frame) error
	Close() error
}

// SenderFunc adapts a function to Sender with a no-op Close.
type SenderFunc func(ctx context.Context, f Frame) error

func (fn SenderFunc) Send(ctx context.Context, f Frame) error { return fn(ctx, f) }

func (fn SenderFunc) Close() error { return nil }
