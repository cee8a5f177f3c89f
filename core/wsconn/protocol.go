package wsconn

import (
	"encoding/json"
	"time"

	"github.com/dmitrymomot/eventgateway/core/realtime"
)

// Client control actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

// FrameConnected is the first frame sent on a new connection.
const FrameConnected = "connected"

// Error codes carried in error frames.
const (
	CodeInvalidMessage = "invalid_message"
	CodeUnknownAction  = "unknown_action"
	CodeInvalidChannel = "invalid_channel"
	CodeForbidden      = "forbidden"
	CodeRateLimited    = "rate_limited"
	CodeInternal       = "internal_error"
)

// ControlMessage is sent by clients.
type ControlMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel,omitempty"`
	ID      string `json:"id,omitempty"`
}

// AckPayload is the payload of an ack frame.
type AckPayload struct {
	Action  string `json:"action"`
	Channel string `json:"channel,omitempty"`
	ID      string `json:"id,omitempty"`
}

// ErrorPayload is the payload of an error frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// ConnectedPayload is the payload of the connected frame.
type ConnectedPayload struct {
	ConnectionID string   `json:"connection_id"`
	Identity     string   `json:"identity,omitempty"`
	Channels     []string `json:"channels"`
}

func ackFrame(msg ControlMessage, now time.Time) realtime.Frame {
	return controlFrame(realtime.FrameAck, msg.Channel, AckPayload(msg), now)
}

func errorFrame(msg ControlMessage, code, message string, now time.Time) realtime.Frame {
	return controlFrame(realtime.FrameError, msg.Channel, ErrorPayload{Code: code, Message: message, ID: msg.ID}, now)
}

func controlFrame(typ, channel string, payload any, now time.Time) realtime.Frame {
	data, _ := json.Marshal(payload)
	return realtime.Frame{Type: typ, Channel: channel, Payload: data, Timestamp: now}
}
