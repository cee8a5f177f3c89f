package realtime

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("connection not found")
	ErrNilSender         = errors.New("sender is required")
	ErrInvalidChannel    = errors.New("invalid channel name")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrSlowConsumer      = errors.New("outbound queue is full")
	ErrHealthcheckFailed = errors.New("realtime healthcheck failed")
)

// DeliveryError reports a failed send to a single connection.
// The connection is evicted after the multicast pass that produced it.
type DeliveryError struct {
	ConnectionID string
	Channel      string
	Err          error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s on %q: %v", e.ConnectionID, e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
