package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/eventgateway/core/logger"
	"github.com/dmitrymomot/eventgateway/core/realtime"
)

// FrameAlert is the frame type multicast by ChannelAlerter.
const FrameAlert = "alert"

// Alert describes an event that exhausted its retries.
type Alert struct {
	EventID       uuid.UUID
	EventType     string
	CorrelationID string
	Attempts      int
	Err           error
	At            time.Time
}

// Alerter notifies operators. Alerts are never dropped silently: a failing
// alerter is logged by the dispatcher.
type Alerter interface {
	Alert(ctx context.Context, a Alert) error
}

// AlertFunc adapts a function to Alerter.
type AlertFunc func(ctx context.Context, a Alert) error

func (f AlertFunc) Alert(ctx context.Context, a Alert) error { return f(ctx, a) }

// Multicaster is the broker surface the dispatch package needs.
type Multicaster interface {
	Multicast(ctx context.Context, channel string, f realtime.Frame) (int, error)
}

// NewLogAlerter logs alerts at error level.
func NewLogAlerter(l *slog.Logger) Alerter {
	return AlertFunc(func(ctx context.Context, a Alert) error {
		l.ErrorContext(ctx, "event retries exhausted",
			logger.EventID(a.EventID),
			logger.EventType(a.EventType),
			logger.CorrelationID(a.CorrelationID),
			logger.RetryCount(a.Attempts),
			logger.Error(a.Err),
		)
		return nil
	})
}

type alertPayload struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Attempts      int       `json:"attempts"`
	Error         string    `json:"error"`
	At            time.Time `json:"at"`
}

// NewChannelAlerter multicasts alerts as "alert" frames on channel, so operator
// consoles subscribed to it see failures live.
func NewChannelAlerter(m Multicaster, channel string) Alerter {
	return AlertFunc(func(ctx context.Context, a Alert) error {
		p := alertPayload{
			EventID:       a.EventID.String(),
			EventType:     a.EventType,
			CorrelationID: a.CorrelationID,
			Attempts:      a.Attempts,
			At:            a.At,
		}
		if a.Err != nil {
			p.Error = a.Err.Error()
		}
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode alert: %w", err)
		}
		_, err = m.Multicast(ctx, channel, realtime.Frame{
			Type:      FrameAlert,
			EventID:   p.EventID,
			Payload:   raw,
			Timestamp: a.At,
		})
		return err
	})
}

// MultiAlerter fans an alert out to every alerter and joins their errors.
func MultiAlerter(alerters ...Alerter) Alerter {
	return AlertFunc(func(ctx context.Context, a Alert) error {
		var errs []error
		for _, al := range alerters {
			if al == nil {
				continue
			}
			if err := al.Alert(ctx, a); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
