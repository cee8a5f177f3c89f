package metrics

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrymomot/eventgateway/core/dispatch"
	"github.com/dmitrymomot/eventgateway/core/eventlog"
)

// Event types with built-in metric side effects.
const (
	EventOrderCompleted = "order_completed"
	EventMetricSample   = "metric_sample"
)

// Metric names recorded by OrderCompletedHandler.
const (
	MetricOrdersCompleted = "orders_completed"
	MetricRevenue         = "revenue"
)

// OrderCompleted is the part of an order_completed payload the gateway reads.
// Producers may send snake_case (order_id, vendor_id) or camelCase
// (orderId, vendorId) keys; snake_case wins when both are present.
type OrderCompleted struct {
	OrderID  string  `json:"order_id"`
	Amount   float64 `json:"amount"`
	VendorID string  `json:"vendor_id,omitempty"`
	Currency string  `json:"currency,omitempty"`
}

// UnmarshalJSON accepts both key casings.
func (o *OrderCompleted) UnmarshalJSON(data []byte) error {
	var raw struct {
		OrderID       string  `json:"order_id"`
		OrderIDCamel  string  `json:"orderId"`
		Amount        float64 `json:"amount"`
		VendorID      string  `json:"vendor_id"`
		VendorIDCamel string  `json:"vendorId"`
		Currency      string  `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = OrderCompleted{
		OrderID:  cmp.Or(raw.OrderID, raw.OrderIDCamel),
		Amount:   raw.Amount,
		VendorID: cmp.Or(raw.VendorID, raw.VendorIDCamel),
		Currency: raw.Currency,
	}
	return nil
}

// OrderCompletedHandler counts completed orders and accumulates revenue in the
// window of the event's creation time.
func OrderCompletedHandler(agg Aggregator) dispatch.Handler {
	return dispatch.NewPayloadHandler(EventOrderCompleted,
		func(ctx context.Context, p OrderCompleted, ev *eventlog.Event) error {
			dims := map[string]string{}
			if p.VendorID != "" {
				dims["vendor_id"] = p.VendorID
			}
			if p.Currency != "" {
				dims["currency"] = p.Currency
			}

			if err := agg.Record(ctx, Sample{
				Name:       MetricOrdersCompleted,
				Value:      1,
				Kind:       Counter,
				Timestamp:  ev.CreatedAt,
				Dimensions: dims,
			}); err != nil {
				return fmt.Errorf("record %s: %w", MetricOrdersCompleted, err)
			}
			if err := agg.Record(ctx, Sample{
				Name:       MetricRevenue,
				Value:      p.Amount,
				Kind:       Counter,
				Timestamp:  ev.CreatedAt,
				Dimensions: dims,
			}); err != nil {
				return fmt.Errorf("record %s: %w", MetricRevenue, err)
			}
			return nil
		})
}

// SampleHandler records metric_sample payloads as-is. A sample without a
// timestamp is placed in the window of the event's creation time.
func SampleHandler(agg Aggregator) dispatch.Handler {
	return dispatch.NewPayloadHandler(EventMetricSample,
		func(ctx context.Context, s Sample, ev *eventlog.Event) error {
			if s.Timestamp.IsZero() {
				s.Timestamp = ev.CreatedAt
			}
			return agg.Record(ctx, s)
		})
}
