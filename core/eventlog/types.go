package eventlog

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status tracks an event through dispatch.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further dispatch will happen without operator action.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Event is a durable record of a business event awaiting or past fan-out.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	Sequence      int64           `json:"sequence"`
	Type          string          `json:"type"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	RoutingKey    string          `json:"routing_key"`
	Channels      []string        `json:"channels"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Status        Status          `json:"status"`
	RetryCount    int             `json:"retry_count"`
	MaxRetries    int             `json:"max_retries"`
	AvailableAt   time.Time       `json:"available_at"`
	LockedUntil   *time.Time      `json:"locked_until,omitempty"`
	LockedBy      *uuid.UUID      `json:"locked_by,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

// Clone returns a deep copy safe to hand out of a store.
func (e *Event) Clone() *Event {
	c := *e
	c.Payload = slices.Clone(e.Payload)
	c.Channels = slices.Clone(e.Channels)
	if e.LockedUntil != nil {
		t := *e.LockedUntil
		c.LockedUntil = &t
	}
	if e.LockedBy != nil {
		id := *e.LockedBy
		c.LockedBy = &id
	}
	if e.ProcessedAt != nil {
		t := *e.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Status        Status
	Type          string
	CorrelationID string
	Limit         int
}

// Match reports whether e satisfies the filter.
func (f Filter) Match(e *Event) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.CorrelationID != "" && e.CorrelationID != f.CorrelationID {
		return false
	}
	return true
}
