package eventlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/eventgateway/core/logger"
)

// PublishParams describes an event submitted by a producer.
type PublishParams struct {
	Type          string          `json:"type"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
	RoutingKey    string          `json:"routing_key,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// PublisherStats provides publish counters.
type PublisherStats struct {
	Published int64
	Rejected  int64
}

// Publisher validates producer input and appends pending events.
// It never waits on delivery.
type Publisher struct {
	repo          PublisherRepository
	router        *Router
	maxRetries    int
	defaultSource string
	now           func() time.Time
	logger        *slog.Logger

	published atomic.Int64
	rejected  atomic.Int64
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithRouter sets the type -> channel routing table.
func WithRouter(r *Router) PublisherOption {
	return func(p *Publisher) {
		if r != nil {
			p.router = r
		}
	}
}

// WithMaxRetries sets the retry budget stamped on new events.
func WithMaxRetries(n int) PublisherOption {
	return func(p *Publisher) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithDefaultSource sets the producer name used when none is given.
func WithDefaultSource(source string) PublisherOption {
	return func(p *Publisher) {
		if source != "" {
			p.defaultSource = source
		}
	}
}

// WithPublisherClock overrides the time source.
func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// WithPublisherLogger sets the logger.
func WithPublisherLogger(l *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPublisher creates a publisher over repo.
func NewPublisher(repo PublisherRepository, opts ...PublisherOption) (*Publisher, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	p := &Publisher{
		repo:          repo,
		router:        NewRouter(nil),
		maxRetries:    DefaultConfig().MaxRetries,
		defaultSource: DefaultConfig().DefaultSource,
		now:           time.Now,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewPublisherFromConfig creates a publisher from configuration.
// Additional options override config values.
func NewPublisherFromConfig(cfg Config, repo PublisherRepository, opts ...PublisherOption) (*Publisher, error) {
	allOpts := append([]PublisherOption{
		WithMaxRetries(cfg.MaxRetries),
		WithDefaultSource(cfg.DefaultSource),
		WithRouter(NewRouter(cfg.Routes)),
	}, opts...)
	return NewPublisher(repo, allOpts...)
}

// Router returns the routing table used to resolve channels.
func (p *Publisher) Router() *Router { return p.router }

// Publish appends a pending event and returns its ID.
func (p *Publisher) Publish(ctx context.Context, params PublishParams) (uuid.UUID, error) {
	ev, err := p.build(params)
	if err != nil {
		p.rejected.Add(1)
		return uuid.Nil, err
	}

	if err := p.repo.Append(ctx, ev); err != nil {
		p.rejected.Add(1)
		return uuid.Nil, fmt.Errorf("append event %q: %w", ev.Type, err)
	}

	p.published.Add(1)
	p.logger.DebugContext(ctx, "event published",
		logger.EventID(ev.ID),
		logger.EventType(ev.Type),
		logger.CorrelationID(ev.CorrelationID),
		slog.Any("channels", ev.Channels),
	)
	return ev.ID, nil
}

// Stats returns publish counters.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Published: p.published.Load(),
		Rejected:  p.rejected.Load(),
	}
}

func (p *Publisher) build(params PublishParams) (*Event, error) {
	typ := strings.TrimSpace(params.Type)
	if typ == "" {
		return nil, ErrEmptyType
	}

	payload := bytes.TrimSpace(params.Payload)
	if len(payload) == 0 {
		payload = []byte("null")
	}
	if !json.Valid(payload) {
		return nil, ErrInvalidPayload
	}

	source := params.SourceService
	if source == "" {
		source = p.defaultSource
	}

	now := p.now()
	return &Event{
		ID:            uuid.New(),
		Type:          typ,
		SourceService: source,
		Payload:       json.RawMessage(bytes.Clone(payload)),
		RoutingKey:    params.RoutingKey,
		Channels:      p.router.Resolve(typ, params.RoutingKey),
		CorrelationID: params.CorrelationID,
		Status:        StatusPending,
		MaxRetries:    p.maxRetries,
		AvailableAt:   now,
		CreatedAt:     now,
	}, nil
}
