package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/eventgateway/core/eventlog"
	"github.com/dmitrymomot/eventgateway/core/handler"
	"github.com/dmitrymomot/eventgateway/core/health"
	"github.com/dmitrymomot/eventgateway/core/metrics"
)

// Publisher accepts events from producers.
type Publisher interface {
	Publish(ctx context.Context, params eventlog.PublishParams) (uuid.UUID, error)
}

// EventReader serves the audit endpoints.
type EventReader interface {
	Get(ctx context.Context, id uuid.UUID) (*eventlog.Event, error)
	List(ctx context.Context, filter eventlog.Filter) ([]*eventlog.Event, error)
}

// Replayer re-queues failed events.
type Replayer interface {
	Replay(ctx context.Context, id uuid.UUID) error
}

// MetricsReader answers aggregate queries.
type MetricsReader interface {
	Query(ctx context.Context, q metrics.Query) ([]metrics.Bucket, error)
}

const defaultMaxBodyBytes = 1 << 20

// API is the gateway's HTTP surface.
type API struct {
	publisher      Publisher
	events         EventReader
	replayer       Replayer
	metrics        MetricsReader
	websocket      http.Handler
	metricsHandler http.Handler
	checks         []health.Check
	middlewares    []handler.Middleware
	identityPrefix string
	maxBodyBytes   int64
	logger         *slog.Logger
}

// Option configures the API.
type Option func(*API)

func WithPublisher(p Publisher) Option       { return func(a *API) { a.publisher = p } }
func WithEventReader(r EventReader) Option   { return func(a *API) { a.events = r } }
func WithReplayer(r Replayer) Option         { return func(a *API) { a.replayer = r } }
func WithMetrics(m MetricsReader) Option     { return func(a *API) { a.metrics = m } }
func WithWebSocket(h http.Handler) Option    { return func(a *API) { a.websocket = h } }
func WithPrometheus(h http.Handler) Option   { return func(a *API) { a.metricsHandler = h } }
func WithReadiness(c ...health.Check) Option { return func(a *API) { a.checks = append(a.checks, c...) } }

// WithMiddleware wraps the whole route table, first one outermost.
func WithMiddleware(mw ...handler.Middleware) Option {
	return func(a *API) { a.middlewares = append(a.middlewares, mw...) }
}

// WithIdentityChannelPrefix sets the prefix used to route identity events.
func WithIdentityChannelPrefix(prefix string) Option {
	return func(a *API) {
		if prefix != "" {
			a.identityPrefix = prefix
		}
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBodyBytes = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates the API. Routes whose dependency is not configured are not mounted.
func New(opts ...Option) *API {
	a := &API{
		identityPrefix: "identity:",
		maxBodyBytes:   defaultMaxBodyBytes,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register mounts all configured routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.Handle("GET /health/live", a.adapt(health.Liveness))
	mux.Handle("GET /health/ready", a.adapt(health.Readiness(a.logger, a.checks...)))

	if a.publisher != nil {
		mux.Handle("POST /v1/events", a.adapt(a.publishEvent))
		mux.Handle("POST /v1/identities/{identity}/events", a.adapt(a.publishIdentityEvent))
	}
	if a.events != nil {
		mux.Handle("GET /v1/events", a.adapt(a.listEvents))
		mux.Handle("GET /v1/events/{id}", a.adapt(a.getEvent))
	}
	if a.replayer != nil {
		mux.Handle("POST /v1/events/{id}/replay", a.adapt(a.replayEvent))
	}
	if a.metrics != nil {
		mux.Handle("GET /v1/metrics/{name}", a.adapt(a.queryMetrics))
	}
	if a.websocket != nil {
		mux.Handle("GET /ws", a.websocket)
	}
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}
}

// Handler returns a new mux with all routes and middlewares applied.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.Register(mux)
	return handler.Chain(mux, a.middlewares...)
}

func (a *API) adapt(fn handler.Func) http.Handler {
	return handler.Adapt(fn, a.handleError)
}
