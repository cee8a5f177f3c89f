package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/eventgateway/core/dispatch"
	"github.com/dmitrymomot/eventgateway/core/eventlog"
	"github.com/dmitrymomot/eventgateway/core/handler"
	"github.com/dmitrymomot/eventgateway/core/health"
	"github.com/dmitrymomot/eventgateway/core/httpapi"
	"github.com/dmitrymomot/eventgateway/core/liveness"
	"github.com/dmitrymomot/eventgateway/core/logger"
	"github.com/dmitrymomot/eventgateway/core/metrics"
	"github.com/dmitrymomot/eventgateway/core/realtime"
	"github.com/dmitrymomot/eventgateway/core/server"
	"github.com/dmitrymomot/eventgateway/core/telemetry"
	"github.com/dmitrymomot/eventgateway/core/wsconn"
	"github.com/dmitrymomot/eventgateway/integration/alert/postmark"
	"github.com/dmitrymomot/eventgateway/middleware"
)

// Gateway wires the registry, broker, event log, dispatcher, metrics, liveness
// monitor and HTTP surface into one process.
type Gateway struct {
	config Config
	logger *slog.Logger

	registry   *realtime.Registry
	broker     *realtime.Broker
	store      eventlog.Store
	aggregator metrics.Aggregator
	publisher  *eventlog.Publisher
	reaper     *eventlog.Reaper
	dispatcher *dispatch.Dispatcher
	monitor    *liveness.Monitor
	websocket  *wsconn.Handler
	server     *server.Server
	prom       *prometheus.Registry
	handler    http.Handler

	handlers    []dispatch.Handler
	alerters    []dispatch.Alerter
	checks      []health.Check
	middlewares []handler.Middleware

	running atomic.Bool
}

// New builds a gateway from cfg. Unset backends default to in-memory ones.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		config: cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}

	if g.store == nil {
		g.store = eventlog.NewMemoryStore()
	}
	if g.aggregator == nil {
		g.aggregator = metrics.NewMemoryAggregatorFromConfig(cfg.Metrics)
	}
	if g.prom == nil {
		g.prom = prometheus.NewRegistry()
	}

	g.registry = realtime.NewRegistryFromConfig(cfg.Realtime,
		realtime.WithLogger(g.logger.With(logger.Component("registry"))))
	g.broker = realtime.NewBroker(g.registry,
		realtime.WithBrokerLogger(g.logger.With(logger.Component("broker"))))

	var err error
	g.publisher, err = eventlog.NewPublisherFromConfig(cfg.EventLog, g.store,
		eventlog.WithPublisherLogger(g.logger.With(logger.Component("publisher"))))
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}
	g.reaper, err = eventlog.NewReaperFromConfig(cfg.EventLog, g.store,
		eventlog.WithReaperLogger(g.logger.With(logger.Component("reaper"))))
	if err != nil {
		return nil, fmt.Errorf("reaper: %w", err)
	}

	alerter, err := g.buildAlerter()
	if err != nil {
		return nil, err
	}
	g.dispatcher, err = dispatch.NewFromConfig(cfg.Dispatch, g.store, g.broker,
		dispatch.WithAlerter(alerter),
		dispatch.WithHandlers(metrics.OrderCompletedHandler(g.aggregator), metrics.SampleHandler(g.aggregator)),
		dispatch.WithHandlers(g.handlers...),
		dispatch.WithLogger(g.logger.With(logger.Component("dispatcher"))),
	)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	g.monitor, err = liveness.NewFromConfig(cfg.Liveness, g.registry, g.broker,
		liveness.WithLogger(g.logger.With(logger.Component("liveness"))))
	if err != nil {
		return nil, fmt.Errorf("liveness monitor: %w", err)
	}

	g.websocket = wsconn.NewHandlerFromConfig(cfg.WebSocket, g.registry, g.broker,
		wsconn.WithLogger(g.logger.With(logger.Component("websocket"))))

	g.server, err = server.NewFromConfig(cfg.Server,
		server.WithLogger(g.logger.With(logger.Component("server"))))
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	if err := g.registerCollectors(); err != nil {
		return nil, err
	}
	g.handler = g.buildHandler()

	return g, nil
}

func (g *Gateway) buildAlerter() (dispatch.Alerter, error) {
	alerters := []dispatch.Alerter{
		dispatch.NewLogAlerter(g.logger.With(logger.Component("alerts"))),
	}
	if g.config.Dispatch.AlertChannel != "" {
		alerters = append(alerters, dispatch.NewChannelAlerter(g.broker, g.config.Dispatch.AlertChannel))
	}
	if g.config.Alerts.Enabled() {
		mail, err := postmark.New(g.config.Alerts)
		if err != nil {
			return nil, fmt.Errorf("postmark alerter: %w", err)
		}
		alerters = append(alerters, mail)
	}
	return dispatch.MultiAlerter(append(alerters, g.alerters...)...), nil
}

func (g *Gateway) registerCollectors() error {
	collector := telemetry.NewCollector(
		telemetry.WithRegistry(g.registry),
		telemetry.WithBroker(g.broker),
		telemetry.WithPublisher(g.publisher),
		telemetry.WithReaper(g.reaper),
		telemetry.WithDispatcher(g.dispatcher),
		telemetry.WithMonitor(g.monitor),
	)
	if err := g.prom.Register(collector); err != nil {
		return fmt.Errorf("register collector: %w", err)
	}
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := g.prom.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return fmt.Errorf("register runtime collector: %w", err)
			}
		}
	}
	return nil
}

func (g *Gateway) buildHandler() http.Handler {
	httpMetrics := telemetry.NewHTTPMetrics(g.prom)

	mws := []handler.Middleware{
		middleware.RequestID(),
		middleware.ClientIP(),
		middleware.LoggingWithConfig(middleware.LoggingConfig{
			Logger: g.logger,
			Skip: func(r *http.Request) bool {
				return strings.HasPrefix(r.URL.Path, "/health/") || r.URL.Path == "/metrics"
			},
		}),
		middleware.CORSWithConfig(g.config.CORS),
	}
	mws = append(mws, g.middlewares...)
	// Innermost, so it observes r.Pattern set by the mux.
	mws = append(mws, httpMetrics.Middleware())

	checks := append([]health.Check{
		g.dispatcher.Healthcheck,
		g.reaper.Healthcheck,
		g.monitor.Healthcheck,
	}, g.checks...)

	return httpapi.New(
		httpapi.WithPublisher(g),
		httpapi.WithEventReader(g.store),
		httpapi.WithReplayer(g),
		httpapi.WithMetrics(g.aggregator),
		httpapi.WithWebSocket(g.websocket),
		httpapi.WithPrometheus(telemetry.Handler(g.prom)),
		httpapi.WithReadiness(checks...),
		httpapi.WithIdentityChannelPrefix(g.registry.IdentityChannelPrefix()),
		httpapi.WithMiddleware(mws...),
		httpapi.WithLogger(g.logger.With(logger.Component("api"))),
	).Handler()
}

// Publish appends an event and wakes the dispatcher. It never waits on delivery.
func (g *Gateway) Publish(ctx context.Context, params eventlog.PublishParams) (uuid.UUID, error) {
	id, err := g.publisher.Publish(ctx, params)
	if err != nil {
		return uuid.Nil, err
	}
	g.dispatcher.Notify()
	return id, nil
}

// SendToIdentity publishes an event routed to every connection of identity.
func (g *Gateway) SendToIdentity(ctx context.Context, identity, eventType string, payload json.RawMessage) (uuid.UUID, error) {
	if identity == "" {
		return uuid.Nil, ErrEmptyIdentity
	}
	return g.Publish(ctx, eventlog.PublishParams{
		Type:       eventType,
		Payload:    payload,
		RoutingKey: g.registry.IdentityChannel(identity),
	})
}

// GetMetrics returns the buckets of name within [from, to] matching dims.
func (g *Gateway) GetMetrics(ctx context.Context, name string, from, to time.Time, dims map[string]string) ([]metrics.Bucket, error) {
	return g.aggregator.Query(ctx, metrics.Query{Name: name, From: from, To: to, Dimensions: dims})
}

// Get returns one event from the log.
func (g *Gateway) Get(ctx context.Context, id uuid.UUID) (*eventlog.Event, error) {
	return g.store.Get(ctx, id)
}

// List returns events matching filter.
func (g *Gateway) List(ctx context.Context, filter eventlog.Filter) ([]*eventlog.Event, error) {
	return g.store.List(ctx, filter)
}

// Replay re-queues a failed event and wakes the dispatcher.
func (g *Gateway) Replay(ctx context.Context, id uuid.UUID) error {
	if err := g.store.Replay(ctx, id); err != nil {
		return err
	}
	g.logger.InfoContext(ctx, "event replayed", logger.EventID(id))
	g.dispatcher.Notify()
	return nil
}

// Handler returns the HTTP API including the WebSocket endpoint.
func (g *Gateway) Handler() http.Handler { return g.handler }

// Registry exposes the connection registry.
func (g *Gateway) Registry() *realtime.Registry { return g.registry }

// Broker exposes the channel broker.
func (g *Gateway) Broker() *realtime.Broker { return g.broker }

// Dispatcher exposes the event dispatcher, e.g. for DrainOnce in tests.
func (g *Gateway) Dispatcher() *dispatch.Dispatcher { return g.dispatcher }

// Monitor exposes the liveness monitor.
func (g *Gateway) Monitor() *liveness.Monitor { return g.monitor }

// Server exposes the HTTP server.
func (g *Gateway) Server() *server.Server { return g.server }

// Prometheus returns the registry served on /metrics.
func (g *Gateway) Prometheus() *prometheus.Registry { return g.prom }

// Run starts every background component and the HTTP server, and blocks until
// ctx is cancelled or one of them fails. Remaining connections are closed on
// return.
func (g *Gateway) Run(ctx context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer g.running.Store(false)

	g.logger.InfoContext(ctx, "starting gateway",
		slog.String("app", g.config.AppName),
		slog.String("env", g.config.Env),
		slog.String("addr", g.config.Server.Addr),
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(g.reaper.Run(egCtx))
	eg.Go(g.dispatcher.Run(egCtx))
	eg.Go(g.monitor.Run(egCtx))
	eg.Go(g.server.Run(egCtx, g.handler))

	err := eg.Wait()
	g.registry.Close()
	g.logger.InfoContext(ctx, "gateway stopped", logger.Error(err))
	return err
}

// Healthcheck joins the failures of every component and extra check.
func (g *Gateway) Healthcheck(ctx context.Context) error {
	checks := append([]health.Check{
		g.server.Healthcheck,
		g.dispatcher.Healthcheck,
		g.reaper.Healthcheck,
		g.monitor.Healthcheck,
	}, g.checks...)

	var errs []error
	for _, check := range checks {
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrHealthcheckFailed}, errs...)...)
	}
	return nil
}
