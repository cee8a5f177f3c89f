package gateway

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/eventgateway/core/dispatch"
	"github.com/dmitrymomot/eventgateway/core/eventlog"
	"github.com/dmitrymomot/eventgateway/core/handler"
	"github.com/dmitrymomot/eventgateway/core/health"
	"github.com/dmitrymomot/eventgateway/core/metrics"
)

// Option configures a Gateway.
type Option func(*Gateway) error

// WithStore sets the event log backend. Defaults to an in-memory store.
func WithStore(s eventlog.Store) Option {
	return func(g *Gateway) error {
		if s == nil {
			return errors.New("store cannot be nil")
		}
		g.store = s
		return nil
	}
}

// WithAggregator sets the metrics backend. Defaults to an in-memory aggregator.
func WithAggregator(a metrics.Aggregator) Option {
	return func(g *Gateway) error {
		if a == nil {
			return errors.New("aggregator cannot be nil")
		}
		g.aggregator = a
		return nil
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}
		g.logger = l
		return nil
	}
}

// WithAlerter adds an operator alerter next to the log and channel alerters.
func WithAlerter(a dispatch.Alerter) Option {
	return func(g *Gateway) error {
		if a != nil {
			g.alerters = append(g.alerters, a)
		}
		return nil
	}
}

// WithHandlers registers extra side-effect handlers.
func WithHandlers(handlers ...dispatch.Handler) Option {
	return func(g *Gateway) error {
		g.handlers = append(g.handlers, handlers...)
		return nil
	}
}

// WithHealthcheck adds a readiness check, e.g. a database ping.
func WithHealthcheck(checks ...health.Check) Option {
	return func(g *Gateway) error {
		g.checks = append(g.checks, checks...)
		return nil
	}
}

// WithMiddleware wraps the HTTP API inside the built-in middlewares.
func WithMiddleware(mw ...handler.Middleware) Option {
	return func(g *Gateway) error {
		g.middlewares = append(g.middlewares, mw...)
		return nil
	}
}

// WithPrometheusRegistry sets the registry the gateway's collectors are
// registered on and /metrics serves.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(g *Gateway) error {
		if reg == nil {
			return errors.New("prometheus registry cannot be nil")
		}
		g.prom = reg
		return nil
	}
}
