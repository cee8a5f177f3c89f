package dispatch

import (
	"log/slog"
	"time"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithBatchSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

func WithPollInterval(i time.Duration) Option {
	return func(d *Dispatcher) {
		if i > 0 {
			d.pollInterval = i
		}
	}
}

func WithLockTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.lockTimeout = t
		}
	}
}

func WithShutdownTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.shutdownTimeout = t
		}
	}
}

func WithBackoff(b Backoff) Option {
	return func(d *Dispatcher) {
		if b != nil {
			d.backoff = b
		}
	}
}

// WithAlerter sets who is told about events that exhausted their retries.
func WithAlerter(a Alerter) Option {
	return func(d *Dispatcher) {
		if a != nil {
			d.alerter = a
		}
	}
}

func WithHandlers(handlers ...Handler) Option {
	return func(d *Dispatcher) {
		for _, h := range handlers {
			d.register(h)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}
