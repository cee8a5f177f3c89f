package realtime

import (
	"log/slog"
	"time"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithShards sets the number of lock shards.
func WithShards(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.shards = n
		}
	}
}

// WithBroadcastChannel sets the channel every connection joins on connect.
// An empty name disables the auto-subscription.
func WithBroadcastChannel(name string) Option {
	return func(r *Registry) {
		r.broadcastChannel = name
	}
}

// WithIdentityChannelPrefix sets the prefix of per-identity channels.
func WithIdentityChannelPrefix(prefix string) Option {
	return func(r *Registry) {
		if prefix != "" {
			r.identityPrefix = prefix
		}
	}
}

// WithClock overrides the time source. Used by tests to simulate idleness.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides connection id generation.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBrokerLogger sets the broker logger.
func WithBrokerLogger(logger *slog.Logger) BrokerOption {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}
