package realtime

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/dmitrymomot/eventgateway/core/logger"
)

// Broker fans frames out to channel members. It shares the channel index
// owned by the Registry and holds no connection state of its own.
type Broker struct {
	registry *Registry
	logger   *slog.Logger

	multicasts atomic.Int64
	delivered  atomic.Int64
	failed     atomic.Int64
	evicted    atomic.Int64
}

// BrokerStats is a point-in-time view of broker counters.
type BrokerStats struct {
	Multicasts int64
	Delivered  int64
	Failed     int64
	Evicted    int64
}

// NewBroker creates a broker over the registry's channel index.
func NewBroker(registry *Registry, opts ...BrokerOption) *Broker {
	b := &Broker{
		registry: registry,
		logger:   registry.logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe adds the connection to channel. Subscribing twice is a no-op.
func (b *Broker) Subscribe(connID, channel string) error {
	if err := validChannel(channel); err != nil {
		return err
	}
	c, err := b.registry.Get(connID)
	if err != nil {
		return err
	}
	return b.registry.subscribe(c, channel)
}

// Unsubscribe removes the connection from channel. Unknown memberships are a no-op.
func (b *Broker) Unsubscribe(connID, channel string) error {
	if err := validChannel(channel); err != nil {
		return err
	}
	c, err := b.registry.Get(connID)
	if err != nil {
		return err
	}
	return b.registry.unsubscribe(c, channel)
}

// Multicast delivers f to every member of channel and returns the number of
// successful deliveries. Connections whose send fails are evicted once the pass
// completes; the error is only returned for context cancellation.
func (b *Broker) Multicast(ctx context.Context, channel string, f Frame) (int, error) {
	b.multicasts.Add(1)
	members := b.registry.channels.snapshot(channel)
	if len(members) == 0 {
		return 0, nil
	}

	if f.Channel == "" {
		f.Channel = channel
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = b.registry.now()
	}

	var (
		delivered int
		failures  []*DeliveryError
		ctxErr    error
	)
	for _, c := range members {
		if ctxErr = ctx.Err(); ctxErr != nil {
			break
		}
		if c.closed.Load() {
			continue
		}
		if err := c.sender.Send(ctx, f); err != nil {
			if c.closed.Load() {
				// disconnected mid-pass
				continue
			}
			failures = append(failures, &DeliveryError{ConnectionID: c.id, Channel: channel, Err: err})
			continue
		}
		delivered++
		c.sent.Add(1)
		if !f.IsHeartbeat() {
			b.registry.touch(c)
		}
	}

	b.delivered.Add(int64(delivered))
	b.failed.Add(int64(len(failures)))
	for _, de := range failures {
		b.logger.WarnContext(ctx, "delivery failed, evicting connection",
			logger.ConnectionID(de.ConnectionID),
			logger.Channel(de.Channel),
			logger.Error(de),
		)
		if err := b.registry.Disconnect(de.ConnectionID); err == nil {
			b.evicted.Add(1)
		} else if !errors.Is(err, ErrNotFound) {
			b.logger.ErrorContext(ctx, "evict connection", logger.ConnectionID(de.ConnectionID), logger.Error(err))
		}
	}

	return delivered, ctxErr
}

// SendToIdentity delivers f to every connection of identity.
func (b *Broker) SendToIdentity(ctx context.Context, identity string, f Frame) (int, error) {
	if identity == "" {
		return 0, nil
	}
	return b.Multicast(ctx, b.registry.IdentityChannel(identity), f)
}

// Broadcast delivers f to every connection.
func (b *Broker) Broadcast(ctx context.Context, f Frame) (int, error) {
	if b.registry.broadcastChannel == "" {
		return 0, nil
	}
	return b.Multicast(ctx, b.registry.broadcastChannel, f)
}

// Members returns the sorted ids of connections subscribed to channel.
func (b *Broker) Members(channel string) []string {
	members := b.registry.channels.snapshot(channel)
	ids := make([]string, 0, len(members))
	for _, c := range members {
		if c.closed.Load() {
			continue
		}
		ids = append(ids, c.id)
	}
	slices.Sort(ids)
	return ids
}

// Subscribers returns the member count of channel.
func (b *Broker) Subscribers(channel string) int {
	return b.registry.channels.size(channel)
}

// Channels returns the sorted names of channels with at least one member.
func (b *Broker) Channels() []string {
	names := b.registry.channels.names()
	slices.Sort(names)
	return names
}

// Stats returns broker counters.
func (b *Broker) Stats() BrokerStats {
	return BrokerStats{
		Multicasts: b.multicasts.Load(),
		Delivered:  b.delivered.Load(),
		Failed:     b.failed.Load(),
		Evicted:    b.evicted.Load(),
	}
}

func validChannel(channel string) error {
	if strings.TrimSpace(channel) == "" || strings.ContainsAny(channel, ", \t\n") {
		return ErrInvalidChannel
	}
	return nil
}
