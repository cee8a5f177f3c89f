package realtime

import (
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/eventgateway/core/logger"
)

// Registry owns live connections, the identity index and the channel index.
// Connection and identity maps are split into lock shards keyed by fnv hash.
type Registry struct {
	shards           int
	broadcastChannel string
	identityPrefix   string
	logger           *slog.Logger
	now              func() time.Time
	newID            func() string
	epoch            time.Time

	conns      []*connShard
	identities []*identityShard
	channels   *channelIndex

	active       atomic.Int64
	connected    atomic.Int64
	disconnected atomic.Int64
}

// Stats is a point-in-time view of registry counters.
type Stats struct {
	Active       int64
	Connected    int64
	Disconnected int64
	Channels     int
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	cfg := DefaultConfig()
	r := &Registry{
		shards:           cfg.Shards,
		broadcastChannel: cfg.BroadcastChannel,
		identityPrefix:   cfg.IdentityChannelPrefix,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:              time.Now,
		newID:            uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.epoch = r.now()
	r.conns = make([]*connShard, r.shards)
	r.identities = make([]*identityShard, r.shards)
	for i := range r.shards {
		r.conns[i] = &connShard{conns: make(map[string]*Connection)}
		r.identities[i] = &identityShard{ids: make(map[string]map[string]struct{})}
	}
	r.channels = newChannelIndex(r.shards)
	return r
}

// NewRegistryFromConfig creates a registry from Config. Options override config values.
func NewRegistryFromConfig(cfg Config, opts ...Option) *Registry {
	base := []Option{
		WithShards(cfg.Shards),
		WithBroadcastChannel(cfg.BroadcastChannel),
		WithIdentityChannelPrefix(cfg.IdentityChannelPrefix),
	}
	return NewRegistry(append(base, opts...)...)
}

// BroadcastChannel returns the channel every connection is subscribed to.
func (r *Registry) BroadcastChannel() string { return r.broadcastChannel }

// IdentityChannelPrefix returns the prefix shared by all identity channels.
func (r *Registry) IdentityChannelPrefix() string { return r.identityPrefix }

// IdentityChannel returns the per-identity channel name.
func (r *Registry) IdentityChannel(identity string) string {
	return r.identityPrefix + identity
}

// Connect registers a new connection. Identity may be empty for anonymous clients
// and may hold any number of connections.
func (r *Registry) Connect(identity string, metadata map[string]string, sender Sender) (*Connection, error) {
	if sender == nil {
		return nil, ErrNilSender
	}

	c := &Connection{
		id:          r.newID(),
		identity:    identity,
		metadata:    maps.Clone(metadata),
		connectedAt: r.now(),
		sender:      sender,
		channels:    make(map[string]struct{}),
	}
	c.lastActivity.Store(r.elapsed())

	cs := r.connShard(c.id)
	cs.mu.Lock()
	cs.conns[c.id] = c
	cs.mu.Unlock()

	if identity != "" {
		is := r.identityShard(identity)
		is.mu.Lock()
		set, ok := is.ids[identity]
		if !ok {
			set = make(map[string]struct{})
			is.ids[identity] = set
		}
		set[c.id] = struct{}{}
		is.mu.Unlock()
	}

	if r.broadcastChannel != "" {
		_ = r.subscribe(c, r.broadcastChannel)
	}
	if identity != "" {
		_ = r.subscribe(c, r.IdentityChannel(identity))
	}

	r.active.Add(1)
	r.connected.Add(1)
	r.logger.Debug("connection registered",
		logger.ConnectionID(c.id),
		logger.Identity(identity),
	)
	return c, nil
}

// Disconnect removes the connection from every channel and the identity index
// before dropping it from the registry, so a channel never lists a connection
// that Get no longer returns. A second call for the same id returns ErrNotFound.
func (r *Registry) Disconnect(id string) error {
	cs := r.connShard(id)
	cs.mu.RLock()
	c, ok := cs.conns[id]
	cs.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return ErrNotFound
	}
	c.closed.Store(true)
	for ch := range c.channels {
		r.channels.remove(ch, c.id)
	}
	clear(c.channels)
	c.mu.Unlock()

	if c.identity != "" {
		is := r.identityShard(c.identity)
		is.mu.Lock()
		if set, ok := is.ids[c.identity]; ok {
			delete(set, c.id)
			if len(set) == 0 {
				delete(is.ids, c.identity)
			}
		}
		is.mu.Unlock()
	}

	cs.mu.Lock()
	delete(cs.conns, id)
	cs.mu.Unlock()

	r.active.Add(-1)
	r.disconnected.Add(1)

	if err := c.sender.Close(); err != nil {
		r.logger.Debug("close sender", logger.ConnectionID(id), logger.Error(err))
	}
	r.logger.Debug("connection removed",
		logger.ConnectionID(id),
		logger.Identity(c.identity),
	)
	return nil
}

// Get returns the live connection with the given id.
func (r *Registry) Get(id string) (*Connection, error) {
	cs := r.connShard(id)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	c, ok := cs.conns[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Touch records activity on the connection.
func (r *Registry) Touch(id string) error {
	c, err := r.Get(id)
	if err != nil {
		return err
	}
	r.touch(c)
	return nil
}

// LastActivity returns the time of the last recorded activity.
func (r *Registry) LastActivity(id string) (time.Time, error) {
	c, err := r.Get(id)
	if err != nil {
		return time.Time{}, err
	}
	return r.epoch.Add(time.Duration(c.lastActivity.Load())), nil
}

// ConnectionsOf returns the sorted ids of all connections held by identity.
func (r *Registry) ConnectionsOf(identity string) []string {
	is := r.identityShard(identity)
	is.mu.RLock()
	defer is.mu.RUnlock()
	return slices.Sorted(maps.Keys(is.ids[identity]))
}

// Stale returns ids of connections idle for longer than idle.
func (r *Registry) Stale(idle time.Duration) []string {
	cutoff := r.elapsed() - int64(idle)
	var out []string
	for _, cs := range r.conns {
		cs.mu.RLock()
		for id, c := range cs.conns {
			if c.lastActivity.Load() < cutoff {
				out = append(out, id)
			}
		}
		cs.mu.RUnlock()
	}
	return out
}

// Count returns the number of live connections.
func (r *Registry) Count() int { return int(r.active.Load()) }

// Stats returns registry counters.
func (r *Registry) Stats() Stats {
	return Stats{
		Active:       r.active.Load(),
		Connected:    r.connected.Load(),
		Disconnected: r.disconnected.Load(),
		Channels:     len(r.channels.names()),
	}
}

// Close disconnects every live connection.
func (r *Registry) Close() {
	var ids []string
	for _, cs := range r.conns {
		cs.mu.RLock()
		for id := range cs.conns {
			ids = append(ids, id)
		}
		cs.mu.RUnlock()
	}
	for _, id := range ids {
		if err := r.Disconnect(id); err != nil && !errors.Is(err, ErrNotFound) {
			r.logger.Warn("disconnect on close", logger.ConnectionID(id), logger.Error(err))
		}
	}
}

func (r *Registry) subscribe(c *Connection, channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrNotFound
	}
	if _, ok := c.channels[channel]; ok {
		return nil
	}
	c.channels[channel] = struct{}{}
	r.channels.add(channel, c)
	return nil
}

func (r *Registry) unsubscribe(c *Connection, channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrNotFound
	}
	if _, ok := c.channels[channel]; !ok {
		return nil
	}
	delete(c.channels, channel)
	r.channels.remove(channel, c.id)
	return nil
}

// touch never moves last activity backwards.
func (r *Registry) touch(c *Connection) {
	now := r.elapsed()
	for {
		prev := c.lastActivity.Load()
		if prev >= now || c.lastActivity.CompareAndSwap(prev, now) {
			return
		}
	}
}

// elapsed uses the monotonic clock reading when the time source provides one.
func (r *Registry) elapsed() int64 {
	return int64(r.now().Sub(r.epoch))
}

func (r *Registry) connShard(id string) *connShard {
	return r.conns[shardFor(id, r.shards)]
}

func (r *Registry) identityShard(identity string) *identityShard {
	return r.identities[shardFor(identity, r.shards)]
}
