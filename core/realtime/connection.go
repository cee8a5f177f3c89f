package realtime

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Connection is a live subscriber owned by the Registry.
type Connection struct {
	id          string
	identity    string
	metadata    map[string]string
	connectedAt time.Time
	sender      Sender

	// nanoseconds since the registry epoch
	lastActivity atomic.Int64
	sent         atomic.Int64
	closed       atomic.Bool

	// guards channels; always taken before a channel shard lock
	mu       sync.Mutex
	channels map[string]struct{}
}

func (c *Connection) ID() string             { return c.id }
func (c *Connection) Identity() string       { return c.identity }
func (c *Connection) ConnectedAt() time.Time { return c.connectedAt }
func (c *Connection) Closed() bool           { return c.closed.Load() }

// Sent returns the number of frames handed to the sender.
func (c *Connection) Sent() int64 { return c.sent.Load() }

// Metadata returns a copy of the metadata supplied at connect.
func (c *Connection) Metadata() map[string]string {
	return maps.Clone(c.metadata)
}

// Channels returns the sorted channel names the connection is subscribed to.
func (c *Connection) Channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.channels))
}

// Subscribed reports whether the connection is a member of channel.
func (c *Connection) Subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.channels[channel]
	return ok
}
