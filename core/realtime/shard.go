package realtime

import (
	"hash/fnv"
	"sync"
)

func shardFor(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

type connShard struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

type identityShard struct {
	mu  sync.RWMutex
	ids map[string]map[string]struct{}
}

type channelShard struct {
	mu      sync.RWMutex
	members map[string]map[string]*Connection
}

// channelIndex maps channel name to member connections, sharded by channel.
type channelIndex struct {
	shards []*channelShard
}

func newChannelIndex(n int) *channelIndex {
	idx := &channelIndex{shards: make([]*channelShard, n)}
	for i := range idx.shards {
		idx.shards[i] = &channelShard{members: make(map[string]map[string]*Connection)}
	}
	return idx
}

func (idx *channelIndex) shard(channel string) *channelShard {
	return idx.shards[shardFor(channel, len(idx.shards))]
}

func (idx *channelIndex) add(channel string, c *Connection) {
	s := idx.shard(channel)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.members[channel]
	if !ok {
		set = make(map[string]*Connection)
		s.members[channel] = set
	}
	set[c.id] = c
}

func (idx *channelIndex) remove(channel, connID string) {
	s := idx.shard(channel)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.members[channel]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(s.members, channel)
	}
}

func (idx *channelIndex) snapshot(channel string) []*Connection {
	s := idx.shard(channel)
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.members[channel]
	out := make([]*Connection, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

func (idx *channelIndex) size(channel string) int {
	s := idx.shard(channel)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members[channel])
}

func (idx *channelIndex) names() []string {
	var out []string
	for _, s := range idx.shards {
		s.mu.RLock()
		for name := range s.members {
			out = append(out, name)
		}
		s.mu.RUnlock()
	}
	return out
}
