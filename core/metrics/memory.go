package metrics

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

type bucketKey struct {
	window int64
	dims   string
}

type memBucket struct {
	name   string
	kind   Kind
	window time.Time
	dims   map[string]string

	// float64 bits
	value atomic.Uint64
	count atomic.Int64
	// unix nanos of the last write
	touched atomic.Int64
}

func (b *memBucket) add(delta float64) {
	for {
		old := b.value.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if b.value.CompareAndSwap(old, next) {
			return
		}
	}
}

func (b *memBucket) snapshot() Bucket {
	return Bucket{
		Name:       b.name,
		Kind:       b.kind,
		Window:     b.window,
		Dimensions: maps.Clone(b.dims),
		Value:      math.Float64frombits(b.value.Load()),
		Count:      b.count.Load(),
	}
}

// MemoryAggregator keeps buckets in process memory. Writers share the read lock
// and update values with atomics; only bucket creation and retention sweeps
// take the write lock.
type MemoryAggregator struct {
	window    time.Duration
	retention time.Duration
	now       func() time.Time

	// window start (unix nanos) of the last retention sweep
	lastPrune atomic.Int64

	mu      sync.RWMutex
	buckets map[string]map[bucketKey]*memBucket
}

// MemoryOption configures a MemoryAggregator.
type MemoryOption func(*MemoryAggregator)

// WithWindow sets the bucket window size.
func WithWindow(d time.Duration) MemoryOption {
	return func(m *MemoryAggregator) {
		if d > 0 {
			m.window = d
		}
	}
}

// WithRetention drops buckets that have not been written for longer than d.
// Zero keeps buckets forever.
func WithRetention(d time.Duration) MemoryOption {
	return func(m *MemoryAggregator) {
		if d >= 0 {
			m.retention = d
		}
	}
}

// WithClock sets the time source used for samples without a timestamp.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryAggregator) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryAggregator creates an empty aggregator.
func NewMemoryAggregator(opts ...MemoryOption) *MemoryAggregator {
	m := &MemoryAggregator{
		window:    DefaultConfig().WindowSize,
		retention: DefaultConfig().Retention,
		now:       time.Now,
		buckets:   make(map[string]map[bucketKey]*memBucket),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewMemoryAggregatorFromConfig creates an aggregator from Config. Options override config values.
func NewMemoryAggregatorFromConfig(cfg Config, opts ...MemoryOption) *MemoryAggregator {
	base := []MemoryOption{WithWindow(cfg.WindowSize), WithRetention(cfg.Retention)}
	return NewMemoryAggregator(append(base, opts...)...)
}

// WindowSize returns the configured bucket width.
func (m *MemoryAggregator) WindowSize() time.Duration { return m.window }

// Record adds the sample to its bucket, creating the bucket on first use.
func (m *MemoryAggregator) Record(_ context.Context, s Sample) error {
	if err := s.Validate(); err != nil {
		return err
	}
	ts := s.Timestamp
	if ts.IsZero() {
		ts = m.now()
	}
	m.prune()

	window := Window(ts, m.window)
	key := bucketKey{window: window.UnixNano(), dims: DimensionKey(s.Dimensions)}

	m.mu.RLock()
	b := m.buckets[s.Name][key]
	if b != nil {
		defer m.mu.RUnlock()
		return m.apply(b, s)
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apply(m.create(s, window, key), s)
}

// apply runs with m.mu held so a sweep cannot drop the bucket mid-write.
func (m *MemoryAggregator) apply(b *memBucket, s Sample) error {
	if b.kind != s.Kind {
		return fmt.Errorf("%w: %s is %s", ErrKindMismatch, s.Name, b.kind)
	}

	switch s.Kind {
	case Counter:
		b.add(s.Value)
	case Gauge:
		b.value.Store(math.Float64bits(s.Value))
	}
	b.count.Add(1)
	b.touched.Store(m.now().UnixNano())
	return nil
}

// Query returns matching buckets ordered by window.
func (m *MemoryAggregator) Query(_ context.Context, q Query) ([]Bucket, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	out := make([]Bucket, 0)
	for _, b := range m.buckets[q.Name] {
		if q.Contains(b.window) && q.MatchDimensions(b.dims) && !m.expired(b) {
			out = append(out, b.snapshot())
		}
	}
	m.mu.RUnlock()

	SortBuckets(out)
	return out, nil
}

func (m *MemoryAggregator) expired(b *memBucket) bool {
	return m.retention > 0 && m.now().UnixNano()-b.touched.Load() > int64(m.retention)
}

// prune sweeps expired buckets at most once per window.
func (m *MemoryAggregator) prune() {
	if m.retention <= 0 {
		return
	}
	current := Window(m.now(), m.window).UnixNano()
	last := m.lastPrune.Load()
	if current <= last || !m.lastPrune.CompareAndSwap(last, current) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for name, byKey := range m.buckets {
		for key, b := range byKey {
			if m.expired(b) {
				delete(byKey, key)
			}
		}
		if len(byKey) == 0 {
			delete(m.buckets, name)
		}
	}
}

// Len returns the number of buckets held in memory.
func (m *MemoryAggregator) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int
	for _, byKey := range m.buckets {
		n += len(byKey)
	}
	return n
}

// create must be called with m.mu held for writing.
func (m *MemoryAggregator) create(s Sample, window time.Time, key bucketKey) *memBucket {
	byKey, ok := m.buckets[s.Name]
	if !ok {
		byKey = make(map[bucketKey]*memBucket)
		m.buckets[s.Name] = byKey
	}
	if b, ok := byKey[key]; ok {
		return b
	}
	b := &memBucket{
		name:   s.Name,
		kind:   s.Kind,
		window: window,
		dims:   maps.Clone(s.Dimensions),
	}
	byKey[key] = b
	return b
}
