package liveness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/eventgateway/core/logger"
	"github.com/dmitrymomot/eventgateway/core/realtime"
)

// Registry is the connection registry surface the monitor needs.
type Registry interface {
	Stale(idle time.Duration) []string
	Disconnect(id string) error
}

// Broadcaster delivers a frame to every connection.
type Broadcaster interface {
	Broadcast(ctx context.Context, f realtime.Frame) (int, error)
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Evicted    int
	Heartbeats int
}

// Stats provides observability for the monitor.
type Stats struct {
	Sweeps     int64
	Evicted    int64
	Heartbeats int64
	IsRunning  bool
	LastSweep  time.Time
}

// Monitor evicts idle connections and sends heartbeats on a fixed interval.
type Monitor struct {
	registry    Registry
	broadcaster Broadcaster
	interval    time.Duration
	timeout     time.Duration
	now         func() time.Time
	logger      *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running atomic.Bool

	sweeps     atomic.Int64
	evicted    atomic.Int64
	heartbeats atomic.Int64
	lastSweep  atomic.Int64
}

// Option configures a Monitor.
type Option func(*Monitor)

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithTimeout sets how long a connection may stay idle before eviction.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a monitor.
func New(registry Registry, broadcaster Broadcaster, opts ...Option) (*Monitor, error) {
	if registry == nil {
		return nil, ErrRegistryNil
	}
	if broadcaster == nil {
		return nil, ErrBroadcasterNil
	}
	cfg := DefaultConfig()
	m := &Monitor{
		registry:    registry,
		broadcaster: broadcaster,
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		now:         time.Now,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NewFromConfig creates a monitor from configuration.
func NewFromConfig(cfg Config, registry Registry, broadcaster Broadcaster, opts ...Option) (*Monitor, error) {
	allOpts := append([]Option{
		WithInterval(cfg.Interval),
		WithTimeout(cfg.Timeout),
	}, opts...)
	return New(registry, broadcaster, allOpts...)
}

// SweepOnce evicts connections idle longer than the timeout, then multicasts a
// heartbeat to the broadcast channel.
func (m *Monitor) SweepOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	for _, id := range m.registry.Stale(m.timeout) {
		err := m.registry.Disconnect(id)
		switch {
		case err == nil:
			res.Evicted++
			m.logger.InfoContext(ctx, "evicted idle connection",
				logger.ConnectionID(id),
				slog.Duration("idle_timeout", m.timeout))
		case errors.Is(err, realtime.ErrNotFound):
			// already gone
		default:
			m.logger.ErrorContext(ctx, "evict idle connection", logger.ConnectionID(id), logger.Error(err))
		}
	}

	n, err := m.broadcaster.Broadcast(ctx, realtime.Frame{
		Type:      realtime.FrameHeartbeat,
		Timestamp: m.now(),
	})
	res.Heartbeats = n

	m.sweeps.Add(1)
	m.evicted.Add(int64(res.Evicted))
	m.heartbeats.Add(int64(n))
	m.lastSweep.Store(m.now().UnixNano())
	return res, err
}

// Start sweeps every interval until ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.running.Store(true)
	defer m.running.Store(false)

	m.logger.InfoContext(runCtx, "liveness monitor started",
		slog.Duration("interval", m.interval),
		slog.Duration("timeout", m.timeout))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		case <-ticker.C:
			res, err := m.SweepOnce(runCtx)
			if err != nil && runCtx.Err() == nil {
				m.logger.WarnContext(runCtx, "heartbeat multicast failed", logger.Error(err))
			}
			if res.Evicted > 0 {
				m.logger.DebugContext(runCtx, "liveness sweep",
					logger.Count("evicted", res.Evicted),
					logger.Count("heartbeats", res.Heartbeats))
			}
		}
	}
}

// Stop cancels the sweep loop. A sweep in progress finishes on its own.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return ErrNotStarted
	}
	m.cancel()
	m.cancel = nil
	return nil
}

// Run provides errgroup compatibility.
func (m *Monitor) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- m.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = m.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// Stats returns monitor counters.
func (m *Monitor) Stats() Stats {
	var last time.Time
	if ns := m.lastSweep.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		Sweeps:     m.sweeps.Load(),
		Evicted:    m.evicted.Load(),
		Heartbeats: m.heartbeats.Load(),
		IsRunning:  m.running.Load(),
		LastSweep:  last,
	}
}

// Healthcheck reports whether the sweep loop is running.
func (m *Monitor) Healthcheck(_ context.Context) error {
	if !m.running.Load() {
		return errors.Join(ErrHealthcheckFailed, ErrMonitorNotRunning)
	}
	return nil
}
