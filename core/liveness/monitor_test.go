package liveness_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/eventgateway/core/liveness"
	"github.com/dmitrymomot/eventgateway/core/realtime"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sink struct {
	mu     sync.Mutex
	frames []realtime.Frame
}

func (s *sink) Send(_ context.Context, f realtime.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *sink) Close() error { return nil }

func (s *sink) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.frames))
	for _, f := range s.frames {
		out = append(out, f.Type)
	}
	return out
}

func TestNew(t *testing.T) {
	t.Parallel()
	reg := realtime.NewRegistry()
	_, err := liveness.New(nil, realtime.NewBroker(reg))
	assert.ErrorIs(t, err, liveness.ErrRegistryNil)
	_, err = liveness.New(reg, nil)
	assert.ErrorIs(t, err, liveness.ErrBroadcasterNil)
}

func TestSweepOnceEvictsIdleConnections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	reg := realtime.NewRegistry(realtime.WithClock(c.Now))
	broker := realtime.NewBroker(reg)
	mon, err := liveness.New(reg, broker,
		liveness.WithTimeout(5*time.Minute),
		liveness.WithClock(c.Now))
	require.NoError(t, err)

	idleSink, activeSink := &sink{}, &sink{}
	idle, err := reg.Connect("a", nil, idleSink)
	require.NoError(t, err)
	active, err := reg.Connect("b", nil, activeSink)
	require.NoError(t, err)
	require.NoError(t, broker.Subscribe(idle.ID(), "orders"))

	c.Advance(6 * time.Minute)
	require.NoError(t, reg.Touch(active.ID()))

	res, err := mon.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evicted)
	assert.Equal(t, 1, res.Heartbeats)

	_, err = reg.Get(idle.ID())
	assert.ErrorIs(t, err, realtime.ErrNotFound)
	assert.NotContains(t, broker.Members("orders"), idle.ID())

	n, err := broker.Multicast(ctx, "orders", realtime.Frame{Type: "order_completed"})
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, []string{realtime.FrameHeartbeat}, activeSink.Types())
	assert.Empty(t, idleSink.Types())

	// heartbeats alone do not keep a connection alive
	c.Advance(6 * time.Minute)
	res, err = mon.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evicted)
	assert.Zero(t, reg.Count())

	stats := mon.Stats()
	assert.Equal(t, int64(2), stats.Sweeps)
	assert.Equal(t, int64(2), stats.Evicted)
}

func TestMonitorLifecycle(t *testing.T) {
	t.Parallel()
	reg := realtime.NewRegistry()
	broker := realtime.NewBroker(reg)
	s := &sink{}
	_, err := reg.Connect("", nil, s)
	require.NoError(t, err)

	mon, err := liveness.NewFromConfig(liveness.Config{Interval: 10 * time.Millisecond, Timeout: time.Hour}, reg, broker)
	require.NoError(t, err)

	assert.ErrorIs(t, mon.Healthcheck(context.Background()), liveness.ErrHealthcheckFailed)
	assert.ErrorIs(t, mon.Stop(), liveness.ErrNotStarted)

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(mon.Run(gctx))

	require.Eventually(t, func() bool {
		return len(s.Types()) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, mon.Healthcheck(context.Background()))

	cancel()
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, reg.Count())
}
