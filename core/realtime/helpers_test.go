package realtime_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/eventgateway/core/realtime"
)

type recordingSender struct {
	mu     sync.Mutex
	frames []realtime.Frame
	closed atomic.Bool
	fail   atomic.Bool
}

func (s *recordingSender) Send(_ context.Context, f realtime.Frame) error {
	if s.fail.Load() {
		return errors.New("transport closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *recordingSender) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *recordingSender) Frames() []realtime.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]realtime.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
