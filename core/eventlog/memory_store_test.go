package eventlog_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventgateway/core/eventlog"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
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

func newEvent(c *clock, typ string, maxRetries int, channels ...string) *eventlog.Event {
	now := c.Now()
	return &eventlog.Event{
		ID:          uuid.New(),
		Type:        typ,
		Payload:     json.RawMessage(`{}`),
		Channels:    channels,
		MaxRetries:  maxRetries,
		AvailableAt: now,
		CreatedAt:   now,
	}
}

func TestMemoryStoreAppend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newClock()
	store := eventlog.NewMemoryStore(eventlog.WithMemoryStoreClock(c.Now))

	first := newEvent(c, "a", 3, "x")
	second := newEvent(c, "b", 3, "y")
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))
	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, int64(2), second.Sequence)

	assert.ErrorIs(t, store.Append(ctx, first), eventlog.ErrEventExists)
	assert.ErrorIs(t, store.Append(ctx, nil), eventlog.ErrNilEvent)

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, eventlog.StatusPending, got.Status)

	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, eventlog.ErrNotFound)
}

func TestMemoryStoreClaimIsExclusive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newClock()
	store := eventlog.NewMemoryStore(eventlog.WithMemoryStoreClock(c.Now))
	require.NoError(t, store.Append(ctx, newEvent(c, "order_completed", 3, "orders")))

	var (
		wg      sync.WaitGroup
		claimed atomic.Int32
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, err := store.Claim(ctx, uuid.New(), 1, time.Minute)
			if err == nil && len(events) > 0 {
				claimed.Add(int32(len(events)))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), claimed.Load())
}

func TestMemoryStoreClaimOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("events sharing a channel wait behind a processing event", func(t *testing.T) {
		t.Parallel()
		c := newClock()
		store := eventlog.NewMemoryStore(eventlog.WithMemoryStoreClock(c.Now))

		e1 := newEvent(c, "a", 3, "orders")
		e2 := newEvent(c, "a", 3, "orders")
		e3 := newEvent(c, "b", 3, "chat")
		for _, e := range []*eventlog.Event{e1, e2, e3} {
			require.NoError(t, store.Append(ctx, e))
		}

		worker := uuid.New()
		w1, err := store.Claim(ctx, worker, 1, time.Minute)
		require.NoError(t, err)
		require.Len(t, w1, 1)
		assert.Equal(t, e1.ID, w1[0].ID)

		w2, err := store.Claim(ctx, uuid.New(), 5, time.Minute)
		require.NoError(t, err)
		require.Len(t, w2, 1, "e2 must wait for e1 on the orders channel")
		assert.Equal(t, e3.ID, w2[0].ID)

		require.NoError(t, store.Complete(ctx, e1.ID, worker))
		w3, err := store.Claim(ctx, uuid.New(), 5, time.Minute)
		require.NoError(t, err)
		require.Len(t, w3, 1)
		assert.Equal(t, e2.ID, w3[0].ID)
	})

	t.Run("batch keeps arrival order within a channel", func(t *testing.T) {
		t.Parallel()
		c := newClock()
		store := eventlog.NewMemoryStore(eventlog.WithMemoryStoreClock(c.Now))

		var ids []uuid.UUID
		for range 5 {
			e := newEvent(c, "tick", 3, "flash")
			require.NoError(t, store.Append(ctx, e))
			ids = append(ids, e.ID)
		}

		batch, err := store.Claim(ctx, uuid.New(), 10, time.Minute)
		require.NoError(t, err)
		require.Len(t, batch, 5)
		for i, e := range batch {
			assert.Equal(t, ids[i], e.ID)
			assert.Equal(t, eventlog.StatusProcessing, e.Status)
			require.NotNil(t, e.LockedUntil)
		}
	})

	t.Run("skipped event blocks later events on any of its channels", func(t *testing.T) {
		t.Parallel()
		c := newClock()
		store := eventlog.NewMemoryStore(eventlog.WithMemoryStoreClock(c.Now))

		busy := newEvent(c, "a", 3, "orders")
		multi := newEvent(c, "b", 3, "orders", "vendor:1")
		later := newEvent(c, "c", 3, "vendor:1")
		for _, e := range []*eventlog.Event{busy, multi, later} {
			require.NoError(t, store.Append(ctx, e))
		}

		_, err := store.Claim(ctx, uuid.New(), 1, time.Minute)
		require.NoError(t, err)

		batch, err := store.Claim(ctx, uuid.New(), 5, time.Minute)
		require.NoError(t, err)
		assert.Empty(t, batch)
	})

	t.Run("events in backoff do not block newer events", func(t *testing.T) {
		t.Parallel()
		c := newClock()
		store := eventlog.NewMemoryStore(eventlog.WithMemoryStoreClock(c.Now))

		first := newEvent(c, "a", 3, "orders")
		require.NoError(t, store.Append(ctx, first))
		worker := uuid.New()
		_, err := store.Claim(ctx, worker, 1, time.Minute)
		require.NoError(t, err)
		status, err := store.Fail(ctx, first.ID, worker, "boom", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, eventlog.StatusPending, status)

		second := newEvent(c, "a", 3, "orders")
		require.NoError(t, store.Append(ctx, second))

		batch, err := store.Claim(ctx, worker, 5, time.Minute)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		assert.Equal(t, second.ID, batch[0].ID)
		require.NoError(t, store.Complete(ctx, second.ID, worker))

		c.Advance(time.Minute)
		batch, err = store.Claim(ctx, uuid.New(), 5, time.Minute)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		assert.Equal(t, first.ID, batch[0].ID)
		assert.Equal(t, 1, batch[0].RetryCount)
	})
}

func TestMemoryStoreRetryBound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newClock()
	store := eventlog.NewMemoryStore(eventlog.WithMemoryStoreClock(c.Now))

	const maxRetries = 3
	ev := newEvent(c, "a", maxRetries, "orders")
	require.NoError(t, store.Append(ctx, ev))

	attempts := 0
	for {
		worker := uuid.New()
		batch, err := store.Claim(ctx, worker, 1, time.Minute)
		require.NoError(t, err)
		if len(batch) == 0 {
			break
		}
		attempts++
		status, err := store.Fail(ctx, ev.ID, worker, "handler error", 0)
		require.NoError(t, err)
		if status == eventlog.StatusFailed {
			break
		}
		require.LessOrEqual(t, attempts, maxRetries+1)
	}

	assert.Equal(t, maxRetries+1, attempts, "first attempt plus maxRetries retries")

	got, err := store.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, eventlog.StatusFailed, got.Status)
	assert.Equal(t, maxRetries, got.RetryCount)
	assert.Equal(t, "handler error", got.LastError)

	batch, err := store.Claim(ctx, uuid.New(), 1, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestMemoryStoreTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newClock()
	store := eventlog.NewMemoryStore(eventlog.WithMemoryStoreClock(c.Now))

	ev := newEvent(c, "a", 0, "orders")
	require.NoError(t, store.Append(ctx, ev))

	worker := uuid.New()
	assert.ErrorIs(t, store.Complete(ctx, ev.ID, worker), eventlog.ErrNotProcessing)
	_, err := store.Fail(ctx, ev.ID, worker, "x", 0)
	assert.ErrorIs(t, err, eventlog.ErrNotProcessing)
	assert.ErrorIs(t, store.Complete(ctx, uuid.New(), worker), eventlog.ErrNotFound)

	assert.ErrorIs(t, store.Replay(ctx, ev.ID), eventlog.ErrNotReplayable)

	_, err = store.Claim(ctx, worker, 1, time.Minute)
	require.NoError(t, err)
	status, err := store.Fail(ctx, ev.ID, worker, "x", 0)
	require.NoError(t, err)
	assert.Equal(t, eventlog.StatusFailed, status)

	require.NoError(t, store.Replay(ctx, ev.ID))
	got, err := store.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, eventlog.StatusPending, got.Status)
	assert.Zero(t, got.RetryCount)

	_, err = store.Claim(ctx, worker, 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, ev.ID, worker))
	got, err = store.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, eventlog.StatusCompleted, got.Status)
	assert.NotNil(t, got.ProcessedAt)
	assert.Nil(t, got.LockedBy)

	assert.ErrorIs(t, store.Replay(ctx, uuid.New()), eventlog.ErrNotFound)
}

func TestMemoryStoreReleaseExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newClock()
	store := eventlog.NewMemoryStore(eventlog.WithMemoryStoreClock(c.Now))

	ev := newEvent(c, "a", 3, "orders")
	require.NoError(t, store.Append(ctx, ev))
	_, err := store.Claim(ctx, uuid.New(), 1, time.Minute)
	require.NoError(t, err)

	n, err := store.ReleaseExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	c.Advance(2 * time.Minute)
	n, err = store.ReleaseExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	batch, err := store.Claim(ctx, uuid.New(), 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 1, "released event and its channel are claimable again")
	assert.Equal(t, int64(1), store.Stats().ExpiredLocksFreed)
}

func TestMemoryStoreSettleRequiresLockOwner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newClock()
	store := eventlog.NewMemoryStore(eventlog.WithMemoryStoreClock(c.Now))

	ev := newEvent(c, "a", 3, "orders")
	require.NoError(t, store.Append(ctx, ev))

	stale, fresh := uuid.New(), uuid.New()
	_, err := store.Claim(ctx, stale, 1, time.Second)
	require.NoError(t, err)

	c.Advance(2 * time.Second)
	n, err := store.ReleaseExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	batch, err := store.Claim(ctx, fresh, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	assert.ErrorIs(t, store.Complete(ctx, ev.ID, stale), eventlog.ErrLockLost)
	_, err = store.Fail(ctx, ev.ID, stale, "late", 0)
	assert.ErrorIs(t, err, eventlog.ErrLockLost)

	got, err := store.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, eventlog.StatusProcessing, got.Status)
	require.NotNil(t, got.LockedBy)
	assert.Equal(t, fresh, *got.LockedBy)

	blocked := newEvent(c, "b", 3, "orders")
	require.NoError(t, store.Append(ctx, blocked))
	next, err := store.Claim(ctx, uuid.New(), 1, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, next, "channel stays reserved for the current owner")

	status, err := store.Fail(ctx, ev.ID, fresh, "handler error", 0)
	require.NoError(t, err)
	assert.Equal(t, eventlog.StatusPending, status)
}

func TestMemoryStoreList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newClock()
	store := eventlog.NewMemoryStore(eventlog.WithMemoryStoreClock(c.Now))

	for _, typ := range []string{"a", "b", "a", "a"} {
		e := newEvent(c, typ, 3, typ)
		e.CorrelationID = "corr-" + typ
		require.NoError(t, store.Append(ctx, e))
	}

	all, err := store.List(ctx, eventlog.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Sequence, all[i].Sequence)
	}

	onlyA, err := store.List(ctx, eventlog.Filter{Type: "a", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	byCorr, err := store.List(ctx, eventlog.Filter{CorrelationID: "corr-b", Status: eventlog.StatusPending})
	require.NoError(t, err)
	assert.Len(t, byCorr, 1)

	stats := store.Stats()
	assert.Equal(t, 4, stats.Pending)
}
