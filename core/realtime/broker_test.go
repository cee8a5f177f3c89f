package realtime_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventgateway/core/realtime"
)

func TestBrokerSubscribe(t *testing.T) {
	t.Parallel()

	reg := realtime.NewRegistry()
	broker := realtime.NewBroker(reg)
	conn, err := reg.Connect("", nil, &recordingSender{})
	require.NoError(t, err)

	require.NoError(t, broker.Subscribe(conn.ID(), "orders"))
	require.NoError(t, broker.Subscribe(conn.ID(), "orders"))
	assert.Equal(t, 1, broker.Subscribers("orders"))
	assert.True(t, conn.Subscribed("orders"))

	require.NoError(t, broker.Unsubscribe(conn.ID(), "orders"))
	require.NoError(t, broker.Unsubscribe(conn.ID(), "orders"))
	assert.Equal(t, 0, broker.Subscribers("orders"))
	assert.NotContains(t, broker.Channels(), "orders")

	assert.ErrorIs(t, broker.Subscribe(conn.ID(), ""), realtime.ErrInvalidChannel)
	assert.ErrorIs(t, broker.Subscribe(conn.ID(), "a,b"), realtime.ErrInvalidChannel)
	assert.ErrorIs(t, broker.Subscribe("missing", "orders"), realtime.ErrNotFound)
	assert.ErrorIs(t, broker.Unsubscribe("missing", "orders"), realtime.ErrNotFound)
}

func TestBrokerMulticast(t *testing.T) {
	t.Parallel()

	t.Run("every subscriber receives the frame exactly once", func(t *testing.T) {
		t.Parallel()
		reg := realtime.NewRegistry()
		broker := realtime.NewBroker(reg)

		senders := make([]*recordingSender, 50)
		for i := range senders {
			senders[i] = &recordingSender{}
			conn, err := reg.Connect(fmt.Sprintf("user-%d", i), nil, senders[i])
			require.NoError(t, err)
			require.NoError(t, broker.Subscribe(conn.ID(), "orders"))
		}

		n, err := broker.Multicast(context.Background(), "orders", realtime.Frame{
			Type:    "order_completed",
			Payload: json.RawMessage(`{"order_id":"o1"}`),
		})
		require.NoError(t, err)
		assert.Equal(t, 50, n)

		for _, s := range senders {
			frames := s.Frames()
			require.Len(t, frames, 1)
			assert.Equal(t, "order_completed", frames[0].Type)
			assert.Equal(t, "orders", frames[0].Channel)
			assert.False(t, frames[0].Timestamp.IsZero())
		}
	})

	t.Run("one failing connection does not affect others", func(t *testing.T) {
		t.Parallel()
		reg := realtime.NewRegistry()
		broker := realtime.NewBroker(reg)

		good1, good2, bad := &recordingSender{}, &recordingSender{}, &recordingSender{}
		bad.fail.Store(true)

		var badID string
		for _, s := range []*recordingSender{good1, bad, good2} {
			conn, err := reg.Connect("", nil, s)
			require.NoError(t, err)
			require.NoError(t, broker.Subscribe(conn.ID(), "orders"))
			if s == bad {
				badID = conn.ID()
			}
		}

		n, err := broker.Multicast(context.Background(), "orders", realtime.Frame{Type: "x"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Len(t, good1.Frames(), 1)
		assert.Len(t, good2.Frames(), 1)

		_, err = reg.Get(badID)
		assert.ErrorIs(t, err, realtime.ErrNotFound)
		assert.NotContains(t, broker.Members("orders"), badID)

		stats := broker.Stats()
		assert.Equal(t, int64(1), stats.Failed)
		assert.Equal(t, int64(1), stats.Evicted)
	})

	t.Run("unknown channel delivers nothing", func(t *testing.T) {
		t.Parallel()
		broker := realtime.NewBroker(realtime.NewRegistry())
		n, err := broker.Multicast(context.Background(), "nobody-here", realtime.Frame{Type: "x"})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("cancelled context stops the pass", func(t *testing.T) {
		t.Parallel()
		reg := realtime.NewRegistry()
		broker := realtime.NewBroker(reg)
		_, err := reg.Connect("", nil, &recordingSender{})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		n, err := broker.Broadcast(ctx, realtime.Frame{Type: "x"})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, n)
	})

	t.Run("business frames count as activity, heartbeats do not", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		reg := realtime.NewRegistry(realtime.WithClock(clock.Now))
		broker := realtime.NewBroker(reg)

		conn, err := reg.Connect("", nil, &recordingSender{})
		require.NoError(t, err)
		start, err := reg.LastActivity(conn.ID())
		require.NoError(t, err)

		clock.Advance(time.Minute)
		_, err = broker.Broadcast(context.Background(), realtime.Frame{Type: realtime.FrameHeartbeat})
		require.NoError(t, err)
		last, err := reg.LastActivity(conn.ID())
		require.NoError(t, err)
		assert.True(t, start.Equal(last))

		_, err = broker.Broadcast(context.Background(), realtime.Frame{Type: "inventory_changed"})
		require.NoError(t, err)
		last, err = reg.LastActivity(conn.ID())
		require.NoError(t, err)
		assert.True(t, clock.Now().Equal(last))
	})
}

func TestBrokerSendToIdentity(t *testing.T) {
	t.Parallel()

	reg := realtime.NewRegistry()
	broker := realtime.NewBroker(reg)

	mine1, mine2, other := &recordingSender{}, &recordingSender{}, &recordingSender{}
	for identity, s := range map[string]*recordingSender{"u1": mine1, "u2": other} {
		_, err := reg.Connect(identity, nil, s)
		require.NoError(t, err)
	}
	_, err := reg.Connect("u1", nil, mine2)
	require.NoError(t, err)

	n, err := broker.SendToIdentity(context.Background(), "u1", realtime.Frame{Type: "chat_message"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, mine1.Frames(), 1)
	assert.Len(t, mine2.Frames(), 1)
	assert.Empty(t, other.Frames())

	n, err = broker.SendToIdentity(context.Background(), "", realtime.Frame{Type: "chat_message"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBrokerConcurrentMulticast(t *testing.T) {
	t.Parallel()

	reg := realtime.NewRegistry(realtime.WithShards(8))
	broker := realtime.NewBroker(reg)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := reg.Connect(fmt.Sprintf("u%d", i), nil, &recordingSender{})
			if err != nil {
				return
			}
			_ = broker.Subscribe(conn.ID(), "ticks")
			if i%2 == 0 {
				_ = reg.Disconnect(conn.ID())
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = broker.Multicast(ctx, "ticks", realtime.Frame{Type: "flash_sale_tick"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, broker.Subscribers("ticks"))
	assert.Equal(t, 10, reg.Count())
}
