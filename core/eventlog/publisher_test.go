package eventlog_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventgateway/core/eventlog"
)

type MockPublisherRepository struct {
	mock.Mock
}

func (m *MockPublisherRepository) Append(ctx context.Context, ev *eventlog.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func TestNewPublisher(t *testing.T) {
	t.Parallel()
	_, err := eventlog.NewPublisher(nil)
	assert.ErrorIs(t, err, eventlog.ErrRepositoryNil)
}

func TestPublisherPublish(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("appends pending event with resolved channels", func(t *testing.T) {
		t.Parallel()
		c := newClock()
		store := eventlog.NewMemoryStore()
		pub, err := eventlog.NewPublisherFromConfig(eventlog.Config{
			MaxRetries:    4,
			DefaultSource: "gateway",
			Routes:        map[string]string{"order_completed": "orders|dashboard"},
		}, store, eventlog.WithPublisherClock(c.Now))
		require.NoError(t, err)

		id, err := pub.Publish(ctx, eventlog.PublishParams{
			Type:          "order_completed",
			Payload:       json.RawMessage(`{"order_id":"o1","amount":500}`),
			CorrelationID: "req-1",
		})
		require.NoError(t, err)

		ev, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, eventlog.StatusPending, ev.Status)
		assert.Equal(t, []string{"orders", "dashboard"}, ev.Channels)
		assert.Equal(t, "gateway", ev.SourceService)
		assert.Equal(t, 4, ev.MaxRetries)
		assert.Equal(t, "req-1", ev.CorrelationID)
		assert.True(t, c.Now().Equal(ev.CreatedAt))
		assert.JSONEq(t, `{"order_id":"o1","amount":500}`, string(ev.Payload))
		assert.Equal(t, int64(1), pub.Stats().Published)
	})

	t.Run("explicit routing key wins over routes", func(t *testing.T) {
		t.Parallel()
		store := eventlog.NewMemoryStore()
		pub, err := eventlog.NewPublisher(store, eventlog.WithRouter(eventlog.NewRouter(map[string]string{"chat_message": "chat"})))
		require.NoError(t, err)

		id, err := pub.Publish(ctx, eventlog.PublishParams{
			Type:       "chat_message",
			Payload:    json.RawMessage(`{"text":"hi"}`),
			RoutingKey: "identity:u1, identity:u2",
		})
		require.NoError(t, err)

		ev, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{"identity:u1", "identity:u2"}, ev.Channels)
	})

	t.Run("empty payload is stored as null", func(t *testing.T) {
		t.Parallel()
		store := eventlog.NewMemoryStore()
		pub, err := eventlog.NewPublisher(store)
		require.NoError(t, err)

		id, err := pub.Publish(ctx, eventlog.PublishParams{Type: "ping"})
		require.NoError(t, err)
		ev, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "null", string(ev.Payload))
		assert.Equal(t, []string{"ping"}, ev.Channels)
	})

	t.Run("validation errors", func(t *testing.T) {
		t.Parallel()
		repo := &MockPublisherRepository{}
		pub, err := eventlog.NewPublisher(repo)
		require.NoError(t, err)

		_, err = pub.Publish(ctx, eventlog.PublishParams{Type: "  "})
		assert.ErrorIs(t, err, eventlog.ErrEmptyType)

		_, err = pub.Publish(ctx, eventlog.PublishParams{Type: "a", Payload: json.RawMessage(`{broken`)})
		assert.ErrorIs(t, err, eventlog.ErrInvalidPayload)

		assert.Equal(t, int64(2), pub.Stats().Rejected)
		repo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("repository error is wrapped", func(t *testing.T) {
		t.Parallel()
		repo := &MockPublisherRepository{}
		storeErr := errors.New("db down")
		repo.On("Append", mock.Anything, mock.AnythingOfType("*eventlog.Event")).Return(storeErr)

		pub, err := eventlog.NewPublisher(repo)
		require.NoError(t, err)

		_, err = pub.Publish(ctx, eventlog.PublishParams{Type: "a"})
		assert.ErrorIs(t, err, storeErr)
		repo.AssertExpectations(t)
	})
}

func TestPublisherConcurrentProducers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	const (
		producers = 16
		perWorker = 50
	)
	store := eventlog.NewMemoryStore()
	pub, err := eventlog.NewPublisher(store)
	require.NoError(t, err)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[uuid.UUID]struct{}, producers*perWorker)
	)
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				id, err := pub.Publish(ctx, eventlog.PublishParams{
					Type:       "order_completed",
					Payload:    json.RawMessage(fmt.Sprintf(`{"producer":%d,"n":%d}`, p, i)),
					RoutingKey: fmt.Sprintf("orders:%d", p),
				})
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				ids[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, ids, producers*perWorker, "every publish returns a distinct id")

	events, err := store.List(ctx, eventlog.Filter{})
	require.NoError(t, err)
	require.Len(t, events, producers*perWorker)
	for i, ev := range events {
		_, ok := ids[ev.ID]
		assert.True(t, ok, ev.ID)
		if i > 0 {
			assert.Less(t, events[i-1].Sequence, ev.Sequence)
		}
	}
	assert.Equal(t, int64(1), events[0].Sequence)
	assert.Equal(t, int64(producers*perWorker), events[len(events)-1].Sequence)
}

func TestRouter(t *testing.T) {
	t.Parallel()

	r := eventlog.NewRouter(map[string]string{
		"order_completed": "orders | dashboard|orders",
		"empty":           " ",
	})

	assert.Equal(t, []string{"orders", "dashboard"}, r.Resolve("order_completed", ""))
	assert.Equal(t, []string{"a", "b"}, r.Resolve("order_completed", "a,,b,a"))
	assert.Equal(t, []string{"empty"}, r.Resolve("empty", ""))
	assert.Equal(t, []string{"inventory_changed"}, r.Resolve("inventory_changed", ""))
	assert.Nil(t, r.Resolve("", ""))

	var nilRouter *eventlog.Router
	assert.Equal(t, []string{"x"}, nilRouter.Resolve("x", ""))

	assert.Nil(t, eventlog.SplitRoutingKey(" , "))
}
