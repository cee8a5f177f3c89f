package redisagg_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventgateway/core/metrics"
	"github.com/dmitrymomot/eventgateway/integration/database/redis"
	"github.com/dmitrymomot/eventgateway/integration/metrics/redisagg"
)

func newAggregator(t *testing.T) *redisagg.Aggregator {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	client, err := redis.Connect(context.Background(), redis.Config{ConnectionURL: url, RetryAttempts: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	prefix := fmt.Sprintf("test:metrics:%d", time.Now().UnixNano())
	return redisagg.New(client,
		redisagg.WithPrefix(prefix),
		redisagg.WithWindow(time.Minute),
		redisagg.WithRetention(time.Hour),
	)
}

func TestAggregatorConcurrentCounters(t *testing.T) {
	t.Parallel()

	agg := newAggregator(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				assert.NoError(t, agg.Record(ctx, metrics.Sample{Name: "orders_completed", Value: 1, Timestamp: at}))
			}
		}()
	}
	wg.Wait()

	buckets, err := agg.Query(ctx, metrics.Query{Name: "orders_completed"})
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, float64(1000), buckets[0].Value)
	assert.Equal(t, int64(1000), buckets[0].Count)
	assert.True(t, at.Equal(buckets[0].Window))
}

func TestAggregatorQuery(t *testing.T) {
	t.Parallel()

	agg := newAggregator(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	samples := []metrics.Sample{
		{Name: "revenue", Value: 500, Timestamp: base, Dimensions: map[string]string{"vendor_id": "v1"}},
		{Name: "revenue", Value: 250, Timestamp: base.Add(30 * time.Second), Dimensions: map[string]string{"vendor_id": "v1"}},
		{Name: "revenue", Value: 100, Timestamp: base, Dimensions: map[string]string{"vendor_id": "v2"}},
		{Name: "revenue", Value: 75, Timestamp: base.Add(5 * time.Minute), Dimensions: map[string]string{"vendor_id": "v1"}},
		{Name: "queue_depth", Value: 3, Kind: metrics.Gauge, Timestamp: base},
		{Name: "queue_depth", Value: 7, Kind: metrics.Gauge, Timestamp: base},
	}
	for _, s := range samples {
		require.NoError(t, agg.Record(ctx, s))
	}

	buckets, err := agg.Query(ctx, metrics.Query{
		Name:       "revenue",
		From:       base,
		To:         base.Add(time.Minute),
		Dimensions: map[string]string{"vendor_id": "v1"},
	})
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, float64(750), buckets[0].Value)

	all, err := agg.Query(ctx, metrics.Query{Name: "revenue"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "v1", all[0].Dimensions["vendor_id"])
	assert.Equal(t, "v2", all[1].Dimensions["vendor_id"])

	gauge, err := agg.Query(ctx, metrics.Query{Name: "queue_depth"})
	require.NoError(t, err)
	require.Len(t, gauge, 1)
	assert.Equal(t, float64(7), gauge[0].Value)

	err = agg.Record(ctx, metrics.Sample{Name: "queue_depth", Value: 1, Kind: metrics.Counter, Timestamp: base})
	assert.ErrorIs(t, err, metrics.ErrKindMismatch)

	_, err = agg.Query(ctx, metrics.Query{Name: "revenue", From: base.Add(time.Hour), To: base})
	assert.ErrorIs(t, err, metrics.ErrInvalidRange)
}

func TestAggregatorSeparatorInDimensionValue(t *testing.T) {
	t.Parallel()

	agg := newAggregator(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, agg.Record(ctx, metrics.Sample{
		Name: "revenue", Value: 1, Timestamp: at,
		Dimensions: map[string]string{"a": "1,b=2"},
	}))
	require.NoError(t, agg.Record(ctx, metrics.Sample{
		Name: "revenue", Value: 1, Timestamp: at,
		Dimensions: map[string]string{"a": "1", "b": "2"},
	}))

	buckets, err := agg.Query(ctx, metrics.Query{Name: "revenue"})
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	for _, b := range buckets {
		assert.Equal(t, float64(1), b.Value, b.Dimensions)
	}
}
