package metrics_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventgateway/core/metrics"
)

var base = time.Date(2024, 5, 1, 10, 2, 30, 0, time.UTC)

func TestMemoryAggregatorConcurrentCounter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	agg := metrics.NewMemoryAggregator(metrics.WithClock(func() time.Time { return base }))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_ = agg.Record(ctx, metrics.Sample{Name: "orders_completed", Value: 1, Kind: metrics.Counter})
			}
		}()
	}
	wg.Wait()

	buckets, err := agg.Query(ctx, metrics.Query{Name: "orders_completed"})
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, float64(1000), buckets[0].Value)
	assert.Equal(t, int64(1000), buckets[0].Count)
	assert.True(t, buckets[0].Window.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
}

func TestMemoryAggregatorGauge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	agg := metrics.NewMemoryAggregator()

	for _, v := range []float64{10, 42, 7} {
		require.NoError(t, agg.Record(ctx, metrics.Sample{Name: "stock", Value: v, Kind: metrics.Gauge, Timestamp: base}))
	}

	buckets, err := agg.Query(ctx, metrics.Query{Name: "stock"})
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, float64(7), buckets[0].Value)
	assert.Equal(t, metrics.Gauge, buckets[0].Kind)

	err = agg.Record(ctx, metrics.Sample{Name: "stock", Value: 1, Kind: metrics.Counter, Timestamp: base})
	assert.ErrorIs(t, err, metrics.ErrKindMismatch)
}

func TestMemoryAggregatorQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	agg := metrics.NewMemoryAggregator(metrics.WithWindow(5 * time.Minute))

	record := func(offset time.Duration, vendor string, v float64) {
		require.NoError(t, agg.Record(ctx, metrics.Sample{
			Name:       "revenue",
			Value:      v,
			Timestamp:  base.Add(offset),
			Dimensions: map[string]string{"vendor_id": vendor, "currency": "USD"},
		}))
	}
	record(0, "v1", 100)
	record(time.Minute, "v1", 50)
	record(0, "v2", 30)
	record(10*time.Minute, "v1", 20)

	all, err := agg.Query(ctx, metrics.Query{Name: "revenue"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Window.Before(all[i-1].Window), "ordered by window")
	}

	v1, err := agg.Query(ctx, metrics.Query{Name: "revenue", Dimensions: map[string]string{"vendor_id": "v1"}})
	require.NoError(t, err)
	require.Len(t, v1, 2)
	assert.Equal(t, float64(150), v1[0].Value)
	assert.Equal(t, float64(20), v1[1].Value)

	first, err := agg.Query(ctx, metrics.Query{
		Name: "revenue",
		From: base.Add(-time.Hour),
		To:   base,
	})
	require.NoError(t, err)
	assert.Len(t, first, 2)

	none, err := agg.Query(ctx, metrics.Query{Name: "unknown"})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = agg.Query(ctx, metrics.Query{Name: "revenue", From: base, To: base.Add(-time.Second)})
	assert.ErrorIs(t, err, metrics.ErrInvalidRange)
}

func TestSampleValidate(t *testing.T) {
	t.Parallel()
	agg := metrics.NewMemoryAggregator()
	ctx := context.Background()

	assert.ErrorIs(t, agg.Record(ctx, metrics.Sample{Value: 1}), metrics.ErrEmptyName)
	assert.ErrorIs(t, agg.Record(ctx, metrics.Sample{Name: "x", Kind: "histogram"}), metrics.ErrInvalidKind)
	assert.ErrorIs(t, agg.Record(ctx, metrics.Sample{Name: "x", Value: math.NaN()}), metrics.ErrInvalidValue)

	s := metrics.Sample{Name: "x", Value: 1}
	require.NoError(t, s.Validate())
	assert.Equal(t, metrics.Counter, s.Kind)
}

func TestDimensionKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", metrics.DimensionKey(nil))
	assert.Equal(t, `"a"="1","b"="2"`, metrics.DimensionKey(map[string]string{"b": "2", "a": "1"}))
	assert.NotEqual(t,
		metrics.DimensionKey(map[string]string{"a": "1,b=2"}),
		metrics.DimensionKey(map[string]string{"a": "1", "b": "2"}),
	)
	assert.NotEqual(t,
		metrics.DimensionKey(map[string]string{"a=1": ""}),
		metrics.DimensionKey(map[string]string{"a": "1="}),
	)
}

func TestMemoryAggregatorSeparatorInDimensionValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	agg := metrics.NewMemoryAggregator()

	require.NoError(t, agg.Record(ctx, metrics.Sample{
		Name: "revenue", Value: 1, Timestamp: base,
		Dimensions: map[string]string{"a": "1,b=2"},
	}))
	require.NoError(t, agg.Record(ctx, metrics.Sample{
		Name: "revenue", Value: 1, Timestamp: base,
		Dimensions: map[string]string{"a": "1", "b": "2"},
	}))

	buckets, err := agg.Query(ctx, metrics.Query{Name: "revenue"})
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	for _, b := range buckets {
		assert.Equal(t, 1.0, b.Value, b.Dimensions)
	}
}

func TestMemoryAggregatorRetention(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var (
		mu  sync.Mutex
		now = base
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	agg := metrics.NewMemoryAggregatorFromConfig(
		metrics.Config{WindowSize: time.Minute, Retention: time.Hour},
		metrics.WithClock(clock),
	)

	require.NoError(t, agg.Record(ctx, metrics.Sample{Name: "old", Value: 1}))
	advance(30 * time.Minute)
	require.NoError(t, agg.Record(ctx, metrics.Sample{Name: "fresh", Value: 1}))
	assert.Equal(t, 2, agg.Len())

	advance(45 * time.Minute)
	old, err := agg.Query(ctx, metrics.Query{Name: "old"})
	require.NoError(t, err)
	assert.Empty(t, old)

	require.NoError(t, agg.Record(ctx, metrics.Sample{Name: "fresh", Value: 2}))
	assert.Equal(t, 2, agg.Len(), "old bucket is swept, fresh windows stay")

	fresh, err := agg.Query(ctx, metrics.Query{Name: "fresh"})
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, 1.0, fresh[0].Value)
	assert.Equal(t, 2.0, fresh[1].Value)

	t.Run("zero retention keeps buckets", func(t *testing.T) {
		t.Parallel()
		keep := metrics.NewMemoryAggregator(metrics.WithRetention(0), metrics.WithClock(clock))
		require.NoError(t, keep.Record(ctx, metrics.Sample{Name: "x", Value: 1, Timestamp: base.Add(-24 * 365 * time.Hour)}))
		require.NoError(t, keep.Record(ctx, metrics.Sample{Name: "x", Value: 1}))
		assert.Equal(t, 2, keep.Len())
	})
}
