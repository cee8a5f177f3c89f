package redisagg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/eventgateway/core/logger"
	"github.com/dmitrymomot/eventgateway/core/metrics"
)

const kindMismatchPrefix = "KIND_MISMATCH:"

// recordScript updates one bucket hash and its index entry atomically.
// KEYS: bucket, index. ARGV: kind, value, dims json, window ms, ttl ms.
var recordScript = redis.NewScript(`
local kind = redis.call('HGET', KEYS[1], 'kind')
if kind and kind ~= ARGV[1] then
	return redis.error_reply('` + kindMismatchPrefix + `' .. kind)
end
if ARGV[1] == 'counter' then
	redis.call('HINCRBYFLOAT', KEYS[1], 'value', ARGV[2])
else
	redis.call('HSET', KEYS[1], 'value', ARGV[2])
end
redis.call('HINCRBY', KEYS[1], 'count', 1)
redis.call('HSET', KEYS[1], 'kind', ARGV[1], 'dims', ARGV[3], 'window', ARGV[4])
redis.call('ZADD', KEYS[2], ARGV[4], KEYS[1])
local ttl = tonumber(ARGV[5])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
	redis.call('PEXPIRE', KEYS[2], ttl)
end
return 1
`)

var _ metrics.Aggregator = (*Aggregator)(nil)

// Aggregator stores metric buckets in Redis so they survive restarts and can be
// shared by several gateway processes.
type Aggregator struct {
	client    redis.UniversalClient
	prefix    string
	window    time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

func WithPrefix(prefix string) Option {
	return func(a *Aggregator) {
		if prefix != "" {
			a.prefix = prefix
		}
	}
}

func WithWindow(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.window = d
		}
	}
}

// WithRetention sets how long untouched buckets are kept. Zero keeps them forever.
func WithRetention(d time.Duration) Option {
	return func(a *Aggregator) {
		if d >= 0 {
			a.retention = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an aggregator over client.
func New(client redis.UniversalClient, opts ...Option) *Aggregator {
	cfg := metrics.DefaultConfig()
	a := &Aggregator{
		client:    client,
		prefix:    "gateway:metrics",
		window:    cfg.WindowSize,
		retention: cfg.Retention,
		now:       time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFromConfig creates an aggregator from shared metrics configuration.
func NewFromConfig(cfg metrics.Config, client redis.UniversalClient, opts ...Option) *Aggregator {
	return New(client, append([]Option{WithWindow(cfg.WindowSize), WithRetention(cfg.Retention)}, opts...)...)
}

// Record adds the sample to its bucket.
func (a *Aggregator) Record(ctx context.Context, s metrics.Sample) error {
	if err := s.Validate(); err != nil {
		return err
	}
	ts := s.Timestamp
	if ts.IsZero() {
		ts = a.now()
	}
	window := metrics.Window(ts, a.window)

	dims, err := json.Marshal(s.Dimensions)
	if err != nil {
		return fmt.Errorf("encode dimensions: %w", err)
	}

	err = recordScript.Run(ctx, a.client,
		[]string{a.bucketKey(s.Name, window, s.Dimensions), a.indexKey(s.Name)},
		string(s.Kind),
		strconv.FormatFloat(s.Value, 'f', -1, 64),
		string(dims),
		window.UnixMilli(),
		a.retention.Milliseconds(),
	).Err()
	if err != nil {
		if existing, ok := strings.CutPrefix(err.Error(), kindMismatchPrefix); ok {
			return fmt.Errorf("%w: %s is %s", metrics.ErrKindMismatch, s.Name, existing)
		}
		return fmt.Errorf("record %s: %w", s.Name, err)
	}
	return nil
}

// Query returns matching buckets ordered by window.
func (a *Aggregator) Query(ctx context.Context, q metrics.Query) ([]metrics.Bucket, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !q.From.IsZero() {
		rng.Min = strconv.FormatInt(q.From.UnixMilli(), 10)
	}
	if !q.To.IsZero() {
		rng.Max = strconv.FormatInt(q.To.UnixMilli(), 10)
	}

	index := a.indexKey(q.Name)
	keys, err := a.client.ZRangeByScore(ctx, index, rng).Result()
	if err != nil {
		return nil, fmt.Errorf("query index %s: %w", q.Name, err)
	}
	if len(keys) == 0 {
		return []metrics.Bucket{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err = a.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = p.HGetAll(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load buckets %s: %w", q.Name, err)
	}

	out := make([]metrics.Bucket, 0, len(keys))
	var expired []any
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			expired = append(expired, keys[i])
			continue
		}
		b, err := decodeBucket(q.Name, fields)
		if err != nil {
			a.logger.WarnContext(ctx, "skipping malformed bucket", logger.Metric(q.Name), logger.Error(err))
			continue
		}
		if q.Contains(b.Window) && q.MatchDimensions(b.Dimensions) {
			out = append(out, b)
		}
	}

	if len(expired) > 0 {
		if err := a.client.ZRem(ctx, index, expired...).Err(); err != nil {
			a.logger.WarnContext(ctx, "failed to prune metric index", logger.Metric(q.Name), logger.Error(err))
		}
	}

	metrics.SortBuckets(out)
	return out, nil
}

// WindowSize returns the bucket width.
func (a *Aggregator) WindowSize() time.Duration { return a.window }

func (a *Aggregator) bucketKey(name string, window time.Time, dims map[string]string) string {
	return a.prefix + ":b:" + name + ":" + strconv.FormatInt(window.UnixMilli(), 10) + ":" + metrics.DimensionKey(dims)
}

func (a *Aggregator) indexKey(name string) string {
	return a.prefix + ":idx:" + name
}

func decodeBucket(name string, fields map[string]string) (metrics.Bucket, error) {
	value, err := strconv.ParseFloat(fields["value"], 64)
	if err != nil {
		return metrics.Bucket{}, fmt.Errorf("value: %w", err)
	}
	count, err := strconv.ParseInt(fields["count"], 10, 64)
	if err != nil {
		return metrics.Bucket{}, fmt.Errorf("count: %w", err)
	}
	windowMs, err := strconv.ParseInt(fields["window"], 10, 64)
	if err != nil {
		return metrics.Bucket{}, fmt.Errorf("window: %w", err)
	}
	var dims map[string]string
	if raw := fields["dims"]; raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &dims); err != nil {
			return metrics.Bucket{}, fmt.Errorf("dims: %w", err)
		}
	}
	kind := metrics.Kind(fields["kind"])
	if !kind.Valid() {
		return metrics.Bucket{}, errors.New("unknown kind " + fields["kind"])
	}
	return metrics.Bucket{
		Name:       name,
		Kind:       kind,
		Window:     time.UnixMilli(windowMs).UTC(),
		Dimensions: dims,
		Value:      value,
		Count:      count,
	}, nil
}
