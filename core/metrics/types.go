package metrics

import (
	"context"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Kind selects how samples combine inside a bucket.
type Kind string

const (
	// Counter samples accumulate.
	Counter Kind = "counter"
	// Gauge samples replace the bucket value; the last to arrive wins.
	Gauge Kind = "gauge"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k == Counter || k == Gauge }

// Sample is a single measurement.
type Sample struct {
	Name       string            `json:"name"`
	Value      float64           `json:"value"`
	Kind       Kind              `json:"kind"`
	Timestamp  time.Time         `json:"timestamp,omitzero"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// Validate checks the sample fields. An empty kind is treated as Counter.
func (s *Sample) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if s.Kind == "" {
		s.Kind = Counter
	}
	if !s.Kind.Valid() {
		return ErrInvalidKind
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return ErrInvalidValue
	}
	return nil
}

// Bucket is the aggregate of one (name, window, dimensions) key.
type Bucket struct {
	Name       string            `json:"name"`
	Kind       Kind              `json:"kind"`
	Window     time.Time         `json:"window"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
	Value      float64           `json:"value"`
	Count      int64             `json:"count"`
}

// Query selects buckets of one metric. Zero From/To leave the range open.
// Dimensions is a subset match: a bucket matches when it carries every
// requested key with the requested value.
type Query struct {
	Name       string
	From       time.Time
	To         time.Time
	Dimensions map[string]string
}

// Validate checks the query fields.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Name) == "" {
		return ErrEmptyName
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return ErrInvalidRange
	}
	return nil
}

// Contains reports whether window falls inside the query range.
func (q Query) Contains(window time.Time) bool {
	if !q.From.IsZero() && window.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && window.After(q.To) {
		return false
	}
	return true
}

// MatchDimensions reports whether dims is a superset of the query dimensions.
func (q Query) MatchDimensions(dims map[string]string) bool {
	for k, v := range q.Dimensions {
		if dims[k] != v {
			return false
		}
	}
	return true
}

// Aggregator records samples into windowed buckets.
type Aggregator interface {
	Record(ctx context.Context, s Sample) error
	Query(ctx context.Context, q Query) ([]Bucket, error)
}

// Window truncates t to the start of its window in UTC.
func Window(t time.Time, size time.Duration) time.Time {
	return t.UTC().Truncate(size)
}

// DimensionKey encodes dimensions as sorted, quoted "k"="v" pairs joined by ",".
// Quoting keeps values containing separators from colliding with other sets.
func DimensionKey(dims map[string]string) string {
	if len(dims) == 0 {
		return ""
	}
	keys := slices.Sorted(maps.Keys(dims))
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte('=')
		b.WriteString(strconv.Quote(dims[k]))
	}
	return b.String()
}

// SortBuckets orders buckets by window, then by dimension key.
func SortBuckets(buckets []Bucket) {
	slices.SortFunc(buckets, func(a, b Bucket) int {
		if c := a.Window.Compare(b.Window); c != 0 {
			return c
		}
		return strings.Compare(DimensionKey(a.Dimensions), DimensionKey(b.Dimensions))
	})
}
