package dispatch

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// Backoff returns the delay before the given retry (1-based).
type Backoff func(attempt int) time.Duration

// ExponentialBackoff returns base * 2^(attempt-1), capped at limit.
// A non-positive limit means no cap.
func ExponentialBackoff(base, limit time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if base <= 0 {
			return 0
		}
		var b retry.Backoff = retry.NewExponential(base)
		if limit > 0 {
			b = retry.WithCappedDuration(limit, b)
		}
		var d time.Duration
		for range max(attempt, 1) {
			d, _ = b.Next()
		}
		return d
	}
}
