package liveness

import "time"

// Config holds monitor settings.
type Config struct {
	Interval time.Duration `env:"LIVENESS_INTERVAL" envDefault:"30s"`
	Timeout  time.Duration `env:"LIVENESS_TIMEOUT" envDefault:"5m"`
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  5 * time.Minute,
	}
}
