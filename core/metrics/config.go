package metrics

import "time"

// Config holds aggregation settings shared by every backend.
type Config struct {
	WindowSize time.Duration `env:"METRICS_WINDOW" envDefault:"5m"`
	Retention  time.Duration `env:"METRICS_RETENTION" envDefault:"168h"`
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		WindowSize: 5 * time.Minute,
		Retention:  7 * 24 * time.Hour,
	}
}
