package realtime

// Config holds registry and broker settings.
type Config struct {
	Shards                int    `env:"REALTIME_SHARDS" envDefault:"32"`
	BroadcastChannel      string `env:"REALTIME_BROADCAST_CHANNEL" envDefault:"broadcast"`
	IdentityChannelPrefix string `env:"REALTIME_IDENTITY_PREFIX" envDefault:"identity:"`
}

// DefaultConfig returns the defaults used when no environment is present.
func DefaultConfig() Config {
	return Config{
		Shards:                32,
		BroadcastChannel:      "broadcast",
		IdentityChannelPrefix: "identity:",
	}
}
