package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventgateway/core/config"
)

type sampleConfig struct {
	Addr     string        `env:"CONFIG_TEST_ADDR" envDefault:":9000"`
	Interval time.Duration `env:"CONFIG_TEST_INTERVAL" envDefault:"30s"`
}

type requiredConfig struct {
	Token string `env:"CONFIG_TEST_REQUIRED_TOKEN,required"`
}

func TestLoad(t *testing.T) {
	config.Reset()
	t.Setenv("CONFIG_TEST_ADDR", ":7000")

	var cfg sampleConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.Interval)

	t.Setenv("CONFIG_TEST_ADDR", ":8000")
	var cached sampleConfig
	require.NoError(t, config.Load(&cached))
	assert.Equal(t, ":7000", cached.Addr, "second load must come from cache")
}

func TestLoadErrors(t *testing.T) {
	config.Reset()

	var nilCfg *sampleConfig
	assert.ErrorIs(t, config.Load(nilCfg), config.ErrNilTarget)

	var cfg requiredConfig
	assert.Error(t, config.Load(&cfg))
	assert.Panics(t, func() { config.MustLoad(&cfg) })
}
