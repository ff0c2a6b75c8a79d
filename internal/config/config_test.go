package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("missing credentials is an error", func(t *testing.T) {
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "FUTCTL_EXCHANGE_API_KEY")
	})

	t.Run("credentials from environment with defaults", func(t *testing.T) {
		t.Setenv("FUTCTL_EXCHANGE_API_KEY", "test-key")
		t.Setenv("FUTCTL_EXCHANGE_SECRET_KEY", "test-secret")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "test-key", cfg.Exchange.APIKey)
		assert.Equal(t, "test-secret", cfg.Exchange.SecretKey)
		assert.True(t, cfg.Exchange.Testnet)
		assert.Equal(t, 5000, cfg.Exchange.RecvWindowMS)
		assert.Equal(t, 100.0, cfg.Trading.MinNotional)
		assert.Equal(t, 2, cfg.Trading.MinTwapSlices)
		assert.Equal(t, 100, cfg.Trading.MaxTwapSlices)
		assert.Equal(t, 50, cfg.Trading.MaxGridLevels)
		assert.Equal(t, "futctl-audit.log", cfg.Audit.File)
		assert.True(t, cfg.Audit.Enabled)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("FUTCTL_EXCHANGE_API_KEY", "test-key")
		t.Setenv("FUTCTL_EXCHANGE_SECRET_KEY", "test-secret")
		t.Setenv("FUTCTL_EXCHANGE_TESTNET", "false")
		t.Setenv("FUTCTL_APP_LOG_LEVEL", "debug")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.False(t, cfg.Exchange.Testnet)
		assert.Equal(t, "debug", cfg.App.LogLevel)
	})

	t.Run("explicit config file", func(t *testing.T) {
		t.Setenv("FUTCTL_EXCHANGE_API_KEY", "test-key")
		t.Setenv("FUTCTL_EXCHANGE_SECRET_KEY", "test-secret")

		path := filepath.Join(t.TempDir(), "config.yaml")
		yaml := []byte("trading:\n  min_notional: 25.0\n  max_grid_levels: 20\naudit:\n  enabled: false\n")
		require.NoError(t, os.WriteFile(path, yaml, 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 25.0, cfg.Trading.MinNotional)
		assert.Equal(t, 20, cfg.Trading.MaxGridLevels)
		assert.False(t, cfg.Audit.Enabled)
	})

	t.Run("unreadable explicit config file is an error", func(t *testing.T) {
		t.Setenv("FUTCTL_EXCHANGE_API_KEY", "test-key")
		t.Setenv("FUTCTL_EXCHANGE_SECRET_KEY", "test-secret")

		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Exchange: ExchangeConfig{
				APIKey:       "k",
				SecretKey:    "s",
				RecvWindowMS: 5000,
			},
			Trading: TradingConfig{
				MinTwapSlices: 2,
				MaxTwapSlices: 100,
				MinGridLevels: 2,
				MaxGridLevels: 50,
			},
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("non-positive recvWindow fails", func(t *testing.T) {
		cfg := base()
		cfg.Exchange.RecvWindowMS = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("inverted grid level bounds fail", func(t *testing.T) {
		cfg := base()
		cfg.Trading.MinGridLevels = 10
		cfg.Trading.MaxGridLevels = 5
		assert.Error(t, cfg.Validate())
	})
}

func TestDurationHelpers(t *testing.T) {
	ec := ExchangeConfig{RecvWindowMS: 5000, TimeoutMS: 30000}
	assert.Equal(t, 5*time.Second, ec.RecvWindow())
	assert.Equal(t, 30*time.Second, ec.Timeout())

	tc := TradingConfig{FillPollDelayMS: 500}
	assert.Equal(t, 500*time.Millisecond, tc.FillPollDelay())
}
