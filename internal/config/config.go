package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Audit    AuditConfig    `mapstructure:"audit"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name      string `mapstructure:"name"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "json" or "console"
}

// ExchangeConfig contains Binance futures credentials and connection settings
type ExchangeConfig struct {
	APIKey       string `mapstructure:"api_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Testnet      bool   `mapstructure:"testnet"`
	RecvWindowMS int    `mapstructure:"recv_window_ms"`
	TimeoutMS    int    `mapstructure:"timeout_ms"`
}

// TradingConfig contains order and strategy limits
type TradingConfig struct {
	MinNotional     float64 `mapstructure:"min_notional"` // fallback when the exchange filter is unavailable
	MinTwapSlices   int     `mapstructure:"min_twap_slices"`
	MaxTwapSlices   int     `mapstructure:"max_twap_slices"`
	MinTwapInterval int     `mapstructure:"min_twap_interval"` // seconds
	MinGridLevels   int     `mapstructure:"min_grid_levels"`
	MaxGridLevels   int     `mapstructure:"max_grid_levels"`
	FillPollDelayMS int     `mapstructure:"fill_poll_delay_ms"` // market order fill confirmation poll
}

// AuditConfig contains audit log settings
type AuditConfig struct {
	File    string `mapstructure:"file"`
	Enabled bool   `mapstructure:"enabled"`
}

// Load loads configuration from file and environment variables.
// A .env file in the working directory is applied first so that
// FUTCTL_EXCHANGE_API_KEY etc. can live alongside the binary.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("FUTCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "futctl")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	// Credentials default to empty so the env-only path still reaches
	// Unmarshal; viper only maps keys it knows about.
	v.SetDefault("exchange.api_key", "")
	v.SetDefault("exchange.secret_key", "")
	v.SetDefault("exchange.testnet", true)
	v.SetDefault("exchange.recv_window_ms", 5000)
	v.SetDefault("exchange.timeout_ms", 30000)

	v.SetDefault("trading.min_notional", 100.0)
	v.SetDefault("trading.min_twap_slices", 2)
	v.SetDefault("trading.max_twap_slices", 100)
	v.SetDefault("trading.min_twap_interval", 1)
	v.SetDefault("trading.min_grid_levels", 2)
	v.SetDefault("trading.max_grid_levels", 50)
	v.SetDefault("trading.fill_poll_delay_ms", 500)

	v.SetDefault("audit.file", "futctl-audit.log")
	v.SetDefault("audit.enabled", true)
}

// Validate checks that the configuration is usable for a trading session
func (c *Config) Validate() error {
	if c.Exchange.APIKey == "" || c.Exchange.SecretKey == "" {
		return fmt.Errorf(
			"API credentials not found: set FUTCTL_EXCHANGE_API_KEY and " +
				"FUTCTL_EXCHANGE_SECRET_KEY (or exchange.api_key / exchange.secret_key)")
	}
	if c.Exchange.RecvWindowMS <= 0 {
		return fmt.Errorf("exchange.recv_window_ms must be positive")
	}
	if c.Trading.MinTwapSlices < 2 {
		return fmt.Errorf("trading.min_twap_slices must be at least 2")
	}
	if c.Trading.MaxGridLevels < c.Trading.MinGridLevels {
		return fmt.Errorf("trading.max_grid_levels must be >= trading.min_grid_levels")
	}
	return nil
}

// RecvWindow returns the request freshness window as a duration
func (c *ExchangeConfig) RecvWindow() time.Duration {
	return time.Duration(c.RecvWindowMS) * time.Millisecond
}

// Timeout returns the HTTP timeout as a duration
func (c *ExchangeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// FillPollDelay returns the market order fill confirmation delay
func (c *TradingConfig) FillPollDelay() time.Duration {
	return time.Duration(c.FillPollDelayMS) * time.Millisecond
}
