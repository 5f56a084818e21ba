// Package config provides configuration management for the paper trading application.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"polypaper/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Ledger    LedgerConfig      `mapstructure:"ledger"`
	Redis     RedisConfig       `mapstructure:"redis"`
	Market    MarketConfig      `mapstructure:"market"`
	Valuation ValuationConfig   `mapstructure:"valuation"`
	Server    ServerConfig      `mapstructure:"server"`
	Log       logging.LogConfig `mapstructure:"log"`
	UI        UIConfig          `mapstructure:"ui"`
}

// LedgerConfig holds ledger persistence configuration.
type LedgerConfig struct {
	Backend               string  `mapstructure:"backend"` // sqlite, redis, memory
	DBPath                string  `mapstructure:"db_path"`
	StartingBalance       float64 `mapstructure:"starting_balance"`
	SnapshotRetentionDays int     `mapstructure:"snapshot_retention_days"`
}

// RedisConfig holds the redis ledger backend configuration.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// MarketConfig holds market data provider configuration.
type MarketConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	FallbackURLs   []string      `mapstructure:"fallback_urls"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ValuationConfig holds portfolio valuation configuration.
type ValuationConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ServerConfig holds the local API server configuration.
type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	ReadOnly bool   `mapstructure:"read_only"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/polypaper"
	}
	return filepath.Join(home, ".config", "polypaper")
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	v := newViper(DefaultConfigDir())
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing config.toml is
// replaced by a commented template and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := newViper(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	// Environment overrides: POLYPAPER_LEDGER_BACKEND, POLYPAPER_MARKET_BASE_URL, ...
	v.SetEnvPrefix("POLYPAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	logDefaults := logging.DefaultLogConfig()
	logDefaults.FilePath = filepath.Join(configDir, "logs", "polypaper.log")

	v.SetDefault("ledger.backend", "sqlite")
	v.SetDefault("ledger.db_path", filepath.Join(configDir, "ledger.db"))
	v.SetDefault("ledger.starting_balance", 10000.0)
	v.SetDefault("ledger.snapshot_retention_days", 365)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "polypaper:")

	v.SetDefault("market.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("market.fallback_urls", []string{})
	v.SetDefault("market.timeout", "15s")
	v.SetDefault("market.max_attempts", 3)
	v.SetDefault("market.initial_backoff", "200ms")
	v.SetDefault("market.user_agent", "PolyPaper/1.0")

	v.SetDefault("valuation.concurrency", 8)
	v.SetDefault("valuation.timeout", "30s")

	v.SetDefault("server.addr", "127.0.0.1:3001")
	v.SetDefault("server.read_only", false)

	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.console", logDefaults.Console)
	v.SetDefault("log.file", logDefaults.File)
	v.SetDefault("log.file_path", logDefaults.FilePath)
	v.SetDefault("log.max_size", logDefaults.MaxSize)
	v.SetDefault("log.max_backups", logDefaults.MaxBackups)
	v.SetDefault("log.max_age", logDefaults.MaxAge)

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "02-Jan-2006")

	return v
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Ledger.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("invalid ledger backend: %s (must be 'sqlite', 'redis' or 'memory')", c.Ledger.Backend)
	}
	if c.Ledger.Backend == "sqlite" && c.Ledger.DBPath == "" {
		return fmt.Errorf("ledger.db_path is required for the sqlite backend")
	}
	if c.Ledger.StartingBalance <= 0 {
		return fmt.Errorf("ledger.starting_balance must be positive")
	}
	if c.Ledger.SnapshotRetentionDays <= 0 {
		return fmt.Errorf("ledger.snapshot_retention_days must be positive")
	}
	if c.Market.BaseURL == "" {
		return fmt.Errorf("market.base_url is required")
	}
	if c.Market.MaxAttempts < 1 {
		return fmt.Errorf("market.max_attempts must be at least 1")
	}
	if c.Valuation.Concurrency < 1 {
		return fmt.Errorf("valuation.concurrency must be at least 1")
	}
	return nil
}

// StartingBalance returns the configured starting balance as a decimal.
func (c *Config) StartingBalance() decimal.Decimal {
	return decimal.NewFromFloat(c.Ledger.StartingBalance)
}

// SnapshotRetention returns how long P&L snapshots are kept.
func (c *Config) SnapshotRetention() time.Duration {
	return time.Duration(c.Ledger.SnapshotRetentionDays) * 24 * time.Hour
}
