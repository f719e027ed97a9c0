// Package config loads the engine's YAML configuration with environment
// overrides for deployment-specific and sensitive values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application settings.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Relayer struct {
		URL            string `yaml:"url"`
		MakerAssetData string `yaml:"maker_asset_data"`
		TakerAssetData string `yaml:"taker_asset_data"`
		TimeoutSec     int    `yaml:"timeout_sec"`
	} `yaml:"relayer"`

	Chain struct {
		GatewayURL string `yaml:"gateway_url"`
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"chain"`

	Indexer struct {
		DatabaseURL string `yaml:"database_url"`
		RedisURL    string `yaml:"redis_url"`
		CacheTTLSec int    `yaml:"cache_ttl_sec"`
	} `yaml:"indexer"`

	Refresh struct {
		IntervalSec int `yaml:"interval_sec"`
	} `yaml:"refresh"`

	Limits struct {
		MaxPerInstance decimal.Decimal `yaml:"max_per_instance"`
		MaxOverlapping decimal.Decimal `yaml:"max_overlapping"`
	} `yaml:"limits"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// Load reads and parses the configuration file, then applies environment
// overrides and validates the result. A missing path returns defaults
// plus environment overrides.
func Load(path string) (*Config, error) {
	var cfg Config
	cfg.defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) defaults() {
	c.Server.Port = "8080"
	c.Relayer.TimeoutSec = 10
	c.Chain.TimeoutSec = 10
	c.Indexer.CacheTTLSec = 30
	c.Refresh.IntervalSec = 30
	c.Limits.MaxPerInstance = decimal.NewFromInt(10000)
	c.Limits.MaxOverlapping = decimal.NewFromInt(50000)
	c.Logging.Level = "info"
}

// overrideWithEnv lets deployment environments inject endpoints and
// secrets without touching the config file.
func (c *Config) overrideWithEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("RELAYER_URL"); v != "" {
		c.Relayer.URL = v
	}
	if v := os.Getenv("CHAIN_GATEWAY_URL"); v != "" {
		c.Chain.GatewayURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Indexer.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Indexer.RedisURL = v
	}
	if v := os.Getenv("REFRESH_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Refresh.IntervalSec = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must not be empty")
	}
	if c.Refresh.IntervalSec <= 0 {
		return fmt.Errorf("refresh.interval_sec must be positive, got %d", c.Refresh.IntervalSec)
	}
	if c.Relayer.TimeoutSec <= 0 || c.Chain.TimeoutSec <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.Limits.MaxPerInstance.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("limits.max_per_instance must be positive")
	}
	if c.Limits.MaxOverlapping.LessThan(c.Limits.MaxPerInstance) {
		return fmt.Errorf("limits.max_overlapping must be >= limits.max_per_instance")
	}
	return nil
}
