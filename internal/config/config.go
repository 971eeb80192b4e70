// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/quanvu/dipbot/internal/compliance"
	"github.com/quanvu/dipbot/internal/fillwait"
	"github.com/quanvu/dipbot/internal/router"
	"github.com/quanvu/dipbot/internal/types"
)

// Config represents the full application configuration.
type Config struct {
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Symbols    []SymbolConfig   `yaml:"symbols"`
	Compliance ComplianceConfig `yaml:"compliance"`
	Router     RouterConfig     `yaml:"router"`
	FillWait   FillWaitConfig   `yaml:"fill_wait"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Ghost      GhostConfig      `yaml:"ghost"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Alerting   AlertingConfig   `yaml:"alerting"`
}

// ExchangeConfig holds exchange connectivity settings.
type ExchangeConfig struct {
	Type               string `yaml:"type"` // paper
	RateLimitPerSecond int    `yaml:"rate_limit_per_second"`
}

// SymbolConfig holds per-symbol market rules.
type SymbolConfig struct {
	Symbol      string  `yaml:"symbol"`
	PriceTick   float64 `yaml:"price_tick"`
	AmountStep  float64 `yaml:"amount_step"`
	MinNotional float64 `yaml:"min_notional"`
}

// ComplianceConfig holds validation settings.
type ComplianceConfig struct {
	FeeBuffer     float64 `yaml:"fee_buffer"`
	MaxBumpFactor float64 `yaml:"max_bump_factor"`
}

// RouterConfig holds idempotent submission settings.
type RouterConfig struct {
	MaxRetries         int `yaml:"max_retries"`
	RetryBackoffMs     int `yaml:"retry_backoff_ms"`
	ResultTTLSec       int `yaml:"result_ttl_sec"`
	CleanupIntervalSec int `yaml:"cleanup_interval_sec"`
}

// FillWaitConfig holds fill wait settings.
type FillWaitConfig struct {
	PollIntervalMs   int `yaml:"poll_interval_ms"`
	TimeoutSec       int `yaml:"timeout_sec"`
	PartialMaxAgeSec int `yaml:"partial_max_age_sec"`
}

// ReconcileConfig holds reconciliation settings.
type ReconcileConfig struct {
	IntervalSec int `yaml:"interval_sec"`
}

// GhostConfig holds ghost audit trail settings.
type GhostConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"` // sqlite file; empty means in-memory
	TTLHours int    `yaml:"ttl_hours"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// AlertingConfig holds alerting settings.
type AlertingConfig struct {
	Enabled  bool            `yaml:"enabled"`
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig holds a single alert channel configuration.
type ChannelConfig struct {
	Type     string `yaml:"type"` // console | telegram
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration and fills defaults.
func (c *Config) Validate() error {
	var errs []string

	if c.Exchange.Type == "" {
		c.Exchange.Type = "paper"
	}
	if c.Exchange.Type != "paper" {
		errs = append(errs, fmt.Sprintf("exchange.type '%s' is not supported", c.Exchange.Type))
	}
	if c.Exchange.RateLimitPerSecond <= 0 {
		c.Exchange.RateLimitPerSecond = 10
	}

	if len(c.Symbols) == 0 {
		errs = append(errs, "at least one symbol is required")
	}
	seen := make(map[string]bool)
	for _, s := range c.Symbols {
		if s.Symbol == "" {
			errs = append(errs, "symbols entries require a symbol name")
			continue
		}
		if seen[s.Symbol] {
			errs = append(errs, fmt.Sprintf("symbol %s is listed twice", s.Symbol))
		}
		seen[s.Symbol] = true
		if s.PriceTick < 0 || s.AmountStep < 0 || s.MinNotional < 0 {
			errs = append(errs, fmt.Sprintf("symbol %s has negative market rules", s.Symbol))
		}
	}

	if c.Compliance.FeeBuffer != 0 && c.Compliance.FeeBuffer < 1 {
		errs = append(errs, "compliance.fee_buffer must be >= 1")
	}
	if c.Compliance.MaxBumpFactor < 0 {
		errs = append(errs, "compliance.max_bump_factor must not be negative")
	}

	if c.Router.MaxRetries < 0 {
		errs = append(errs, "router.max_retries must not be negative")
	}
	if c.FillWait.TimeoutSec < 0 {
		errs = append(errs, "fill_wait.timeout_sec must not be negative")
	}
	if c.Reconcile.IntervalSec <= 0 {
		c.Reconcile.IntervalSec = 300
	}
	if c.Ghost.TTLHours <= 0 {
		c.Ghost.TTLHours = 24
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 {
			c.Metrics.Port = 9091
		}
		if c.Metrics.Path == "" {
			c.Metrics.Path = "/metrics"
		}
	}
	for _, ch := range c.Alerting.Channels {
		switch ch.Type {
		case "console":
		case "telegram":
			if ch.BotToken == "" || ch.ChatID == "" {
				errs = append(errs, "telegram channel requires bot_token and chat_id")
			}
		default:
			errs = append(errs, fmt.Sprintf("unknown alert channel type '%s'", ch.Type))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// MarketRules returns the configured rules keyed by symbol.
func (c *Config) MarketRules() map[string]types.MarketRules {
	rules := make(map[string]types.MarketRules, len(c.Symbols))
	for _, s := range c.Symbols {
		rules[s.Symbol] = types.MarketRules{
			Symbol:      s.Symbol,
			PriceTick:   decimal.NewFromFloat(s.PriceTick),
			AmountStep:  decimal.NewFromFloat(s.AmountStep),
			MinNotional: decimal.NewFromFloat(s.MinNotional),
		}
	}
	return rules
}

// ToComplianceConfig converts to compliance.Config.
func (c *Config) ToComplianceConfig() compliance.Config {
	cfg := compliance.DefaultConfig()
	if c.Compliance.FeeBuffer > 0 {
		cfg.FeeBuffer = decimal.NewFromFloat(c.Compliance.FeeBuffer)
	}
	if c.Compliance.MaxBumpFactor > 0 {
		cfg.MaxBumpFactor = decimal.NewFromFloat(c.Compliance.MaxBumpFactor)
	}
	return cfg
}

// ToRouterConfig converts to router.Config.
func (c *Config) ToRouterConfig() router.Config {
	cfg := router.DefaultConfig()
	if c.Router.MaxRetries > 0 {
		cfg.MaxRetries = c.Router.MaxRetries
	}
	if c.Router.RetryBackoffMs > 0 {
		cfg.RetryBackoff = time.Duration(c.Router.RetryBackoffMs) * time.Millisecond
	}
	if c.Router.ResultTTLSec > 0 {
		cfg.ResultTTL = time.Duration(c.Router.ResultTTLSec) * time.Second
	}
	if c.Router.CleanupIntervalSec > 0 {
		cfg.CleanupInterval = time.Duration(c.Router.CleanupIntervalSec) * time.Second
	}
	return cfg
}

// ToFillWaitConfig converts to fillwait.Config.
func (c *Config) ToFillWaitConfig() fillwait.Config {
	cfg := fillwait.DefaultConfig()
	if c.FillWait.PollIntervalMs > 0 {
		cfg.PollInterval = time.Duration(c.FillWait.PollIntervalMs) * time.Millisecond
	}
	if c.FillWait.TimeoutSec > 0 {
		cfg.Timeout = time.Duration(c.FillWait.TimeoutSec) * time.Second
	}
	if c.FillWait.PartialMaxAgeSec > 0 {
		cfg.PartialMaxAge = time.Duration(c.FillWait.PartialMaxAgeSec) * time.Second
	}
	return cfg
}

// ReconcileInterval returns the reconcile loop period.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Reconcile.IntervalSec) * time.Second
}

// GhostTTL returns the ghost entry retention period.
func (c *Config) GhostTTL() time.Duration {
	return time.Duration(c.Ghost.TTLHours) * time.Hour
}
