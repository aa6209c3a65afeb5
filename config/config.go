// Package config loads and validates the bot's runtime configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ahlbert/mt5-tradingbot/market"
	"github.com/ahlbert/mt5-tradingbot/risk"
	"github.com/ahlbert/mt5-tradingbot/signal"
)

// Config is the complete bot configuration.
type Config struct {
	App     AppConfig             `json:"app" yaml:"app"`
	Bot     BotConfig             `json:"bot" yaml:"bot"`
	Risk    risk.Config           `json:"risk" yaml:"risk"`
	Signal  signal.MomentumConfig `json:"signal" yaml:"signal"`
	Bridge  BridgeConfig          `json:"bridge" yaml:"bridge"`
	Journal JournalConfig         `json:"journal" yaml:"journal"`
	Metrics MetricsConfig         `json:"metrics" yaml:"metrics"`
	Alert   AlertConfig           `json:"alert" yaml:"alert"`
}

// AppConfig covers logging and process-level settings.
type AppConfig struct {
	LogLevel string `json:"log_level" yaml:"log_level"` // debug, info, warn, error
	LogFile  string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
}

// BotConfig covers the trading loop itself.
type BotConfig struct {
	Symbol          string `json:"symbol" yaml:"symbol"`
	MaxTradesPerDay int    `json:"max_trades_per_day" yaml:"max_trades_per_day"`
}

// BridgeConfig points at the MT5 REST bridge. The token is never stored in
// the file; TokenEnv names the environment variable that carries it.
type BridgeConfig struct {
	URL      string `json:"url" yaml:"url"`
	TokenEnv string `json:"token_env" yaml:"token_env"`
}

// BridgeURLEnv overrides bridge.url when set, so deployments can point a
// shared config file at different bridges.
const BridgeURLEnv = "MT5_BRIDGE_URL"

// Token resolves the bridge auth token from the environment. Empty is valid
// for bridges that do not authenticate.
func (b BridgeConfig) Token() string {
	if b.TokenEnv == "" {
		return ""
	}
	return os.Getenv(b.TokenEnv)
}

// JournalConfig contains persistence parameters.
type JournalConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

// MetricsConfig controls the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// AlertConfig controls the operator webhook. Empty WebhookURL falls back to
// log-only alerts.
type AlertConfig struct {
	WebhookURL string `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
}

// LoadFromFile loads configuration from a file, trying YAML first and
// falling back to JSON, then validates it. Missing sections keep their
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv lets the environment win over the file for deployment-specific
// settings.
func (c *Config) ApplyEnv() {
	if url := os.Getenv(BridgeURLEnv); url != "" {
		c.Bridge.URL = url
	}
}

// SaveToFile writes the configuration to a file, choosing YAML or JSON by
// extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the bot cannot run with.
func (c *Config) Validate() error {
	switch c.App.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.log_level must be debug, info, warn or error")
	}
	if c.Bot.Symbol == "" {
		return fmt.Errorf("bot.symbol is required")
	}
	if _, ok := market.Instruments[c.Bot.Symbol]; !ok {
		return fmt.Errorf("unknown symbol: %s", c.Bot.Symbol)
	}
	if c.Bot.MaxTradesPerDay <= 0 {
		return fmt.Errorf("bot.max_trades_per_day must be positive")
	}
	if c.Risk.MaxRiskPerTrade <= 0 || c.Risk.MaxRiskPerTrade > 1 {
		return fmt.Errorf("risk.max_risk_per_trade must be between 0 and 1")
	}
	if c.Risk.MaxDailyLoss <= 0 || c.Risk.MaxDailyLoss > 1 {
		return fmt.Errorf("risk.max_daily_loss must be between 0 and 1")
	}
	if c.Risk.MaxPositions <= 0 {
		return fmt.Errorf("risk.max_positions must be positive")
	}
	if c.Risk.TrailingRetracement <= 0 || c.Risk.TrailingRetracement >= 1 {
		return fmt.Errorf("risk.trailing_retracement must be between 0 and 1 exclusive")
	}
	if c.Signal.FastPeriod <= 0 || c.Signal.SlowPeriod <= 0 {
		return fmt.Errorf("signal periods must be positive")
	}
	if c.Signal.FastPeriod >= c.Signal.SlowPeriod {
		return fmt.Errorf("signal.fast_period must be shorter than slow_period")
	}
	if c.Bridge.URL == "" {
		return fmt.Errorf("bridge.url is required")
	}
	if c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path is required")
	}
	return nil
}

// Default returns the configuration the bot ships with. Bridge.URL points at
// a bridge on the local machine, the usual setup next to an MT5 terminal.
func Default() *Config {
	return &Config{
		App: AppConfig{
			LogLevel: "info",
		},
		Bot: BotConfig{
			Symbol:          "EURUSD",
			MaxTradesPerDay: 50,
		},
		Risk:   risk.DefaultConfig(),
		Signal: signal.DefaultMomentumConfig(),
		Bridge: BridgeConfig{
			URL:      "http://127.0.0.1:8787",
			TokenEnv: "MT5_BRIDGE_TOKEN",
		},
		Journal: JournalConfig{
			DBPath: "./mt5bot.db",
		},
	}
}
