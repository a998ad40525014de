// Package config defines all configuration for the market-making bot.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// fields overridable via MM_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"kalshi-mm/internal/strategy"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	Mode      string          `mapstructure:"mode"` // "paper" is the only supported mode
	Markets   []MarketConfig  `mapstructure:"markets"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// MarketConfig identifies one market to quote.
type MarketConfig struct {
	Ticker         string    `mapstructure:"ticker"`
	SettlementTime time.Time `mapstructure:"settlement_time"`
}

// StrategyConfig tunes the quoting pipeline.
//
//   - MaxInventory: absolute net inventory cap in contracts.
//   - BaseSize: contracts per quote side before inventory sizing.
//   - QuoteInterval: how often to recompute and reconcile quotes.
//   - Components: which calculator variant (and parameters) fills each
//     pipeline slot; resolved once at startup.
type StrategyConfig struct {
	MaxInventory  int             `mapstructure:"max_inventory"`
	BaseSize      int             `mapstructure:"base_size"`
	QuoteInterval time.Duration   `mapstructure:"quote_interval"`
	Components    strategy.Config `mapstructure:"components"`
}

// RiskConfig sets the rule pipeline: which rules run, in which order, and
// their limits. FeeRate is the fee fraction of notional charged per fill.
type RiskConfig struct {
	FeeRate   string         `mapstructure:"fee_rate"`
	RuleOrder []string       `mapstructure:"rule_order"`
	Rules     RuleLimits     `mapstructure:"rules"`
	Differ    DifferConfig   `mapstructure:"differ"`
}

// RuleLimits carries the per-rule thresholds.
type RuleLimits struct {
	StaleDataMaxAge time.Duration `mapstructure:"stale_data_max_age"`
	CutoffMinutes   float64       `mapstructure:"cutoff_minutes"`
	MaxOrderSize    int           `mapstructure:"max_order_size"`
	HourlyLossLimit string        `mapstructure:"hourly_loss_limit"`
	DailyLossLimit  string        `mapstructure:"daily_loss_limit"`
}

// DifferConfig sets the tolerances for keeping resting orders in place.
type DifferConfig struct {
	PriceTolerance string `mapstructure:"price_tolerance"`
	SizeTolerance  int    `mapstructure:"size_tolerance"`
}

// FeedConfig controls the market data source.
type FeedConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Seed     int64         `mapstructure:"seed"`
}

// StoreConfig sets where session data is persisted (SQLite).
type StoreConfig struct {
	DBPath           string        `mapstructure:"db_path"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the monitoring HTTP server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with MM_* env var overrides
// (e.g. MM_DASHBOARD_PORT=8081).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "paper")
	v.SetDefault("strategy.quote_interval", "1s")
	v.SetDefault("feed.interval", "500ms")
	v.SetDefault("store.snapshot_interval", "1m")
	v.SetDefault("risk.differ.price_tolerance", "0.01")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges. Rule-limit strings are
// parsed here so misconfiguration fails at startup, not mid-session.
func (c *Config) Validate() error {
	if c.Mode != "paper" {
		return fmt.Errorf("mode %q is not supported (only \"paper\")", c.Mode)
	}
	if len(c.Markets) == 0 {
		return fmt.Errorf("at least one market is required")
	}
	for i, m := range c.Markets {
		if m.Ticker == "" {
			return fmt.Errorf("markets[%d].ticker is required", i)
		}
		if m.SettlementTime.IsZero() {
			return fmt.Errorf("markets[%d].settlement_time is required", i)
		}
	}
	if c.Strategy.MaxInventory <= 0 {
		return fmt.Errorf("strategy.max_inventory must be > 0")
	}
	if c.Strategy.BaseSize <= 0 {
		return fmt.Errorf("strategy.base_size must be > 0")
	}
	if c.Strategy.QuoteInterval <= 0 {
		return fmt.Errorf("strategy.quote_interval must be > 0")
	}

	if _, err := c.FeeRate(); err != nil {
		return err
	}

	known := map[string]bool{
		"stale_data": true, "settlement_cutoff": true, "max_inventory": true,
		"max_order_size": true, "hourly_loss_limit": true, "daily_loss_limit": true,
	}
	for _, name := range c.Risk.RuleOrder {
		if !known[name] {
			return fmt.Errorf("risk.rule_order: unknown rule %q", name)
		}
	}

	for field, s := range map[string]string{
		"risk.rules.hourly_loss_limit": c.Risk.Rules.HourlyLossLimit,
		"risk.rules.daily_loss_limit":  c.Risk.Rules.DailyLossLimit,
		"risk.differ.price_tolerance":  c.Risk.Differ.PriceTolerance,
	} {
		if s == "" {
			continue
		}
		if _, err := decimal.NewFromString(s); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}

	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path is required")
	}
	return nil
}

// FeeRate parses the configured fee rate, defaulting to zero.
func (c *Config) FeeRate() (decimal.Decimal, error) {
	if c.Risk.FeeRate == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(c.Risk.FeeRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("risk.fee_rate: %w", err)
	}
	if rate.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("risk.fee_rate must be >= 0")
	}
	return rate, nil
}
