package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/compound/logger"
	"github.com/rustyeddy/compound/market"
	"github.com/rustyeddy/compound/plan"
	"github.com/rustyeddy/compound/risk"
	"github.com/rustyeddy/compound/sim"
)

// Config is the complete application configuration.
type Config struct {
	Plan    PlanConfig    `json:"plan" yaml:"plan"`
	Account AccountConfig `json:"account" yaml:"account"`
	Feed    FeedConfig    `json:"feed" yaml:"feed"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Risk    risk.Policy   `json:"risk" yaml:"risk"`
	Log     logger.Config `json:"log" yaml:"log"`
	Server  ServerConfig  `json:"server" yaml:"server"`
}

// PlanConfig seeds a new plan document. Out-of-range values are replaced
// by the plan's fallback defaults rather than rejected.
type PlanConfig struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	FinalTarget    float64 `json:"final_target" yaml:"final_target"`
	Tenure         int     `json:"tenure" yaml:"tenure"`
	AnchorDate     string  `json:"anchor_date" yaml:"anchor_date"` // YYYY-MM-DD
}

func (p PlanConfig) Config() plan.Config {
	return plan.Config{InitialCapital: p.InitialCapital, FinalTarget: p.FinalTarget, Tenure: p.Tenure}
}

// Anchor parses AnchorDate, defaulting to plan.Anchor.
func (p PlanConfig) Anchor() (time.Time, error) {
	if p.AnchorDate == "" {
		return plan.Anchor, nil
	}
	return time.ParseInLocation(plan.DateLayout, p.AnchorDate, time.UTC)
}

type AccountConfig struct {
	ID       string `json:"id" yaml:"id"`
	Currency string `json:"currency" yaml:"currency"`
	Leverage int    `json:"leverage" yaml:"leverage"` // default for orders
}

type FeedConfig struct {
	Period          string   `json:"period" yaml:"period"`                     // e.g. "2s"
	ValuationPeriod string   `json:"valuation_period" yaml:"valuation_period"` // e.g. "500ms"
	Seed            int64    `json:"seed,omitempty" yaml:"seed,omitempty"`
	Instruments     []string `json:"instruments" yaml:"instruments"`
}

func (f FeedConfig) PeriodDuration() (time.Duration, error) {
	return parseDuration(f.Period)
}

func (f FeedConfig) ValuationDuration() (time.Duration, error) {
	return parseDuration(f.ValuationPeriod)
}

type StoreConfig struct {
	Type     string `json:"type" yaml:"type"` // "file" or "sqlite"
	Path     string `json:"path" yaml:"path"` // directory for file, db path for sqlite
	User     string `json:"user" yaml:"user"`
	Debounce string `json:"debounce" yaml:"debounce"`
}

func (s StoreConfig) DebounceDuration() (time.Duration, error) {
	return parseDuration(s.Debounce)
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
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

// Validate checks the parts that have no fallback.
func (c *Config) Validate() error {
	if _, err := c.Plan.Anchor(); err != nil {
		return fmt.Errorf("plan.anchor_date: %w", err)
	}
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if !validLeverage(c.Account.Leverage) {
		return fmt.Errorf("account.leverage must be one of %v", sim.Leverages)
	}

	if _, err := c.Feed.PeriodDuration(); err != nil {
		return fmt.Errorf("feed.period: %w", err)
	}
	if _, err := c.Feed.ValuationDuration(); err != nil {
		return fmt.Errorf("feed.valuation_period: %w", err)
	}
	for _, name := range c.Feed.Instruments {
		if _, ok := market.Instruments[name]; !ok {
			return fmt.Errorf("unknown instrument: %s", name)
		}
	}

	switch c.Store.Type {
	case "file", "sqlite":
	default:
		return fmt.Errorf("store.type must be 'file' or 'sqlite'")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Store.User == "" {
		return fmt.Errorf("store.user is required")
	}
	if _, err := c.Store.DebounceDuration(); err != nil {
		return fmt.Errorf("store.debounce: %w", err)
	}

	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}

	if c.Risk.MaxRiskPct < 0 || c.Risk.MaxRiskPct > 1 {
		return fmt.Errorf("risk.max_risk_pct must be between 0 and 1")
	}
	return nil
}

func validLeverage(l int) bool {
	for _, v := range sim.Leverages {
		if v == l {
			return true
		}
	}
	return false
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Plan: PlanConfig{
			InitialCapital: plan.DefaultInitialCapital,
			FinalTarget:    2 * plan.DefaultInitialCapital,
			Tenure:         plan.DefaultTenure,
			AnchorDate:     plan.Anchor.Format(plan.DateLayout),
		},
		Account: AccountConfig{
			ID:       "SIM-001",
			Currency: "USD",
			Leverage: 100,
		},
		Feed: FeedConfig{
			Period:          "2s",
			ValuationPeriod: "500ms",
			Instruments:     []string{"EUR/USD", "GBP/USD", "XAU/USD", "BTC/USDT"},
		},
		Store: StoreConfig{
			Type:     "file",
			Path:     "./plans",
			User:     "trader",
			Debounce: "1s",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./journal.db",
		},
		Risk: risk.DefaultPolicy(),
		Log: logger.Config{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}
