package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete backtest configuration
type Config struct {
	Account     AccountConfig      `json:"account" yaml:"account"`
	Venue       VenueConfig        `json:"venue" yaml:"venue"`
	Instruments []InstrumentConfig `json:"instruments" yaml:"instruments"`
	Strategies  []StrategyConfig   `json:"strategies" yaml:"strategies"`
	Run         RunConfig          `json:"run" yaml:"run"`
	Journal     JournalConfig      `json:"journal" yaml:"journal"`
	Logging     LoggingConfig      `json:"logging" yaml:"logging"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	ID              string  `json:"id" yaml:"id"`
	Currency        string  `json:"currency" yaml:"currency"`
	StartingCapital float64 `json:"starting_capital" yaml:"starting_capital"`
	Frozen          bool    `json:"frozen,omitempty" yaml:"frozen,omitempty"`
}

// VenueConfig contains simulated venue parameters
type VenueConfig struct {
	Name           string          `json:"name" yaml:"name"`
	CommissionRate float64         `json:"commission_rate" yaml:"commission_rate"`
	FillModel      FillModelConfig `json:"fill_model" yaml:"fill_model"`
}

// FillModelConfig contains fill probability parameters
type FillModelConfig struct {
	ProbFillAtLimit float64 `json:"prob_fill_at_limit" yaml:"prob_fill_at_limit"`
	ProbFillAtStop  float64 `json:"prob_fill_at_stop" yaml:"prob_fill_at_stop"`
	ProbSlippage    float64 `json:"prob_slippage" yaml:"prob_slippage"`
	Seed            *int64  `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// InstrumentConfig describes one tradable instrument
type InstrumentConfig struct {
	Symbol            string  `json:"symbol" yaml:"symbol"`
	BaseCurrency      string  `json:"base_currency" yaml:"base_currency"`
	QuoteCurrency     string  `json:"quote_currency" yaml:"quote_currency"`
	TickSize          float64 `json:"tick_size" yaml:"tick_size"`
	PricePrecision    int32   `json:"price_precision" yaml:"price_precision"`
	QuantityPrecision int32   `json:"quantity_precision" yaml:"quantity_precision"`
	Multiplier        float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	MinTradeSize      float64 `json:"min_trade_size,omitempty" yaml:"min_trade_size,omitempty"`
	MarginRate        float64 `json:"margin_rate,omitempty" yaml:"margin_rate,omitempty"`
}

// StrategyConfig contains one strategy instance and its parameters
type StrategyConfig struct {
	Name         string  `json:"name" yaml:"name"`
	Instrument   string  `json:"instrument" yaml:"instrument"`
	Units        float64 `json:"units,omitempty" yaml:"units,omitempty"`
	FastPeriod   int     `json:"fast_period,omitempty" yaml:"fast_period,omitempty"`
	SlowPeriod   int     `json:"slow_period,omitempty" yaml:"slow_period,omitempty"`
	StopDistance float64 `json:"stop_distance,omitempty" yaml:"stop_distance,omitempty"`
	RiskPercent  float64 `json:"risk_percent,omitempty" yaml:"risk_percent,omitempty"`
	RewardRatio  float64 `json:"reward_ratio,omitempty" yaml:"reward_ratio,omitempty"`
}

// RunConfig bounds the simulated window. Zero times mean unbounded.
type RunConfig struct {
	Start time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	Stop  time.Time `json:"stop,omitempty" yaml:"stop,omitempty"`
	Data  []string  `json:"data,omitempty" yaml:"data,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	OrdersFile string `json:"orders_file,omitempty" yaml:"orders_file,omitempty"`
	FillsFile  string `json:"fills_file,omitempty" yaml:"fills_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoggingConfig contains log sink parameters
type LoggingConfig struct {
	Console   string `json:"console,omitempty" yaml:"console,omitempty"`
	Store     string `json:"store,omitempty" yaml:"store,omitempty"`
	StorePath string `json:"store_path,omitempty" yaml:"store_path,omitempty"`
}

// LoadFromFile loads configuration from a file (JSON or YAML based on content)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
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

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.StartingCapital <= 0 {
		return fmt.Errorf("account.starting_capital must be positive")
	}
	if c.Venue.Name == "" {
		return fmt.Errorf("venue.name is required")
	}
	if c.Venue.CommissionRate < 0 {
		return fmt.Errorf("venue.commission_rate must not be negative")
	}
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"prob_fill_at_limit", c.Venue.FillModel.ProbFillAtLimit},
		{"prob_fill_at_stop", c.Venue.FillModel.ProbFillAtStop},
		{"prob_slippage", c.Venue.FillModel.ProbSlippage},
	} {
		if p.value < 0 || p.value > 1 {
			return fmt.Errorf("venue.fill_model.%s must be between 0 and 1", p.name)
		}
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}
	symbols := make(map[string]bool, len(c.Instruments))
	for i, ins := range c.Instruments {
		if ins.Symbol == "" {
			return fmt.Errorf("instruments[%d].symbol is required", i)
		}
		if symbols[ins.Symbol] {
			return fmt.Errorf("duplicate instrument: %s", ins.Symbol)
		}
		symbols[ins.Symbol] = true
		if ins.BaseCurrency == "" || ins.QuoteCurrency == "" {
			return fmt.Errorf("instrument %s: base and quote currencies are required", ins.Symbol)
		}
		if ins.TickSize <= 0 {
			return fmt.Errorf("instrument %s: tick_size must be positive", ins.Symbol)
		}
		if ins.PricePrecision < 0 {
			return fmt.Errorf("instrument %s: price_precision must not be negative", ins.Symbol)
		}
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("at least one strategy is required")
	}
	for i, s := range c.Strategies {
		if s.Name == "" {
			return fmt.Errorf("strategies[%d].name is required", i)
		}
		if s.Instrument == "" {
			return fmt.Errorf("strategies[%d].instrument is required", i)
		}
		if !symbols[s.Instrument] {
			return fmt.Errorf("strategies[%d]: unknown instrument %s", i, s.Instrument)
		}
		if s.RiskPercent < 0 || s.RiskPercent > 1 {
			return fmt.Errorf("strategies[%d].risk_percent must be between 0 and 1", i)
		}
	}
	if !c.Run.Start.IsZero() && !c.Run.Stop.IsZero() && !c.Run.Stop.After(c.Run.Start) {
		return fmt.Errorf("run.stop must be after run.start")
	}
	switch c.Journal.Type {
	case "csv":
		if c.Journal.OrdersFile == "" || c.Journal.FillsFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal orders_file, fills_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "none", "":
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:              "SIM-001",
			Currency:        "USD",
			StartingCapital: 100000,
		},
		Venue: VenueConfig{
			Name:           "SIM",
			CommissionRate: 0.00002,
			FillModel: FillModelConfig{
				ProbFillAtLimit: 1,
				ProbFillAtStop:  1,
				ProbSlippage:    0,
			},
		},
		Instruments: []InstrumentConfig{
			{
				Symbol:            "EUR_USD",
				BaseCurrency:      "EUR",
				QuoteCurrency:     "USD",
				TickSize:          0.00001,
				PricePrecision:    5,
				QuantityPrecision: 0,
				Multiplier:        1,
				MinTradeSize:      1,
				MarginRate:        0.02,
			},
		},
		Strategies: []StrategyConfig{
			{
				Name:         "ema-cross",
				Instrument:   "EUR_USD",
				FastPeriod:   10,
				SlowPeriod:   20,
				StopDistance: 0.0020,
				RiskPercent:  0.01,
				RewardRatio:  2,
			},
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Logging: LoggingConfig{
			Console: "info",
		},
	}
}
