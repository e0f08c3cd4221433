package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing currency", func(c *Config) { c.Account.Currency = "" }, "account.currency"},
		{"zero capital", func(c *Config) { c.Account.StartingCapital = 0 }, "starting_capital"},
		{"bad probability", func(c *Config) { c.Venue.FillModel.ProbSlippage = 1.5 }, "prob_slippage"},
		{"no instruments", func(c *Config) { c.Instruments = nil }, "at least one instrument"},
		{"zero tick size", func(c *Config) { c.Instruments[0].TickSize = 0 }, "tick_size"},
		{"unknown strategy instrument", func(c *Config) { c.Strategies[0].Instrument = "GBP_JPY" }, "unknown instrument"},
		{"bad journal type", func(c *Config) { c.Journal.Type = "parquet" }, "journal.type"},
		{"csv without paths", func(c *Config) { c.Journal.Type = "csv" }, "orders_file"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backtest.yaml")
	yaml := `
account:
  id: TEST-1
  currency: USD
  starting_capital: 50000
venue:
  name: SIM
  commission_rate: 0.0001
  fill_model:
    prob_fill_at_limit: 0.5
    prob_fill_at_stop: 1
    prob_slippage: 0.25
    seed: 42
instruments:
  - symbol: EUR_USD
    base_currency: EUR
    quote_currency: USD
    tick_size: 0.00001
    price_precision: 5
strategies:
  - name: buy-and-hold
    instrument: EUR_USD
    units: 1000
journal:
  type: sqlite
  db_path: ./run.db
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "TEST-1", cfg.Account.ID)
	assert.Equal(t, 50000.0, cfg.Account.StartingCapital)
	assert.Equal(t, 0.5, cfg.Venue.FillModel.ProbFillAtLimit)
	require.NotNil(t, cfg.Venue.FillModel.Seed)
	assert.Equal(t, int64(42), *cfg.Venue.FillModel.Seed)
	assert.Equal(t, "buy-and-hold", cfg.Strategies[0].Name)
	assert.Equal(t, "sqlite", cfg.Journal.Type)
}

func TestLoadFromFileJSONFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backtest.json")
	cfg := Default()
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Account.Currency, loaded.Account.Currency)
	assert.Equal(t, cfg.Venue.Name, loaded.Venue.Name)
}

func TestLoadFromFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account:\n  currency: \"\"\n"), 0644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
