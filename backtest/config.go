package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/backsim/config"
	"github.com/rustyeddy/backsim/journal"
	"github.com/rustyeddy/backsim/market"
	"github.com/rustyeddy/backsim/portfolio"
	"github.com/rustyeddy/backsim/sim"
	"github.com/rustyeddy/backsim/strategies"
)

// FromConfig builds a run-ready engine from the configuration surface.
// The config has already been validated by its loader.
func FromConfig(log *zap.Logger, cfg *config.Config) (*Engine, error) {
	reg, err := RegistryFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	acct := portfolio.NewAccount(cfg.Account.ID, cfg.Account.Currency,
		decimal.NewFromFloat(cfg.Account.StartingCapital), cfg.Account.Frozen)

	model, err := sim.NewFillModel(
		cfg.Venue.FillModel.ProbFillAtLimit,
		cfg.Venue.FillModel.ProbFillAtStop,
		cfg.Venue.FillModel.ProbSlippage,
		cfg.Venue.FillModel.Seed,
	)
	if err != nil {
		return nil, fmt.Errorf("fill model: %w", err)
	}

	var strats []strategies.Strategy
	for _, sc := range cfg.Strategies {
		s, err := strategies.ByName(sc.Name, strategies.Params{
			Instrument:   sc.Instrument,
			Units:        sc.Units,
			FastPeriod:   sc.FastPeriod,
			SlowPeriod:   sc.SlowPeriod,
			StopDistance: sc.StopDistance,
			RiskPct:      sc.RiskPercent,
			RR:           sc.RewardRatio,
		})
		if err != nil {
			return nil, err
		}
		strats = append(strats, s)
	}

	jrnl, err := journalFromConfig(cfg.Journal)
	if err != nil {
		return nil, err
	}

	return New(log, Options{
		Registry:       reg,
		Account:        acct,
		FillModel:      model,
		CommissionRate: decimal.NewFromFloat(cfg.Venue.CommissionRate),
		VenueName:      cfg.Venue.Name,
		Strategies:     strats,
		Journal:        jrnl,
		Start:          cfg.Run.Start,
		Stop:           cfg.Run.Stop,
	})
}

// RegistryFromConfig converts configured instruments into the registry's
// decimal domain.
func RegistryFromConfig(cfg *config.Config) (*market.Registry, error) {
	insts := make([]market.Instrument, 0, len(cfg.Instruments))
	for _, ic := range cfg.Instruments {
		insts = append(insts, market.Instrument{
			Symbol:            ic.Symbol,
			Venue:             cfg.Venue.Name,
			BaseCurrency:      ic.BaseCurrency,
			QuoteCurrency:     ic.QuoteCurrency,
			TickSize:          decimal.NewFromFloat(ic.TickSize),
			PricePrecision:    ic.PricePrecision,
			QuantityPrecision: ic.QuantityPrecision,
			Multiplier:        decimal.NewFromFloat(ic.Multiplier),
			MinTradeSize:      decimal.NewFromFloat(ic.MinTradeSize),
			MarginRate:        decimal.NewFromFloat(ic.MarginRate),
		})
	}
	return market.NewRegistry(insts...)
}

func journalFromConfig(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "csv":
		return journal.NewCSV(jc.OrdersFile, jc.FillsFile, jc.EquityFile)
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "none", "":
		return journal.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", jc.Type)
	}
}
