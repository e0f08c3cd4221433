//go:build blackbox

package blackbox

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backsim/backtest"
	"github.com/rustyeddy/backsim/execution"
	"github.com/rustyeddy/backsim/market"
	"github.com/rustyeddy/backsim/portfolio"
	"github.com/rustyeddy/backsim/strategies"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func eurUsd() market.Instrument {
	return market.Instrument{
		Symbol:            "EUR_USD",
		Venue:             "SIM",
		BaseCurrency:      "EUR",
		QuoteCurrency:     "USD",
		TickSize:          decimal.RequireFromString("0.00001"),
		PricePrecision:    5,
		QuantityPrecision: 0,
		Multiplier:        decimal.NewFromInt(1),
		MinTradeSize:      decimal.NewFromInt(1),
		MarginRate:        decimal.RequireFromString("0.02"),
	}
}

func newOptions(t *testing.T, strats ...strategies.Strategy) backtest.Options {
	t.Helper()
	reg, err := market.NewRegistry(eurUsd())
	require.NoError(t, err)
	return backtest.Options{
		Registry:   reg,
		Account:    portfolio.NewAccount("BB-TEST", "USD", decimal.NewFromInt(100000), false),
		Strategies: strats,
	}
}

// genTicks produces a deterministic tick series from a mid-price curve.
func genTicks(n int, mid func(i int) float64) []market.Tick {
	out := make([]market.Tick, 0, n)
	for i := 0; i < n; i++ {
		m := decimal.NewFromFloat(mid(i)).Round(5)
		half := decimal.RequireFromString("0.00010")
		out = append(out, market.Tick{
			Symbol:  "EUR_USD",
			Bid:     m.Sub(half),
			Ask:     m.Add(half),
			BidSize: decimal.NewFromInt(1000000),
			AskSize: decimal.NewFromInt(1000000),
			Time:    t0.Add(time.Duration(i) * time.Second),
		})
	}
	return out
}

func genBars(n int, close func(i int) float64) []market.Bar {
	out := make([]market.Bar, 0, n)
	for i := 0; i < n; i++ {
		c := decimal.NewFromFloat(close(i)).Round(5)
		out = append(out, market.Bar{
			Symbol:     "EUR_USD",
			Open:       c,
			High:       c,
			Low:        c,
			Close:      c,
			Volume:     decimal.NewFromInt(100),
			Resolution: market.Minute,
			Time:       t0.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

// limitOnce submits one resting limit order on the first event and then
// watches.
type limitOnce struct {
	price   decimal.Decimal
	side    execution.Side
	qty     decimal.Decimal
	orderID string
	events  []execution.OrderEvent
}

func (s *limitOnce) Name() string { return "limit-once" }

func (s *limitOnce) OnStart(context.Context, strategies.Trader) error { return nil }
func (s *limitOnce) OnStop(context.Context, strategies.Trader) error  { return nil }

func (s *limitOnce) OnMarketEvent(ctx context.Context, tr strategies.Trader, ev market.Event) error {
	if s.orderID != "" {
		return nil
	}
	id, err := tr.Submit(ctx, execution.Command{
		Symbol:   "EUR_USD",
		Side:     s.side,
		Type:     execution.Limit,
		Quantity: s.qty,
		Price:    s.price,
	})
	if err != nil {
		return err
	}
	s.orderID = id
	return nil
}

func (s *limitOnce) OnOrderEvent(_ context.Context, _ strategies.Trader, ev execution.OrderEvent) error {
	s.events = append(s.events, ev)
	return nil
}
