package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backsim/config"
	"github.com/rustyeddy/backsim/execution"
	"github.com/rustyeddy/backsim/journal"
	"github.com/rustyeddy/backsim/market"
	"github.com/rustyeddy/backsim/portfolio"
	"github.com/rustyeddy/backsim/strategies"
	"github.com/rustyeddy/backsim/timeline"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func testRegistry(t *testing.T) *market.Registry {
	t.Helper()
	reg, err := market.NewRegistry(market.Instrument{
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
	})
	require.NoError(t, err)
	return reg
}

func tick(bid, ask string, at time.Time) market.Tick {
	return market.Tick{
		Symbol:  "EUR_USD",
		Bid:     decimal.RequireFromString(bid),
		Ask:     decimal.RequireFromString(ask),
		BidSize: decimal.NewFromInt(1000000),
		AskSize: decimal.NewFromInt(1000000),
		Time:    at,
	}
}

func testOptions(t *testing.T, strats ...strategies.Strategy) Options {
	t.Helper()
	return Options{
		Registry:   testRegistry(t),
		Account:    portfolio.NewAccount("TEST", "USD", decimal.NewFromInt(100000), false),
		Strategies: strats,
	}
}

func TestRunBuyAndHold(t *testing.T) {
	mem := journal.NewMemory()
	opts := testOptions(t, strategies.NewBuyAndHold("EUR_USD", 1000))
	opts.Journal = mem

	e, err := New(nil, opts)
	require.NoError(t, err)

	stream := timeline.NewTickStream("EUR_USD", []market.Tick{
		tick("1.09990", "1.10000", t0),
		tick("1.10090", "1.10100", t0.Add(time.Second)),
		tick("1.10190", "1.10200", t0.Add(2*time.Second)),
	})

	res, err := e.Run(context.Background(), stream)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	assert.Equal(t, 3, res.Events)
	require.Len(t, res.Orders, 1)

	o := res.Orders[0]
	assert.Equal(t, execution.Filled, o.Status)
	assert.True(t, o.AvgFillPrice.Equal(decimal.RequireFromString("1.10000")),
		"filled at %s", o.AvgFillPrice)

	require.Len(t, res.Positions, 1)
	assert.True(t, res.Positions[0].NetQty.Equal(decimal.NewFromInt(1000)))

	// 1000 units marked at the last bid against a 1.10000 entry.
	wantUPL := decimal.RequireFromString("1.90")
	assert.True(t, res.Account.UnrealizedPL.Equal(wantUPL),
		"unrealized %s", res.Account.UnrealizedPL)

	assert.Len(t, mem.Fills(), 1)
	assert.Len(t, mem.Orders(), 1)
	assert.NotEmpty(t, mem.Equity())
	assert.Equal(t, res.RunID, mem.Orders()[0].RunID)
}

func TestRunWarmupWindow(t *testing.T) {
	opts := testOptions(t, strategies.NewBuyAndHold("EUR_USD", 1000))
	opts.Start = t0.Add(2 * time.Second)

	e, err := New(nil, opts)
	require.NoError(t, err)

	stream := timeline.NewTickStream("EUR_USD", []market.Tick{
		tick("1.09990", "1.10000", t0),
		tick("1.10090", "1.10100", t0.Add(time.Second)),
		tick("1.10190", "1.10200", t0.Add(2*time.Second)),
	})

	res, err := e.Run(context.Background(), stream)
	require.NoError(t, err)

	// Warmup events prime the quote but never reach the strategy.
	assert.Equal(t, 1, res.Events)
	require.Len(t, res.Orders, 1)
	assert.True(t, res.Orders[0].AvgFillPrice.Equal(decimal.RequireFromString("1.10200")))
}

func TestRunStopBoundIsExclusive(t *testing.T) {
	opts := testOptions(t, strategies.Noop{})
	opts.Stop = t0.Add(time.Second)

	e, err := New(nil, opts)
	require.NoError(t, err)

	stream := timeline.NewTickStream("EUR_USD", []market.Tick{
		tick("1.09990", "1.10000", t0),
		tick("1.10090", "1.10100", t0.Add(time.Second)),
		tick("1.10190", "1.10200", t0.Add(5*time.Second)),
	})

	res, err := e.Run(context.Background(), stream)
	require.NoError(t, err)

	// The tick stamped exactly at the stop time is outside the window.
	assert.Equal(t, 1, res.Events)
	assert.Equal(t, t0, res.Stop)
}

func TestRunFailsOnUnsortedStream(t *testing.T) {
	e, err := New(nil, testOptions(t, strategies.Noop{}))
	require.NoError(t, err)

	stream := timeline.NewTickStream("EUR_USD", []market.Tick{
		tick("1.10000", "1.10010", t0.Add(time.Minute)),
		tick("1.10000", "1.10010", t0),
	})

	_, err = e.Run(context.Background(), stream)
	require.Error(t, err)
	assert.ErrorIs(t, err, timeline.ErrOrderingViolation)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	e, err := New(nil, testOptions(t, strategies.Noop{}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Run(ctx, timeline.NewTickStream("EUR_USD", []market.Tick{
		tick("1.10000", "1.10010", t0),
	}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromConfigBuildsEngine(t *testing.T) {
	cfg := config.Default()
	e, err := FromConfig(nil, cfg)
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Events)
	assert.Empty(t, res.Orders)
	require.NoError(t, e.Close())
}
