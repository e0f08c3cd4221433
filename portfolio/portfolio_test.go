package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backsim/market"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func eurUsd() market.Instrument {
	return market.Instrument{
		Symbol:         "EUR_USD",
		BaseCurrency:   "EUR",
		QuoteCurrency:  "USD",
		TickSize:       d("0.00001"),
		PricePrecision: 5,
		Multiplier:     decimal.NewFromInt(1),
		MarginRate:     d("0.02"),
	}
}

func usdJpy() market.Instrument {
	return market.Instrument{
		Symbol:         "USD_JPY",
		BaseCurrency:   "USD",
		QuoteCurrency:  "JPY",
		TickSize:       d("0.001"),
		PricePrecision: 3,
		Multiplier:     decimal.NewFromInt(1),
		MarginRate:     d("0.02"),
	}
}

// staticPositions satisfies PositionSource with a fixed set of marks.
type staticPositions []PositionMark

func (s staticPositions) OpenPositions() []PositionMark { return s }

func newTestPortfolio(t *testing.T, frozen bool, insts ...market.Instrument) (*Portfolio, *Account, *market.TickStore) {
	t.Helper()
	reg, err := market.NewRegistry(insts...)
	require.NoError(t, err)
	acct := NewAccount("TEST", "USD", decimal.NewFromInt(100000), frozen)
	ticks := market.NewTickStore()
	return New(nil, acct, reg, ticks), acct, ticks
}

func setTick(ticks *market.TickStore, symbol, bid, ask string) {
	ticks.Set(market.Tick{
		Symbol: symbol, Bid: d(bid), Ask: d(ask), Time: time.Now(),
	})
}

func TestAccountApplyImpact(t *testing.T) {
	p, acct, _ := newTestPortfolio(t, false, eurUsd())

	require.NoError(t, p.Apply(BalanceImpact{
		Currency:   "USD",
		RealizedPL: d("25"),
		Commission: d("0.5"),
		Reason:     "fill F-000001 EUR_USD",
	}))
	assert.True(t, acct.Balance("USD").Equal(d("100024.5")))

	err := p.Apply(BalanceImpact{RealizedPL: d("1")})
	assert.ErrorIs(t, err, ErrBadImpact)
}

func TestBalancesStayInTheirCurrency(t *testing.T) {
	p, acct, _ := newTestPortfolio(t, false, eurUsd(), usdJpy())

	require.NoError(t, p.Apply(BalanceImpact{
		Currency: "JPY", RealizedPL: d("1500"),
	}))

	assert.True(t, acct.Balance("JPY").Equal(d("1500")))
	assert.True(t, acct.Balance("USD").Equal(d("100000")))
	assert.Equal(t, []string{"JPY", "USD"}, acct.Currencies())
}

func TestConvertedBalanceCrossCurrency(t *testing.T) {
	p, _, ticks := newTestPortfolio(t, false, eurUsd(), usdJpy())
	require.NoError(t, p.Apply(BalanceImpact{
		Currency: "JPY", RealizedPL: d("15000"),
	}))
	setTick(ticks, "USD_JPY", "149.995", "150.005")

	// 15000 JPY at a 150.000 mid is 100 USD.
	bal, err := p.ConvertedBalance()
	require.NoError(t, err)
	assert.True(t, bal.Equal(d("100100")), "balance %s", bal)
}

func TestConvertedBalanceFailsWithoutRate(t *testing.T) {
	p, _, _ := newTestPortfolio(t, false, eurUsd())
	require.NoError(t, p.Apply(BalanceImpact{
		Currency: "GBP", RealizedPL: d("10"),
	}))

	_, err := p.ConvertedBalance()
	assert.Error(t, err)
}

func TestUnrealizedPLUsesClosingSide(t *testing.T) {
	p, _, ticks := newTestPortfolio(t, false, eurUsd())
	setTick(ticks, "EUR_USD", "1.10100", "1.10120")

	p.SetPositionSource(staticPositions{
		{Symbol: "EUR_USD", NetQty: d("1000"), AvgEntry: d("1.10000")},
	})

	// Longs mark at the bid.
	upl, err := p.UnrealizedPL()
	require.NoError(t, err)
	assert.True(t, upl.Equal(d("1")), "upl %s", upl)

	p.SetPositionSource(staticPositions{
		{Symbol: "EUR_USD", NetQty: d("-1000"), AvgEntry: d("1.10000")},
	})

	// Shorts mark at the ask.
	upl, err = p.UnrealizedPL()
	require.NoError(t, err)
	assert.True(t, upl.Equal(d("-1.2")), "upl %s", upl)
}

func TestEquityAndMargin(t *testing.T) {
	p, _, ticks := newTestPortfolio(t, false, eurUsd())
	setTick(ticks, "EUR_USD", "1.09990", "1.10010")

	p.SetPositionSource(staticPositions{
		{Symbol: "EUR_USD", NetQty: d("1000"), AvgEntry: d("1.10000")},
	})
	require.NoError(t, p.RecomputeMargin())

	// 1000 * 1.10000 mid * 0.02 margin rate.
	assert.True(t, p.MarginUsed().Equal(d("22")), "margin %s", p.MarginUsed())

	eq, err := p.Equity()
	require.NoError(t, err)
	assert.True(t, eq.Equal(d("99999.9")), "equity %s", eq)

	call, err := p.MarginCall()
	require.NoError(t, err)
	assert.False(t, call)
}

func TestMarginCallAndLiquidationCandidate(t *testing.T) {
	p, acct, ticks := newTestPortfolio(t, false, eurUsd(), usdJpy())
	setTick(ticks, "EUR_USD", "1.09990", "1.10010")
	setTick(ticks, "USD_JPY", "149.995", "150.005")

	// Drain the account so equity falls below margin used.
	require.NoError(t, p.Apply(BalanceImpact{
		Currency: "USD", RealizedPL: d("-99990"),
	}))
	assert.True(t, acct.Balance("USD").Equal(d("10")))

	p.SetPositionSource(staticPositions{
		{Symbol: "EUR_USD", NetQty: d("1000"), AvgEntry: d("1.10000")},
		{Symbol: "USD_JPY", NetQty: d("1000"), AvgEntry: d("151.000")},
	})
	require.NoError(t, p.RecomputeMargin())

	call, err := p.MarginCall()
	require.NoError(t, err)
	assert.True(t, call)

	// USD_JPY carries roughly -1000 JPY of unrealized loss, far worse
	// than the EUR_USD mark; it must be the candidate.
	mark, found, err := p.LiquidationCandidate()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "USD_JPY", mark.Symbol)
}

func TestFrozenAccountNeverMarginCalls(t *testing.T) {
	p, _, ticks := newTestPortfolio(t, true, eurUsd())
	setTick(ticks, "EUR_USD", "1.09990", "1.10010")

	require.NoError(t, p.Apply(BalanceImpact{
		Currency: "USD", RealizedPL: d("-99999"),
	}))
	p.SetPositionSource(staticPositions{
		{Symbol: "EUR_USD", NetQty: d("100000"), AvgEntry: d("1.10000")},
	})
	require.NoError(t, p.RecomputeMargin())
	assert.True(t, p.MarginUsed().IsPositive())

	call, err := p.MarginCall()
	require.NoError(t, err)
	assert.False(t, call, "frozen accounts skip liquidation, not accounting")
}

func TestSnapshotDegradesGracefully(t *testing.T) {
	p, _, _ := newTestPortfolio(t, false, eurUsd())
	require.NoError(t, p.Apply(BalanceImpact{
		Currency: "GBP", RealizedPL: d("10"),
	}))

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := p.Snapshot(at)
	assert.Equal(t, at, s.Time)
	assert.Equal(t, "USD", s.Currency)
	// Conversion fails for GBP; the snapshot reports the raw USD balance.
	assert.True(t, s.Balance.Equal(d("100000")))
	assert.True(t, s.Balances["GBP"].Equal(d("10")))
	assert.True(t, s.MarginLevel.IsZero())
}
