package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conversionFixture(t *testing.T) (*Registry, *TickStore) {
	t.Helper()
	reg, err := NewRegistry(
		Instrument{Symbol: "EUR_USD", BaseCurrency: "EUR", QuoteCurrency: "USD", TickSize: d("0.00001")},
		Instrument{Symbol: "USD_JPY", BaseCurrency: "USD", QuoteCurrency: "JPY", TickSize: d("0.001")},
		Instrument{Symbol: "EUR_JPY", BaseCurrency: "EUR", QuoteCurrency: "JPY", TickSize: d("0.001")},
	)
	require.NoError(t, err)

	ticks := NewTickStore()
	now := time.Now()
	ticks.Set(Tick{Symbol: "EUR_USD", Bid: d("1.09990"), Ask: d("1.10010"), Time: now})
	ticks.Set(Tick{Symbol: "USD_JPY", Bid: d("149.995"), Ask: d("150.005"), Time: now})
	return reg, ticks
}

func TestQuoteMatchesAccountCurrency(t *testing.T) {
	reg, ticks := conversionFixture(t)
	rate, err := QuoteToAccountRate(reg, "EUR_USD", "USD", ticks)
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("1")))
}

func TestAccountIsBaseCurrency(t *testing.T) {
	reg, ticks := conversionFixture(t)
	// USD account trading USD_JPY: invert the 150.000 mid.
	rate, err := QuoteToAccountRate(reg, "USD_JPY", "USD", ticks)
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("1").Div(d("150"))), "rate %s", rate)
}

func TestCrossThroughRegisteredPair(t *testing.T) {
	reg, ticks := conversionFixture(t)
	// USD account trading EUR_JPY: JPY -> USD through USD_JPY inverted.
	rate, err := QuoteToAccountRate(reg, "EUR_JPY", "USD", ticks)
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("1").Div(d("150"))), "rate %s", rate)
}

func TestCrossWithoutPathFails(t *testing.T) {
	reg, ticks := conversionFixture(t)
	_, err := QuoteToAccountRate(reg, "EUR_JPY", "GBP", ticks)
	assert.Error(t, err)
}

func TestUnknownInstrumentFails(t *testing.T) {
	reg, ticks := conversionFixture(t)
	_, err := QuoteToAccountRate(reg, "GBP_USD", "USD", ticks)
	assert.Error(t, err)
}

func TestMissingRateSurfacesErrNoTick(t *testing.T) {
	reg, _ := conversionFixture(t)
	empty := NewTickStore()
	_, err := QuoteToAccountRate(reg, "USD_JPY", "USD", empty)
	assert.ErrorIs(t, err, ErrNoTick)
}
