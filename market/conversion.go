package market

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RateSource supplies the latest tick per instrument for currency
// conversion. TickStore satisfies it.
type RateSource interface {
	LastTick(symbol string) (Tick, bool)
}

// QuoteToAccountRate returns the multiplier converting an amount in the
// instrument's quote currency into the account currency.
//
// Direct cases use the instrument's own quote. Crosses are resolved
// through any registered pair joining the two currencies; anything
// beyond one hop is an error rather than a guess.
func QuoteToAccountRate(reg *Registry, symbol, accountCurrency string, src RateSource) (decimal.Decimal, error) {
	meta, ok := reg.Get(symbol)
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown instrument %q", symbol)
	}

	// Quote currency already matches the account (EUR_USD with USD account).
	if meta.QuoteCurrency == accountCurrency {
		return decimal.NewFromInt(1), nil
	}

	// Account currency is the base (USD_JPY with USD account): invert the mid.
	if meta.BaseCurrency == accountCurrency {
		t, ok := src.LastTick(symbol)
		if !ok {
			return decimal.Zero, fmt.Errorf("no price for %q: %w", symbol, ErrNoTick)
		}
		return decimal.NewFromInt(1).Div(t.Mid()), nil
	}

	// Cross: look for a registered pair joining quote and account currency.
	if direct := meta.QuoteCurrency + "_" + accountCurrency; hasPair(reg, direct) {
		t, ok := src.LastTick(direct)
		if !ok {
			return decimal.Zero, fmt.Errorf("no price for %q: %w", direct, ErrNoTick)
		}
		return t.Mid(), nil
	}
	if inverse := accountCurrency + "_" + meta.QuoteCurrency; hasPair(reg, inverse) {
		t, ok := src.LastTick(inverse)
		if !ok {
			return decimal.Zero, fmt.Errorf("no price for %q: %w", inverse, ErrNoTick)
		}
		return decimal.NewFromInt(1).Div(t.Mid()), nil
	}

	return decimal.Zero, fmt.Errorf(
		"cross conversion not available for %s -> %s", meta.QuoteCurrency, accountCurrency)
}

func hasPair(reg *Registry, symbol string) bool {
	_, ok := reg.Get(symbol)
	return ok
}
