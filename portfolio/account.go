// Package portfolio is the single writer of account balances. All
// balance changes arrive as atomic BalanceImpact instructions from the
// execution engine; unrealized P&L and margin are read-side computations
// over current position marks.
package portfolio

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceImpact is one atomic balance instruction produced by a fill or
// financing event: realized P&L credit/debit and commission debit in a
// single currency. It is applied completely or not at all.
type BalanceImpact struct {
	Currency   string
	RealizedPL decimal.Decimal
	Commission decimal.Decimal
	Time       time.Time
	Reason     string
}

var ErrBadImpact = errors.New("invalid balance impact")

// Account holds per-currency balances. A balance exists in exactly one
// currency; conversion happens only at the reporting edge and every
// conversion goes through the configured rate source.
type Account struct {
	ID       string
	Currency string // reporting currency
	Frozen   bool

	balances map[string]decimal.Decimal
}

func NewAccount(id, currency string, startingCapital decimal.Decimal, frozen bool) *Account {
	a := &Account{
		ID:       id,
		Currency: currency,
		Frozen:   frozen,
		balances: make(map[string]decimal.Decimal),
	}
	a.balances[currency] = startingCapital
	return a
}

func (a *Account) apply(imp BalanceImpact) error {
	if imp.Currency == "" {
		return fmt.Errorf("%w: missing currency", ErrBadImpact)
	}
	delta := imp.RealizedPL.Sub(imp.Commission)
	a.balances[imp.Currency] = a.balances[imp.Currency].Add(delta)
	return nil
}

func (a *Account) Balance(currency string) decimal.Decimal {
	return a.balances[currency]
}

// Currencies returns every currency carrying a balance, sorted.
func (a *Account) Currencies() []string {
	out := make([]string, 0, len(a.balances))
	for c := range a.balances {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
