// Package market defines the instrument metadata and market data types
// shared by every simulation component.
package market

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Instrument is the immutable trading contract for one symbol. Prices
// and quantities are validated against it before any order reaches a
// book.
type Instrument struct {
	Symbol            string
	Venue             string
	BaseCurrency      string
	QuoteCurrency     string
	TickSize          decimal.Decimal
	PricePrecision    int32
	QuantityPrecision int32
	Multiplier        decimal.Decimal
	MinTradeSize      decimal.Decimal
	MarginRate        decimal.Decimal
}

// ValidPrice reports whether p is positive, within the instrument's
// price precision and on the tick grid.
func (i Instrument) ValidPrice(p decimal.Decimal) bool {
	if !p.IsPositive() {
		return false
	}
	if !p.Round(i.PricePrecision).Equal(p) {
		return false
	}
	if i.TickSize.IsPositive() && !p.Mod(i.TickSize).IsZero() {
		return false
	}
	return true
}

// ValidQuantity reports whether q is positive, within the quantity
// precision and at least the minimum trade size.
func (i Instrument) ValidQuantity(q decimal.Decimal) bool {
	if !q.IsPositive() {
		return false
	}
	if !q.Round(i.QuantityPrecision).Equal(q) {
		return false
	}
	if i.MinTradeSize.IsPositive() && q.LessThan(i.MinTradeSize) {
		return false
	}
	return true
}

// Notional is price times quantity times the contract multiplier, in
// the quote currency.
func (i Instrument) Notional(price, qty decimal.Decimal) decimal.Decimal {
	n := price.Mul(qty)
	if i.Multiplier.IsPositive() {
		n = n.Mul(i.Multiplier)
	}
	return n
}

// Registry is the immutable set of instruments one run trades. It is
// built once at startup; lookups never mutate it, so it is shared
// without locking.
type Registry struct {
	bySymbol map[string]Instrument
}

func NewRegistry(instruments ...Instrument) (*Registry, error) {
	r := &Registry{bySymbol: make(map[string]Instrument, len(instruments))}
	for _, inst := range instruments {
		if inst.Symbol == "" {
			return nil, fmt.Errorf("instrument without symbol")
		}
		if _, dup := r.bySymbol[inst.Symbol]; dup {
			return nil, fmt.Errorf("duplicate instrument %q", inst.Symbol)
		}
		r.bySymbol[inst.Symbol] = inst
	}
	return r, nil
}

func (r *Registry) Get(symbol string) (Instrument, bool) {
	inst, ok := r.bySymbol[symbol]
	return inst, ok
}

// Symbols returns every registered symbol, sorted.
func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.bySymbol))
	for s := range r.bySymbol {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
