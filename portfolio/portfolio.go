package portfolio

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/backsim/market"
)

// PositionMark is the read-only view of an open position the portfolio
// needs for valuation. The execution engine supplies these; the
// portfolio never mutates positions.
type PositionMark struct {
	Symbol   string
	NetQty   decimal.Decimal
	AvgEntry decimal.Decimal
}

// PositionSource supplies open positions in a deterministic order.
type PositionSource interface {
	OpenPositions() []PositionMark
}

// Portfolio owns the account and values it against current marks. It is
// constructed once per run.
type Portfolio struct {
	log       *zap.Logger
	account   *Account
	registry  *market.Registry
	rates     market.RateSource
	positions PositionSource

	marginUsed decimal.Decimal
}

func New(log *zap.Logger, account *Account, registry *market.Registry, rates market.RateSource) *Portfolio {
	if log == nil {
		log = zap.NewNop()
	}
	return &Portfolio{
		log:      log,
		account:  account,
		registry: registry,
		rates:    rates,
	}
}

// SetPositionSource wires the execution engine in after construction;
// the two components reference each other.
func (p *Portfolio) SetPositionSource(src PositionSource) { p.positions = src }

func (p *Portfolio) Account() *Account { return p.account }

// Apply applies one atomic balance impact.
func (p *Portfolio) Apply(imp BalanceImpact) error {
	if err := p.account.apply(imp); err != nil {
		return err
	}
	p.log.Debug("balance impact",
		zap.String("currency", imp.Currency),
		zap.String("realized", imp.RealizedPL.String()),
		zap.String("commission", imp.Commission.String()),
		zap.String("reason", imp.Reason))
	return nil
}

// ConvertedBalance sums every currency balance converted into the
// account currency.
func (p *Portfolio) ConvertedBalance() (decimal.Decimal, error) {
	total := decimal.Zero
	for _, ccy := range p.account.Currencies() {
		bal := p.account.Balance(ccy)
		if bal.IsZero() {
			continue
		}
		conv, err := p.convert(bal, ccy)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(conv)
	}
	return total, nil
}

// convert moves an amount from ccy into the account currency using the
// registered pairs and latest marks.
func (p *Portfolio) convert(amount decimal.Decimal, ccy string) (decimal.Decimal, error) {
	if ccy == p.account.Currency {
		return amount, nil
	}
	if direct := ccy + "_" + p.account.Currency; p.hasPair(direct) {
		t, ok := p.rates.LastTick(direct)
		if !ok {
			return decimal.Zero, fmt.Errorf("convert %s->%s: %w", ccy, p.account.Currency, market.ErrNoTick)
		}
		return amount.Mul(t.Mid()), nil
	}
	if inverse := p.account.Currency + "_" + ccy; p.hasPair(inverse) {
		t, ok := p.rates.LastTick(inverse)
		if !ok {
			return decimal.Zero, fmt.Errorf("convert %s->%s: %w", ccy, p.account.Currency, market.ErrNoTick)
		}
		return amount.Div(t.Mid()), nil
	}
	return decimal.Zero, fmt.Errorf("no conversion path %s -> %s", ccy, p.account.Currency)
}

func (p *Portfolio) hasPair(symbol string) bool {
	_, ok := p.registry.Get(symbol)
	return ok
}

// UnrealizedPL values every open position at its current mark (bid for
// longs, ask for shorts) converted to the account currency. Pure
// read-side computation; nothing is persisted.
func (p *Portfolio) UnrealizedPL() (decimal.Decimal, error) {
	total := decimal.Zero
	if p.positions == nil {
		return total, nil
	}
	for _, pos := range p.positions.OpenPositions() {
		pl, err := p.unrealizedOne(pos)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(pl)
	}
	return total, nil
}

func (p *Portfolio) unrealizedOne(pos PositionMark) (decimal.Decimal, error) {
	inst, ok := p.registry.Get(pos.Symbol)
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown instrument %q", pos.Symbol)
	}
	t, ok := p.rates.LastTick(pos.Symbol)
	if !ok {
		return decimal.Zero, fmt.Errorf("no mark for %q: %w", pos.Symbol, market.ErrNoTick)
	}
	mark := t.Bid
	if pos.NetQty.IsNegative() {
		mark = t.Ask
	}

	plQuote := mark.Sub(pos.AvgEntry).Mul(pos.NetQty)
	if inst.Multiplier.IsPositive() {
		plQuote = plQuote.Mul(inst.Multiplier)
	}
	rate, err := market.QuoteToAccountRate(p.registry, pos.Symbol, p.account.Currency, p.rates)
	if err != nil {
		return decimal.Zero, err
	}
	return plQuote.Mul(rate), nil
}

// Equity is converted balance plus unrealized P&L.
func (p *Portfolio) Equity() (decimal.Decimal, error) {
	bal, err := p.ConvertedBalance()
	if err != nil {
		return decimal.Zero, err
	}
	upl, err := p.UnrealizedPL()
	if err != nil {
		return decimal.Zero, err
	}
	return bal.Add(upl), nil
}

// RecomputeMargin revalues margin used from open positions at mid marks.
func (p *Portfolio) RecomputeMargin() error {
	used := decimal.Zero
	if p.positions != nil {
		for _, pos := range p.positions.OpenPositions() {
			inst, ok := p.registry.Get(pos.Symbol)
			if !ok {
				return fmt.Errorf("unknown instrument %q", pos.Symbol)
			}
			t, ok := p.rates.LastTick(pos.Symbol)
			if !ok {
				return fmt.Errorf("no mark for %q: %w", pos.Symbol, market.ErrNoTick)
			}
			notional := inst.Notional(t.Mid(), pos.NetQty.Abs())
			rate, err := market.QuoteToAccountRate(p.registry, pos.Symbol, p.account.Currency, p.rates)
			if err != nil {
				return err
			}
			used = used.Add(notional.Mul(rate).Mul(inst.MarginRate))
		}
	}
	p.marginUsed = used
	return nil
}

func (p *Portfolio) MarginUsed() decimal.Decimal { return p.marginUsed }

// MarginCall reports whether equity no longer covers margin used. Frozen
// accounts never report a margin call; the flag disables liquidation,
// not accounting.
func (p *Portfolio) MarginCall() (bool, error) {
	if p.account.Frozen || p.marginUsed.IsZero() {
		return false, nil
	}
	eq, err := p.Equity()
	if err != nil {
		return false, err
	}
	return eq.LessThan(p.marginUsed), nil
}

// LiquidationCandidate returns the open position with the worst
// converted unrealized P&L.
func (p *Portfolio) LiquidationCandidate() (PositionMark, bool, error) {
	if p.positions == nil {
		return PositionMark{}, false, nil
	}
	var (
		worst   PositionMark
		worstPL decimal.Decimal
		found   bool
	)
	for _, pos := range p.positions.OpenPositions() {
		pl, err := p.unrealizedOne(pos)
		if err != nil {
			return PositionMark{}, false, err
		}
		if !found || pl.LessThan(worstPL) {
			worst, worstPL, found = pos, pl, true
		}
	}
	return worst, found, nil
}

// Snapshot is the reported account state at one instant.
type Snapshot struct {
	Time         time.Time
	Currency     string
	Balances     map[string]decimal.Decimal
	Balance      decimal.Decimal // converted
	Equity       decimal.Decimal
	UnrealizedPL decimal.Decimal
	MarginUsed   decimal.Decimal
	FreeMargin   decimal.Decimal
	MarginLevel  decimal.Decimal
	Frozen       bool
}

// Snapshot values the account at t. Conversion failures degrade to the
// raw account-currency balance so reporting cannot kill a run.
func (p *Portfolio) Snapshot(t time.Time) Snapshot {
	s := Snapshot{
		Time:     t,
		Currency: p.account.Currency,
		Balances: make(map[string]decimal.Decimal),
		Frozen:   p.account.Frozen,
	}
	for _, ccy := range p.account.Currencies() {
		s.Balances[ccy] = p.account.Balance(ccy)
	}

	bal, err := p.ConvertedBalance()
	if err != nil {
		bal = p.account.Balance(p.account.Currency)
	}
	s.Balance = bal

	upl, err := p.UnrealizedPL()
	if err == nil {
		s.UnrealizedPL = upl
	}
	s.Equity = s.Balance.Add(s.UnrealizedPL)
	s.MarginUsed = p.marginUsed
	s.FreeMargin = s.Equity.Sub(p.marginUsed)
	if p.marginUsed.IsPositive() {
		s.MarginLevel = s.Equity.Div(p.marginUsed)
	}
	return s
}
