package strategies

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/backsim/execution"
	"github.com/rustyeddy/backsim/indicators"
	"github.com/rustyeddy/backsim/market"
	"github.com/rustyeddy/backsim/risk"
)

// EMACross trades a single instrument on a fast/slow EMA crossover over
// bar closes. It enters on a cross, reverses on the opposite cross, and
// attaches a stop-loss/take-profit bracket sized by fixed fractional
// risk.
type EMACross struct {
	Params

	fast *indicators.ExponentialMA
	slow *indicators.ExponentialMA

	lastDiff     float64
	haveLastDiff bool
}

func NewEMACross(p Params) *EMACross {
	if p.FastPeriod <= 0 {
		p.FastPeriod = 10
	}
	if p.SlowPeriod <= 0 {
		p.SlowPeriod = 30
	}
	if p.RR <= 0 {
		p.RR = 2.0
	}
	if p.RiskPct <= 0 {
		p.RiskPct = 0.005
	}
	return &EMACross{
		Params: p,
		fast:   indicators.NewEMA(p.FastPeriod),
		slow:   indicators.NewEMA(p.SlowPeriod),
	}
}

func (s *EMACross) Name() string { return "ema-cross" }

func (s *EMACross) OnStart(context.Context, Trader) error { return nil }

func (s *EMACross) OnOrderEvent(context.Context, Trader, execution.OrderEvent) error {
	return nil
}

func (s *EMACross) OnStop(context.Context, Trader) error { return nil }

func (s *EMACross) OnMarketEvent(ctx context.Context, t Trader, ev market.Event) error {
	bar, ok := ev.Bar()
	if !ok || bar.Symbol != s.Instrument {
		return nil
	}

	close := bar.Close.InexactFloat64()
	s.fast.Update(close)
	s.slow.Update(close)
	if !s.fast.Ready() || !s.slow.Ready() {
		return nil
	}

	diff := s.fast.Value() - s.slow.Value()
	if !s.haveLastDiff {
		s.lastDiff = diff
		s.haveLastDiff = true
		return nil
	}
	crossUp := s.lastDiff <= 0 && diff > 0
	crossDown := s.lastDiff >= 0 && diff < 0
	s.lastDiff = diff
	if !crossUp && !crossDown {
		return nil
	}

	side := execution.Buy
	if crossDown {
		side = execution.Sell
	}
	return s.reverseInto(ctx, t, side, close)
}

// reverseInto flattens any opposite position and opens a bracketed entry
// in the cross direction.
func (s *EMACross) reverseInto(ctx context.Context, t Trader, side execution.Side, entry float64) error {
	pos := t.Position(s.Instrument)
	if !pos.NetQty.IsZero() {
		sameDirection := (pos.NetQty.IsPositive() && side == execution.Buy) ||
			(pos.NetQty.IsNegative() && side == execution.Sell)
		if sameDirection {
			return nil
		}
		exit := execution.Sell
		if pos.NetQty.IsNegative() {
			exit = execution.Buy
		}
		if _, err := t.Submit(ctx, execution.Command{
			Symbol:   s.Instrument,
			Side:     exit,
			Type:     execution.Market,
			Quantity: pos.NetQty.Abs(),
			Tag:      "ema-cross exit",
		}); err != nil {
			return err
		}
	}

	stop := entry - s.StopDistance
	take := entry + s.RR*s.StopDistance
	if side == execution.Sell {
		stop = entry + s.StopDistance
		take = entry - s.RR*s.StopDistance
	}

	// Sizing assumes the quote currency is the account currency; cross
	// accounts should size through portfolio conversion instead.
	sized := risk.Calculate(risk.Inputs{
		Equity:         t.Account().Equity.InexactFloat64(),
		RiskPct:        s.RiskPct,
		EntryPrice:     entry,
		StopPrice:      stop,
		QuoteToAccount: 1.0,
	})
	units := decimal.NewFromFloat(sized.Units)
	if s.Units > 0 {
		units = decimal.NewFromFloat(s.Units)
	}
	if !units.IsPositive() {
		return nil
	}

	inst, ok := t.Instrument(s.Instrument)
	if !ok {
		return nil
	}
	sl := alignPrice(decimal.NewFromFloat(stop), inst)
	tp := alignPrice(decimal.NewFromFloat(take), inst)

	_, err := t.Submit(ctx, execution.Command{
		Symbol:     s.Instrument,
		Side:       side,
		Type:       execution.Market,
		Quantity:   units.Round(inst.QuantityPrecision),
		StopLoss:   &sl,
		TakeProfit: &tp,
		Tag:        "ema-cross entry",
	})
	return err
}

// alignPrice snaps a computed price onto the instrument's tick grid.
func alignPrice(p decimal.Decimal, inst market.Instrument) decimal.Decimal {
	if inst.TickSize.IsPositive() {
		p = p.Div(inst.TickSize).Round(0).Mul(inst.TickSize)
	}
	return p.Round(inst.PricePrecision)
}
