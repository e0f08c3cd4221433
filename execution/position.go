package execution

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the derived per-instrument aggregate. It is mutated only
// by the Engine applying fills; at every observation point the net
// quantity equals the signed sum of all fills applied so far.
type Position struct {
	Symbol     string
	NetQty     decimal.Decimal // >0 long, <0 short
	AvgEntry   decimal.Decimal
	RealizedPL decimal.Decimal // quote currency
	OpenedAt   time.Time
	UpdatedAt  time.Time
}

func (p *Position) Flat() bool { return p.NetQty.IsZero() }

// apply folds one fill into the position and returns the realized P&L
// delta (quote currency, scaled by the contract multiplier) produced by
// any reduction.
//
// Increasing the position reweights the average entry. Reducing realizes
// (price - avgEntry) * closedQty signed by the closed side. A fill larger
// than the open quantity flips the position; the surplus opens the other
// way at the fill price.
func (p *Position) apply(f Fill, multiplier decimal.Decimal) decimal.Decimal {
	signed := f.Quantity.Mul(f.Side.Sign())
	realized := decimal.Zero

	switch {
	case p.NetQty.IsZero():
		p.NetQty = signed
		p.AvgEntry = f.Price
		p.OpenedAt = f.Time

	case p.NetQty.Sign() == signed.Sign():
		// Same direction: weighted average entry.
		oldAbs := p.NetQty.Abs()
		newAbs := oldAbs.Add(f.Quantity)
		p.AvgEntry = p.AvgEntry.Mul(oldAbs).Add(f.Price.Mul(f.Quantity)).Div(newAbs)
		p.NetQty = p.NetQty.Add(signed)

	default:
		openAbs := p.NetQty.Abs()
		closeQty := decimal.Min(openAbs, f.Quantity)
		direction := decimal.NewFromInt(int64(p.NetQty.Sign()))
		realized = f.Price.Sub(p.AvgEntry).Mul(closeQty).Mul(direction).Mul(multiplier)
		p.RealizedPL = p.RealizedPL.Add(realized)
		p.NetQty = p.NetQty.Add(signed)

		if p.NetQty.IsZero() {
			p.AvgEntry = decimal.Zero
		} else if p.NetQty.Sign() != int(direction.IntPart()) {
			// Flipped through flat: remainder opens at the fill price.
			p.AvgEntry = f.Price
			p.OpenedAt = f.Time
		}
	}

	p.UpdatedAt = f.Time
	return realized
}

// UnrealizedPL values the open quantity against mark (quote currency).
func (p *Position) UnrealizedPL(mark, multiplier decimal.Decimal) decimal.Decimal {
	if p.NetQty.IsZero() {
		return decimal.Zero
	}
	return mark.Sub(p.AvgEntry).Mul(p.NetQty).Mul(multiplier)
}
