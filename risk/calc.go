// Package risk provides position sizing from a fixed fractional risk
// budget. Strategy-side math; account balances proper live in portfolio.
package risk

import "math"

type Inputs struct {
	Equity         float64
	RiskPct        float64 // e.g. 0.005 risks 0.5% of equity
	EntryPrice     float64
	StopPrice      float64
	QuoteToAccount float64 // 1.0 when the quote currency is the account currency
}

type Result struct {
	Units        float64
	StopDistance float64 // price terms
	RiskAmount   float64 // account currency
}

// Calculate sizes a position so that losing the full stop distance costs
// RiskPct of equity.
func Calculate(in Inputs) Result {
	dist := math.Abs(in.EntryPrice - in.StopPrice)
	riskAmt := in.Equity * in.RiskPct

	if dist == 0 || in.QuoteToAccount == 0 {
		return Result{RiskAmount: riskAmt}
	}

	units := riskAmt / (dist * in.QuoteToAccount)
	return Result{
		Units:        math.Floor(units),
		StopDistance: dist,
		RiskAmount:   riskAmt,
	}
}

// RR is the reward-to-risk ratio of a bracket.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(takeProfit-entry) / risk
}
