// Package sim is the venue simulator: a matching engine over simulated
// per-instrument books, driven by replayed market events and client
// order commands.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"
)

// FillModel separates "does this actually fill, and does it slip" from
// the book logic that decides when a fill is possible. Swapping or
// stubbing it leaves the matching rules untouched.
//
// With a seed the model is reproducible run to run; without one it draws
// unseeded entropy and results are intentionally variable. That toggle
// is documented behavior, not an accident.
type FillModel struct {
	probFillAtLimit float64
	probFillAtStop  float64
	probSlippage    float64
	rng             *rand.Rand
}

// NewFillModel validates the probabilities and builds the model. The
// generator is owned by this model alone; it is never shared across
// venue instances, keeping per-run determinism local and auditable.
func NewFillModel(probFillAtLimit, probFillAtStop, probSlippage float64, seed *int64) (*FillModel, error) {
	for name, p := range map[string]float64{
		"prob_fill_at_limit": probFillAtLimit,
		"prob_fill_at_stop":  probFillAtStop,
		"prob_slippage":      probSlippage,
	} {
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("fill model: %s %v outside [0, 1]", name, p)
		}
	}

	var src rand.Source
	if seed != nil {
		src = rand.NewSource(*seed)
	} else {
		src = rand.NewSource(rand.Int63())
	}
	return &FillModel{
		probFillAtLimit: probFillAtLimit,
		probFillAtStop:  probFillAtStop,
		probSlippage:    probSlippage,
		rng:             rand.New(src),
	}, nil
}

// PerfectFillModel always fills and never slips; useful for tests and
// idealized runs.
func PerfectFillModel() *FillModel {
	m, _ := NewFillModel(1, 1, 0, new(int64))
	return m
}

func (m *FillModel) event(prob float64) bool {
	if prob >= 1 {
		return true
	}
	if prob <= 0 {
		return false
	}
	return m.rng.Float64() < prob
}

// LimitFills decides whether a crossed limit order actually fills.
func (m *FillModel) LimitFills() bool { return m.event(m.probFillAtLimit) }

// StopFills decides whether a triggered stop order actually fills.
func (m *FillModel) StopFills() bool { return m.event(m.probFillAtStop) }

// Slips decides whether an aggressive fill slips one tick against the
// order.
func (m *FillModel) Slips() bool { return m.event(m.probSlippage) }

// SlipPrice applies one tick of adverse slippage when the model says so.
func (m *FillModel) SlipPrice(price, tickSize decimal.Decimal, buying bool) decimal.Decimal {
	if tickSize.IsZero() || !m.Slips() {
		return price
	}
	if buying {
		return price.Add(tickSize)
	}
	return price.Sub(tickSize)
}
