// Package strategies defines the capability interface trading strategies
// implement and the runtime that dispatches timeline events to them.
package strategies

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/backsim/execution"
	"github.com/rustyeddy/backsim/market"
	"github.com/rustyeddy/backsim/portfolio"
)

// Trader is the capability handed to strategies: submit and cancel
// orders, and read the state they need to decide. The backtest engine
// and a live session implement the same shape.
type Trader interface {
	Submit(ctx context.Context, cmd execution.Command) (string, error)
	Cancel(ctx context.Context, id string) error
	Order(id string) (execution.Order, bool)
	Position(symbol string) execution.Position
	Account() portfolio.Snapshot
	Instrument(symbol string) (market.Instrument, bool)
	LastTick(symbol string) (market.Tick, bool)
	Now() time.Time
}

// Strategy is the fixed capability set every strategy implements.
// Handlers are never invoked concurrently with each other; dispatch is
// single-threaded and cooperative.
type Strategy interface {
	Name() string
	OnStart(ctx context.Context, t Trader) error
	OnMarketEvent(ctx context.Context, t Trader, ev market.Event) error
	OnOrderEvent(ctx context.Context, t Trader, ev execution.OrderEvent) error
	OnStop(ctx context.Context, t Trader) error
}

// Params carries per-strategy configuration from the config surface.
type Params struct {
	Instrument   string
	Units        float64
	FastPeriod   int
	SlowPeriod   int
	StopDistance float64 // protective stop distance in price terms
	RiskPct      float64
	RR           float64 // take-profit multiple of the stop distance
}

// ByName resolves a strategy from its configured name.
func ByName(name string, p Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none":
		return Noop{}, nil

	case "buy-and-hold", "buyhold":
		return NewBuyAndHold(p.Instrument, p.Units), nil

	case "ema-cross", "emacross":
		return NewEMACross(p), nil

	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: noop, buy-and-hold, ema-cross)", name)
	}
}
