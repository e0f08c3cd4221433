package strategies

import (
	"context"

	"github.com/rustyeddy/backsim/execution"
	"github.com/rustyeddy/backsim/market"
)

// Noop ignores everything. Baseline for plumbing tests and a template
// for new strategies.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) OnStart(context.Context, Trader) error { return nil }

func (Noop) OnMarketEvent(context.Context, Trader, market.Event) error { return nil }

func (Noop) OnOrderEvent(context.Context, Trader, execution.OrderEvent) error { return nil }

func (Noop) OnStop(context.Context, Trader) error { return nil }
