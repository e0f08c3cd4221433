// Package broker defines the venue adapter contract shared by the
// simulated venue and live exchange adapters. The execution engine is
// written against this shape, so a live venue can replace the simulator
// without touching strategy code.
package broker

import (
	"context"

	"github.com/rustyeddy/backsim/execution"
	"github.com/rustyeddy/backsim/market"
)

// Adapter is a venue, simulated or real. Order acknowledgements flow
// back through the execution engine's event handler; live adapters push
// them from their own receive loop, the simulator calls back
// synchronously.
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	SubmitOrder(o execution.Order)
	CancelOrder(id string) error

	// LastTick is the venue's latest known quote for an instrument.
	LastTick(symbol string) (market.Tick, bool)
}
