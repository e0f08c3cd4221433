// Package clock provides the simulation time source. In a backtest all
// time advancement is event-driven; nothing sleeps and no timer fires on
// its own.
package clock

import (
	"fmt"
	"time"
)

// Clock is the read interface shared by the backtest core and its live
// counterpart. Components only ever ask for the current time.
type Clock interface {
	Now() time.Time
}

// Simulated is driven entirely by injected events. It is owned by one
// backtest run; a fresh run gets a fresh clock.
type Simulated struct {
	current time.Time
}

func NewSimulated(start time.Time) *Simulated {
	return &Simulated{current: start}
}

func (c *Simulated) Now() time.Time { return c.current }

// AdvanceTo moves simulated time forward to t. Moving backward would
// silently corrupt every downstream ordering guarantee, so it is treated
// as a fatal invariant violation rather than a recoverable error.
func (c *Simulated) AdvanceTo(t time.Time) {
	if t.Before(c.current) {
		panic(fmt.Sprintf("clock: cannot advance backward from %s to %s",
			c.current.Format(time.RFC3339Nano), t.Format(time.RFC3339Nano)))
	}
	c.current = t
}

// Wall reads the operating system clock. It exists so live components
// can share the Clock contract; nothing in the backtest path uses it.
type Wall struct{}

func (Wall) Now() time.Time { return time.Now().UTC() }
