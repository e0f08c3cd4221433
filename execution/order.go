// Package execution owns the order and position lifecycle. Orders are
// created from strategy commands, mutated only by applying venue
// acknowledgements, and frozen once they reach a terminal status.
package execution

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() decimal.Decimal {
	if s == Sell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType uint8

const (
	Market OrderType = iota
	Limit
	Stop
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "MARKET"
	case Limit:
		return "LIMIT"
	case Stop:
		return "STOP"
	}
	return "unknown"
}

type TimeInForce uint8

const (
	GTC TimeInForce = iota // good till cancelled
	IOC                    // immediate or cancel
	GTD                    // good till date (requires ExpireTime)
)

func (t TimeInForce) String() string {
	switch t {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case GTD:
		return "GTD"
	}
	return "unknown"
}

// Status is the order state machine:
//
//	Submitted -> Accepted | Rejected
//	Accepted -> PartiallyFilled | Filled | Cancelled | Expired
//	PartiallyFilled -> PartiallyFilled | Filled | Cancelled | Expired
//
// Rejected, Filled, Cancelled and Expired are terminal.
type Status uint8

const (
	Submitted Status = iota
	Accepted
	Rejected
	PartiallyFilled
	Filled
	Cancelled
	Expired
)

func (s Status) String() string {
	switch s {
	case Submitted:
		return "SUBMITTED"
	case Accepted:
		return "ACCEPTED"
	case Rejected:
		return "REJECTED"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	case Expired:
		return "EXPIRED"
	}
	return "unknown"
}

func (s Status) Terminal() bool {
	switch s {
	case Rejected, Filled, Cancelled, Expired:
		return true
	}
	return false
}

// ErrInvalidStateTransition is returned for operations that would move an
// order out of a terminal state, e.g. cancelling a filled order. The run
// continues; the caller decides what to do about it.
var ErrInvalidStateTransition = errors.New("invalid order state transition")

var transitions = map[Status][]Status{
	Submitted:       {Accepted, Rejected},
	Accepted:        {PartiallyFilled, Filled, Cancelled, Expired},
	PartiallyFilled: {PartiallyFilled, Filled, Cancelled, Expired},
}

func transition(from, to Status) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, from, to)
}

// Liquidity marks which side of the simulated book a fill consumed.
type Liquidity uint8

const (
	Taker Liquidity = iota
	Maker
)

func (l Liquidity) String() string {
	if l == Maker {
		return "MAKER"
	}
	return "TAKER"
}

// Fill is an immutable execution record. Partial fills append to the
// order's history; they never replace earlier fills.
type Fill struct {
	ID         string
	OrderID    string
	Symbol     string
	Side       Side
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Commission decimal.Decimal // quote currency
	Liquidity  Liquidity
	Time       time.Time
}

// Command is a strategy's request to trade. Price is the limit price for
// limit orders; Trigger the stop price for stop orders. Optional StopLoss
// and TakeProfit attach a protective bracket once the entry fills.
type Command struct {
	Symbol     string
	Side       Side
	Type       OrderType
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Trigger    decimal.Decimal
	TIF        TimeInForce
	ExpireTime time.Time
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
	Tag        string
}

// Order is the engine-owned lifecycle record. The venue references
// submitted orders through acknowledgement events but never mutates them.
type Order struct {
	ID         string
	Symbol     string
	Side       Side
	Type       OrderType
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Trigger    decimal.Decimal
	TIF        TimeInForce
	ExpireTime time.Time
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
	Tag        string

	Status       Status
	FilledQty    decimal.Decimal
	AvgFillPrice decimal.Decimal
	Reason       string // rejection / cancellation detail
	Fills        []Fill
	SubmittedAt  time.Time
	ClosedAt     time.Time
}

func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQty)
}

// applyTransition moves the order to the requested status after checking
// the state machine.
func (o *Order) applyTransition(to Status) error {
	if err := transition(o.Status, to); err != nil {
		return err
	}
	o.Status = to
	return nil
}

// applyFill appends a fill and advances the status. The caller guarantees
// the fill does not exceed the remaining quantity.
func (o *Order) applyFill(f Fill) error {
	to := PartiallyFilled
	if o.FilledQty.Add(f.Quantity).GreaterThanOrEqual(o.Quantity) {
		to = Filled
	}
	if err := transition(o.Status, to); err != nil {
		return err
	}

	// Weighted average fill price across all partials.
	prevNotional := o.AvgFillPrice.Mul(o.FilledQty)
	o.FilledQty = o.FilledQty.Add(f.Quantity)
	o.AvgFillPrice = prevNotional.Add(f.Price.Mul(f.Quantity)).Div(o.FilledQty)

	o.Fills = append(o.Fills, f)
	o.Status = to
	if to == Filled {
		o.ClosedAt = f.Time
	}
	return nil
}
