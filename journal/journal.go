// Package journal records the result surface of a run: order history,
// fills and the equity curve. Sinks are collaborators; the core only
// emits records.
package journal

import "time"

// OrderRecord is the flattened terminal-or-latest state of one order.
type OrderRecord struct {
	RunID        string
	OrderID      string
	Symbol       string
	Side         string
	Type         string
	Status       string
	Quantity     float64
	FilledQty    float64
	AvgFillPrice float64
	LimitPrice   float64
	TriggerPrice float64
	Reason       string
	Tag          string
	SubmittedAt  time.Time
	ClosedAt     time.Time
}

// FillRecord is one immutable execution.
type FillRecord struct {
	RunID      string
	FillID     string
	OrderID    string
	Symbol     string
	Side       string
	Price      float64
	Quantity   float64
	Commission float64
	Liquidity  string
	Time       time.Time
}

// EquitySnapshot is one point on the equity curve, in the account
// currency.
type EquitySnapshot struct {
	RunID        string
	Time         time.Time
	Balance      float64
	Equity       float64
	UnrealizedPL float64
	MarginUsed   float64
	FreeMargin   float64
	MarginLevel  float64
}

type Journal interface {
	RecordOrder(OrderRecord) error
	RecordFill(FillRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordOrder(OrderRecord) error     { return nil }
func (Nop) RecordFill(FillRecord) error       { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }

// Multi fans records out to several journals, e.g. the in-memory result
// journal plus a SQLite store.
type Multi []Journal

func (m Multi) RecordOrder(r OrderRecord) error {
	for _, j := range m {
		if err := j.RecordOrder(r); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) RecordFill(r FillRecord) error {
	for _, j := range m {
		if err := j.RecordFill(r); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) RecordEquity(r EquitySnapshot) error {
	for _, j := range m {
		if err := j.RecordEquity(r); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var first error
	for _, j := range m {
		if err := j.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
