// Package timeline merges independently time-sorted market data streams
// into one globally ordered event sequence.
package timeline

import "github.com/rustyeddy/backsim/market"

// Stream yields market events for one (instrument, kind, resolution)
// combination. Each stream must already be sorted by timestamp; the
// merger verifies this and fails the run if it is not.
//
// Next returns (ok=false, err=nil) at end of stream.
type Stream interface {
	Symbol() string
	Kind() market.EventKind
	Next() (market.Event, bool, error)
	Close() error
}

// SliceStream replays a pre-materialized slice of events. The backtest
// core never blocks on I/O; whatever loads data from disk or a service
// materializes it into one of these first.
type SliceStream struct {
	symbol string
	kind   market.EventKind
	events []market.Event
	pos    int
}

func NewTickStream(symbol string, ticks []market.Tick) *SliceStream {
	events := make([]market.Event, len(ticks))
	for i, t := range ticks {
		events[i] = market.TickEvent(t)
	}
	return &SliceStream{symbol: symbol, kind: market.KindTick, events: events}
}

func NewBarStream(symbol string, bars []market.Bar) *SliceStream {
	events := make([]market.Event, len(bars))
	for i, b := range bars {
		events[i] = market.BarEvent(b)
	}
	return &SliceStream{symbol: symbol, kind: market.KindBar, events: events}
}

func (s *SliceStream) Symbol() string         { return s.symbol }
func (s *SliceStream) Kind() market.EventKind { return s.kind }

func (s *SliceStream) Next() (market.Event, bool, error) {
	if s.pos >= len(s.events) {
		return market.Event{}, false, nil
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, true, nil
}

func (s *SliceStream) Close() error { return nil }
