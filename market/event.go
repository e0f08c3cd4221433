package market

import "time"

// EventKind discriminates the market event union.
type EventKind uint8

const (
	KindTick EventKind = iota
	KindBar
)

func (k EventKind) String() string {
	switch k {
	case KindTick:
		return "tick"
	case KindBar:
		return "bar"
	}
	return "unknown"
}

// Event is the tagged union delivered by the merged timeline: either a
// Tick or a Bar. Events are values; once emitted they are never mutated.
type Event struct {
	kind EventKind
	tick Tick
	bar  Bar
}

func TickEvent(t Tick) Event {
	return Event{kind: KindTick, tick: t}
}

func BarEvent(b Bar) Event {
	return Event{kind: KindBar, bar: b}
}

func (e Event) Kind() EventKind { return e.kind }

func (e Event) Symbol() string {
	if e.kind == KindBar {
		return e.bar.Symbol
	}
	return e.tick.Symbol
}

func (e Event) Time() time.Time {
	if e.kind == KindBar {
		return e.bar.Time
	}
	return e.tick.Time
}

func (e Event) Tick() (Tick, bool) {
	return e.tick, e.kind == KindTick
}

func (e Event) Bar() (Bar, bool) {
	return e.bar, e.kind == KindBar
}
