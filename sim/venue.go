package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/backsim/clock"
	"github.com/rustyeddy/backsim/execution"
	"github.com/rustyeddy/backsim/market"
)

// bookOrder is the venue's private view of a working order. The
// execution engine owns the order itself; the venue only references it
// through acknowledgement events.
type bookOrder struct {
	id        string
	symbol    string
	side      execution.Side
	typ       execution.OrderType
	price     decimal.Decimal
	trigger   decimal.Decimal
	remaining decimal.Decimal
	tif       execution.TimeInForce
	done      bool
}

// Venue simulates one exchange. It keeps the latest quote and the
// resting orders per instrument, consults the FillModel for probabilistic
// fill and slippage decisions, and reports every order lifecycle change
// through the event handler.
type Venue struct {
	name           string
	log            *zap.Logger
	clk            clock.Clock
	registry       *market.Registry
	model          *FillModel
	commissionRate decimal.Decimal

	ticks     *market.TickStore
	books     map[string][]*bookOrder
	working   map[string]*bookOrder
	expiries  map[string]time.Time
	handler   func(execution.OrderEvent)
	connected bool
}

func NewVenue(name string, log *zap.Logger, clk clock.Clock, registry *market.Registry, model *FillModel, commissionRate decimal.Decimal) *Venue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Venue{
		name:           name,
		log:            log,
		clk:            clk,
		registry:       registry,
		model:          model,
		commissionRate: commissionRate,
		ticks:          market.NewTickStore(),
		books:          make(map[string][]*bookOrder),
		working:        make(map[string]*bookOrder),
		expiries:       make(map[string]time.Time),
	}
}

// SetEventHandler wires the execution engine's acknowledgement callback.
func (v *Venue) SetEventHandler(h func(execution.OrderEvent)) { v.handler = h }

// Connect implements the live-adapter capability contract. The simulated
// venue is always reachable.
func (v *Venue) Connect(ctx context.Context) error {
	_ = ctx
	v.connected = true
	return nil
}

func (v *Venue) Disconnect() error {
	v.connected = false
	return nil
}

func (v *Venue) IsConnected() bool { return v.connected }

// LastTick exposes the venue's latest quote per instrument; it also
// satisfies market.RateSource for the portfolio.
func (v *Venue) LastTick(symbol string) (market.Tick, bool) {
	return v.ticks.LastTick(symbol)
}

func (v *Venue) emit(ev execution.OrderEvent) {
	if v.handler != nil {
		v.handler(ev)
	}
}

func (v *Venue) reject(o execution.Order, reason string) {
	v.log.Debug("order rejected",
		zap.String("order", o.ID),
		zap.String("reason", reason))
	v.emit(execution.OrderEvent{
		Kind:    execution.EventRejected,
		OrderID: o.ID,
		Symbol:  o.Symbol,
		Time:    v.clk.Now(),
		Reason:  reason,
	})
}

// SubmitOrder validates the order against its instrument and either
// rejects it (a terminal state, not an error) or accepts it. Market
// orders execute immediately; limit and stop orders rest on the book.
func (v *Venue) SubmitOrder(o execution.Order) {
	inst, ok := v.registry.Get(o.Symbol)
	if !ok {
		v.reject(o, fmt.Sprintf("unknown instrument %s", o.Symbol))
		return
	}
	if !inst.ValidQuantity(o.Quantity) {
		v.reject(o, fmt.Sprintf("invalid quantity %s for %s", o.Quantity, o.Symbol))
		return
	}
	switch o.Type {
	case execution.Limit:
		if !inst.ValidPrice(o.Price) {
			v.reject(o, fmt.Sprintf("invalid limit price %s for %s", o.Price, o.Symbol))
			return
		}
	case execution.Stop:
		if !inst.ValidPrice(o.Trigger) {
			v.reject(o, fmt.Sprintf("invalid trigger price %s for %s", o.Trigger, o.Symbol))
			return
		}
	}
	if o.TIF == execution.GTD && o.ExpireTime.IsZero() {
		v.reject(o, "GTD order without expire time")
		return
	}

	quote, qerr := v.ticks.Get(o.Symbol)
	if o.Type == execution.Market && qerr != nil {
		v.reject(o, fmt.Sprintf("no market for %s", o.Symbol))
		return
	}

	v.emit(execution.OrderEvent{
		Kind:    execution.EventAccepted,
		OrderID: o.ID,
		Symbol:  o.Symbol,
		Time:    v.clk.Now(),
	})

	bo := &bookOrder{
		id:        o.ID,
		symbol:    o.Symbol,
		side:      o.Side,
		typ:       o.Type,
		price:     o.Price,
		trigger:   o.Trigger,
		remaining: o.Quantity,
		tif:       o.TIF,
	}

	switch o.Type {
	case execution.Market:
		v.fillMarket(bo, inst, quote)
		return

	case execution.Limit:
		partial := false
		if qerr == nil && v.limitCrossed(bo, quote) && v.model.LimitFills() {
			// The visible size at the touch bounds a marketable limit
			// just as it bounds a resting one.
			qty := bo.remaining
			if touch := v.touchSize(bo.side, quote); touch.IsPositive() && touch.LessThan(qty) {
				qty = touch
			}
			v.fill(bo, inst, bo.price, qty, execution.Taker)
			if bo.done {
				return
			}
			partial = true
		}
		if o.TIF == execution.IOC {
			reason := "IOC not immediately marketable"
			if partial {
				reason = "IOC remainder cancelled"
			}
			v.emit(execution.OrderEvent{
				Kind:    execution.EventCancelled,
				OrderID: o.ID,
				Symbol:  o.Symbol,
				Time:    v.clk.Now(),
				Reason:  reason,
			})
			return
		}

	case execution.Stop:
		if qerr == nil && v.stopTriggered(bo, quote) && v.model.StopFills() {
			v.fillMarket(bo, inst, quote)
			return
		}
		if o.TIF == execution.IOC {
			v.emit(execution.OrderEvent{
				Kind:    execution.EventCancelled,
				OrderID: o.ID,
				Symbol:  o.Symbol,
				Time:    v.clk.Now(),
				Reason:  "IOC not immediately marketable",
			})
			return
		}
	}

	// GTD orders keep their expiry for the per-event sweep.
	if o.TIF == execution.GTD {
		v.expiries[o.ID] = o.ExpireTime
	}
	v.books[o.Symbol] = append(v.books[o.Symbol], bo)
	v.working[o.ID] = bo
}

// CancelOrder cancels a working order. An order no longer working (or
// never known to the venue) cannot transition, and that is reported to
// the caller rather than silently ignored.
func (v *Venue) CancelOrder(id string) error {
	bo, ok := v.working[id]
	if !ok || bo.done {
		return fmt.Errorf("%w: order %s is not working", execution.ErrInvalidStateTransition, id)
	}
	bo.done = true
	delete(v.working, id)
	delete(v.expiries, id)
	v.emit(execution.OrderEvent{
		Kind:    execution.EventCancelled,
		OrderID: id,
		Symbol:  bo.symbol,
		Time:    v.clk.Now(),
	})
	return nil
}

// OnMarketEvent folds one timeline event into the simulated book: update
// the quote, expire stale orders, then evaluate every resting order in
// submission order (a fixed order, so seeded runs consume the fill
// model's entropy identically).
func (v *Venue) OnMarketEvent(ev market.Event) {
	quote := v.quoteFrom(ev)
	v.ticks.Set(quote)

	snapshot := append([]*bookOrder(nil), v.books[ev.Symbol()]...)
	for _, bo := range snapshot {
		if bo.done {
			continue
		}
		if exp, ok := v.expiries[bo.id]; ok && !ev.Time().Before(exp) {
			bo.done = true
			delete(v.working, bo.id)
			delete(v.expiries, bo.id)
			v.emit(execution.OrderEvent{
				Kind:    execution.EventExpired,
				OrderID: bo.id,
				Symbol:  bo.symbol,
				Time:    v.clk.Now(),
			})
			continue
		}
		v.evaluate(bo, ev, quote)
	}

	// Compact: drop finished orders, keep everything else (including any
	// orders submitted while handling fills, e.g. protective brackets).
	book := v.books[ev.Symbol()]
	kept := make([]*bookOrder, 0, len(book))
	for _, bo := range book {
		if !bo.done {
			kept = append(kept, bo)
		}
	}
	v.books[ev.Symbol()] = kept
}

// evaluate checks one resting order against the new quote.
func (v *Venue) evaluate(bo *bookOrder, ev market.Event, quote market.Tick) {
	inst, ok := v.registry.Get(bo.symbol)
	if !ok {
		return
	}

	switch bo.typ {
	case execution.Limit:
		if !v.limitCrossed(bo, quote) || !v.model.LimitFills() {
			return
		}
		qty := bo.remaining
		if t, isTick := ev.Tick(); isTick {
			if touch := v.touchSize(bo.side, t); touch.IsPositive() && touch.LessThan(qty) {
				qty = touch
			}
		}
		v.fill(bo, inst, bo.price, qty, execution.Maker)

	case execution.Stop:
		if !v.stopTriggered(bo, quote) || !v.model.StopFills() {
			return
		}
		price := v.model.SlipPrice(bo.trigger, inst.TickSize, bo.side == execution.Buy)
		v.fill(bo, inst, price, bo.remaining, execution.Taker)
	}
}

// limitCrossed reports whether the quote touches or crosses the limit.
func (v *Venue) limitCrossed(bo *bookOrder, q market.Tick) bool {
	if bo.side == execution.Buy {
		return q.Ask.LessThanOrEqual(bo.price)
	}
	return q.Bid.GreaterThanOrEqual(bo.price)
}

// stopTriggered reports whether the quote reached the trigger.
func (v *Venue) stopTriggered(bo *bookOrder, q market.Tick) bool {
	if bo.side == execution.Buy {
		return q.Ask.GreaterThanOrEqual(bo.trigger)
	}
	return q.Bid.LessThanOrEqual(bo.trigger)
}

// touchSize is the visible size on the side the order would consume.
func (v *Venue) touchSize(side execution.Side, t market.Tick) decimal.Decimal {
	if side == execution.Buy {
		return t.AskSize
	}
	return t.BidSize
}

// fillMarket executes at the current best price plus the model's
// slippage.
func (v *Venue) fillMarket(bo *bookOrder, inst market.Instrument, quote market.Tick) {
	var price decimal.Decimal
	if bo.side == execution.Buy {
		price = quote.Ask
	} else {
		price = quote.Bid
	}
	price = v.model.SlipPrice(price, inst.TickSize, bo.side == execution.Buy)
	v.fill(bo, inst, price, bo.remaining, execution.Taker)
}

// fill emits one (possibly partial) fill and retires the order when
// nothing remains.
func (v *Venue) fill(bo *bookOrder, inst market.Instrument, price, qty decimal.Decimal, liq execution.Liquidity) {
	bo.remaining = bo.remaining.Sub(qty)
	if !bo.remaining.IsPositive() {
		bo.done = true
		delete(v.working, bo.id)
		delete(v.expiries, bo.id)
	}

	commission := inst.Notional(price, qty).Mul(v.commissionRate).Round(2)
	now := v.clk.Now()
	v.emit(execution.OrderEvent{
		Kind:    execution.EventFilled,
		OrderID: bo.id,
		Symbol:  bo.symbol,
		Time:    now,
		Fill: &execution.Fill{
			OrderID:    bo.id,
			Symbol:     bo.symbol,
			Side:       bo.side,
			Price:      price,
			Quantity:   qty,
			Commission: commission,
			Liquidity:  liq,
			Time:       now,
		},
	})
}

func (v *Venue) quoteFrom(ev market.Event) market.Tick {
	if t, ok := ev.Tick(); ok {
		return t
	}
	b, _ := ev.Bar()
	// Bars carry no spread; the close marks both sides.
	return market.Tick{
		Symbol: b.Symbol,
		Bid:    b.Close,
		Ask:    b.Close,
		Time:   b.Time,
	}
}
