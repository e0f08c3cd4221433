package execution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/backsim/clock"
	"github.com/rustyeddy/backsim/market"
	"github.com/rustyeddy/backsim/portfolio"
)

// OrderVenue is the slice of the venue the engine drives. The venue
// answers through the engine's HandleOrderEvent callback, synchronously
// in a backtest.
type OrderVenue interface {
	SubmitOrder(o Order)
	CancelOrder(id string) error
}

var ErrUnknownOrder = errors.New("unknown order")

// MarkSource supplies the latest venue quote per instrument.
type MarkSource interface {
	LastTick(symbol string) (market.Tick, bool)
}

// Engine is the order/position lifecycle state machine. It converts
// venue acknowledgements into state transitions on the orders it owns,
// folds fills into positions, and forwards one atomic balance impact per
// fill to the portfolio. It never mutates account balances directly.
type Engine struct {
	log      *zap.Logger
	clk      clock.Clock
	venue    OrderVenue
	registry *market.Registry
	port     *portfolio.Portfolio
	marks    MarkSource

	orders   map[string]*Order
	sequence []string // submission order, for deterministic reporting
	orderSeq int
	fillSeq  int

	positions map[string]*Position

	// OCO bracket bookkeeping: protective child -> sibling.
	siblings map[string]string

	queue []OrderEvent
}

func NewEngine(log *zap.Logger, clk clock.Clock, venue OrderVenue, registry *market.Registry, port *portfolio.Portfolio) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:       log,
		clk:       clk,
		venue:     venue,
		registry:  registry,
		port:      port,
		orders:    make(map[string]*Order),
		positions: make(map[string]*Position),
		siblings:  make(map[string]string),
	}
}

func (e *Engine) nextOrderID() string {
	e.orderSeq++
	return fmt.Sprintf("O-%06d", e.orderSeq)
}

func (e *Engine) nextFillID() string {
	e.fillSeq++
	return fmt.Sprintf("F-%06d", e.fillSeq)
}

// SetMarkSource wires the venue's quote view in after construction.
func (e *Engine) SetMarkSource(src MarkSource) { e.marks = src }

// Submit creates an order from the command and hands it to the venue.
// The returned ID identifies the order in subsequent events; validation
// failures surface as a Rejected order event, not an error.
func (e *Engine) Submit(ctx context.Context, cmd Command) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	o := &Order{
		ID:          e.nextOrderID(),
		Symbol:      cmd.Symbol,
		Side:        cmd.Side,
		Type:        cmd.Type,
		Quantity:    cmd.Quantity,
		Price:       cmd.Price,
		Trigger:     cmd.Trigger,
		TIF:         cmd.TIF,
		ExpireTime:  cmd.ExpireTime,
		StopLoss:    cmd.StopLoss,
		TakeProfit:  cmd.TakeProfit,
		Tag:         cmd.Tag,
		Status:      Submitted,
		SubmittedAt: e.clk.Now(),
	}
	e.orders[o.ID] = o
	e.sequence = append(e.sequence, o.ID)

	e.log.Debug("order submitted",
		zap.String("order", o.ID),
		zap.String("symbol", o.Symbol),
		zap.String("side", o.Side.String()),
		zap.String("type", o.Type.String()),
		zap.String("qty", o.Quantity.String()))

	e.venue.SubmitOrder(*o)
	return o.ID, nil
}

// Cancel requests cancellation of a working order. Cancelling a terminal
// order is an invalid transition reported to the caller; the run
// continues.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o, ok := e.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, id)
	}
	if o.Status.Terminal() {
		return fmt.Errorf("%w: cancel %s in %s", ErrInvalidStateTransition, id, o.Status)
	}
	return e.venue.CancelOrder(id)
}

// HandleOrderEvent applies one venue acknowledgement to the owned order
// and queues the resulting event for strategy dispatch. The venue calls
// this synchronously.
func (e *Engine) HandleOrderEvent(ev OrderEvent) {
	o, ok := e.orders[ev.OrderID]
	if !ok {
		e.log.Error("event for unknown order", zap.String("order", ev.OrderID))
		return
	}

	switch ev.Kind {
	case EventAccepted:
		if err := o.applyTransition(Accepted); err != nil {
			e.log.Error("bad transition", zap.String("order", o.ID), zap.Error(err))
			return
		}

	case EventRejected:
		if err := o.applyTransition(Rejected); err != nil {
			e.log.Error("bad transition", zap.String("order", o.ID), zap.Error(err))
			return
		}
		o.Reason = ev.Reason
		o.ClosedAt = ev.Time

	case EventCancelled:
		if err := o.applyTransition(Cancelled); err != nil {
			e.log.Error("bad transition", zap.String("order", o.ID), zap.Error(err))
			return
		}
		o.Reason = ev.Reason
		o.ClosedAt = ev.Time
		e.cancelSibling(o.ID)

	case EventExpired:
		if err := o.applyTransition(Expired); err != nil {
			e.log.Error("bad transition", zap.String("order", o.ID), zap.Error(err))
			return
		}
		o.ClosedAt = ev.Time
		e.cancelSibling(o.ID)

	case EventFilled:
		if ev.Fill == nil {
			e.log.Error("fill event without fill", zap.String("order", o.ID))
			return
		}
		f := *ev.Fill
		f.ID = e.nextFillID()
		if err := o.applyFill(f); err != nil {
			e.log.Error("bad fill", zap.String("order", o.ID), zap.Error(err))
			return
		}
		ev.Fill = &f
		e.applyFillToBooks(o, f)
		if o.Status == Filled {
			e.cancelSibling(o.ID)
			e.placeBracket(o)
		}
	}

	ev.Status = o.Status
	e.queue = append(e.queue, ev)
}

// applyFillToBooks updates the position and forwards the balance impact.
func (e *Engine) applyFillToBooks(o *Order, f Fill) {
	inst, ok := e.registry.Get(o.Symbol)
	if !ok {
		// The venue validated the instrument at submission; reaching here
		// means the registries diverged.
		e.log.Error("fill for unregistered instrument", zap.String("symbol", o.Symbol))
		return
	}

	pos, ok := e.positions[o.Symbol]
	if !ok {
		pos = &Position{Symbol: o.Symbol}
		e.positions[o.Symbol] = pos
	}
	realized := pos.apply(f, multiplierOf(inst))

	if err := e.port.Apply(portfolio.BalanceImpact{
		Currency:   inst.QuoteCurrency,
		RealizedPL: realized,
		Commission: f.Commission,
		Time:       f.Time,
		Reason:     fmt.Sprintf("fill %s %s", f.ID, o.Symbol),
	}); err != nil {
		e.log.Error("balance impact rejected", zap.String("fill", f.ID), zap.Error(err))
	}
}

func multiplierOf(inst market.Instrument) decimal.Decimal {
	if inst.Multiplier.IsPositive() {
		return inst.Multiplier
	}
	return decimal.NewFromInt(1)
}

// placeBracket submits the protective stop/limit pair for a filled entry
// that carried StopLoss/TakeProfit prices. The two children are linked
// one-cancels-other.
func (e *Engine) placeBracket(o *Order) {
	if o.StopLoss == nil && o.TakeProfit == nil {
		return
	}

	exit := o.Side.Opposite()
	var slID, tpID string

	if o.StopLoss != nil {
		id, err := e.Submit(context.Background(), Command{
			Symbol:   o.Symbol,
			Side:     exit,
			Type:     Stop,
			Quantity: o.Quantity,
			Trigger:  *o.StopLoss,
			TIF:      GTC,
			Tag:      "SL:" + o.ID,
		})
		if err == nil {
			slID = id
		}
	}
	if o.TakeProfit != nil {
		id, err := e.Submit(context.Background(), Command{
			Symbol:   o.Symbol,
			Side:     exit,
			Type:     Limit,
			Quantity: o.Quantity,
			Price:    *o.TakeProfit,
			TIF:      GTC,
			Tag:      "TP:" + o.ID,
		})
		if err == nil {
			tpID = id
		}
	}

	if slID != "" && tpID != "" {
		e.siblings[slID] = tpID
		e.siblings[tpID] = slID
	}
}

// cancelSibling enforces the OCO link: when one protective order
// terminates, its sibling is cancelled.
func (e *Engine) cancelSibling(id string) {
	sib, ok := e.siblings[id]
	if !ok {
		return
	}
	delete(e.siblings, id)
	delete(e.siblings, sib)

	o, ok := e.orders[sib]
	if !ok || o.Status.Terminal() {
		return
	}
	if err := e.venue.CancelOrder(sib); err != nil {
		e.log.Error("oco cancel failed", zap.String("order", sib), zap.Error(err))
	}
}

// Drain returns queued order events in production order and clears the
// queue. The orchestrator forwards them to the strategy runtime.
func (e *Engine) Drain() []OrderEvent {
	out := e.queue
	e.queue = nil
	return out
}

// Order returns a copy of the identified order.
func (e *Engine) Order(id string) (Order, bool) {
	o, ok := e.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Orders returns copies of every order in submission sequence.
func (e *Engine) Orders() []Order {
	out := make([]Order, 0, len(e.sequence))
	for _, id := range e.sequence {
		out = append(out, *e.orders[id])
	}
	return out
}

// Position returns a copy of the position for symbol (zero value when
// flat and never traded).
func (e *Engine) Position(symbol string) Position {
	if p, ok := e.positions[symbol]; ok {
		return *p
	}
	return Position{Symbol: symbol}
}

// Positions returns copies of all positions, sorted by symbol.
func (e *Engine) Positions() []Position {
	syms := make([]string, 0, len(e.positions))
	for s := range e.positions {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	out := make([]Position, 0, len(syms))
	for _, s := range syms {
		out = append(out, *e.positions[s])
	}
	return out
}

// OpenPositions implements portfolio.PositionSource.
func (e *Engine) OpenPositions() []portfolio.PositionMark {
	syms := make([]string, 0, len(e.positions))
	for s := range e.positions {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	var out []portfolio.PositionMark
	for _, s := range syms {
		p := e.positions[s]
		if p.Flat() {
			continue
		}
		out = append(out, portfolio.PositionMark{
			Symbol:   p.Symbol,
			NetQty:   p.NetQty,
			AvgEntry: p.AvgEntry,
		})
	}
	return out
}

// Instrument looks up instrument metadata for strategies.
func (e *Engine) Instrument(symbol string) (market.Instrument, bool) {
	return e.registry.Get(symbol)
}

// Account reports the portfolio snapshot at the current simulated time.
func (e *Engine) Account() portfolio.Snapshot {
	return e.port.Snapshot(e.clk.Now())
}

// LastTick is the venue's latest quote for symbol.
func (e *Engine) LastTick(symbol string) (market.Tick, bool) {
	if e.marks == nil {
		return market.Tick{}, false
	}
	return e.marks.LastTick(symbol)
}

// Now is the current simulated time.
func (e *Engine) Now() time.Time { return e.clk.Now() }

// EnforceMargin closes the worst open position while the account is in
// margin call, one position at a time, using market orders. Disabled for
// frozen accounts inside the portfolio.
func (e *Engine) EnforceMargin(ctx context.Context) error {
	for range e.positions {
		call, err := e.port.MarginCall()
		if err != nil {
			return err
		}
		if !call {
			return nil
		}
		mark, ok, err := e.port.LiquidationCandidate()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		side := Sell
		if mark.NetQty.IsNegative() {
			side = Buy
		}
		e.log.Warn("margin call liquidation",
			zap.String("symbol", mark.Symbol),
			zap.String("net", mark.NetQty.String()))

		if _, err := e.Submit(ctx, Command{
			Symbol:   mark.Symbol,
			Side:     side,
			Type:     Market,
			Quantity: mark.NetQty.Abs(),
			Tag:      "LIQUIDATION",
		}); err != nil {
			return err
		}
		if err := e.port.RecomputeMargin(); err != nil {
			return err
		}
	}
	return nil
}
