// Package backtest wires the simulation components into one run: clock,
// timeline merge, simulated venue, execution engine, portfolio and
// strategy runtime, driven by a single-threaded event loop.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/backsim/clock"
	"github.com/rustyeddy/backsim/execution"
	"github.com/rustyeddy/backsim/internal/id"
	"github.com/rustyeddy/backsim/journal"
	"github.com/rustyeddy/backsim/market"
	"github.com/rustyeddy/backsim/portfolio"
	"github.com/rustyeddy/backsim/sim"
	"github.com/rustyeddy/backsim/strategies"
	"github.com/rustyeddy/backsim/timeline"
)

// Options collects everything a run needs. The registry, account and
// fill model are built by the caller (usually from the config surface).
type Options struct {
	Registry       *market.Registry
	Account        *portfolio.Account
	FillModel      *sim.FillModel
	CommissionRate decimal.Decimal
	VenueName      string
	Strategies     []strategies.Strategy
	FailFast       bool
	Journal        journal.Journal
	Start          time.Time // inclusive; zero means from the first event
	Stop           time.Time // exclusive; zero means until exhaustion
}

// Result is the outcome surface of one completed run.
type Result struct {
	RunID     string
	Start     time.Time // first processed event
	Stop      time.Time // last processed event
	Events    int
	FillCount int

	Orders        []execution.Order
	Positions     []execution.Position
	Account       portfolio.Snapshot
	HandlerErrors map[string]int
}

// Engine owns one backtest run. Construct a fresh engine per run; the
// clock, venue book and counters are not reusable.
type Engine struct {
	log   *zap.Logger
	opts  Options
	runID string

	clk     *clock.Simulated
	venue   *sim.Venue
	port    *portfolio.Portfolio
	exec    *execution.Engine
	runtime *strategies.Runtime
	journal journal.Journal
}

func New(log *zap.Logger, opts Options) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("backtest: registry is required")
	}
	if opts.Account == nil {
		return nil, fmt.Errorf("backtest: account is required")
	}
	if opts.FillModel == nil {
		opts.FillModel = sim.PerfectFillModel()
	}
	if opts.VenueName == "" {
		opts.VenueName = "SIM"
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}
	if !opts.Start.IsZero() && !opts.Stop.IsZero() && !opts.Stop.After(opts.Start) {
		return nil, fmt.Errorf("backtest: stop %s not after start %s", opts.Stop, opts.Start)
	}

	e := &Engine{
		log:     log,
		opts:    opts,
		runID:   id.New(),
		clk:     clock.NewSimulated(opts.Start),
		journal: opts.Journal,
	}

	e.venue = sim.NewVenue(opts.VenueName, log.Named("venue"), e.clk, opts.Registry, opts.FillModel, opts.CommissionRate)
	e.port = portfolio.New(log.Named("portfolio"), opts.Account, opts.Registry, e.venue)
	e.exec = execution.NewEngine(log.Named("execution"), e.clk, e.venue, opts.Registry, e.port)

	// Mutual references are wired after construction.
	e.venue.SetEventHandler(e.exec.HandleOrderEvent)
	e.exec.SetMarkSource(e.venue)
	e.port.SetPositionSource(e.exec)

	e.runtime = strategies.NewRuntime(log.Named("strategies"), e.exec, opts.FailFast, opts.Strategies...)
	return e, nil
}

// RunID identifies this run in journals and logs.
func (e *Engine) RunID() string { return e.runID }

// Run merges the streams and replays them through the venue and the
// strategies. It returns a Result even on handler failures; only data
// ordering violations and context cancellation abort with an error.
func (e *Engine) Run(ctx context.Context, streams ...timeline.Stream) (*Result, error) {
	merger, err := timeline.NewMerger(streams...)
	if err != nil {
		return nil, fmt.Errorf("backtest: prime timeline: %w", err)
	}
	defer merger.Close()

	if err := e.venue.Connect(ctx); err != nil {
		return nil, fmt.Errorf("backtest: connect venue: %w", err)
	}
	defer e.venue.Disconnect()

	e.log.Info("run starting",
		zap.String("run", e.runID),
		zap.String("account", e.opts.Account.ID),
		zap.Int("strategies", len(e.opts.Strategies)))

	if err := e.runtime.Start(ctx); err != nil {
		return nil, err
	}

	res := &Result{RunID: e.runID}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ev, ok, err := merger.Next()
		if err != nil {
			return nil, fmt.Errorf("backtest: %w", err)
		}
		if !ok {
			break
		}
		// The window is half-open: an event stamped exactly at Stop is
		// out of the run.
		if !e.opts.Stop.IsZero() && !ev.Time().Before(e.opts.Stop) {
			break
		}

		e.clk.AdvanceTo(ev.Time())

		// Events before the window still update the venue's quote so the
		// first in-window order has a market, but strategies never see them.
		warmup := !e.opts.Start.IsZero() && ev.Time().Before(e.opts.Start)

		e.venue.OnMarketEvent(ev)
		if err := e.flushOrderEvents(ctx); err != nil {
			return nil, err
		}

		if warmup {
			continue
		}

		if res.Events == 0 {
			res.Start = ev.Time()
		}
		res.Stop = ev.Time()
		res.Events++

		if err := e.revalue(ctx); err != nil {
			return nil, err
		}

		if err := e.runtime.DispatchMarket(ctx, ev); err != nil {
			return nil, err
		}
		if err := e.flushOrderEvents(ctx); err != nil {
			return nil, err
		}
	}

	if err := e.runtime.Stop(ctx); err != nil {
		return nil, err
	}
	if err := e.flushOrderEvents(ctx); err != nil {
		return nil, err
	}
	e.snapshotEquity()

	for _, o := range e.exec.Orders() {
		if err := e.journal.RecordOrder(orderRecord(e.runID, o)); err != nil {
			e.log.Error("journal order failed", zap.String("order", o.ID), zap.Error(err))
		}
	}

	res.Orders = e.exec.Orders()
	res.Positions = e.exec.Positions()
	res.Account = e.exec.Account()
	res.HandlerErrors = e.runtime.HandlerErrors()
	for _, o := range res.Orders {
		res.FillCount += len(o.Fills)
	}

	e.log.Info("run finished",
		zap.String("run", e.runID),
		zap.Int("events", res.Events),
		zap.Int("orders", len(res.Orders)),
		zap.Int("fills", res.FillCount),
		zap.String("equity", res.Account.Equity.String()))

	return res, nil
}

// flushOrderEvents drains the execution queue to the journal and the
// strategies until it stays empty; dispatching order events can produce
// new orders that fill synchronously.
func (e *Engine) flushOrderEvents(ctx context.Context) error {
	for {
		evs := e.exec.Drain()
		if len(evs) == 0 {
			return nil
		}
		for _, ev := range evs {
			if ev.Fill != nil {
				if err := e.journal.RecordFill(fillRecord(e.runID, *ev.Fill)); err != nil {
					e.log.Error("journal fill failed", zap.String("fill", ev.Fill.ID), zap.Error(err))
				}
			}
			if err := e.runtime.DispatchOrder(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// revalue recomputes margin, records the equity point and liquidates
// while the account is in margin call.
func (e *Engine) revalue(ctx context.Context) error {
	if err := e.port.RecomputeMargin(); err != nil {
		e.log.Warn("margin recompute failed", zap.Error(err))
		return nil
	}
	e.snapshotEquity()

	if err := e.exec.EnforceMargin(ctx); err != nil {
		return err
	}
	return e.flushOrderEvents(ctx)
}

func (e *Engine) snapshotEquity() {
	s := e.exec.Account()
	if err := e.journal.RecordEquity(journal.EquitySnapshot{
		RunID:        e.runID,
		Time:         s.Time,
		Balance:      s.Balance.InexactFloat64(),
		Equity:       s.Equity.InexactFloat64(),
		UnrealizedPL: s.UnrealizedPL.InexactFloat64(),
		MarginUsed:   s.MarginUsed.InexactFloat64(),
		FreeMargin:   s.FreeMargin.InexactFloat64(),
		MarginLevel:  s.MarginLevel.InexactFloat64(),
	}); err != nil {
		e.log.Error("journal equity failed", zap.Error(err))
	}
}

// Close releases the journal. Call once, after Run.
func (e *Engine) Close() error { return e.journal.Close() }

func orderRecord(runID string, o execution.Order) journal.OrderRecord {
	return journal.OrderRecord{
		RunID:        runID,
		OrderID:      o.ID,
		Symbol:       o.Symbol,
		Side:         o.Side.String(),
		Type:         o.Type.String(),
		Status:       o.Status.String(),
		Quantity:     o.Quantity.InexactFloat64(),
		FilledQty:    o.FilledQty.InexactFloat64(),
		AvgFillPrice: o.AvgFillPrice.InexactFloat64(),
		LimitPrice:   o.Price.InexactFloat64(),
		TriggerPrice: o.Trigger.InexactFloat64(),
		Reason:       o.Reason,
		Tag:          o.Tag,
		SubmittedAt:  o.SubmittedAt,
		ClosedAt:     o.ClosedAt,
	}
}

func fillRecord(runID string, f execution.Fill) journal.FillRecord {
	return journal.FillRecord{
		RunID:      runID,
		FillID:     f.ID,
		OrderID:    f.OrderID,
		Symbol:     f.Symbol,
		Side:       f.Side.String(),
		Price:      f.Price.InexactFloat64(),
		Quantity:   f.Quantity.InexactFloat64(),
		Commission: f.Commission.InexactFloat64(),
		Liquidity:  f.Liquidity.String(),
		Time:       f.Time,
	}
}
