package strategies

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/backsim/execution"
	"github.com/rustyeddy/backsim/market"
)

// Runtime dispatches timeline and order events to the registered
// strategies in registration order. A failure inside one strategy's
// handler is contained at this boundary and logged; it never aborts the
// remainder of the run unless the runtime is configured fail-fast.
type Runtime struct {
	log      *zap.Logger
	trader   Trader
	failFast bool

	strategies []Strategy
	errCount   map[string]int
}

func NewRuntime(log *zap.Logger, trader Trader, failFast bool, strategies ...Strategy) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runtime{
		log:        log,
		trader:     trader,
		failFast:   failFast,
		strategies: strategies,
		errCount:   make(map[string]int),
	}
}

// HandlerErrors reports how many contained failures each strategy
// produced during the run.
func (r *Runtime) HandlerErrors() map[string]int {
	out := make(map[string]int, len(r.errCount))
	for k, v := range r.errCount {
		out[k] = v
	}
	return out
}

// guard runs one handler, converting panics into contained errors.
func (r *Runtime) guard(name, hook string, fn func() error) error {
	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("strategy %s panicked in %s: %v", name, hook, rec)
			}
		}()
		err = fn()
	}()
	if err == nil {
		return nil
	}

	r.errCount[name]++
	if r.failFast {
		return fmt.Errorf("strategy %s failed in %s: %w", name, hook, err)
	}
	r.log.Error("strategy handler error",
		zap.String("strategy", name),
		zap.String("hook", hook),
		zap.Error(err))
	return nil
}

func (r *Runtime) Start(ctx context.Context) error {
	for _, s := range r.strategies {
		if err := r.guard(s.Name(), "on_start", func() error {
			return s.OnStart(ctx, r.trader)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	for _, s := range r.strategies {
		if err := r.guard(s.Name(), "on_stop", func() error {
			return s.OnStop(ctx, r.trader)
		}); err != nil {
			return err
		}
	}
	return nil
}

// DispatchMarket forwards one market event to every strategy, preserving
// the merged timeline order.
func (r *Runtime) DispatchMarket(ctx context.Context, ev market.Event) error {
	for _, s := range r.strategies {
		if err := r.guard(s.Name(), "on_market_event", func() error {
			return s.OnMarketEvent(ctx, r.trader, ev)
		}); err != nil {
			return err
		}
	}
	return nil
}

// DispatchOrder forwards one order event in the order the execution
// engine produced it.
func (r *Runtime) DispatchOrder(ctx context.Context, ev execution.OrderEvent) error {
	for _, s := range r.strategies {
		if err := r.guard(s.Name(), "on_order_event", func() error {
			return s.OnOrderEvent(ctx, r.trader, ev)
		}); err != nil {
			return err
		}
	}
	return nil
}
