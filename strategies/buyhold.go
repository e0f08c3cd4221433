package strategies

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/backsim/execution"
	"github.com/rustyeddy/backsim/market"
)

// BuyAndHold submits a single market buy on the first event for its
// instrument and then sits on the position.
type BuyAndHold struct {
	Instrument string
	Units      decimal.Decimal

	orderID string
}

func NewBuyAndHold(instrument string, units float64) *BuyAndHold {
	return &BuyAndHold{
		Instrument: instrument,
		Units:      decimal.NewFromFloat(units),
	}
}

func (s *BuyAndHold) Name() string { return "buy-and-hold" }

func (s *BuyAndHold) OnStart(context.Context, Trader) error { return nil }

func (s *BuyAndHold) OnMarketEvent(ctx context.Context, t Trader, ev market.Event) error {
	if s.orderID != "" || ev.Symbol() != s.Instrument {
		return nil
	}
	id, err := t.Submit(ctx, execution.Command{
		Symbol:   s.Instrument,
		Side:     execution.Buy,
		Type:     execution.Market,
		Quantity: s.Units,
		Tag:      "buy-and-hold entry",
	})
	if err != nil {
		return err
	}
	s.orderID = id
	return nil
}

func (s *BuyAndHold) OnOrderEvent(context.Context, Trader, execution.OrderEvent) error {
	return nil
}

func (s *BuyAndHold) OnStop(context.Context, Trader) error { return nil }
