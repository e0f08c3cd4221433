package market

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Tick is a single top-of-book quote update for an instrument. Sizes are
// optional; a zero size means "unknown depth".
type Tick struct {
	Symbol  string
	Bid     decimal.Decimal
	Ask     decimal.Decimal
	BidSize decimal.Decimal
	AskSize decimal.Decimal
	Time    time.Time
}

func (t Tick) Mid() decimal.Decimal {
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}

func (t Tick) Spread() decimal.Decimal {
	return t.Ask.Sub(t.Bid)
}

var ErrNoTick = errors.New("no tick for instrument")

// TickStore keeps the latest tick per instrument. The store carries a
// lock because the same type backs the live-adapter contract, where a
// pricing stream and an execution task read and write concurrently. In a
// backtest there is a single writer.
type TickStore struct {
	mu    sync.RWMutex
	ticks map[string]Tick
}

func NewTickStore() *TickStore {
	return &TickStore{ticks: make(map[string]Tick)}
}

func (s *TickStore) Set(t Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks[t.Symbol] = t
}

func (s *TickStore) Get(symbol string) (Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.ticks[symbol]
	if !ok {
		return Tick{}, ErrNoTick
	}
	return t, nil
}

// LastTick implements RateSource.
func (s *TickStore) LastTick(symbol string) (Tick, bool) {
	t, err := s.Get(symbol)
	return t, err == nil
}
