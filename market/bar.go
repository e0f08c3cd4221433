package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Resolution is the time granularity of a bar stream.
type Resolution uint8

const (
	Second Resolution = iota
	Minute
	Hour
	Day
)

func (r Resolution) Duration() time.Duration {
	switch r {
	case Second:
		return time.Second
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	case Day:
		return 24 * time.Hour
	}
	return 0
}

func (r Resolution) String() string {
	switch r {
	case Second:
		return "S1"
	case Minute:
		return "M1"
	case Hour:
		return "H1"
	case Day:
		return "D1"
	}
	return "unknown"
}

// Bar is OHLCV candlestick data for one instrument at one resolution.
// Time marks the close of the bar.
type Bar struct {
	Symbol     string
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
	Resolution Resolution
	Time       time.Time
}
