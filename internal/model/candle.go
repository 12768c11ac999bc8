package model

import (
	"context"
	"time"
)

// Candle is one OHLC bar on a timeframe grid. OpenTime is aligned to the
// timeframe boundary (UTC). Filled marks a synthetic flat bar inserted to
// bridge a market-closed gap; its OHLC all equal the prior close and
// downstream indicator consumers may elect to skip it.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume,omitempty"`
	Filled   bool      `json:"filled,omitempty"`
}

// Bullish reports close > open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Bearish reports close < open.
func (c Candle) Bearish() bool { return c.Close < c.Open }

// Valid checks the OHLC ordering invariant: low ≤ open,close ≤ high.
func (c Candle) Valid() bool {
	return c.Low <= c.Open && c.Low <= c.Close &&
		c.High >= c.Open && c.High >= c.Close
}

// CloseTime returns the end of the bar for the given timeframe.
func (c Candle) CloseTime(tf Timeframe) time.Time {
	return c.OpenTime.Add(tf.Duration())
}

// ── Storage port ──
// The engine itself keeps candles in memory; an attached store only sees
// candle rings through this interface.

// CandleStore persists candle rings outside the process. Implementations:
// internal/store/sqlite (archive) and internal/store/redis (cache).
type CandleStore interface {
	// Load returns up to n most recent candles for (symbol, tf),
	// oldest first.
	Load(ctx context.Context, symbol Symbol, tf Timeframe, n int) ([]Candle, error)

	// Append persists one finalized candle.
	Append(ctx context.Context, symbol Symbol, tf Timeframe, c Candle) error

	// Close releases underlying resources.
	Close() error
}
