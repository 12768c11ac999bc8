package model

import "time"

// MarketStatus is the broker-reported market state for a pair.
type MarketStatus string

const (
	MarketOpen        MarketStatus = "OPEN"
	MarketClose       MarketStatus = "CLOSE"
	MarketMaintenance MarketStatus = "MAINTENANCE"
)

// Quote is the latest bid/ask for one pair. Quotes are ephemeral:
// consumers only ever care about the most recent one.
type Quote struct {
	Symbol    Symbol       `json:"symbol"`
	Bid       float64      `json:"bid"`
	Ask       float64      `json:"ask"`
	Timestamp time.Time    `json:"timestamp"`
	Status    MarketStatus `json:"status"`
}

// Spread returns ask − bid.
func (q Quote) Spread() float64 { return q.Ask - q.Bid }

// SpreadPips returns the spread expressed in pips for the pair.
func (q Quote) SpreadPips() float64 { return q.Symbol.Pips(q.Spread()) }

// Mid returns the midpoint price.
func (q Quote) Mid() float64 { return (q.Bid + q.Ask) / 2 }
