// Package model defines the core domain types shared across the gateway and
// the signal engine: symbols, timeframes, quotes, candles, and the published
// signal shapes. Wire-level broker types live in internal/gmo; everything in
// this package is already decoded and validated.
package model

import (
	"fmt"
	"strconv"
)

// Symbol identifies one of the FX pairs tradeable at GMO Coin FX.
type Symbol string

// The fixed set of supported pairs.
const (
	USDJPY Symbol = "USD_JPY"
	EURJPY Symbol = "EUR_JPY"
	GBPJPY Symbol = "GBP_JPY"
	AUDJPY Symbol = "AUD_JPY"
	NZDJPY Symbol = "NZD_JPY"
	CADJPY Symbol = "CAD_JPY"
	CHFJPY Symbol = "CHF_JPY"
	TRYJPY Symbol = "TRY_JPY"
	ZARJPY Symbol = "ZAR_JPY"
	MXNJPY Symbol = "MXN_JPY"
	EURUSD Symbol = "EUR_USD"
	GBPUSD Symbol = "GBP_USD"
	AUDUSD Symbol = "AUD_USD"
	NZDUSD Symbol = "NZD_USD"
)

// AllSymbols lists every supported pair in display order.
var AllSymbols = []Symbol{
	USDJPY, EURJPY, GBPJPY, AUDJPY, NZDJPY, CADJPY, CHFJPY,
	TRYJPY, ZARJPY, MXNJPY, EURUSD, GBPUSD, AUDUSD, NZDUSD,
}

var symbolSet = func() map[Symbol]struct{} {
	m := make(map[Symbol]struct{}, len(AllSymbols))
	for _, s := range AllSymbols {
		m[s] = struct{}{}
	}
	return m
}()

// QuoteKind distinguishes JPY-quoted pairs (price in yen) from USD-quoted ones.
type QuoteKind int

const (
	JPYQuoted QuoteKind = iota
	USDQuoted
)

// ParseSymbol validates a pair code against the supported set.
func ParseSymbol(s string) (Symbol, error) {
	sym := Symbol(s)
	if _, ok := symbolSet[sym]; !ok {
		return "", fmt.Errorf("unknown symbol %q", s)
	}
	return sym, nil
}

// Kind returns the quote currency class of the pair.
func (s Symbol) Kind() QuoteKind {
	if len(s) >= 3 && s[len(s)-3:] == "JPY" {
		return JPYQuoted
	}
	return USDQuoted
}

// Precision returns the number of price decimals the broker displays:
// 3 for JPY-quoted pairs, 5 otherwise.
func (s Symbol) Precision() int {
	if s.Kind() == JPYQuoted {
		return 3
	}
	return 5
}

// PipSize returns the value of one pip: 0.01 for JPY-quoted pairs,
// 0.0001 otherwise.
func (s Symbol) PipSize() float64 {
	if s.Kind() == JPYQuoted {
		return 0.01
	}
	return 0.0001
}

// FormatPrice renders a price at the pair's display precision. Order and
// signing paths must use this (decimal string) form, never raw floats.
func (s Symbol) FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', s.Precision(), 64)
}

// Pips converts a price distance into pips for this pair.
func (s Symbol) Pips(dist float64) float64 {
	return dist / s.PipSize()
}
