package model

import (
	"fmt"
	"time"
)

// Timeframe is one of the fixed candle intervals the engine works with.
type Timeframe int

const (
	M1 Timeframe = iota
	M5
	M15
	H1
	H4
	D1
)

// AllTimeframes lists every timeframe, shortest first.
var AllTimeframes = []Timeframe{M1, M5, M15, H1, H4, D1}

type tfSpec struct {
	label    string
	duration time.Duration
	interval string // GMO kline interval parameter
	byYear   bool   // true: kline date is YYYY, false: YYYYMMDD
}

var tfSpecs = map[Timeframe]tfSpec{
	M1:  {"1m", time.Minute, "1min", false},
	M5:  {"5m", 5 * time.Minute, "5min", false},
	M15: {"15m", 15 * time.Minute, "15min", false},
	H1:  {"1h", time.Hour, "1hour", false},
	H4:  {"4h", 4 * time.Hour, "4hour", true},
	D1:  {"1d", 24 * time.Hour, "1day", true},
}

// ParseTimeframe resolves a label like "15m" or "1h".
func ParseTimeframe(s string) (Timeframe, error) {
	for tf, spec := range tfSpecs {
		if spec.label == s {
			return tf, nil
		}
	}
	return 0, fmt.Errorf("unknown timeframe %q", s)
}

// Label returns the human label ("1m", "15m", "1d").
func (tf Timeframe) Label() string { return tfSpecs[tf].label }

// Duration returns the candle interval length.
func (tf Timeframe) Duration() time.Duration { return tfSpecs[tf].duration }

// Seconds returns the interval length in whole seconds.
func (tf Timeframe) Seconds() int64 { return int64(tfSpecs[tf].duration / time.Second) }

// GMOInterval returns the broker's kline interval parameter ("5min", "1day").
func (tf Timeframe) GMOInterval() string { return tfSpecs[tf].interval }

// KlinesByYear reports whether the broker's kline endpoint expects a YYYY
// date for this interval instead of YYYYMMDD.
func (tf Timeframe) KlinesByYear() bool { return tfSpecs[tf].byYear }

// Align truncates t down to this timeframe's grid boundary (UTC).
func (tf Timeframe) Align(t time.Time) time.Time {
	d := tfSpecs[tf].duration
	return t.UTC().Truncate(d)
}

// String implements fmt.Stringer.
func (tf Timeframe) String() string { return tf.Label() }
