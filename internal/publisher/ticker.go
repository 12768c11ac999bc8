package publisher

import "time"

// Ticker abstracts time.Ticker so schedules can be driven by a virtual
// clock in tests.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory makes a ticker with the given period.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// RealTicker is the production TickerFactory.
func RealTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }
