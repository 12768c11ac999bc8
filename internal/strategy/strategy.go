// Package strategy holds the signal strategies. A strategy is a capability
// record — a name plus a tick function over the candle store — so the
// publisher can schedule any mix of strategies without knowing their
// internals.
package strategy

import (
	"time"

	"fxassist/internal/candlestore"
	"fxassist/internal/model"
)

// Strategy is one schedulable signal producer. Tick must be a pure read of
// the store snapshot: no I/O, no retained state between calls.
type Strategy struct {
	Name string
	Tick func(store *candlestore.Store, sym model.Symbol, now time.Time) model.TFQESignal
}
