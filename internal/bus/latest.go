package bus

import (
	"sync"
	"time"

	"fxassist/internal/model"
)

// Latest is the last-quote table, one slot per symbol. Readers get a copy;
// writers overwrite in place. Serves the market snapshot endpoint.
type Latest struct {
	mu     sync.RWMutex
	quotes map[model.Symbol]model.Quote
}

// NewLatest creates an empty table.
func NewLatest() *Latest {
	return &Latest{quotes: make(map[model.Symbol]model.Quote)}
}

// Update overwrites the symbol's slot.
func (l *Latest) Update(q model.Quote) {
	l.mu.Lock()
	l.quotes[q.Symbol] = q
	l.mu.Unlock()
}

// Get returns the last quote for a symbol, false if none seen yet.
func (l *Latest) Get(s model.Symbol) (model.Quote, bool) {
	l.mu.RLock()
	q, ok := l.quotes[s]
	l.mu.RUnlock()
	return q, ok
}

// Snapshot returns a copy of every slot.
func (l *Latest) Snapshot() map[model.Symbol]model.Quote {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[model.Symbol]model.Quote, len(l.quotes))
	for s, q := range l.quotes {
		out[s] = q
	}
	return out
}

// Age returns how long ago the symbol's quote arrived, or false if none.
func (l *Latest) Age(s model.Symbol, now time.Time) (time.Duration, bool) {
	l.mu.RLock()
	q, ok := l.quotes[s]
	l.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return now.Sub(q.Timestamp), true
}
