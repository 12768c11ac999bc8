// Package candlestore holds the in-memory candle history the engine reads
// from: one fixed-capacity ring per (symbol, timeframe), written by the
// kline backfiller and the tick aggregator, read by the analyzers. Readers
// always see a point-in-time snapshot; a concurrent append never mutates a
// slice a reader already holds.
package candlestore

import (
	"sync"
	"sync/atomic"
	"time"

	"fxassist/internal/model"
)

// DefaultCapacity is the per-series ring size. 500 closed bars cover the
// longest indicator warm-up (ADX needs 2×14) with a wide margin.
const DefaultCapacity = 512

// series is one (symbol, timeframe) history. Appends build a fresh slice and
// publish it with an atomic pointer swap, so Snapshot is a single load.
type series struct {
	mu       sync.Mutex // serializes writers
	snap     atomic.Pointer[[]model.Candle]
	capacity int
	updated  atomic.Int64 // Unix nanos of last append
}

func newSeries(capacity int) *series {
	s := &series{capacity: capacity}
	empty := make([]model.Candle, 0)
	s.snap.Store(&empty)
	return s
}

// Store is the engine-wide candle history.
type Store struct {
	mu       sync.RWMutex
	series   map[seriesKey]*series
	capacity int
}

type seriesKey struct {
	symbol model.Symbol
	tf     model.Timeframe
}

// New creates a store; capacity ≤ 0 means DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		series:   make(map[seriesKey]*series),
		capacity: capacity,
	}
}

func (s *Store) get(sym model.Symbol, tf model.Timeframe) *series {
	key := seriesKey{sym, tf}
	s.mu.RLock()
	sr, ok := s.series[key]
	s.mu.RUnlock()
	if ok {
		return sr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sr, ok = s.series[key]; ok {
		return sr
	}
	sr = newSeries(s.capacity)
	s.series[key] = sr
	return sr
}

// Append adds one closed candle. Order is enforced: a candle at the same
// open_time as the newest bar replaces it (backfill refresh), an older one
// is dropped, a newer one is appended, evicting the oldest past capacity.
func (s *Store) Append(sym model.Symbol, tf model.Timeframe, c model.Candle) {
	sr := s.get(sym, tf)
	sr.mu.Lock()
	defer sr.mu.Unlock()

	cur := *sr.snap.Load()
	n := len(cur)
	switch {
	case n > 0 && c.OpenTime.Before(cur[n-1].OpenTime):
		return // out-of-order, history wins
	case n > 0 && c.OpenTime.Equal(cur[n-1].OpenTime):
		next := make([]model.Candle, n)
		copy(next, cur)
		next[n-1] = c
		sr.snap.Store(&next)
	default:
		start := 0
		if n >= sr.capacity {
			start = n - sr.capacity + 1
		}
		next := make([]model.Candle, 0, n-start+1)
		next = append(next, cur[start:]...)
		next = append(next, c)
		sr.snap.Store(&next)
	}
	sr.updated.Store(time.Now().UnixNano())
}

// Seed bulk-loads backfilled candles. Input may overlap existing history;
// the per-candle ordering rules of Append apply.
func (s *Store) Seed(sym model.Symbol, tf model.Timeframe, candles []model.Candle) {
	for _, c := range candles {
		s.Append(sym, tf, c)
	}
}

// Snapshot returns the newest n candles, oldest first. n ≤ 0 means all.
// The returned slice is immutable: appends never touch it.
func (s *Store) Snapshot(sym model.Symbol, tf model.Timeframe, n int) []model.Candle {
	cur := *s.get(sym, tf).snap.Load()
	if n <= 0 || n >= len(cur) {
		return cur
	}
	return cur[len(cur)-n:]
}

// Last returns the newest candle, false if the series is empty.
func (s *Store) Last(sym model.Symbol, tf model.Timeframe) (model.Candle, bool) {
	cur := *s.get(sym, tf).snap.Load()
	if len(cur) == 0 {
		return model.Candle{}, false
	}
	return cur[len(cur)-1], true
}

// Len returns the number of candles held for the series.
func (s *Store) Len(sym model.Symbol, tf model.Timeframe) int {
	return len(*s.get(sym, tf).snap.Load())
}

// Fresh reports whether the newest candle's close time is within 1.5
// durations of now. A stale series means the feed has gone quiet and the
// consumer should backfill before trusting the data.
func (s *Store) Fresh(sym model.Symbol, tf model.Timeframe, now time.Time) bool {
	last, ok := s.Last(sym, tf)
	if !ok {
		return false
	}
	maxAge := tf.Duration() + tf.Duration()/2
	return now.Sub(last.CloseTime(tf)) <= maxAge
}

// LastUpdate returns the wall-clock time of the series' last append.
func (s *Store) LastUpdate(sym model.Symbol, tf model.Timeframe) time.Time {
	ns := s.get(sym, tf).updated.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
