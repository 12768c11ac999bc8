package candlestore

import (
	"context"
	"sync"
	"time"

	"fxassist/internal/model"
)

// Aggregator folds live quotes into forming candles, one per (symbol,
// timeframe), and rotates them on the grid boundary. Bars are built from
// the bid, matching the broker's kline feed. Runs in a single goroutine.
type Aggregator struct {
	mu     sync.Mutex
	states map[seriesKey]*formingState
	tfs    []model.Timeframe
	store  *Store

	flushInterval time.Duration

	// OnCandle is called for every finalized candle after it is stored
	// (optional; used to feed the persistence writers).
	OnCandle func(sym model.Symbol, tf model.Timeframe, c model.Candle)
	// OnGapFill is called once per synthetic flat bar inserted (optional).
	OnGapFill func(sym model.Symbol, tf model.Timeframe)
}

type formingState struct {
	bucket time.Time // aligned open time of the forming bar
	candle model.Candle
}

// NewAggregator creates an aggregator feeding the given store.
func NewAggregator(store *Store, tfs []model.Timeframe) *Aggregator {
	if len(tfs) == 0 {
		tfs = model.AllTimeframes
	}
	return &Aggregator{
		states:        make(map[seriesKey]*formingState),
		tfs:           tfs,
		store:         store,
		flushInterval: time.Second,
	}
}

// Run consumes quotes until ctx is cancelled or the channel closes, then
// finalizes every forming bar.
func (a *Aggregator) Run(ctx context.Context, quotes <-chan model.Quote) {
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.flushAll()
			return
		case q, ok := <-quotes:
			if !ok {
				a.flushAll()
				return
			}
			a.Process(q)
		case now := <-ticker.C:
			// Quiet feed: close bars whose boundary has passed.
			a.flushOld(now)
		}
	}
}

// Process incorporates one quote into every enabled timeframe.
// This is the hot path — O(1) per TF.
func (a *Aggregator) Process(q model.Quote) {
	if q.Status != model.MarketOpen && q.Status != "" {
		return // CLOSE/MAINTENANCE ticks carry no tradable price
	}
	price := q.Bid
	ts := q.Timestamp

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, tf := range a.tfs {
		key := seriesKey{q.Symbol, tf}
		bucket := tf.Align(ts)

		st, exists := a.states[key]
		if exists && bucket.Before(st.bucket) {
			continue // late quote, bar already rotated
		}
		if exists && bucket.After(st.bucket) {
			// Boundary crossed: the closed bar goes out first, then any
			// skipped buckets get flat fill bars.
			a.finalize(key, st)
			a.fillGap(key, st, bucket)
			exists = false
		}
		if !exists {
			a.states[key] = &formingState{
				bucket: bucket,
				candle: model.Candle{
					OpenTime: bucket,
					Open:     price,
					High:     price,
					Low:      price,
					Close:    price,
					Volume:   1,
				},
			}
			continue
		}
		c := &st.candle
		if price > c.High {
			c.High = price
		}
		if price < c.Low {
			c.Low = price
		}
		c.Close = price
		c.Volume++ // tick count; the broker reports no FX volume
	}
}

// fillGap inserts one flat bar per skipped bucket between the finalized bar
// and the new bucket. Gaps wider than the ring are truncated to what the
// ring can hold.
func (a *Aggregator) fillGap(key seriesKey, st *formingState, next time.Time) {
	d := key.tf.Duration()
	from := st.bucket.Add(d)
	if gap := next.Sub(from) / d; int(gap) > a.store.capacity {
		from = next.Add(-time.Duration(a.store.capacity) * d)
	}
	for t := from; t.Before(next); t = t.Add(d) {
		flat := model.Candle{
			OpenTime: t,
			Open:     st.candle.Close,
			High:     st.candle.Close,
			Low:      st.candle.Close,
			Close:    st.candle.Close,
			Filled:   true,
		}
		a.store.Append(key.symbol, key.tf, flat)
		if a.OnGapFill != nil {
			a.OnGapFill(key.symbol, key.tf)
		}
	}
}

// finalize stores one closed bar and drops its forming state.
// Caller holds a.mu.
func (a *Aggregator) finalize(key seriesKey, st *formingState) {
	a.store.Append(key.symbol, key.tf, st.candle)
	delete(a.states, key)
	if a.OnCandle != nil {
		a.OnCandle(key.symbol, key.tf, st.candle)
	}
}

// flushOld finalizes bars whose close time has passed with no quote to
// rotate them. A 2s grace absorbs feed jitter around the boundary.
func (a *Aggregator) flushOld(now time.Time) {
	const grace = 2 * time.Second
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, st := range a.states {
		if now.After(st.bucket.Add(key.tf.Duration()).Add(grace)) {
			a.finalize(key, st)
		}
	}
}

// flushAll finalizes every forming bar (shutdown path).
func (a *Aggregator) flushAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, st := range a.states {
		a.finalize(key, st)
	}
}
