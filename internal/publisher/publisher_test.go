package publisher

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"fxassist/internal/analyzer"
	"fxassist/internal/candlestore"
	"fxassist/internal/logger"
	"fxassist/internal/model"
	"fxassist/internal/strategy"
)

// fakeTicker fires only when the test says so.
type fakeTicker struct {
	ch      chan time.Time
	period  time.Duration
	stopped bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.stopped = true }
func (f *fakeTicker) fire(t time.Time)    { f.ch <- t }

// tickerLog hands out fake tickers and records every requested period.
type tickerLog struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (l *tickerLog) factory(d time.Duration) Ticker {
	l.mu.Lock()
	defer l.mu.Unlock()
	ft := &fakeTicker{ch: make(chan time.Time), period: d}
	l.tickers = append(l.tickers, ft)
	return ft
}

func (l *tickerLog) get(i int) *fakeTicker {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i >= len(l.tickers) {
		return nil
	}
	return l.tickers[i]
}

// wait blocks until at least n tickers exist; Run creates them just after
// the immediate evaluation, so a fresh snapshot does not guarantee them yet.
func (l *tickerLog) wait(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		l.mu.Lock()
		have := len(l.tickers)
		l.mu.Unlock()
		if have >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d tickers", n)
}

// stubStrategy always reports a confident BUY.
func stubStrategy() strategy.Strategy {
	return strategy.Strategy{
		Name: "stub",
		Tick: func(_ *candlestore.Store, sym model.Symbol, now time.Time) model.TFQESignal {
			return model.TFQESignal{Symbol: sym, State: model.TFQEBuy, Confidence: 90, Timestamp: now}
		},
	}
}

// seedFresh puts one just-closed bar into every timeframe so the store
// reads as realtime at now.
func seedFresh(store *candlestore.Store, sym model.Symbol, now time.Time) {
	for _, tf := range model.AllTimeframes {
		open := tf.Align(now).Add(-tf.Duration())
		store.Append(sym, tf, model.Candle{
			OpenTime: open, Open: 150.10, High: 150.15, Low: 150.05, Close: 150.12,
		})
	}
}

func newTestPublisher(store *candlestore.Store, log *tickerLog, now time.Time, published chan<- *Snapshot) *Publisher {
	p := New(Config{
		Symbols:    []model.Symbol{model.USDJPY},
		Strategies: []strategy.Strategy{stubStrategy()},
		NewTicker:  log.factory,
		Now:        func() time.Time { return now },
	}, store, analyzer.New(store), nil)
	p.OnPublish = func(s *Snapshot) { published <- s }
	return p
}

func TestPublisher_ImmediateEvaluationOnStart(t *testing.T) {
	store := candlestore.New(0)
	now := time.Date(2026, 3, 17, 10, 0, 30, 0, time.UTC)
	seedFresh(store, model.USDJPY, now)

	published := make(chan *Snapshot, 4)
	p := newTestPublisher(store, &tickerLog{}, now, published)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	snap := waitSnapshot(t, published)
	sig, ok := snap.TFQE[model.USDJPY]
	if !ok {
		t.Fatal("first snapshot missing TFQE signal")
	}
	if sig.DataFreshness != FreshnessRealtime {
		t.Errorf("freshness = %q, want REALTIME", sig.DataFreshness)
	}
	if sig.Confidence != 90 {
		t.Errorf("fresh confidence = %d, want 90 uncapped", sig.Confidence)
	}
	if _, ok := snap.Analyses[model.USDJPY]; !ok {
		t.Error("first snapshot missing analysis")
	}
}

func TestPublisher_StaleSeriesCapsConfidence(t *testing.T) {
	store := candlestore.New(0) // nothing seeded, no backfiller
	now := time.Date(2026, 3, 17, 10, 0, 30, 0, time.UTC)

	published := make(chan *Snapshot, 4)
	p := newTestPublisher(store, &tickerLog{}, now, published)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	snap := waitSnapshot(t, published)
	sig := snap.TFQE[model.USDJPY]
	if sig.DataFreshness != FreshnessStale {
		t.Errorf("freshness = %q, want STALE", sig.DataFreshness)
	}
	if sig.Confidence != staleConfidenceCap {
		t.Errorf("stale confidence = %d, want capped at %d", sig.Confidence, staleConfidenceCap)
	}
	an := snap.Analyses[model.USDJPY]
	if an.DataFreshness != FreshnessStale {
		t.Errorf("analysis freshness = %q", an.DataFreshness)
	}
}

func TestPublisher_AlignsThenRunsSteady(t *testing.T) {
	store := candlestore.New(0)
	now := time.Date(2026, 3, 17, 10, 3, 0, 0, time.UTC)
	seedFresh(store, model.USDJPY, now)

	published := make(chan *Snapshot, 8)
	log := &tickerLog{}
	p := newTestPublisher(store, log, now, published)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	waitSnapshot(t, published) // immediate pass
	log.wait(t, 2)

	// Ticker 0 is the analysis minute, ticker 1 the boundary aligner:
	// 12 minutes to 10:15 plus the grace.
	analysisT := log.get(0)
	alignT := log.get(1)
	if analysisT.period != analysisInterval {
		t.Errorf("analysis period = %v", analysisT.period)
	}
	if want := 12*time.Minute + boundaryGrace; alignT.period != want {
		t.Errorf("align period = %v, want %v", alignT.period, want)
	}

	alignT.fire(now.Add(alignT.period))
	waitSnapshot(t, published)

	steady := log.get(2)
	if steady == nil {
		t.Fatal("no steady ticker created after the aligned fire")
	}
	if steady.period != tfqeInterval {
		t.Errorf("steady period = %v, want %v", steady.period, tfqeInterval)
	}
	if !alignT.stopped {
		t.Error("align ticker left running")
	}

	steady.fire(now.Add(27 * time.Minute))
	waitSnapshot(t, published)
}

func TestPublisher_AnalysisTickKeepsTFQE(t *testing.T) {
	store := candlestore.New(0)
	now := time.Date(2026, 3, 17, 10, 0, 30, 0, time.UTC)
	seedFresh(store, model.USDJPY, now)

	published := make(chan *Snapshot, 8)
	log := &tickerLog{}
	p := newTestPublisher(store, log, now, published)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	first := waitSnapshot(t, published)
	log.wait(t, 2)

	// A minute tick recomputes analyses only; the TFQE entry must carry over.
	log.get(0).fire(now.Add(time.Minute))
	second := waitSnapshot(t, published)

	if second == first {
		t.Fatal("snapshot pointer not swapped")
	}
	sig, ok := second.TFQE[model.USDJPY]
	if !ok {
		t.Fatal("TFQE entry lost on an analysis-only tick")
	}
	if sig.Timestamp != first.TFQE[model.USDJPY].Timestamp {
		t.Error("TFQE entry recomputed on an analysis-only tick")
	}
}

func TestPublisher_PublishedSnapshotIsImmutable(t *testing.T) {
	store := candlestore.New(0)
	now := time.Date(2026, 3, 17, 10, 0, 30, 0, time.UTC)
	seedFresh(store, model.USDJPY, now)

	published := make(chan *Snapshot, 8)
	log := &tickerLog{}
	p := newTestPublisher(store, log, now, published)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	first := waitSnapshot(t, published)
	held := first.TFQE[model.USDJPY]
	log.wait(t, 2)

	log.get(0).fire(now.Add(time.Minute))
	waitSnapshot(t, published)

	if got := first.TFQE[model.USDJPY]; got != held {
		t.Error("earlier snapshot mutated by a later evaluation")
	}
	if p.Snapshot() == first {
		t.Error("publisher still serving the old snapshot")
	}
}

type countingBackfiller struct {
	mu    sync.Mutex
	calls int
	trace string
	store *candlestore.Store
	now   time.Time
}

func (b *countingBackfiller) Fill(ctx context.Context, sym model.Symbol, tf model.Timeframe, _ int) (int, error) {
	b.mu.Lock()
	b.calls++
	b.trace = logger.TraceID(ctx)
	b.mu.Unlock()
	open := tf.Align(b.now).Add(-tf.Duration())
	b.store.Append(sym, tf, model.Candle{OpenTime: open, Open: 150.1, High: 150.2, Low: 150.0, Close: 150.15})
	return 1, nil
}

func TestPublisher_RefreshBackfillsStaleSeries(t *testing.T) {
	store := candlestore.New(0)
	now := time.Date(2026, 3, 17, 10, 0, 30, 0, time.UTC)
	bf := &countingBackfiller{store: store, now: now}

	published := make(chan *Snapshot, 4)
	log := &tickerLog{}
	p := New(Config{
		Symbols:    []model.Symbol{model.USDJPY},
		Strategies: []strategy.Strategy{stubStrategy()},
		NewTicker:  log.factory,
		Now:        func() time.Time { return now },
	}, store, analyzer.New(store), bf)
	p.OnPublish = func(s *Snapshot) { published <- s }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	snap := waitSnapshot(t, published)
	bf.mu.Lock()
	calls := bf.calls
	trace := bf.trace
	bf.mu.Unlock()
	if calls != len(model.AllTimeframes) {
		t.Errorf("backfill calls = %d, want one per timeframe", calls)
	}
	if got := snap.TFQE[model.USDJPY].DataFreshness; got != FreshnessRealtime {
		t.Errorf("freshness after backfill = %q, want REALTIME", got)
	}
	// Refresh calls carry the per-symbol trace ID for log correlation.
	if !strings.HasPrefix(trace, string(model.USDJPY)+"-") {
		t.Errorf("refresh trace ID = %q, want %s-<nanos>", trace, model.USDJPY)
	}
}

func TestUntilNextBoundary(t *testing.T) {
	cases := []struct {
		now  time.Time
		want time.Duration
	}{
		{time.Date(2026, 3, 17, 10, 3, 0, 0, time.UTC), 12 * time.Minute},
		{time.Date(2026, 3, 17, 10, 14, 59, 0, time.UTC), time.Second},
		{time.Date(2026, 3, 17, 10, 15, 0, 0, time.UTC), 15 * time.Minute},
	}
	for _, tc := range cases {
		if got := untilNextBoundary(tc.now, tfqeInterval); got != tc.want {
			t.Errorf("untilNextBoundary(%v) = %v, want %v", tc.now, got, tc.want)
		}
	}
}

func waitSnapshot(t *testing.T, ch <-chan *Snapshot) *Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a snapshot")
		return nil
	}
}
