// Package publisher schedules the signal engine: it wakes on the M15
// boundary for strategy signals and every minute for the multi-timeframe
// view, refreshes stale candle series, and swaps in a new immutable
// snapshot. Readers always see a whole snapshot, never a torn one.
package publisher

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"fxassist/internal/analyzer"
	"fxassist/internal/candlestore"
	"fxassist/internal/logger"
	"fxassist/internal/model"
	"fxassist/internal/strategy"
)

const (
	tfqeInterval     = 15 * time.Minute
	analysisInterval = time.Minute
	boundaryGrace    = 2 * time.Second

	// Signals computed from a stale series are capped here.
	staleConfidenceCap = 30

	FreshnessRealtime = "REALTIME"
	FreshnessStale    = "STALE"
)

// Snapshot is one immutable engine output. A new evaluation replaces the
// whole value; nothing in a published snapshot is ever mutated.
type Snapshot struct {
	At       time.Time
	TFQE     map[model.Symbol]model.TFQESignal
	Analyses map[model.Symbol]model.MultiTimeframeAnalysis
}

// Backfiller is the slice of the kline fetcher the publisher needs.
type Backfiller interface {
	Fill(ctx context.Context, sym model.Symbol, tf model.Timeframe, target int) (int, error)
}

// Config wires a publisher.
type Config struct {
	Symbols    []model.Symbol
	Strategies []strategy.Strategy

	NewTicker TickerFactory    // nil: RealTicker
	Now       func() time.Time // nil: time.Now
}

// Publisher owns the periodic evaluation loop and the published snapshot.
type Publisher struct {
	cfg      Config
	store    *candlestore.Store
	analyzer *analyzer.Analyzer
	backfill Backfiller

	snap atomic.Pointer[Snapshot]

	// OnPublish is called after each snapshot swap (optional, metrics).
	OnPublish func(s *Snapshot)
}

// New creates a publisher. backfill may be nil (no REST refresh).
func New(cfg Config, store *candlestore.Store, an *analyzer.Analyzer, backfill Backfiller) *Publisher {
	if cfg.NewTicker == nil {
		cfg.NewTicker = RealTicker
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	p := &Publisher{cfg: cfg, store: store, analyzer: an, backfill: backfill}
	p.snap.Store(&Snapshot{
		TFQE:     map[model.Symbol]model.TFQESignal{},
		Analyses: map[model.Symbol]model.MultiTimeframeAnalysis{},
	})
	return p
}

// Snapshot returns the current published snapshot. Never nil.
func (p *Publisher) Snapshot() *Snapshot { return p.snap.Load() }

// Run drives both schedules until ctx is cancelled. The strategy tick is
// aligned to the M15 boundary plus a short grace so the closing bar has
// rotated before it is read.
func (p *Publisher) Run(ctx context.Context) {
	// One immediate evaluation so readers have data before the first tick.
	p.evaluate(ctx, true, true)

	analysisTicker := p.cfg.NewTicker(analysisInterval)
	defer analysisTicker.Stop()

	align := p.cfg.NewTicker(untilNextBoundary(p.cfg.Now(), tfqeInterval) + boundaryGrace)
	var tfqeTicker Ticker
	defer func() {
		align.Stop()
		if tfqeTicker != nil {
			tfqeTicker.Stop()
		}
	}()

	tfqeC := align.C()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tfqeC:
			if tfqeTicker == nil {
				// First aligned fire: switch to the steady period.
				align.Stop()
				tfqeTicker = p.cfg.NewTicker(tfqeInterval)
				tfqeC = tfqeTicker.C()
			}
			p.evaluate(ctx, true, false)
		case <-analysisTicker.C():
			p.evaluate(ctx, false, true)
		}
	}
}

// evaluate refreshes stale series, reruns the requested engines, and swaps
// the snapshot. The store read per symbol happens once; every output in a
// snapshot derives from that single read.
func (p *Publisher) evaluate(ctx context.Context, runTFQE, runAnalysis bool) {
	now := p.cfg.Now()
	prev := p.snap.Load()

	next := &Snapshot{
		At:       now,
		TFQE:     make(map[model.Symbol]model.TFQESignal, len(p.cfg.Symbols)),
		Analyses: make(map[model.Symbol]model.MultiTimeframeAnalysis, len(p.cfg.Symbols)),
	}
	// Carry forward whatever this pass does not recompute.
	for s, v := range prev.TFQE {
		next.TFQE[s] = v
	}
	for s, v := range prev.Analyses {
		next.Analyses[s] = v
	}

	for _, sym := range p.cfg.Symbols {
		// One trace ID per symbol per pass: refresh REST calls and the
		// publish log all carry it.
		symCtx := logger.WithTraceID(ctx, logger.GenerateTraceID(string(sym), now))
		fresh := p.refresh(symCtx, sym, now)
		freshness := FreshnessRealtime
		if !fresh {
			freshness = FreshnessStale
		}

		if runTFQE {
			for _, st := range p.cfg.Strategies {
				sig := st.Tick(p.store, sym, now)
				sig.DataFreshness = freshness
				if !fresh && sig.Confidence > staleConfidenceCap {
					sig.Confidence = staleConfidenceCap
				}
				next.TFQE[sym] = sig
			}
		}
		if runAnalysis {
			an := p.analyzer.Analyze(sym)
			an.DataFreshness = freshness
			if !fresh && an.Integrated.Confidence > staleConfidenceCap {
				an.Integrated.Confidence = staleConfidenceCap
			}
			next.Analyses[sym] = an
		}
	}

	p.snap.Store(next)
	if p.OnPublish != nil {
		p.OnPublish(next)
	}
}

// refresh backfills any series whose newest bar is older than 1.5
// durations. Returns false if any series is still stale afterwards.
func (p *Publisher) refresh(ctx context.Context, sym model.Symbol, now time.Time) bool {
	fresh := true
	for _, tf := range model.AllTimeframes {
		if p.store.Fresh(sym, tf, now) {
			continue
		}
		if p.backfill != nil {
			if _, err := p.backfill.Fill(ctx, sym, tf, 0); err != nil {
				args := append(logger.LogWithTrace(ctx),
					slog.String("symbol", string(sym)),
					slog.String("tf", tf.Label()),
					slog.Any("err", err))
				slog.Warn("series refresh failed", args...)
			}
		}
		if !p.store.Fresh(sym, tf, now) {
			fresh = false
		}
	}
	return fresh
}

// untilNextBoundary returns the wait from now to the next interval grid
// line (UTC).
func untilNextBoundary(now time.Time, interval time.Duration) time.Duration {
	next := now.UTC().Truncate(interval).Add(interval)
	return next.Sub(now)
}
