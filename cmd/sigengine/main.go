package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fxassist/config"
	"fxassist/internal/analyzer"
	"fxassist/internal/api"
	"fxassist/internal/bus"
	"fxassist/internal/candlestore"
	"fxassist/internal/gmo"
	"fxassist/internal/logger"
	"fxassist/internal/markethours"
	"fxassist/internal/metrics"
	"fxassist/internal/model"
	"fxassist/internal/publisher"
	redisstore "fxassist/internal/store/redis"
	sqlitestore "fxassist/internal/store/sqlite"
	"fxassist/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[sigengine] starting...")

	// ---- Load config ----
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[sigengine] config load failed: %v", err)
	}
	logger.Init("sigengine", logger.ParseLevel(cfg.Log.Level))

	symbols := parseSymbols(cfg.Symbols)
	log.Printf("[sigengine] symbols: %v", symbols)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.Server.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Contexts for graceful shutdown ----
	// pubCtx dies first so no new snapshots are computed while the feeds
	// drain; ctx covers the streams and writers.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pubCtx, cancelPub := context.WithCancel(ctx)
	defer cancelPub()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Optional persistence ----
	var archive *sqlitestore.Archive
	if cfg.SQLite.Enabled {
		os.MkdirAll("data", 0o755)
		archive, err = sqlitestore.New(sqlitestore.ArchiveConfig{DBPath: cfg.SQLite.Path})
		if err != nil {
			log.Fatalf("[sigengine] sqlite init failed: %v", err)
		}
		defer archive.Close()
		archive.OnCommit = func(n int, took time.Duration) {
			prom.SQLiteCommitDur.Observe(took.Seconds())
		}
		log.Println("[sigengine] sqlite archive ready")
	}

	var cache *redisstore.Cache
	if cfg.Redis.Enabled {
		cache, err = redisstore.New(redisstore.CacheConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Printf("[sigengine] WARNING: redis init failed: %v (continuing without cache)", err)
		} else {
			defer cache.Close()
			cache.OnWrite = func(took time.Duration) {
				prom.RedisWriteDur.Observe(took.Seconds())
			}
			log.Println("[sigengine] redis cache ready")
		}
	}

	switch {
	case cache != nil && archive != nil:
		health.StartLivenessChecker(ctx, cache.Client(), archive.DB(), 10*time.Second)
	case cache != nil:
		health.StartLivenessChecker(ctx, cache.Client(), nil, 10*time.Second)
	case archive != nil:
		health.StartLivenessChecker(ctx, nil, archive.DB(), 10*time.Second)
	}

	// ---- Broker gateway ----
	limiter := gmo.NewLimiter(gmo.Limits{
		PrivateGetPerSec:  cfg.Limits.GetPerSec,
		PrivatePostPerSec: cfg.Limits.PostPerSec,
		WSSubPerSec:       cfg.Limits.WSSubPerSec,
		PublicGetPerSec:   cfg.Limits.GetPerSec,
	})
	limiter.OnWait = func(class gmo.MethodClass, waited time.Duration) {
		prom.LimiterWaitDur.Observe(waited.Seconds())
	}
	signer := gmo.NewSigner(cfg.API.Key, cfg.API.Secret,
		time.Duration(cfg.API.ClockSkewMaxMS)*time.Millisecond)
	client := gmo.NewClient(gmo.ClientConfig{
		PublicBase:     cfg.API.PublicBase,
		PrivateBase:    cfg.API.PrivateBase,
		Timeout:        cfg.API.Timeout,
		TradingEnabled: cfg.Trading.Enabled,
	}, limiter, signer)
	client.OnRequest = func(path string, status int, d time.Duration) {
		outcome := "ok"
		if status >= 400 {
			outcome = "error"
		}
		prom.RequestsTotal.WithLabelValues(path, outcome).Inc()
		prom.RequestDur.Observe(d.Seconds())
	}

	// ---- Candle store + warm-up backfill ----
	store := candlestore.New(0)
	backfiller := candlestore.NewBackfiller(client, store)
	backfiller.OnFill = func(tf model.Timeframe, bars int) {
		prom.BackfillBars.WithLabelValues(tf.Label()).Add(float64(bars))
	}
	if err := backfiller.FillAll(ctx, symbols, model.AllTimeframes); err != nil {
		log.Printf("[sigengine] WARNING: warm-up backfill incomplete: %v", err)
	}

	// ---- Quote pipeline: WS → queue → fan-out → {aggregator, latest, cache} ----
	quotes := gmo.NewQuoteQueue()
	fanout := bus.New(1024)
	fanout.OnDrop = func(idx int) {
		prom.FanoutDrops.WithLabelValues(subscriberName(idx)).Inc()
	}
	latest := bus.NewLatest()

	aggIn := fanout.Subscribe()
	latestIn := fanout.Subscribe()
	var cacheIn <-chan model.Quote
	if cache != nil {
		cacheIn = fanout.Subscribe()
	}

	go func() {
		quotes.Consume(ctx, func(q model.Quote) {
			prom.QuotesTotal.Inc()
			health.SetLastQuoteTime(q.Timestamp)
			fanout.Publish(q)
		})
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case q, ok := <-latestIn:
				if !ok {
					return
				}
				latest.Update(q)
			}
		}
	}()
	if cache != nil {
		go cache.RunQuotes(ctx, cacheIn)
	}
	go reportSaturation(ctx, fanout, quotes, prom)

	agg := candlestore.NewAggregator(store, model.AllTimeframes)
	agg.OnCandle = func(sym model.Symbol, tf model.Timeframe, c model.Candle) {
		prom.CandlesTotal.WithLabelValues(tf.Label()).Inc()
		if archive != nil {
			archive.Append(ctx, sym, tf, c)
		}
		if cache != nil {
			cache.Append(ctx, sym, tf, c)
		}
	}
	agg.OnGapFill = func(sym model.Symbol, tf model.Timeframe) {
		prom.GapFillsTotal.WithLabelValues(tf.Label()).Inc()
	}
	go agg.Run(ctx, aggIn)

	// ---- WebSocket streams ----
	public := gmo.NewPublicStream(gmo.PublicStreamConfig{Symbols: symbols}, limiter, quotes)
	public.OnReconnect = func() {
		prom.WSReconnects.WithLabelValues("public").Inc()
		health.SetWSPublicConnected(false)
	}
	go func() {
		health.SetWSPublicConnected(true)
		public.Run(ctx)
	}()

	var private *gmo.PrivateStream
	if signer.Configured() {
		private = gmo.NewPrivateStream(gmo.PrivateStreamConfig{}, client, limiter)
		private.OnReconnect = func() {
			prom.WSReconnects.WithLabelValues("private").Inc()
			health.SetWSPrivateConnected(false)
		}
		private.OnTokenRenew = func() { prom.TokenRenewals.Inc() }
		go func() {
			health.SetWSPrivateConnected(true)
			private.Run(ctx)
		}()
		go drainPrivateEvents(ctx, private, prom)
	} else {
		log.Println("[sigengine] no API credentials, private stream disabled")
	}

	// ---- Signal engine ----
	an := analyzer.New(store)
	tfqe := strategy.NewTFQE(strategy.TFQEConfig{
		SessionStartHour: cfg.TFQE.SessionStartHour,
		SessionEndHour:   cfg.TFQE.SessionEndHour,
		ATRStopMult:      cfg.TFQE.ATRStopMult,
		TP1Mult:          cfg.TFQE.TP1Mult,
		TP2Mult:          cfg.TFQE.TP2Mult,
	})
	pub := publisher.New(publisher.Config{
		Symbols:    symbols,
		Strategies: []strategy.Strategy{tfqe},
	}, store, an, backfiller)
	pub.OnPublish = func(s *publisher.Snapshot) {
		prom.SnapshotsTotal.Inc()
		health.SetSnapshotAt(s.At)
	}
	go pub.Run(pubCtx)
	go trackSnapshotAge(ctx, pub, signer, prom)

	// ---- API server ----
	apiSrv := api.NewServer(cfg.Server.APIAddr, pub, latest)
	apiSrv.Start()

	log.Printf("[sigengine] running, strategy window %02d:00-%02d:00 JST (now in session: %v)",
		cfg.TFQE.SessionStartHour, cfg.TFQE.SessionEndHour, markethours.InStrategySession(time.Now()))

	// ---- Wait for shutdown ----
	<-sigCh
	log.Println("[sigengine] shutting down...")

	// Publisher first, then the streams (private Run revokes its token on
	// exit), then the HTTP surfaces.
	cancelPub()
	cancel()
	time.Sleep(500 * time.Millisecond) // let WS defers run

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	apiSrv.Stop(shutCtx)
	metricsSrv.Stop(shutCtx)
	log.Println("[sigengine] bye")
}

func parseSymbols(raw []string) []model.Symbol {
	out := make([]model.Symbol, 0, len(raw))
	for _, s := range raw {
		sym, err := model.ParseSymbol(s)
		if err != nil {
			log.Fatalf("[sigengine] config: %v", err)
		}
		out = append(out, sym)
	}
	if len(out) == 0 {
		out = []model.Symbol{model.USDJPY}
	}
	return out
}

func subscriberName(idx int) string {
	switch idx {
	case 0:
		return "aggregator"
	case 1:
		return "latest"
	case 2:
		return "redis"
	default:
		return "other"
	}
}

// drainPrivateEvents consumes every private channel queue, surfacing fills
// and order updates in the log. Account accounting beyond logging is the
// order layer's concern, enabled with trading.
func drainPrivateEvents(ctx context.Context, private *gmo.PrivateStream, prom *metrics.Metrics) {
	channels := []string{
		gmo.ChannelExecutionEvents,
		gmo.ChannelOrderEvents,
		gmo.ChannelPositionEvents,
		gmo.ChannelPositionSummaryEvents,
	}
	for _, ch := range channels {
		q := private.Queue(ch)
		if q == nil {
			continue
		}
		q.OnStall = func(channel string, waited time.Duration) {
			prom.EventStalls.WithLabelValues(channel).Inc()
			log.Printf("[sigengine] WS consumer stall on %s (%s)", channel, waited)
		}
		go func(name string, q *gmo.EventQueue) {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-q.Events():
					if !ok {
						return
					}
					log.Printf("[sigengine] %s: %s", name, ev.Raw)
				}
			}
		}(ch, q)
	}
}

func reportSaturation(ctx context.Context, fanout *bus.FanOut, quotes *gmo.QuoteQueue, prom *metrics.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	var lastDropped uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i, s := range fanout.ChannelStats() {
				if s.Cap > 0 {
					pct := float64(s.Len) / float64(s.Cap) * 100
					prom.ChannelSaturationPct.WithLabelValues("fanout_" + subscriberName(i)).Set(pct)
				}
			}
			if d := quotes.Dropped(); d > lastDropped {
				prom.QuotesDropped.Add(float64(d - lastDropped))
				lastDropped = d
			}
		}
	}
}

func trackSnapshotAge(ctx context.Context, pub *publisher.Publisher, signer *gmo.Signer, prom *metrics.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if at := pub.Snapshot().At; !at.IsZero() {
				prom.SnapshotAge.Set(time.Since(at).Seconds())
			}
			prom.ClockSkewMs.Set(float64(signer.Skew().Milliseconds()))
		}
	}
}
