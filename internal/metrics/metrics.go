// Package metrics holds the Prometheus instrumentation and the health
// surface for the signal engine.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal engine.
type Metrics struct {
	QuotesTotal     prometheus.Counter
	QuotesDropped   prometheus.Counter
	CandlesTotal    *prometheus.CounterVec // labels: tf
	GapFillsTotal   *prometheus.CounterVec // labels: tf
	WSReconnects    *prometheus.CounterVec // labels: stream=public|private
	TokenRenewals   prometheus.Counter
	EventStalls     *prometheus.CounterVec // labels: channel
	FanoutDrops     *prometheus.CounterVec // labels: subscriber
	ChannelSaturationPct *prometheus.GaugeVec // labels: channel_name

	RequestsTotal  *prometheus.CounterVec // labels: path, outcome
	RequestDur     prometheus.Histogram
	LimiterWaitDur prometheus.Histogram
	ClockSkewMs    prometheus.Gauge

	SnapshotsTotal prometheus.Counter
	SnapshotAge    prometheus.Gauge
	BackfillBars   *prometheus.CounterVec // labels: tf

	RedisWriteDur   prometheus.Histogram
	SQLiteCommitDur prometheus.Histogram
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		QuotesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_quotes_total",
			Help: "Total quotes received from the public WebSocket",
		}),
		QuotesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_quotes_dropped_total",
			Help: "Quotes overwritten in the drop-oldest queue before consumption",
		}),
		CandlesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_candles_total",
			Help: "Finalized candles (by timeframe)",
		}, []string{"tf"}),
		GapFillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_gap_fills_total",
			Help: "Synthetic flat bars inserted for market-closed gaps (by timeframe)",
		}, []string{"tf"}),
		WSReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_ws_reconnects_total",
			Help: "WebSocket reconnection attempts (by stream)",
		}, []string{"stream"}),
		TokenRenewals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_ws_token_renewals_total",
			Help: "Private WebSocket token extensions",
		}),
		EventStalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_event_stalls_total",
			Help: "Stall episodes on lossless private event queues (by channel)",
		}, []string{"channel"}),
		FanoutDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_fanout_drops_total",
			Help: "Quotes dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sigengine_channel_saturation_pct",
			Help: "Channel fill percentage (len/cap * 100)",
		}, []string{"channel_name"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_broker_requests_total",
			Help: "Broker REST requests (by path and outcome)",
		}, []string{"path", "outcome"}),
		RequestDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigengine_broker_request_duration_seconds",
			Help:    "Broker REST round-trip latency",
			Buckets: prometheus.DefBuckets,
		}),
		LimiterWaitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigengine_limiter_wait_seconds",
			Help:    "Time spent waiting for a rate-limit token",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		ClockSkewMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_clock_skew_ms",
			Help: "Estimated local-vs-broker clock skew in milliseconds",
		}),

		SnapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_snapshots_total",
			Help: "Signal snapshots published",
		}),
		SnapshotAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_snapshot_age_seconds",
			Help: "Age of the currently published snapshot",
		}),
		BackfillBars: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_backfill_bars_total",
			Help: "Candles loaded via kline REST backfill (by timeframe)",
		}, []string{"tf"}),

		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigengine_redis_write_duration_seconds",
			Help:    "Redis write latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigengine_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.QuotesTotal,
		m.QuotesDropped,
		m.CandlesTotal,
		m.GapFillsTotal,
		m.WSReconnects,
		m.TokenRenewals,
		m.EventStalls,
		m.FanoutDrops,
		m.ChannelSaturationPct,
		m.RequestsTotal,
		m.RequestDur,
		m.LimiterWaitDur,
		m.ClockSkewMs,
		m.SnapshotsTotal,
		m.SnapshotAge,
		m.BackfillBars,
		m.RedisWriteDur,
		m.SQLiteCommitDur,
	)

	return m
}

// HealthStatus represents the engine health.
type HealthStatus struct {
	mu sync.RWMutex

	WSPublicConnected  bool      `json:"ws_public_connected"`
	WSPrivateConnected bool      `json:"ws_private_connected"`
	LastQuoteTime      time.Time `json:"last_quote_time"`
	RedisConnected     bool      `json:"redis_connected"`
	SQLiteOK           bool      `json:"sqlite_ok"`
	SnapshotAt         time.Time `json:"snapshot_at"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetWSPublicConnected(v bool) {
	h.mu.Lock()
	h.WSPublicConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetWSPrivateConnected(v bool) {
	h.mu.Lock()
	h.WSPrivateConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastQuoteTime(t time.Time) {
	h.mu.Lock()
	h.LastQuoteTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetSnapshotAt(t time.Time) {
	h.mu.Lock()
	h.SnapshotAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.WSPublicConnected {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	quoteAge := ""
	if !h.LastQuoteTime.IsZero() {
		quoteAge = time.Since(h.LastQuoteTime).Round(time.Millisecond).String()
	}
	snapAge := ""
	if !h.SnapshotAt.IsZero() {
		snapAge = time.Since(h.SnapshotAt).Round(time.Second).String()
	}

	status := struct {
		Status             string  `json:"status"`
		Uptime             string  `json:"uptime"`
		WSPublicConnected  bool    `json:"ws_public_connected"`
		WSPrivateConnected bool    `json:"ws_private_connected"`
		LastQuoteTime      string  `json:"last_quote_time"`
		QuoteAge           string  `json:"quote_age"`
		SnapshotAge        string  `json:"snapshot_age"`
		RedisConnected     bool    `json:"redis_connected"`
		RedisLatencyMs     float64 `json:"redis_latency_ms"`
		SQLiteOK           bool    `json:"sqlite_ok"`
		SQLiteLatencyMs    float64 `json:"sqlite_latency_ms"`
		LastCheckAt        string  `json:"last_check_at"`
	}{
		Status:             overallStatus,
		Uptime:             time.Since(h.StartedAt).Round(time.Second).String(),
		WSPublicConnected:  h.WSPublicConnected,
		WSPrivateConnected: h.WSPrivateConnected,
		LastQuoteTime:      h.LastQuoteTime.Format(time.RFC3339),
		QuoteAge:           quoteAge,
		SnapshotAge:        snapAge,
		RedisConnected:     h.RedisConnected,
		RedisLatencyMs:     h.RedisLatencyMs,
		SQLiteOK:           h.SQLiteOK,
		SQLiteLatencyMs:    h.SQLiteLatencyMs,
		LastCheckAt:        h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
