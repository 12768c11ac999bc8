package candlestore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"fxassist/internal/gmo"
	"fxassist/internal/model"
)

func backfillClient(t *testing.T, srv *httptest.Server) *gmo.Client {
	t.Helper()
	limiter := gmo.NewLimiter(gmo.Limits{PrivateGetPerSec: 100, PrivatePostPerSec: 100, WSSubPerSec: 100, PublicGetPerSec: 100})
	signer := gmo.NewSigner("", "", 0)
	return gmo.NewClient(gmo.ClientConfig{PublicBase: srv.URL, PrivateBase: srv.URL}, limiter, signer)
}

func klineJSON(openTime time.Time, o, h, l, c float64) string {
	ms := strconv.FormatInt(openTime.UnixMilli(), 10)
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }
	return `{"openTime":"` + ms + `","open":"` + f(o) + `","high":"` + f(h) + `","low":"` + f(l) + `","close":"` + f(c) + `"}`
}

func TestBackfiller_FillSeedsAscending(t *testing.T) {
	t0 := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC) // a Monday

	var days atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/klines" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("priceType"); got != "BID" {
			t.Errorf("priceType = %q, want BID", got)
		}
		if got := r.URL.Query().Get("interval"); got != "15min" {
			t.Errorf("interval = %q, want 15min", got)
		}
		// First requested day has bars (served newest first to prove the
		// filler sorts); every earlier day is empty.
		var data string
		if days.Add(1) == 1 {
			data = "[" +
				klineJSON(t0.Add(30*time.Minute), 150.30, 150.35, 150.28, 150.32) + "," +
				klineJSON(t0, 150.10, 150.15, 150.08, 150.12) + "," +
				klineJSON(t0.Add(15*time.Minute), 150.20, 150.25, 150.18, 150.22) +
				"]"
		} else {
			data = "[]"
		}
		w.Write([]byte(okKlineEnvelope(data)))
	}))
	defer srv.Close()

	store := New(0)
	b := NewBackfiller(backfillClient(t, srv), store)
	b.now = func() time.Time { return t0 }
	var filled int
	b.OnFill = func(tf model.Timeframe, bars int) { filled = bars }

	n, err := b.Fill(context.Background(), model.USDJPY, model.M15, 3)
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if n != 3 || filled != 3 {
		t.Fatalf("filled %d bars (hook %d), want 3", n, filled)
	}

	snap := store.Snapshot(model.USDJPY, model.M15, 0)
	if len(snap) != 3 {
		t.Fatalf("store holds %d bars", len(snap))
	}
	for i := 1; i < len(snap); i++ {
		if !snap[i].OpenTime.After(snap[i-1].OpenTime) {
			t.Fatalf("bars not ascending at %d", i)
		}
	}
	if snap[0].Close != 150.12 || snap[2].Close != 150.32 {
		t.Errorf("seeded closes = %v, %v", snap[0].Close, snap[2].Close)
	}
}

func TestBackfiller_StopsAfterEmptyHistory(t *testing.T) {
	t0 := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)

	var weekdayRequests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		weekdayRequests.Add(1)
		w.Write([]byte(okKlineEnvelope("[]")))
	}))
	defer srv.Close()

	store := New(0)
	b := NewBackfiller(backfillClient(t, srv), store)
	b.now = func() time.Time { return t0 }

	n, err := b.Fill(context.Background(), model.USDJPY, model.M5, 100)
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if n != 0 {
		t.Errorf("filled %d bars from empty history", n)
	}
	// The walk gives up after 5 consecutive empty weekdays; weekends are
	// skipped without a request.
	if got := weekdayRequests.Load(); got != 5 {
		t.Errorf("requests = %d, want 5", got)
	}
}

func TestBackfiller_YearIntervalsUseYYYY(t *testing.T) {
	t0 := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)

	var dates []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dates = append(dates, r.URL.Query().Get("date"))
		w.Write([]byte(okKlineEnvelope("[" + klineJSON(t0.AddDate(0, 0, -1), 150, 151, 149, 150.5) + "]")))
	}))
	defer srv.Close()

	store := New(0)
	b := NewBackfiller(backfillClient(t, srv), store)
	b.now = func() time.Time { return t0 }

	if _, err := b.Fill(context.Background(), model.USDJPY, model.D1, 10); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if len(dates) != 2 || dates[0] != "2026" || dates[1] != "2025" {
		t.Errorf("year requests = %v, want [2026 2025]", dates)
	}
}

func TestConvertKlines_SkipsMalformed(t *testing.T) {
	good := gmo.Kline{OpenTime: "1773655200000", Open: "150.10", High: "150.20", Low: "150.05", Close: "150.15"}
	badTime := gmo.Kline{OpenTime: "not-a-number", Open: "150.10", High: "150.20", Low: "150.05", Close: "150.15"}
	badPrice := gmo.Kline{OpenTime: "1773655200000", Open: "150.10", High: "x", Low: "150.05", Close: "150.15"}
	inverted := gmo.Kline{OpenTime: "1773655200000", Open: "150.10", High: "150.00", Low: "150.05", Close: "150.15"}

	out := convertKlines([]gmo.Kline{good, badTime, badPrice, inverted})
	if len(out) != 1 {
		t.Fatalf("converted %d bars, want 1", len(out))
	}
	if out[0].Close != 150.15 {
		t.Errorf("close = %v", out[0].Close)
	}
}

func okKlineEnvelope(data string) string {
	return `{"status":0,"data":` + data + `,"responsetime":"2026-03-16T10:00:00.000Z"}`
}
