package candlestore

import (
	"context"
	"log"
	"sort"
	"strconv"
	"time"

	"fxassist/internal/gmo"
	"fxassist/internal/model"
)

const (
	// priceType for kline requests; bars mirror the bid side like the
	// aggregator's.
	klinePriceType = "BID"

	// Walking back day by day, stop after this many consecutive empty
	// days — the pair has no older history at the broker.
	maxEmptyDays = 5
)

// Backfiller warms candle rings from the broker's kline endpoint.
// Intraday intervals are served per calendar day (YYYYMMDD); 4hour and
// 1day are served per year (YYYY).
type Backfiller struct {
	client *gmo.Client
	store  *Store
	now    func() time.Time // injectable clock

	// OnFill is called after each successful fill (optional, metrics).
	OnFill func(tf model.Timeframe, bars int)
}

// NewBackfiller creates a backfiller feeding the given store.
func NewBackfiller(client *gmo.Client, store *Store) *Backfiller {
	return &Backfiller{client: client, store: store, now: time.Now}
}

// Fill loads up to target candles for (symbol, tf), newest day/year first,
// and seeds the store. Returns the number of candles loaded.
func (b *Backfiller) Fill(ctx context.Context, sym model.Symbol, tf model.Timeframe, target int) (int, error) {
	if target <= 0 || target > b.store.capacity {
		target = b.store.capacity
	}
	var candles []model.Candle
	var err error
	if tf.KlinesByYear() {
		candles, err = b.fetchByYear(ctx, sym, tf, target)
	} else {
		candles, err = b.fetchByDay(ctx, sym, tf, target)
	}
	if err != nil && len(candles) == 0 {
		return 0, err
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})
	if len(candles) > target {
		candles = candles[len(candles)-target:]
	}
	b.store.Seed(sym, tf, candles)
	if b.OnFill != nil {
		b.OnFill(tf, len(candles))
	}
	if err != nil {
		log.Printf("[backfill] %s %s: partial fill %d bars: %v", sym, tf, len(candles), err)
	}
	return len(candles), nil
}

// FillAll warms every (symbol, tf) combination to ring capacity.
func (b *Backfiller) FillAll(ctx context.Context, symbols []model.Symbol, tfs []model.Timeframe) error {
	for _, sym := range symbols {
		for _, tf := range tfs {
			n, err := b.Fill(ctx, sym, tf, 0)
			if err != nil {
				return err
			}
			log.Printf("[backfill] %s %s: %d bars", sym, tf, n)
		}
	}
	return nil
}

// fetchByDay walks back from today one YYYYMMDD at a time, skipping
// weekends, until target bars are collected or the history runs out.
func (b *Backfiller) fetchByDay(ctx context.Context, sym model.Symbol, tf model.Timeframe, target int) ([]model.Candle, error) {
	var out []model.Candle
	day := b.now().UTC()
	empty := 0
	for len(out) < target && empty < maxEmptyDays {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			day = day.AddDate(0, 0, -1)
			continue
		}
		klines, err := b.client.Klines(ctx, string(sym), klinePriceType, tf.GMOInterval(), day.Format("20060102"))
		if err != nil {
			return out, err
		}
		if len(klines) == 0 {
			empty++
		} else {
			empty = 0
			out = append(out, convertKlines(klines)...)
		}
		day = day.AddDate(0, 0, -1)
	}
	return out, nil
}

// fetchByYear loads the current and previous year; two years of 4hour or
// 1day bars always exceed ring capacity.
func (b *Backfiller) fetchByYear(ctx context.Context, sym model.Symbol, tf model.Timeframe, target int) ([]model.Candle, error) {
	var out []model.Candle
	year := b.now().UTC().Year()
	for _, y := range []int{year, year - 1} {
		klines, err := b.client.Klines(ctx, string(sym), klinePriceType, tf.GMOInterval(), strconv.Itoa(y))
		if err != nil {
			return out, err
		}
		out = append(out, convertKlines(klines)...)
		if len(out) >= target {
			break
		}
	}
	return out, nil
}

// convertKlines decodes wire bars into model candles. Malformed bars are
// skipped rather than poisoning the ring.
func convertKlines(klines []gmo.Kline) []model.Candle {
	out := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		ms, err := strconv.ParseInt(k.OpenTime, 10, 64)
		if err != nil {
			continue
		}
		o, err1 := strconv.ParseFloat(k.Open, 64)
		h, err2 := strconv.ParseFloat(k.High, 64)
		l, err3 := strconv.ParseFloat(k.Low, 64)
		c, err4 := strconv.ParseFloat(k.Close, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		bar := model.Candle{
			OpenTime: time.UnixMilli(ms).UTC(),
			Open:     o,
			High:     h,
			Low:      l,
			Close:    c,
		}
		if !bar.Valid() {
			continue
		}
		out = append(out, bar)
	}
	return out
}
