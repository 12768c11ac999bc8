// Package analyzer produces the per-timeframe analysis frames and folds
// them into the integrated multi-timeframe verdict.
package analyzer

import (
	"math"
	"time"

	"fxassist/internal/candlestore"
	"fxassist/internal/indicator"
	"fxassist/internal/markethours"
	"fxassist/internal/model"
)

// Indicator parameters. Fixed, but named so the frame rules read as the
// documentation says they should.
const (
	emaFastN    = 20
	emaSlowN    = 50
	rsiN        = 14
	macdFastN   = 12
	macdSlowN   = 26
	macdSignalN = 9
	bollN       = 20
	bollK       = 2.0
	atrN        = 14
	adxN        = 14

	slopeBars     = 5 // slow-EMA slope lookback for the trend rule
	crossLookback = 3 // MACD zero-cross window for the signal rule

	rsiOverbought = 70
	rsiOversold   = 30
)

// Confidence model: base plus three capped terms.
const (
	confBase    = 50.0
	macdTermMax = 10.0 // |hist|/atr, saturating at histNormCap
	histNormCap = 4.0
	adxTermMax  = 10.0 // (adx−20)/3, saturating at adx 50
	ageTermMax  = 10.0 // consecutive trend bars, saturating at ageCapBars
	ageCapBars  = 5
)

// Timeframe weights for the integrated verdict.
var tfWeights = map[model.Timeframe]float64{
	model.D1:  0.20,
	model.H4:  0.20,
	model.H1:  0.20,
	model.M15: 0.20,
	model.M5:  0.10,
	model.M1:  0.10,
}

// Analyzer reads the candle store and emits analysis frames. Stateless
// between calls; every frame is recomputed from the store snapshot.
type Analyzer struct {
	store *candlestore.Store
	now   func() time.Time
}

// New creates an analyzer over the store.
func New(store *candlestore.Store) *Analyzer {
	return &Analyzer{store: store, now: time.Now}
}

// Frame computes the analysis frame for one (symbol, timeframe) from the
// current store snapshot. A sub-warmup buffer yields a NEUTRAL frame with
// confidence 0 rather than an error.
func (a *Analyzer) Frame(sym model.Symbol, tf model.Timeframe) model.AnalysisFrame {
	frame := model.AnalysisFrame{
		Timeframe: tf.Label(),
		Trend:     model.TrendRange,
		Signal:    model.SideNeutral,
		Strength:  model.StrengthWeak,
		Momentum:  model.MomentumFlat,
	}

	candles := a.store.Snapshot(sym, tf, 0)
	closes := indicator.Closes(candles)
	emaFast := indicator.EMA(closes, emaFastN)
	emaSlow := indicator.EMA(closes, emaSlowN)
	rsi := indicator.RSI(closes, rsiN)
	macd := indicator.MACD(closes, macdFastN, macdSlowN, macdSignalN)
	atr := indicator.ATR(candles, atrN)
	adx := indicator.ADX(candles, adxN)

	last := len(candles) - 1
	if last < 0 || !indicator.Defined(emaSlow[last]) || !indicator.Defined(atr[last]) {
		return frame
	}
	close := closes[last]

	// Trend: price and fast EMA on the same side of the slow EMA, slow EMA
	// sloping the same way over the last bars.
	slope := emaSlowSlope(emaSlow, last)
	switch {
	case close > emaSlow[last] && emaFast[last] > emaSlow[last] && slope > 0:
		frame.Trend = model.TrendUp
	case close < emaSlow[last] && emaFast[last] < emaSlow[last] && slope < 0:
		frame.Trend = model.TrendDown
	}

	// Signal: trend plus a recent MACD zero-cross, RSI not yet exhausted.
	crossUp := crossedZero(macd.Hist, last, true)
	crossDown := crossedZero(macd.Hist, last, false)
	switch {
	case frame.Trend == model.TrendUp && indicator.Defined(rsi[last]) && rsi[last] < rsiOverbought && crossUp:
		frame.Signal = model.SideBuy
	case frame.Trend == model.TrendDown && indicator.Defined(rsi[last]) && rsi[last] > rsiOversold && crossDown:
		frame.Signal = model.SideSell
	}

	frame.Confidence = confidence(macd.Hist, atr, adx.ADX, candles, emaFast, emaSlow, last, frame.Trend)
	frame.Strength = strengthBucket(frame.Confidence)
	frame.Momentum = momentum(macd.Hist, last)
	frame.Volatility = atr[last]
	frame.KeyLevels = a.keyLevels(sym, close)
	frame.EntryPoints = entryPoints(frame.Trend, close, emaFast[last], atr[last], frame.KeyLevels)
	return frame
}

// Analyze computes all six frames and the integrated verdict for a symbol.
func (a *Analyzer) Analyze(sym model.Symbol) model.MultiTimeframeAnalysis {
	now := a.now()
	frames := make(map[string]model.AnalysisFrame, len(model.AllTimeframes))
	byTF := make(map[model.Timeframe]model.AnalysisFrame, len(model.AllTimeframes))
	for _, tf := range model.AllTimeframes {
		f := a.Frame(sym, tf)
		frames[tf.Label()] = f
		byTF[tf] = f
	}

	timing := Timing(now)
	return model.MultiTimeframeAnalysis{
		Timestamp:     now,
		Symbol:        sym,
		Timeframes:    frames,
		Integrated:    integrate(byTF, timing),
		MarketSession: timing,
	}
}

// emaSlowSlope is the slow-EMA delta over the slope lookback; zero when the
// lookback reaches into the warm-up region.
func emaSlowSlope(emaSlow []float64, last int) float64 {
	ref := last - slopeBars
	if ref < 0 || !indicator.Defined(emaSlow[ref]) {
		return 0
	}
	return emaSlow[last] - emaSlow[ref]
}

// crossedZero reports a histogram zero-cross in the given direction within
// the last crossLookback bars, still holding at the latest bar.
func crossedZero(hist []float64, last int, above bool) bool {
	if last < 0 || !indicator.Defined(hist[last]) {
		return false
	}
	if above && hist[last] <= 0 || !above && hist[last] >= 0 {
		return false
	}
	for j := 1; j <= crossLookback && last-j >= 0; j++ {
		prev := hist[last-j]
		if !indicator.Defined(prev) {
			return false
		}
		if above && prev <= 0 || !above && prev >= 0 {
			return true
		}
	}
	return false
}

func confidence(hist, atr, adx []float64, candles []model.Candle, emaFast, emaSlow []float64, last int, trend model.Trend) float64 {
	if trend == model.TrendRange {
		return 0
	}
	conf := confBase

	if indicator.Defined(hist[last]) && atr[last] > 0 {
		norm := math.Min(math.Abs(hist[last])/atr[last], histNormCap)
		conf += macdTermMax * norm / histNormCap
	}
	if indicator.Defined(adx[last]) {
		conf += math.Min(math.Max(adx[last]-20, 0), 30) / 3 // ≤ adxTermMax
	}
	conf += ageTermMax * float64(trendAge(candles, emaFast, emaSlow, last, trend)) / ageCapBars

	return math.Min(math.Max(conf, 0), 100)
}

// trendAge counts consecutive bars (up to ageCapBars) for which the trend's
// EMA ordering has held.
func trendAge(candles []model.Candle, emaFast, emaSlow []float64, last int, trend model.Trend) int {
	age := 0
	for i := last; i >= 0 && age < ageCapBars; i-- {
		if !indicator.Defined(emaFast[i]) || !indicator.Defined(emaSlow[i]) {
			break
		}
		holds := emaFast[i] > emaSlow[i]
		if trend == model.TrendDown {
			holds = emaFast[i] < emaSlow[i]
		}
		if !holds {
			break
		}
		age++
	}
	return age
}

func strengthBucket(conf float64) model.Strength {
	switch {
	case conf >= 75:
		return model.StrengthStrong
	case conf >= 50:
		return model.StrengthMedium
	default:
		return model.StrengthWeak
	}
}

// momentum compares the histogram magnitude against the previous bar.
func momentum(hist []float64, last int) model.Momentum {
	if last < 1 || !indicator.Defined(hist[last]) || !indicator.Defined(hist[last-1]) {
		return model.MomentumFlat
	}
	cur, prev := math.Abs(hist[last]), math.Abs(hist[last-1])
	switch {
	case cur > prev:
		return model.MomentumAccel
	case cur < prev:
		return model.MomentumDecel
	default:
		return model.MomentumFlat
	}
}

// keyLevels derives classic pivots from the previous completed daily bar.
// With fewer than two daily bars the current price stands in for all
// levels.
func (a *Analyzer) keyLevels(sym model.Symbol, close float64) model.KeyLevels {
	daily := a.store.Snapshot(sym, model.D1, 2)
	if len(daily) < 2 {
		return model.KeyLevels{Support: close, Resistance: close, Pivot: close}
	}
	p := indicator.Pivots(daily[len(daily)-2])
	return model.KeyLevels{Support: p.S1, Resistance: p.R1, Pivot: p.Pivot}
}

// Entry sizing multiples: pullback entries sit at the fast EMA with a wide
// stop, breakouts at resistance with a tight one. Target is twice the stop
// distance either way.
const (
	pullbackK = 1.5
	breakoutK = 1.0
)

func entryPoints(trend model.Trend, close, emaFast, atr float64, levels model.KeyLevels) []model.EntryPoint {
	if atr <= 0 {
		return nil
	}
	switch trend {
	case model.TrendUp:
		return []model.EntryPoint{{
			Type:       "pullback",
			Price:      emaFast,
			StopLoss:   emaFast - pullbackK*atr,
			TakeProfit: emaFast + 2*pullbackK*atr,
			Reason:     "buy the dip to the fast EMA in an uptrend",
		}}
	case model.TrendDown:
		return []model.EntryPoint{{
			Type:       "pullback",
			Price:      emaFast,
			StopLoss:   emaFast + pullbackK*atr,
			TakeProfit: emaFast - 2*pullbackK*atr,
			Reason:     "sell the rally to the fast EMA in a downtrend",
		}}
	default:
		return []model.EntryPoint{{
			Type:       "breakout",
			Price:      levels.Resistance,
			StopLoss:   levels.Resistance - breakoutK*atr,
			TakeProfit: levels.Resistance + 2*breakoutK*atr,
			Reason:     "range: buy a close through resistance",
		}}
	}
}

// Timing builds the session context for a moment in time.
func Timing(now time.Time) model.MarketTiming {
	session, activity := markethours.ActiveSession(now)
	return model.MarketTiming{
		Session:        string(session),
		ActivityLevel:  activity,
		WeekTiming:     markethours.WeekTiming(now),
		Recommendation: markethours.Recommendation(now),
	}
}
