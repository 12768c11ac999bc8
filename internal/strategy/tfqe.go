package strategy

import (
	"fmt"
	"math"
	"time"

	"fxassist/internal/candlestore"
	"fxassist/internal/indicator"
	"fxassist/internal/markethours"
	"fxassist/internal/model"
)

// TFQEConfig parameterises the trend-follow quick-exit strategy. Zero
// values take the documented defaults.
type TFQEConfig struct {
	SessionStartHour int     // JST, default 16
	SessionEndHour   int     // JST, default 24
	ADXMin           float64 // trend gate threshold, default 20
	ATRStopMult      float64 // stop distance in ATRs, default 1.5
	TP1Mult          float64 // first target in ATRs, default 1.0
	TP2Mult          float64 // second target in ATRs, default 2.0
}

func (c TFQEConfig) withDefaults() TFQEConfig {
	if c.SessionStartHour == 0 && c.SessionEndHour == 0 {
		c.SessionStartHour = markethours.SessionStartHour
		c.SessionEndHour = markethours.SessionEndHour
	}
	if c.ADXMin == 0 {
		c.ADXMin = 20
	}
	if c.ATRStopMult == 0 {
		c.ATRStopMult = 1.5
	}
	if c.TP1Mult == 0 {
		c.TP1Mult = 1.0
	}
	if c.TP2Mult == 0 {
		c.TP2Mult = 2.0
	}
	return c
}

// Proximity gate bounds on distance = (price − EMA20) / ATR, oriented for
// an uptrend; mirrored for a downtrend. Inside the band price has pulled
// back to the EMA without breaking the trend.
const (
	distanceMin = -0.5
	distanceMax = 0.2
)

// Confidence terms: base plus the ADX excess over the gate plus a bonus
// for a tight pullback, hard ceiling 95.
const (
	tfqeConfBase    = 50.0
	tfqeConfADXCap  = 30.0
	tfqeConfDistMax = 20.0
	tfqeConfCeiling = 95
)

// Indicator parameters shared by both legs.
const (
	tfqeEMAFast = 20
	tfqeEMASlow = 50
	tfqeADXLen  = 14
	tfqeATRLen  = 14
)

// Published post-entry contract: half out at TP1, stop to break-even, the
// rest rides until M15 closes back across the EMA.
var tfqeManagement = model.TFQEManagement{
	TP1ClosesFraction: 0.5,
	MoveStopToEntry:   true,
	TrailExitRule:     "exit remainder when M15 closes across EMA20",
}

// NewTFQE builds the TFQE strategy record. H1 supplies trend context, M15
// the pullback trigger; gates run in order and the first failure
// short-circuits.
func NewTFQE(cfg TFQEConfig) Strategy {
	cfg = cfg.withDefaults()
	return Strategy{
		Name: "tfqe",
		Tick: func(store *candlestore.Store, sym model.Symbol, now time.Time) model.TFQESignal {
			return evalTFQE(cfg, store, sym, now)
		},
	}
}

func evalTFQE(cfg TFQEConfig, store *candlestore.Store, sym model.Symbol, now time.Time) model.TFQESignal {
	sig := model.TFQESignal{Symbol: sym, Timestamp: now}

	// Gate 1: session.
	if !markethours.InStrategySessionAt(now, cfg.SessionStartHour, cfg.SessionEndHour) {
		sig.State = model.TFQEOutOfSession
		sig.Reason = fmt.Sprintf("outside %02d:00-%02d:00 JST trading window", cfg.SessionStartHour, cfg.SessionEndHour)
		return sig
	}

	// Gate 2: H1 trend.
	h1 := store.Snapshot(sym, model.H1, 0)
	h1Closes := indicator.Closes(h1)
	ema20 := indicator.EMA(h1Closes, tfqeEMAFast)
	ema50 := indicator.EMA(h1Closes, tfqeEMASlow)
	adx := indicator.ADX(h1, tfqeADXLen)
	last := len(h1) - 1
	if last < 0 || !indicator.Defined(ema50[last]) || !indicator.Defined(adx.ADX[last]) {
		sig.State = model.TFQENoTrend
		sig.Reason = "insufficient H1 history"
		return sig
	}
	h1ADX := adx.ADX[last]
	sig.H1ADX = h1ADX

	var trend model.Trend
	switch {
	case ema20[last] > ema50[last] && h1ADX >= cfg.ADXMin:
		trend = model.TrendUp
	case ema20[last] < ema50[last] && h1ADX >= cfg.ADXMin:
		trend = model.TrendDown
	default:
		sig.State = model.TFQENoTrend
		sig.Reason = fmt.Sprintf("H1 ADX %.1f below %.0f or EMAs flat", h1ADX, cfg.ADXMin)
		return sig
	}
	sig.H1Trend = trend

	// Gate 3: M15 proximity.
	m15 := store.Snapshot(sym, model.M15, 0)
	m15Closes := indicator.Closes(m15)
	m15EMA20 := indicator.EMA(m15Closes, tfqeEMAFast)
	m15ATR := indicator.ATR(m15, tfqeATRLen)
	mlast := len(m15) - 1
	if mlast < 0 || !indicator.Defined(m15EMA20[mlast]) || !indicator.Defined(m15ATR[mlast]) || m15ATR[mlast] <= 0 {
		sig.State = model.TFQENoTrend
		sig.Reason = "insufficient M15 history"
		return sig
	}
	bar := m15[mlast]
	price := bar.Close
	ema := m15EMA20[mlast]
	atr := m15ATR[mlast]
	distance := (price - ema) / atr
	if trend == model.TrendDown {
		distance = -distance // mirror so the band reads the same both ways
	}
	sig.M15Price = price
	sig.M15EMA20 = ema
	sig.M15ATR = atr
	sig.Distance = distance

	waiting := model.TFQEWaitingPullback
	waitWord := "pullback"
	if trend == model.TrendDown {
		waiting = model.TFQEWaitingRally
		waitWord = "rally"
	}
	switch {
	case distance > distanceMax:
		sig.State = waiting
		sig.Reason = fmt.Sprintf("price %.1f ATRs from EMA20, waiting for %s", distance, waitWord)
		return sig
	case distance < distanceMin:
		sig.State = model.TFQENoTrend
		sig.Reason = "price broke through EMA20, trend failing"
		return sig
	}

	// Gate 4: trigger bar.
	triggered := bar.Bullish() && price > ema
	if trend == model.TrendDown {
		triggered = bar.Bearish() && price < ema
	}
	if !triggered {
		sig.State = waiting
		sig.Reason = fmt.Sprintf("in the entry zone, waiting for a %s trigger bar", waitWord)
		return sig
	}

	// Entry arithmetic.
	pip := sym.PipSize()
	if trend == model.TrendUp {
		sig.State = model.TFQEBuy
		sig.Entry = price
		sig.StopLoss = price - cfg.ATRStopMult*atr
		sig.TP1 = price + cfg.TP1Mult*atr
		sig.TP2 = price + cfg.TP2Mult*atr
		sig.RiskPips = (sig.Entry - sig.StopLoss) / pip
		sig.RewardPips = (sig.TP1 - sig.Entry) / pip
		sig.Reason = "H1 uptrend, M15 pullback complete with bullish trigger"
	} else {
		sig.State = model.TFQESell
		sig.Entry = price
		sig.StopLoss = price + cfg.ATRStopMult*atr
		sig.TP1 = price - cfg.TP1Mult*atr
		sig.TP2 = price - cfg.TP2Mult*atr
		sig.RiskPips = (sig.StopLoss - sig.Entry) / pip
		sig.RewardPips = (sig.Entry - sig.TP1) / pip
		sig.Reason = "H1 downtrend, M15 rally complete with bearish trigger"
	}
	sig.Confidence = tfqeConfidence(h1ADX, cfg.ADXMin, distance)
	mgmt := tfqeManagement
	sig.Management = &mgmt
	return sig
}

// tfqeConfidence scores an actionable signal: stronger ADX and a tighter
// pullback both add, capped at 95.
func tfqeConfidence(adx, adxMin, distance float64) int {
	conf := tfqeConfBase
	conf += math.Min(math.Max(adx-adxMin, 0), tfqeConfADXCap)
	conf += math.Min(math.Max(tfqeConfDistMax*(1-math.Abs(distance)/0.5), 0), tfqeConfDistMax)
	c := int(math.Round(conf))
	if c > tfqeConfCeiling {
		c = tfqeConfCeiling
	}
	return c
}
