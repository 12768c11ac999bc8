package indicator

import (
	"math"

	"fxassist/internal/model"
)

// TrueRange returns the TR series. Index 0 is undefined (no prior close);
// TR[i] = max(high−low, |high−prevClose|, |low−prevClose|).
func TrueRange(candles []model.Candle) []float64 {
	out := undefinedSeries(len(candles))
	for i := 1; i < len(candles); i++ {
		h, l, pc := candles[i].High, candles[i].Low, candles[i-1].Close
		out[i] = math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc)))
	}
	return out
}

// ATR returns the n-period average true range with Wilder smoothing, seeded
// with the mean of the first n true ranges. First valid index n.
func ATR(candles []model.Candle, n int) []float64 {
	out := undefinedSeries(len(candles))
	if n <= 0 || len(candles) < n+1 {
		return out
	}
	tr := TrueRange(candles)

	var sum float64
	for i := 1; i <= n; i++ {
		sum += tr[i]
	}
	out[n] = sum / float64(n)

	for i := n + 1; i < len(candles); i++ {
		out[i] = (out[i-1]*float64(n-1) + tr[i]) / float64(n)
	}
	return out
}
