// Package indicator provides the pure indicator kernel: deterministic batch
// functions from a candle slice to a float series of the same length.
// Warm-up positions are NaN, a distinct absence — never zero. There is no
// hidden state: the same input yields the same output regardless of how the
// series was batched, within ±1 ulp of the textbook recursion.
package indicator

import (
	"math"

	"fxassist/internal/model"
)

// Undefined is the warm-up marker.
var Undefined = math.NaN()

// Defined reports whether a series value is past its warm-up.
func Defined(v float64) bool { return !math.IsNaN(v) }

// Closes extracts the close series from candles.
func Closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// undefinedSeries allocates a series of n NaNs.
func undefinedSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = Undefined
	}
	return out
}
