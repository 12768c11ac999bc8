package indicator

import "math"

// BollingerResult bundles the band series.
type BollingerResult struct {
	Upper []float64
	Mid   []float64
	Lower []float64
	Width []float64
}

// Bollinger returns n-period bands at k population standard deviations
// around the SMA. First valid index n−1.
func Bollinger(values []float64, n int, k float64) BollingerResult {
	res := BollingerResult{
		Upper: undefinedSeries(len(values)),
		Mid:   SMA(values, n),
		Lower: undefinedSeries(len(values)),
		Width: undefinedSeries(len(values)),
	}
	if n <= 0 || len(values) < n {
		return res
	}
	for i := n - 1; i < len(values); i++ {
		mean := res.Mid[i]
		var ss float64
		for j := i - n + 1; j <= i; j++ {
			d := values[j] - mean
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(n)) // population, not sample
		res.Upper[i] = mean + k*sd
		res.Lower[i] = mean - k*sd
		res.Width[i] = res.Upper[i] - res.Lower[i]
	}
	return res
}
