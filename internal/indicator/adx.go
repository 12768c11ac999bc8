package indicator

import (
	"math"

	"fxassist/internal/model"
)

// ADXResult bundles the directional movement series.
type ADXResult struct {
	PlusDI  []float64
	MinusDI []float64
	ADX     []float64
}

// ADX returns the n-period average directional index with Wilder smoothing.
// DI series are first valid at index n; ADX needs a second smoothing pass
// and is first valid at index 2n.
func ADX(candles []model.Candle, n int) ADXResult {
	m := len(candles)
	res := ADXResult{
		PlusDI:  undefinedSeries(m),
		MinusDI: undefinedSeries(m),
		ADX:     undefinedSeries(m),
	}
	if n <= 0 || m < 2*n+1 {
		return res
	}

	tr := TrueRange(candles)
	plusDM := make([]float64, m)
	minusDM := make([]float64, m)
	for i := 1; i < m; i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	// Wilder smoothed sums, seeded over bars 1..n.
	var smTR, smPlus, smMinus float64
	for i := 1; i <= n; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := undefinedSeries(m)
	set := func(i int) {
		if smTR == 0 {
			res.PlusDI[i], res.MinusDI[i], dx[i] = 0, 0, 0
			return
		}
		pdi := 100 * smPlus / smTR
		mdi := 100 * smMinus / smTR
		res.PlusDI[i] = pdi
		res.MinusDI[i] = mdi
		if pdi+mdi == 0 {
			dx[i] = 0
		} else {
			dx[i] = 100 * math.Abs(pdi-mdi) / (pdi + mdi)
		}
	}
	set(n)

	for i := n + 1; i < m; i++ {
		smTR = smTR - smTR/float64(n) + tr[i]
		smPlus = smPlus - smPlus/float64(n) + plusDM[i]
		smMinus = smMinus - smMinus/float64(n) + minusDM[i]
		set(i)
	}

	// Second pass: ADX = Wilder average of DX. The seed is the mean of the
	// first n DX values; the first published ADX lands at index 2n.
	var sum float64
	for i := n; i < 2*n; i++ {
		sum += dx[i]
	}
	seed := sum / float64(n)
	res.ADX[2*n] = (seed*float64(n-1) + dx[2*n]) / float64(n)
	for i := 2*n + 1; i < m; i++ {
		res.ADX[i] = (res.ADX[i-1]*float64(n-1) + dx[i]) / float64(n)
	}
	return res
}
