package indicator

// MACDResult bundles the three MACD series.
type MACDResult struct {
	Line   []float64
	Signal []float64
	Hist   []float64
}

// MACD returns MACD(fast, slow, signal): line = EMA(fast) − EMA(slow),
// signal = EMA(signalN) of the line over its defined region, hist = line −
// signal. With (12,26,9) the line is first valid at index 25 and the
// histogram at index 33.
func MACD(values []float64, fast, slow, signalN int) MACDResult {
	n := len(values)
	res := MACDResult{
		Line:   undefinedSeries(n),
		Signal: undefinedSeries(n),
		Hist:   undefinedSeries(n),
	}
	if n < slow {
		return res
	}

	emaFast := EMA(values, fast)
	emaSlow := EMA(values, slow)
	for i := slow - 1; i < n; i++ {
		res.Line[i] = emaFast[i] - emaSlow[i]
	}

	// Signal EMA runs over the defined tail of the line.
	defined := res.Line[slow-1:]
	sig := EMA(defined, signalN)
	for i, v := range sig {
		if Defined(v) {
			res.Signal[slow-1+i] = v
			res.Hist[slow-1+i] = defined[i] - v
		}
	}
	return res
}
