package indicator

// SMA returns the n-period simple moving average. First valid index n−1.
func SMA(values []float64, n int) []float64 {
	out := undefinedSeries(len(values))
	if n <= 0 || len(values) < n {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= n {
			sum -= values[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA returns the n-period exponential moving average, seeded with the SMA
// of the first n values. First valid index n−1.
func EMA(values []float64, n int) []float64 {
	out := undefinedSeries(len(values))
	if n <= 0 || len(values) < n {
		return out
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += values[i]
	}
	out[n-1] = sum / float64(n)

	k := 2.0 / float64(n+1)
	for i := n; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}
