package indicator

import "fxassist/internal/model"

// PivotLevels are the classic floor-trader levels computed from one
// completed daily bar.
type PivotLevels struct {
	Pivot float64
	R1    float64
	S1    float64
	R2    float64
	S2    float64
}

// Pivots computes classic pivots from the previous completed daily bar:
// P=(H+L+C)/3, R1=2P−L, S1=2P−H, R2=P+(H−L), S2=P−(H−L).
func Pivots(prevDaily model.Candle) PivotLevels {
	p := (prevDaily.High + prevDaily.Low + prevDaily.Close) / 3
	rng := prevDaily.High - prevDaily.Low
	return PivotLevels{
		Pivot: p,
		R1:    2*p - prevDaily.Low,
		S1:    2*p - prevDaily.High,
		R2:    p + rng,
		S2:    p - rng,
	}
}
