package analyzer

import (
	"sort"

	"fxassist/internal/model"
)

// Trading style per timeframe for the recommended-strategy list.
var tfStyle = map[model.Timeframe]string{
	model.M1:  "SCALPING",
	model.M5:  "SCALPING",
	model.M15: "DAY_TRADE",
	model.H1:  "DAY_TRADE",
	model.H4:  "SWING",
	model.D1:  "SWING",
}

// integrate folds the six frames into one verdict with fixed timeframe
// weights. The winning side is the larger weight sum; alignment is its
// share of the committed (non-neutral) weight; confidence is the weighted
// mean over frames voting for the winner.
func integrate(frames map[model.Timeframe]model.AnalysisFrame, timing model.MarketTiming) model.IntegratedVerdict {
	var buyW, sellW float64
	for tf, f := range frames {
		w := tfWeights[tf]
		switch f.Signal {
		case model.SideBuy:
			buyW += w
		case model.SideSell:
			sellW += w
		}
	}

	verdict := model.IntegratedVerdict{
		Signal:       model.SideNeutral,
		RiskLevel:    model.RiskHigh,
		MarketTiming: timing,
	}
	committed := buyW + sellW
	if committed == 0 {
		return verdict
	}

	winner := model.SideBuy
	winW := buyW
	if sellW > buyW {
		winner = model.SideSell
		winW = sellW
	}
	verdict.Signal = winner
	verdict.AlignmentScore = winW / committed

	switch {
	case verdict.AlignmentScore < 0.5:
		verdict.RiskLevel = model.RiskHigh
	case verdict.AlignmentScore < 0.75:
		verdict.RiskLevel = model.RiskMed
	default:
		verdict.RiskLevel = model.RiskLow
	}

	var confSum, confW float64
	for tf, f := range frames {
		if f.Signal != winner {
			continue
		}
		w := tfWeights[tf]
		confSum += f.Confidence * w
		confW += w
		verdict.Recommended = append(verdict.Recommended, model.RecommendedStrategy{
			Timeframe:  tf.Label(),
			Name:       tfStyle[tf],
			Priority:   priority(f.Confidence),
			Confidence: f.Confidence,
		})
	}
	if confW > 0 {
		verdict.Confidence = confSum / confW
	}
	sort.Slice(verdict.Recommended, func(i, j int) bool {
		return verdict.Recommended[i].Confidence > verdict.Recommended[j].Confidence
	})
	return verdict
}

func priority(conf float64) string {
	switch {
	case conf >= 75:
		return "HIGH"
	case conf >= 50:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
