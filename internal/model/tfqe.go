package model

import "time"

// TFQEState tags the outcome of one TFQE evaluation.
type TFQEState string

const (
	TFQEBuy             TFQEState = "BUY"
	TFQESell            TFQEState = "SELL"
	TFQEWaitingPullback TFQEState = "WAITING_PULLBACK"
	TFQEWaitingRally    TFQEState = "WAITING_RALLY"
	TFQENoTrend         TFQEState = "NO_TREND"
	TFQEOutOfSession    TFQEState = "OUT_OF_SESSION"
)

// Actionable reports whether the state carries entry/stop/target levels.
func (s TFQEState) Actionable() bool { return s == TFQEBuy || s == TFQESell }

// TFQEManagement is the post-entry contract published with every actionable
// signal. It is informational in read-only mode; with trading enabled the
// order layer realises it as an IFDOCO composite.
type TFQEManagement struct {
	TP1ClosesFraction float64 `json:"tp1_closes_fraction"` // 0.5: half out at TP1
	MoveStopToEntry   bool    `json:"move_stop_to_entry"`  // break-even after TP1
	TrailExitRule     string  `json:"trail_exit_rule"`     // M15 close across EMA20
}

// TFQESignal is one evaluation of the trend-follow quick-exit strategy.
// Entry, stops and targets are only populated for BUY/SELL states.
type TFQESignal struct {
	Symbol    Symbol    `json:"symbol"`
	State     TFQEState `json:"signal"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`

	Entry      float64 `json:"entry,omitempty"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TP1        float64 `json:"tp1,omitempty"`
	TP2        float64 `json:"tp2,omitempty"`
	RiskPips   float64 `json:"risk_pips,omitempty"`
	RewardPips float64 `json:"reward_pips,omitempty"`
	Confidence int     `json:"confidence,omitempty"`

	H1Trend  Trend   `json:"h1_trend,omitempty"`
	H1ADX    float64 `json:"h1_adx,omitempty"`
	M15Price float64 `json:"m15_price,omitempty"`
	M15EMA20 float64 `json:"m15_ema20,omitempty"`
	M15ATR   float64 `json:"m15_atr,omitempty"`
	Distance float64 `json:"distance,omitempty"` // (price − EMA20) / ATR

	Management    *TFQEManagement `json:"management,omitempty"`
	DataFreshness string          `json:"data_freshness,omitempty"`
}
