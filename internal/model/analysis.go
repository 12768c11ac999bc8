package model

import "time"

// Trend classifies the direction of one timeframe.
type Trend string

const (
	TrendUp    Trend = "UP"
	TrendDown  Trend = "DOWN"
	TrendRange Trend = "RANGE"
)

// Side is a directional trade signal on one timeframe.
type Side string

const (
	SideBuy     Side = "BUY"
	SideSell    Side = "SELL"
	SideNeutral Side = "NEUTRAL"
)

// Strength buckets a confidence score.
type Strength string

const (
	StrengthWeak   Strength = "WEAK"
	StrengthMedium Strength = "MEDIUM"
	StrengthStrong Strength = "STRONG"
)

// Momentum classifies how price velocity is changing.
type Momentum string

const (
	MomentumAccel Momentum = "ACCEL"
	MomentumDecel Momentum = "DECEL"
	MomentumFlat  Momentum = "FLAT"
)

// RiskLevel grades the integrated verdict by timeframe alignment.
type RiskLevel string

const (
	RiskLow  RiskLevel = "LOW"
	RiskMed  RiskLevel = "MED"
	RiskHigh RiskLevel = "HIGH"
)

// KeyLevels carries the classic pivot levels for a frame.
type KeyLevels struct {
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
	Pivot      float64 `json:"pivot"`
}

// EntryPoint is one suggested entry derived from a frame.
type EntryPoint struct {
	Type       string  `json:"type"` // "pullback" or "breakout"
	Price      float64 `json:"price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Reason     string  `json:"reason"`
}

// AnalysisFrame is the per-timeframe verdict produced by the analyzer.
type AnalysisFrame struct {
	Timeframe   string       `json:"timeframe"`
	Trend       Trend        `json:"trend"`
	Signal      Side         `json:"signal"`
	Confidence  float64      `json:"confidence"` // [0,100]
	Strength    Strength     `json:"strength"`
	Momentum    Momentum     `json:"momentum"`
	Volatility  float64      `json:"volatility"` // ATR at frame close
	KeyLevels   KeyLevels    `json:"key_levels"`
	EntryPoints []EntryPoint `json:"entry_points"`
}

// MarketTiming describes the current trading session context.
type MarketTiming struct {
	Session        string `json:"session"`
	ActivityLevel  string `json:"activity_level"`
	WeekTiming     string `json:"week_timing"`
	Recommendation string `json:"recommendation"`
}

// RecommendedStrategy names a strategy suited to the current alignment.
type RecommendedStrategy struct {
	Timeframe string  `json:"timeframe"`
	Name      string  `json:"name"`
	Priority  string  `json:"priority"`
	Confidence float64 `json:"confidence"`
}

// IntegratedVerdict aggregates the six analysis frames into one view.
type IntegratedVerdict struct {
	Signal         Side                  `json:"signal"`
	Confidence     float64               `json:"confidence"`
	AlignmentScore float64               `json:"alignment_score"` // [0,1]
	RiskLevel      RiskLevel             `json:"risk_level"`
	MarketTiming   MarketTiming          `json:"market_timing"`
	Recommended    []RecommendedStrategy `json:"recommended_strategies"`
}

// MultiTimeframeAnalysis is the full published shape for one symbol.
type MultiTimeframeAnalysis struct {
	Timestamp     time.Time                `json:"timestamp"`
	Symbol        Symbol                   `json:"symbol"`
	Timeframes    map[string]AnalysisFrame `json:"timeframes"`
	Integrated    IntegratedVerdict        `json:"integrated_strategy"`
	MarketSession MarketTiming             `json:"market_session"`
	DataFreshness string                   `json:"data_freshness,omitempty"`
}
