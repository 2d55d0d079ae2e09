package models

// RegimeType is the discrete market state label.
type RegimeType string

const (
	RegimeTrendingBull   RegimeType = "trending_bull"
	RegimeTrendingBear   RegimeType = "trending_bear"
	RegimeMeanReverting  RegimeType = "mean_reverting"
	RegimeHighVolatility RegimeType = "high_volatility"
	RegimeConsolidation  RegimeType = "consolidation"
	RegimeUnknown        RegimeType = "unknown"
)

// RegimeIndicators is a partial record; nil fields were not computed.
type RegimeIndicators struct {
	SMAFast        *float64 `json:"smaFast,omitempty"`
	SMASlow        *float64 `json:"smaSlow,omitempty"`
	RSI            *float64 `json:"rsi,omitempty"`
	ATR            *float64 `json:"atr,omitempty"`
	Volatility     *float64 `json:"volatility,omitempty"`
	PriceDeviation *float64 `json:"priceDeviation,omitempty"`
}

type RegimeSignal struct {
	Type       RegimeType       `json:"type"`
	Confidence float64          `json:"confidence"`
	Timestamp  string           `json:"timestamp,omitempty"`
	Indicators RegimeIndicators `json:"indicators"`
}

type RegimeMetrics struct {
	TrendStrength   float64 `json:"trendStrength"`
	VolatilityRatio float64 `json:"volatilityRatio"`
	Momentum        float64 `json:"momentum"`
	SpreadAnomaly   float64 `json:"spreadAnomaly"`
}

type RegimeAnalysis struct {
	Current RegimeSignal  `json:"current"`
	Metrics RegimeMetrics `json:"metrics"`
}

// RegimeDisplay carries the presentation label and color of a regime.
type RegimeDisplay struct {
	Type  RegimeType `json:"type"`
	Label string     `json:"label"`
	Color string     `json:"color"`
}

// RegimeTimelinePoint is one sliding-window classification.
type RegimeTimelinePoint struct {
	Timestamp  string     `json:"timestamp"`
	Regime     RegimeType `json:"regime"`
	Confidence float64    `json:"confidence"`
	Value      float64    `json:"value"`
	Color      string     `json:"color"`
}

// RegimeView is the regime endpoint payload.
type RegimeView struct {
	RegimeAnalysis
	Display RegimeDisplay `json:"display"`
}
