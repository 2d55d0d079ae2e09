package models

import "time"

// AnalyticsReport is the combined output of all engines for one market.
type AnalyticsReport struct {
	Exchange   string                `json:"exchange,omitempty"`
	Symbol     string                `json:"symbol,omitempty"`
	Interval   string                `json:"interval,omitempty"`
	DataSource string                `json:"dataSource,omitempty"`
	ComputedAt time.Time             `json:"computedAt"`
	Metrics    TradeMetrics          `json:"metrics"`
	Regime     RegimeAnalysis        `json:"regime"`
	Display    RegimeDisplay         `json:"display"`
	Risk       RiskAnalysis          `json:"risk"`
	Drawdown   []DrawdownPoint       `json:"drawdown"`
	Timeline   []RegimeTimelinePoint `json:"timeline,omitempty"`
}

// AnalyticsSnapshot is the flattened, persisted form of a report.
type AnalyticsSnapshot struct {
	ID              string        `json:"id"`
	Exchange        string        `json:"exchange"`
	Symbol          string        `json:"symbol"`
	Interval        string        `json:"interval"`
	DataSource      string        `json:"data_source"`
	ComputedAt      time.Time     `json:"computed_at"`
	Regime          RegimeType    `json:"regime"`
	Confidence      float64       `json:"confidence"`
	RiskLevel       RiskLevelType `json:"risk_level"`
	RiskScore       float64       `json:"risk_score"`
	LastPrice       float64       `json:"last_price"`
	DVR             float64       `json:"dvr"`
	TII             float64       `json:"tii"`
	Lambda          float64       `json:"lambda"`
	Amihud          float64       `json:"amihud"`
	FPI             float64       `json:"fpi"`
	VPIN            float64       `json:"vpin"`
	WAS             float64       `json:"was"`
	LSI             float64       `json:"lsi"`
	VaR95           float64       `json:"var95"`
	CVaR95          float64       `json:"cvar95"`
	Volatility      float64       `json:"volatility"`
	MaxDrawdown     float64       `json:"max_drawdown"`
	CurrentDrawdown float64       `json:"current_drawdown"`
	SharpeRatio     float64       `json:"sharpe_ratio"`
}

// MarketKey groups snapshots of the same market.
func (s *AnalyticsSnapshot) MarketKey() string {
	return s.Exchange + ":" + s.Symbol
}
