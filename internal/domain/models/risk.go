package models

// RiskMetrics holds window-level risk statistics. Fields documented as
// percentages are already multiplied by 100.
type RiskMetrics struct {
	VaR95            float64 `json:"var95"`
	VaR99            float64 `json:"var99"`
	CVaR95           float64 `json:"cvar95"`
	SharpeRatio      float64 `json:"sharpeRatio"`
	SortinoRatio     float64 `json:"sortinoRatio"`
	Volatility       float64 `json:"volatility"`
	DailyVolatility  float64 `json:"dailyVolatility"`
	MaxDrawdown      float64 `json:"maxDrawdown"`
	CurrentDrawdown  float64 `json:"currentDrawdown"`
	DrawdownDuration int     `json:"drawdownDuration"`
	TotalReturn      float64 `json:"totalReturn"`
	AvgReturn        float64 `json:"avgReturn"`
	WinRate          float64 `json:"winRate"`
}

type DrawdownPoint struct {
	Timestamp string  `json:"timestamp"`
	Price     float64 `json:"price"`
	Peak      float64 `json:"peak"`
	Drawdown  float64 `json:"drawdown"`
}

type RiskLevelType string

const (
	RiskLow     RiskLevelType = "low"
	RiskMedium  RiskLevelType = "medium"
	RiskHigh    RiskLevelType = "high"
	RiskExtreme RiskLevelType = "extreme"
)

type RiskLevel struct {
	Level RiskLevelType `json:"level"`
	Label string        `json:"label"`
	Color string        `json:"color"`
	Score float64       `json:"score"`
}

// RiskAnalysis pairs the metrics with their qualitative level.
type RiskAnalysis struct {
	Metrics RiskMetrics `json:"metrics"`
	Level   RiskLevel   `json:"level"`
}
