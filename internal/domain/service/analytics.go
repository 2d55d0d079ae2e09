package service

import "MarketMonitor/internal/domain/models"

// The engines are pure: no I/O, no shared state, safe for concurrent use.

// MicrostructureEngine derives the eight microstructure indicators.
type MicrostructureEngine interface {
	Compute(trades []models.TradeInterval, orderbook []models.OrderbookInterval) models.TradeMetrics
}

// RegimeClassifier labels the current market state.
type RegimeClassifier interface {
	Classify(trades []models.TradeInterval, orderbook []models.OrderbookInterval) models.RegimeAnalysis
	Timeline(trades []models.TradeInterval, orderbook []models.OrderbookInterval, limit int) []models.RegimeTimelinePoint
	Display(t models.RegimeType) models.RegimeDisplay
}

// RiskEngine computes return-series risk statistics.
type RiskEngine interface {
	Compute(trades []models.TradeInterval) models.RiskMetrics
	Drawdown(trades []models.TradeInterval) []models.DrawdownPoint
	Level(m models.RiskMetrics) models.RiskLevel
}
