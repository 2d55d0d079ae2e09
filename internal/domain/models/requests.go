package models

// Query parameters of the HTTP endpoints. Defaults follow the dashboard.

type MarketQuery struct {
	Exchange string `query:"exchange" json:"exchange" default:"binance" validate:"required"`
	Symbol   string `query:"symbol" json:"symbol" default:"BTCUSDT" validate:"required"`
	Interval string `query:"interval" json:"interval" default:"1m" validate:"oneof=1m 5m 15m"`
}

// Key identifies the market for caching and streaming.
func (q MarketQuery) Key() string {
	return q.Exchange + ":" + q.Symbol + ":" + q.Interval
}

type RecentPnlQuery struct {
	Pair     string `query:"pair" json:"pair" default:"KYO-USDT-SPOT" validate:"required"`
	Exchange string `query:"exchange" json:"exchange" default:"gate.io" validate:"required"`
	Hours    int    `query:"hours" json:"hours" default:"24" validate:"gte=1,lte=720"`
}

type InventoryPnlQuery struct {
	Pair     string `query:"pair" json:"pair" default:"KYO-USDT-SPOT" validate:"required"`
	Exchange string `query:"exchange" json:"exchange" default:"gate.io" validate:"required"`
	Hours    int    `query:"hours" json:"hours" default:"48" validate:"gte=1,lte=720"`
	Interval string `query:"interval" json:"interval" default:"1h" validate:"required"`
}

type MarkoutQuery struct {
	Pair     string `query:"pair" json:"pair" default:"KYO-USDT-SPOT" validate:"required"`
	Exchange string `query:"exchange" json:"exchange" default:"gate.io" validate:"required"`
	Hours    int    `query:"hours" json:"hours" default:"48" validate:"gte=1,lte=720"`
}

type AgentsQuery struct {
	IsLive        string `query:"is_live" json:"is_live"`
	IncludeConfig string `query:"include_config" json:"include_config"`
}

// Live is true unless is_live is exactly "false".
func (q AgentsQuery) Live() bool { return q.IsLive != "false" }

// WithConfig is true only when include_config is exactly "true".
func (q AgentsQuery) WithConfig() bool { return q.IncludeConfig == "true" }

type MultiPairQuery struct {
	Pairs string `query:"pairs" json:"pairs" validate:"required,pairlist"`
	Hours int    `query:"hours" json:"hours" default:"24" validate:"gte=1,lte=720"`
}

type TimelineQuery struct {
	MarketQuery
	Limit int `query:"limit" json:"limit" default:"0" validate:"gte=0,lte=5000"`
}

type HistoryQuery struct {
	MarketQuery
	Hours int `query:"hours" json:"hours" default:"24" validate:"gte=1,lte=720"`
	Limit int `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}

// AnalyzeRequest is a caller-supplied series to run the engines over.
type AnalyzeRequest struct {
	Trades    []TradeInterval     `json:"trades" validate:"required"`
	Orderbook []OrderbookInterval `json:"orderbook"`
}
