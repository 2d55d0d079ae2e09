package models

import "encoding/json"

// AgentsSummary counts agents by liveness.
type AgentsSummary struct {
	TotalAgents    int `json:"total_agents"`
	LiveAgents     int `json:"live_agents"`
	InactiveAgents int `json:"inactive_agents"`
}

// ExchangePair references one pair on one exchange.
type ExchangePair struct {
	Exchange string `json:"exchange"`
	PairKey  string `json:"pairKey"`
}

// AgentParameters is one parameter set of an instruct. Model parameters are
// kept opaque since their shape differs per strategy.
type AgentParameters struct {
	SpreadModelParameter     json.RawMessage `json:"spreadModelParameter,omitempty"`
	DepthModelParameter      json.RawMessage `json:"depthModelParameter,omitempty"`
	VolatilityModelParameter json.RawMessage `json:"volatilityModelParameter,omitempty"`
	MultiplierParameter      json.RawMessage `json:"multiplierParameter,omitempty"`
}

type AgentInstruct struct {
	PairKey              string            `json:"pairKey,omitempty"`
	Exchange             string            `json:"exchange,omitempty"`
	ExchangeWithPairKeys []ExchangePair    `json:"exchangeWithPairKeys,omitempty"`
	Parameters           []AgentParameters `json:"parameters,omitempty"`
}

type AgentConfig struct {
	Instructs []AgentInstruct `json:"instructs"`
}

// UpstreamAgent is an agent as returned by the analytics API.
type UpstreamAgent struct {
	AgentID      string       `json:"agent_id"`
	StrategyName string       `json:"strategy_name"`
	Host         string       `json:"host"`
	IsLive       bool         `json:"is_live"`
	Exchanges    string       `json:"exchanges"`
	Config       *AgentConfig `json:"config,omitempty"`
	UpdatedAt    string       `json:"updated_at"`
}

type UpstreamAgentsResult struct {
	Summary AgentsSummary   `json:"summary"`
	Agents  []UpstreamAgent `json:"agents"`
}

// PairConfig is the quoting configuration of one pair.
type PairConfig struct {
	PairKey  string `json:"pairKey"`
	Exchange string `json:"exchange"`
	AgentParameters
}

// Agent is the dashboard view of a market-making agent.
type Agent struct {
	AgentID      string       `json:"agent_id"`
	StrategyName string       `json:"strategy_name"`
	Host         string       `json:"host"`
	IsLive       bool         `json:"is_live"`
	Exchanges    string       `json:"exchanges"`
	Pairs        []string     `json:"pairs"`
	PairConfigs  []PairConfig `json:"pair_configs,omitempty"`
	UpdatedAt    string       `json:"updated_at"`
}

type AgentsResponse struct {
	Summary AgentsSummary `json:"summary"`
	Agents  []Agent       `json:"agents"`
}

// PairPnlSummary is one row of a multi-pair comparison.
type PairPnlSummary struct {
	Pair             string   `json:"pair"`
	Exchange         string   `json:"exchange"`
	TotalPnl         float64  `json:"total_pnl"`
	RealizedPnl      *float64 `json:"realized_pnl,omitempty"`
	UnrealizedPnl    *float64 `json:"unrealized_pnl,omitempty"`
	TotalFee         float64  `json:"total_fee"`
	TotalVolume      *float64 `json:"total_volume,omitempty"`
	BuyVolume        *float64 `json:"buy_volume,omitempty"`
	SellVolume       *float64 `json:"sell_volume,omitempty"`
	TradeCount       int64    `json:"trade_count"`
	WinRate          *float64 `json:"win_rate,omitempty"`
	SharpeRatio      *float64 `json:"sharpe_ratio,omitempty"`
	MaxDrawdown      *float64 `json:"max_drawdown,omitempty"`
	PnlPerVolume     *float64 `json:"pnl_per_volume,omitempty"`
	SpreadPercentage *float64 `json:"spread_percentage,omitempty"`
}

type UpstreamMultiPairResult struct {
	PairComparison []PairPnlSummary `json:"pair_comparison"`
}

type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type PnlAggregate struct {
	TotalPnl        float64 `json:"total_pnl"`
	RealizedPnl     float64 `json:"realized_pnl"`
	UnrealizedPnl   float64 `json:"unrealized_pnl"`
	TotalFee        float64 `json:"total_fee"`
	TotalVolume     float64 `json:"total_volume"`
	TotalTradeCount int64   `json:"total_trade_count"`
}

type MultiPairPnlResponse struct {
	Period    Period           `json:"period"`
	PairCount int              `json:"pair_count"`
	Pairs     []PairPnlSummary `json:"pairs"`
	Aggregate PnlAggregate     `json:"aggregate"`
}
