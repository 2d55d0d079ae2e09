package models

// OHLC is an open/high/low/close quadruple.
type OHLC struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// BuySell is the taker-side split of an interval's volume.
// Upstream may omit it; use the accessors on TradeInterval for defaults.
type BuySell struct {
	BuyVolume  float64 `json:"buy_volume"`
	SellVolume float64 `json:"sell_volume"`
	BuyRatio   float64 `json:"buy_ratio"`
	NetVolume  float64 `json:"net_volume"`
}

// TradeInterval is one aggregated trade bar.
type TradeInterval struct {
	Timestamp  string   `json:"timestamp"`
	OHLC       OHLC     `json:"ohlc"`
	Volume     float64  `json:"volume"`
	Notional   float64  `json:"notional"`
	VWAP       float64  `json:"vwap"`
	TradeCount int      `json:"trade_count"`
	BuySell    *BuySell `json:"buy_sell,omitempty"`
}

// BuyRatio defaults to 0.5 when the split is missing.
func (t TradeInterval) BuyRatio() float64 {
	if t.BuySell == nil {
		return 0.5
	}
	return t.BuySell.BuyRatio
}

// BuyVolume defaults to 0.
func (t TradeInterval) BuyVolume() float64 {
	if t.BuySell == nil {
		return 0
	}
	return t.BuySell.BuyVolume
}

// SellVolume defaults to 0.
func (t TradeInterval) SellVolume() float64 {
	if t.BuySell == nil {
		return 0
	}
	return t.BuySell.SellVolume
}

// NetVolume defaults to 0.
func (t TradeInterval) NetVolume() float64 {
	if t.BuySell == nil {
		return 0
	}
	return t.BuySell.NetVolume
}

// SpreadBps holds spread statistics in basis points.
type SpreadBps struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// OrderbookInterval is one aggregated order-book bar.
type OrderbookInterval struct {
	Timestamp     string    `json:"timestamp"`
	MidPrice      OHLC      `json:"mid_price"`
	SpreadBps     SpreadBps `json:"spread_bps"`
	AvgBidDepth   float64   `json:"avg_bid_depth"`
	AvgAskDepth   float64   `json:"avg_ask_depth"`
	AvgImbalance  float64   `json:"avg_imbalance"`
	SnapshotCount int       `json:"snapshot_count,omitempty"`
}

// Depth is the combined bid and ask depth.
func (o OrderbookInterval) Depth() float64 {
	return o.AvgBidDepth + o.AvgAskDepth
}

// Anomaly is an upstream-flagged outlier.
type Anomaly struct {
	Timestamp string  `json:"timestamp"`
	Type      string  `json:"type"`
	Value     float64 `json:"value"`
	ZScore    float64 `json:"z_score"`
}

// Data sources reported on MarketData.
const (
	DataSourceUpstream = "mcp"
	DataSourceFallback = "fallback"
)

type PriceStats struct {
	Current   float64 `json:"current"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"changePct"`
}

type VolumeStats struct {
	Total    float64 `json:"total"`
	Notional float64 `json:"notional"`
	BuyRatio float64 `json:"buyRatio"`
}

type SpreadStats struct {
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
}

type ImbalanceStats struct {
	Mean         float64 `json:"mean"`
	BuyPressure  float64 `json:"buyPressure"`
	SellPressure float64 `json:"sellPressure"`
}

type TradeStats struct {
	Count   float64 `json:"count"`
	AvgSize float64 `json:"avgSize"`
}

// MarketStats is the headline summary shown next to the charts.
type MarketStats struct {
	Price     PriceStats     `json:"price"`
	Volume    VolumeStats    `json:"volume"`
	Spread    SpreadStats    `json:"spread"`
	Imbalance ImbalanceStats `json:"imbalance"`
	Trades    TradeStats     `json:"trades"`
}

// MarketData is the merged order-book and trade view of one market.
type MarketData struct {
	Exchange         string              `json:"exchange"`
	Symbol           string              `json:"symbol"`
	Interval         string              `json:"interval"`
	LastUpdate       string              `json:"lastUpdate"`
	DataSource       string              `json:"dataSource"`
	OrderbookSummary []OrderbookInterval `json:"orderbookSummary"`
	TradesSummary    []TradeInterval     `json:"tradesSummary"`
	Anomalies        []Anomaly           `json:"anomalies"`
	Stats            MarketStats         `json:"stats"`
}

// Upstream summary payloads. Every block is optional.

type SpreadSummary struct {
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
}

type ImbalanceSummary struct {
	Mean            float64 `json:"mean"`
	BuyPressurePct  float64 `json:"buy_pressure_pct"`
	SellPressurePct float64 `json:"sell_pressure_pct"`
}

type OrderbookSummaryStats struct {
	SpreadBps *SpreadSummary    `json:"spread_bps,omitempty"`
	Imbalance *ImbalanceSummary `json:"imbalance,omitempty"`
}

type OrderbookSummaryResult struct {
	Data      []OrderbookInterval    `json:"data"`
	Summary   *OrderbookSummaryStats `json:"summary,omitempty"`
	Anomalies []Anomaly              `json:"anomalies"`
}

type PriceSummary struct {
	Open      float64 `json:"open"`
	Close     float64 `json:"close"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
}

type VolumeSummary struct {
	Total         float64  `json:"total"`
	TotalNotional float64  `json:"total_notional"`
	BuyRatio      *float64 `json:"buy_ratio,omitempty"`
}

type TradeCountSummary struct {
	TotalCount float64 `json:"total_count"`
	AvgSize    float64 `json:"avg_size"`
}

type TradesSummaryStats struct {
	Price  *PriceSummary      `json:"price,omitempty"`
	Volume *VolumeSummary     `json:"volume,omitempty"`
	Trades *TradeCountSummary `json:"trades,omitempty"`
}

type TradesSummaryResult struct {
	Data      []TradeInterval     `json:"data"`
	Summary   *TradesSummaryStats `json:"summary,omitempty"`
	Anomalies []Anomaly           `json:"anomalies"`
}

// Availability lists the exchanges and symbols the dashboard offers.
type Availability struct {
	Exchanges []string            `json:"exchanges"`
	Symbols   map[string][]string `json:"symbols"`
}
