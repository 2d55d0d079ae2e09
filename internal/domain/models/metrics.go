package models

// MetricStatus classifies a metric value against its thresholds.
type MetricStatus string

const (
	StatusNormal  MetricStatus = "normal"
	StatusWarning MetricStatus = "warning"
	StatusDanger  MetricStatus = "danger"
)

// Trend is the direction between the last two history points.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

type MetricValue struct {
	Value  float64      `json:"value"`
	Status MetricStatus `json:"status"`
	Trend  Trend        `json:"trend"`
}

type HistoryPoint struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

// MetricSeries is the latest reading of a metric together with its per-step history.
type MetricSeries struct {
	Current MetricValue    `json:"current"`
	History []HistoryPoint `json:"history"`
}

// TradeMetrics bundles the eight microstructure indicators.
type TradeMetrics struct {
	DVR    MetricSeries `json:"dvr"`
	TII    MetricSeries `json:"tii"`
	Lambda MetricSeries `json:"lambda"`
	Amihud MetricSeries `json:"amihud"`
	FPI    MetricSeries `json:"fpi"`
	VPIN   MetricSeries `json:"vpin"`
	WAS    MetricSeries `json:"was"`
	LSI    MetricSeries `json:"lsi"`
}

// Each calls fn for every metric in display order.
func (m *TradeMetrics) Each(fn func(name string, s *MetricSeries)) {
	fn("dvr", &m.DVR)
	fn("tii", &m.TII)
	fn("lambda", &m.Lambda)
	fn("amihud", &m.Amihud)
	fn("fpi", &m.FPI)
	fn("vpin", &m.VPIN)
	fn("was", &m.WAS)
	fn("lsi", &m.LSI)
}
