// Package microstructure computes liquidity and order-flow indicators over
// aggregated trade and order-book bars.
package microstructure

import (
	"math"

	"MarketMonitor/internal/domain/models"
	domsvc "MarketMonitor/internal/domain/service"
	"MarketMonitor/internal/services/features"
)

// Thresholds for status classification. Inverse metrics are worse when low.
type Threshold struct {
	Warning float64
	Danger  float64
	Inverse bool
}

var (
	ThresholdDVR    = Threshold{Warning: 0.5, Danger: 0.2, Inverse: true}
	ThresholdTII    = Threshold{Warning: 50, Danger: 20, Inverse: true}
	ThresholdLambda = Threshold{Warning: 1.0, Danger: 2.0}
	ThresholdAmihud = Threshold{Warning: 0.5, Danger: 1.0}
	ThresholdFPI    = Threshold{Warning: 0.3, Danger: 0.5}
	ThresholdVPIN   = Threshold{Warning: 0.4, Danger: 0.6}
	ThresholdWAS    = Threshold{Warning: 0.7, Danger: 0.85}
	ThresholdLSI    = Threshold{Warning: 1.5, Danger: 2.0}
)

const (
	lambdaWindow      = 5
	vpinWindow        = 10
	whaleMultiple     = 3.0
	spikeNormalizer   = 5.0
	tiiMinMoveBps     = 0.1
	tiiFlatMultiplier = 10.0
	amihudScale       = 1_000_000
	bpsScale          = 10_000
)

// Status classifies v against th.
func (th Threshold) Status(v float64) models.MetricStatus {
	if th.Inverse {
		switch {
		case v < th.Danger:
			return models.StatusDanger
		case v < th.Warning:
			return models.StatusWarning
		}
		return models.StatusNormal
	}
	switch {
	case v > th.Danger:
		return models.StatusDanger
	case v > th.Warning:
		return models.StatusWarning
	}
	return models.StatusNormal
}

// Engine computes all eight metrics. The zero value is ready to use.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

var _ domsvc.MicrostructureEngine = (*Engine)(nil)

func (e *Engine) Compute(trades []models.TradeInterval, orderbook []models.OrderbookInterval) models.TradeMetrics {
	return models.TradeMetrics{
		DVR:    DVR(trades, orderbook),
		TII:    TII(trades),
		Lambda: Lambda(trades),
		Amihud: Amihud(trades),
		FPI:    FPI(trades),
		VPIN:   VPIN(trades),
		WAS:    WAS(trades),
		LSI:    LSI(trades, orderbook),
	}
}

// DVR is the depth-to-volume ratio; bars with zero volume are skipped.
func DVR(trades []models.TradeInterval, orderbook []models.OrderbookInterval) models.MetricSeries {
	n := min(len(trades), len(orderbook))
	history := make([]models.HistoryPoint, 0, n)
	for i := 0; i < n; i++ {
		if trades[i].Volume == 0 {
			continue
		}
		history = append(history, point(trades[i].Timestamp, orderbook[i].Depth()/trades[i].Volume))
	}
	return summarize(history, ThresholdDVR)
}

// TII is trade count per basis point of price movement.
func TII(trades []models.TradeInterval) models.MetricSeries {
	history := make([]models.HistoryPoint, 0, len(trades))
	for _, t := range trades {
		bps := math.Abs(priceChange(t)) * bpsScale
		count := float64(t.TradeCount)
		v := count * tiiFlatMultiplier
		if bps > tiiMinMoveBps {
			v = count / bps
		}
		history = append(history, point(t.Timestamp, v))
	}
	return summarize(history, ThresholdTII)
}

// Lambda is the absolute OLS slope of price change (bps) on net volume over
// the trailing lambdaWindow bars. The window excludes the bar it is stamped with.
func Lambda(trades []models.TradeInterval) models.MetricSeries {
	history := make([]models.HistoryPoint, 0, max(0, len(trades)-lambdaWindow))
	for i := lambdaWindow; i < len(trades); i++ {
		var sumX, sumY, sumXY, sumX2 float64
		for _, t := range trades[i-lambdaWindow : i] {
			x := t.NetVolume()
			y := priceChange(t) * bpsScale
			sumX += x
			sumY += y
			sumXY += x * y
			sumX2 += x * x
		}
		n := float64(lambdaWindow)
		denom := n*sumX2 - sumX*sumX
		lambda := 0.0
		if denom != 0 {
			lambda = math.Abs((n*sumXY - sumX*sumY) / denom)
		}
		history = append(history, point(trades[i].Timestamp, lambda))
	}
	return summarize(history, ThresholdLambda)
}

// Amihud is absolute return per unit of notional, scaled by 1e6.
func Amihud(trades []models.TradeInterval) models.MetricSeries {
	history := make([]models.HistoryPoint, 0, len(trades))
	for _, t := range trades {
		v := 0.0
		if t.Notional > 0 {
			v = math.Abs(priceChange(t)) / t.Notional * amihudScale
		}
		history = append(history, point(t.Timestamp, v))
	}
	return summarize(history, ThresholdAmihud)
}

// FPI measures how long and how one-sided the order flow has been.
// The run length restarts at 1 whenever the dominant side flips.
func FPI(trades []models.TradeInterval) models.MetricSeries {
	history := make([]models.HistoryPoint, 0, len(trades))
	var (
		run, lastDir int
		cvd, volume  float64
	)
	for _, t := range trades {
		dir := -1
		if t.BuyRatio() > 0.5 {
			dir = 1
		}
		cvd += t.NetVolume()
		volume += t.Volume
		if dir == lastDir {
			run++
		} else {
			run = 1
			lastDir = dir
		}
		v := 0.0
		if volume > 0 {
			v = math.Min(1, float64(run)*math.Abs(cvd)/volume)
		}
		history = append(history, point(t.Timestamp, v))
	}
	return summarize(history, ThresholdFPI)
}

// VPIN is the buy/sell volume imbalance over the trailing vpinWindow bars.
func VPIN(trades []models.TradeInterval) models.MetricSeries {
	history := make([]models.HistoryPoint, 0, max(0, len(trades)-vpinWindow))
	for i := vpinWindow; i < len(trades); i++ {
		var buy, sell float64
		for _, t := range trades[i-vpinWindow : i] {
			buy += t.BuyVolume()
			sell += t.SellVolume()
		}
		v := 0.0
		if total := buy + sell; total > 0 {
			v = math.Abs(buy-sell) / total
		}
		history = append(history, point(trades[i].Timestamp, v))
	}
	return summarize(history, ThresholdVPIN)
}

// WAS blends bar size against the window mean with flow concentration.
func WAS(trades []models.TradeInterval) models.MetricSeries {
	history := make([]models.HistoryPoint, 0, len(trades))
	volumes := make([]float64, len(trades))
	for i, t := range trades {
		volumes[i] = t.Volume
	}
	avg := features.Mean(volumes)
	whale := avg * whaleMultiple

	for _, t := range trades {
		large := 0.0
		spike := 0.0
		if whale > 0 {
			large = math.Min(1, t.Volume/whale)
			spike = math.Min(1, t.Volume/avg/spikeNormalizer)
		}
		concentration := math.Abs(t.BuyRatio()-0.5) * 2
		history = append(history, point(t.Timestamp, 0.5*large+0.3*concentration+0.2*spike))
	}
	return summarize(history, ThresholdWAS)
}

// LSI compares each bar's spread, depth, urgency and range against the
// averages of the whole window.
func LSI(trades []models.TradeInterval, orderbook []models.OrderbookInterval) models.MetricSeries {
	spreads := make([]float64, len(orderbook))
	depths := make([]float64, len(orderbook))
	for i, ob := range orderbook {
		spreads[i] = ob.SpreadBps.Mean
		depths[i] = ob.Depth()
	}
	ranges := make([]float64, len(trades))
	for i, t := range trades {
		ranges[i] = barRange(t)
	}
	avgSpread := features.Mean(spreads)
	avgDepth := features.Mean(depths)
	avgRange := features.Mean(ranges)

	n := min(len(trades), len(orderbook))
	history := make([]models.HistoryPoint, 0, n)
	for i := 0; i < n; i++ {
		spreadDev := 1.0
		if avgSpread > 0 {
			spreadDev = spreads[i] / avgSpread
		}
		depthRed := 0.0
		if avgDepth > 0 {
			depthRed = math.Max(0, 1-depths[i]/avgDepth)
		}
		urgency := math.Abs(trades[i].BuyRatio()-0.5) * 2
		volSpike := 1.0
		if avgRange > 0 {
			volSpike = ranges[i] / avgRange
		}
		lsi := 0.3*spreadDev + 0.3*depthRed + 0.2*urgency + 0.2*volSpike
		history = append(history, point(trades[i].Timestamp, lsi))
	}
	return summarize(history, ThresholdLSI)
}

// priceChange is (close-open)/open, 0 when open is not positive.
func priceChange(t models.TradeInterval) float64 {
	if t.OHLC.Open <= 0 {
		return 0
	}
	return (t.OHLC.Close - t.OHLC.Open) / t.OHLC.Open
}

func barRange(t models.TradeInterval) float64 {
	if t.OHLC.Open <= 0 {
		return 0
	}
	return math.Abs(t.OHLC.High-t.OHLC.Low) / t.OHLC.Open
}

func point(ts string, v float64) models.HistoryPoint {
	return models.HistoryPoint{Timestamp: ts, Value: features.Finite(v)}
}

// summarize derives the current reading from the last two history points.
// With fewer than two points the reading is the zero baseline.
func summarize(history []models.HistoryPoint, th Threshold) models.MetricSeries {
	n := len(history)
	if n < 2 {
		return models.MetricSeries{
			Current: models.MetricValue{Value: 0, Status: th.Status(0), Trend: models.TrendStable},
			History: history,
		}
	}
	last, prev := history[n-1].Value, history[n-2].Value
	trend := models.TrendStable
	switch {
	case last > prev:
		trend = models.TrendUp
	case last < prev:
		trend = models.TrendDown
	}
	return models.MetricSeries{
		Current: models.MetricValue{Value: last, Status: th.Status(last), Trend: trend},
		History: history,
	}
}
