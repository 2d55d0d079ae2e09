// Package regime labels the market state from price, range and spread data.
package regime

import (
	"math"

	"MarketMonitor/internal/domain/models"
	domsvc "MarketMonitor/internal/domain/service"
	"MarketMonitor/internal/services/features"
)

const (
	SMAFast    = 5
	SMASlow    = 15
	RSIPeriod  = 14
	ATRPeriod  = 14
	MomentumN  = 5
	WindowSize = 15

	rsiOverbought          = 70.0
	rsiOversold            = 30.0
	volatilityThreshold    = 1.5
	consolidationThreshold = 0.3
	trendThreshold         = 0.1
)

type displayInfo struct {
	label    string
	color    string
	timeline string
	value    float64
}

var displays = map[models.RegimeType]displayInfo{
	models.RegimeTrendingBull:   {"Bullish Trend", "#3fb950", "#3fb950", 2},
	models.RegimeTrendingBear:   {"Bearish Trend", "#f85149", "#f85149", -2},
	models.RegimeMeanReverting:  {"Mean Reverting", "#a371f7", "#a371f7", 0},
	models.RegimeHighVolatility: {"High Volatility", "#f0883e", "#f0883e", 1.5},
	models.RegimeConsolidation:  {"Consolidation", "#8b949e", "#8b949e", -0.5},
	models.RegimeUnknown:        {"Unknown", "#8b949e", "#484f58", 0},
}

// Classifier is stateless; every call re-derives the regime from its input.
type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

var _ domsvc.RegimeClassifier = (*Classifier)(nil)

// Baseline is returned whenever there is not enough data to classify.
func Baseline() models.RegimeAnalysis {
	return models.RegimeAnalysis{
		Current: models.RegimeSignal{Type: models.RegimeUnknown},
		Metrics: models.RegimeMetrics{VolatilityRatio: 1},
	}
}

func (c *Classifier) Classify(trades []models.TradeInterval, orderbook []models.OrderbookInterval) models.RegimeAnalysis {
	if len(trades) < SMASlow {
		return Baseline()
	}

	closes := make([]float64, 0, len(trades))
	highs := make([]float64, 0, len(trades))
	lows := make([]float64, 0, len(trades))
	for _, t := range trades {
		if t.OHLC.Close > 0 {
			closes = append(closes, t.OHLC.Close)
		}
		if t.OHLC.High > 0 {
			highs = append(highs, t.OHLC.High)
		}
		if t.OHLC.Low > 0 {
			lows = append(lows, t.OHLC.Low)
		}
	}
	if len(closes) < SMASlow {
		return Baseline()
	}

	smaFast := last(features.SMA(closes, SMAFast))
	smaSlow := last(features.SMA(closes, SMASlow))
	rsi := last(RSI(closes, RSIPeriod))
	atrSeries := ATR(trades, ATRPeriod)
	atr := last(atrSeries)
	avgATR := meanDefined(atrSeries)

	avgPrice := features.Mean(closes)
	_, maxHigh := features.MinMax(highs)
	minLow, _ := features.MinMax(lows)
	rangePct := 0.0
	if avgPrice > 0 {
		rangePct = (maxHigh - minLow) / avgPrice * 100
	}

	volRatio := 1.0
	if avgATR > 0 && !math.IsNaN(atr) {
		volRatio = atr / avgATR
	}
	rsiValue := rsi
	if math.IsNaN(rsiValue) {
		rsiValue = 50
	}

	regimeType, confidence := decide(smaFast, smaSlow, rsiValue, volRatio, rangePct)

	trendStrength := 0.0
	if !math.IsNaN(smaFast) && !math.IsNaN(smaSlow) && smaSlow != 0 {
		trendStrength = features.Clamp((smaFast-smaSlow)/smaSlow*1000, -100, 100)
	}
	deviation := 0.0
	if avgPrice > 0 {
		deviation = (closes[len(closes)-1] - avgPrice) / avgPrice * 100
	}

	return models.RegimeAnalysis{
		Current: models.RegimeSignal{
			Type:       regimeType,
			Confidence: features.Finite(confidence),
			Timestamp:  trades[len(trades)-1].Timestamp,
			Indicators: models.RegimeIndicators{
				SMAFast:        defined(smaFast),
				SMASlow:        defined(smaSlow),
				RSI:            defined(rsi),
				ATR:            defined(atr),
				Volatility:     defined(volRatio),
				PriceDeviation: defined(deviation),
			},
		},
		Metrics: models.RegimeMetrics{
			TrendStrength:   features.Finite(trendStrength),
			VolatilityRatio: features.Finite(volRatio),
			Momentum:        features.Finite(Momentum(closes, MomentumN)),
			SpreadAnomaly:   features.Finite(SpreadAnomaly(orderbook)),
		},
	}
}

// decide applies the rules in fixed precedence; the first match wins.
func decide(smaFast, smaSlow, rsi, volRatio, rangePct float64) (models.RegimeType, float64) {
	if volRatio > volatilityThreshold {
		return models.RegimeHighVolatility, math.Min(100, (volRatio-1)*50+50)
	}
	if rsi > rsiOverbought || rsi < rsiOversold {
		return models.RegimeMeanReverting, math.Min(100, math.Abs(rsi-50)*2)
	}
	if rangePct < consolidationThreshold {
		return models.RegimeConsolidation, math.Min(100, (consolidationThreshold-rangePct)*200+50)
	}
	if !math.IsNaN(smaFast) && !math.IsNaN(smaSlow) && smaSlow != 0 {
		diff := (smaFast - smaSlow) / smaSlow * 100
		switch {
		case diff > trendThreshold:
			return models.RegimeTrendingBull, math.Min(100, diff*50+50)
		case diff < -trendThreshold:
			return models.RegimeTrendingBear, math.Min(100, math.Abs(diff)*50+50)
		}
	}
	return models.RegimeUnknown, 0
}

// Timeline classifies each sliding window of WindowSize+1 bars ending at
// bar i, for i from WindowSize on. limit > 0 keeps only the latest points.
func (c *Classifier) Timeline(trades []models.TradeInterval, orderbook []models.OrderbookInterval, limit int) []models.RegimeTimelinePoint {
	points := make([]models.RegimeTimelinePoint, 0, max(0, len(trades)-WindowSize))
	for i := WindowSize; i < len(trades); i++ {
		if trades[i].Timestamp == "" {
			continue
		}
		analysis := c.Classify(trades[i-WindowSize:i+1], window(orderbook, i-WindowSize, i+1))
		info := displays[analysis.Current.Type]
		points = append(points, models.RegimeTimelinePoint{
			Timestamp:  trades[i].Timestamp,
			Regime:     analysis.Current.Type,
			Confidence: analysis.Current.Confidence,
			Value:      info.value,
			Color:      info.timeline,
		})
	}
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	return points
}

func (c *Classifier) Display(t models.RegimeType) models.RegimeDisplay {
	info, ok := displays[t]
	if !ok {
		t = models.RegimeUnknown
		info = displays[t]
	}
	return models.RegimeDisplay{Type: t, Label: info.label, Color: info.color}
}

// RSI uses Wilder smoothing. The first period entries are NaN and the value is
// 100 whenever the average loss is zero.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(closes) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		g, l := change(closes[i-1], closes[i])
		avgGain += g
		avgLoss += l
	}
	p := float64(period)
	avgGain /= p
	avgLoss /= p
	out[period] = rsiFrom(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		g, l := change(closes[i-1], closes[i])
		avgGain = (avgGain*(p-1) + g) / p
		avgLoss = (avgLoss*(p-1) + l) / p
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

func change(prev, cur float64) (gain, loss float64) {
	d := cur - prev
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// ATR is the SMA of true range. The first bar uses its own low as the
// previous close.
func ATR(trades []models.TradeInterval, period int) []float64 {
	tr := make([]float64, len(trades))
	for i, t := range trades {
		high, low := t.OHLC.High, t.OHLC.Low
		prevClose := low
		if i > 0 {
			prevClose = trades[i-1].OHLC.Close
		}
		tr[i] = math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
	}
	return features.SMA(tr, period)
}

// Momentum is the percent change over the last n closes.
func Momentum(closes []float64, n int) float64 {
	if len(closes) < n+1 {
		return 0
	}
	past := closes[len(closes)-1-n]
	if past == 0 {
		return 0
	}
	return (closes[len(closes)-1] - past) / past * 100
}

// SpreadAnomaly compares the latest positive mean spread with the average of
// all positive mean spreads.
func SpreadAnomaly(orderbook []models.OrderbookInterval) float64 {
	spreads := make([]float64, 0, len(orderbook))
	for _, ob := range orderbook {
		if ob.SpreadBps.Mean > 0 {
			spreads = append(spreads, ob.SpreadBps.Mean)
		}
	}
	if len(spreads) == 0 {
		return 0
	}
	avg := features.Mean(spreads)
	if avg <= 0 {
		return 0
	}
	return (spreads[len(spreads)-1] - avg) / avg
}

func window(orderbook []models.OrderbookInterval, from, to int) []models.OrderbookInterval {
	if from >= len(orderbook) {
		return nil
	}
	return orderbook[from:min(to, len(orderbook))]
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

func meanDefined(xs []float64) float64 {
	sum := 0.0
	n := 0
	for _, x := range xs {
		if !math.IsNaN(x) {
			sum += x
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func defined(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}
