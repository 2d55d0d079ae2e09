// Package risk computes return, volatility and drawdown statistics over a
// close-price series.
package risk

import (
	"fmt"
	"math"
	"sort"

	"MarketMonitor/internal/domain/models"
	domsvc "MarketMonitor/internal/domain/service"
	"MarketMonitor/internal/services/features"
)

const (
	RiskFreeRate   = 0.05
	PeriodsPerYear = 365
	Z95            = 1.645
	Z99            = 2.326
	tailFraction   = 0.05
)

// Engine is stateless and safe for concurrent use.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

var _ domsvc.RiskEngine = (*Engine)(nil)

type pricePoint struct {
	timestamp string
	price     float64
}

func positiveCloses(trades []models.TradeInterval) []pricePoint {
	out := make([]pricePoint, 0, len(trades))
	for _, t := range trades {
		if t.OHLC.Close > 0 {
			out = append(out, pricePoint{timestamp: t.Timestamp, price: t.OHLC.Close})
		}
	}
	return out
}

func (e *Engine) Compute(trades []models.TradeInterval) models.RiskMetrics {
	points := positiveCloses(trades)
	if len(points) < 2 {
		return models.RiskMetrics{}
	}
	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.price
	}
	return FromPrices(prices)
}

// FromPrices computes the metrics for an already filtered price series.
func FromPrices(prices []float64) models.RiskMetrics {
	returns := features.SimpleReturns(prices)
	if len(returns) == 0 {
		return models.RiskMetrics{}
	}

	avg := features.Mean(returns)
	sd := features.StdDev(returns)
	dd := drawdown(prices)

	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}

	m := models.RiskMetrics{
		VaR95:            VaR(avg, sd, Z95) * 100,
		VaR99:            VaR(avg, sd, Z99) * 100,
		CVaR95:           CVaR(returns) * 100,
		SharpeRatio:      Sharpe(returns),
		SortinoRatio:     Sortino(returns),
		Volatility:       sd * math.Sqrt(PeriodsPerYear) * 100,
		DailyVolatility:  sd * 100,
		MaxDrawdown:      dd.max * 100,
		CurrentDrawdown:  dd.current * 100,
		DrawdownDuration: dd.duration,
		TotalReturn:      (prices[len(prices)-1] - prices[0]) / prices[0] * 100,
		AvgReturn:        avg * 100,
		WinRate:          float64(wins) / float64(len(returns)) * 100,
	}
	return sanitize(m)
}

// VaR is the parametric Gaussian value at risk: -mean + sd*z.
func VaR(mean, sd, z float64) float64 {
	return -mean + sd*z
}

// CVaR is the negated mean of the worst floor(n*0.05)+1 returns.
func CVaR(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	cut := int(math.Floor(float64(len(sorted))*tailFraction)) + 1
	return -features.Mean(sorted[:min(cut, len(sorted))])
}

// Sharpe is (annual return - risk free) / annual volatility, 0 when undefined.
func Sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sd := features.StdDev(returns)
	if sd == 0 {
		return 0
	}
	annual := features.Mean(returns) * PeriodsPerYear
	return (annual - RiskFreeRate) / (sd * math.Sqrt(PeriodsPerYear))
}

// Sortino uses downside deviation in place of volatility. A series with no
// losing steps has no defined ratio and reports 0.
func Sortino(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	down := features.DownsideDeviation(returns)
	if down == 0 {
		return 0
	}
	annual := features.Mean(returns) * PeriodsPerYear
	return (annual - RiskFreeRate) / (down * math.Sqrt(PeriodsPerYear))
}

type drawdownStats struct {
	max      float64
	current  float64
	duration int
}

// drawdown tracks the running peak; duration is the number of steps from the
// peak preceding the deepest trough to that trough.
func drawdown(prices []float64) drawdownStats {
	var st drawdownStats
	if len(prices) == 0 {
		return st
	}
	peak := prices[0]
	start, run := 0, 0
	for i, p := range prices {
		if p > peak {
			peak = p
			start = i
			run = 0
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - p) / peak
		}
		if dd > 0 {
			run = i - start
		}
		if dd > st.max {
			st.max = dd
			st.duration = run
		}
		st.current = dd
	}
	return st
}

// Drawdown returns the per-bar drawdown series in percent. Each point carries
// the timestamp of the bar its price came from.
func (e *Engine) Drawdown(trades []models.TradeInterval) []models.DrawdownPoint {
	points := positiveCloses(trades)
	if len(points) < 2 {
		return []models.DrawdownPoint{}
	}
	out := make([]models.DrawdownPoint, 0, len(points))
	peak := points[0].price
	for _, p := range points {
		if p.price > peak {
			peak = p.price
		}
		out = append(out, models.DrawdownPoint{
			Timestamp: p.timestamp,
			Price:     p.price,
			Peak:      peak,
			Drawdown:  (peak - p.price) / peak * 100,
		})
	}
	return out
}

// Level blends volatility, VaR and drawdown into a qualitative label.
func (e *Engine) Level(m models.RiskMetrics) models.RiskLevel {
	score := features.Finite(0.3*(m.Volatility/50) + 0.3*(m.VaR95/5) + 0.4*(m.MaxDrawdown/20))
	switch {
	case score < 0.5:
		return models.RiskLevel{Level: models.RiskLow, Label: "Low Risk", Color: "#3fb950", Score: score}
	case score < 1.0:
		return models.RiskLevel{Level: models.RiskMedium, Label: "Medium Risk", Color: "#f0883e", Score: score}
	case score < 1.5:
		return models.RiskLevel{Level: models.RiskHigh, Label: "High Risk", Color: "#f85149", Score: score}
	default:
		return models.RiskLevel{Level: models.RiskExtreme, Label: "Extreme Risk", Color: "#da3633", Score: score}
	}
}

// Format kinds accepted by FormatMetric.
const (
	FormatPercentage = "percentage"
	FormatRatio      = "ratio"
	FormatNumber     = "number"
)

// FormatMetric renders a metric for display and CSV export.
func FormatMetric(value float64, kind string) string {
	switch kind {
	case FormatPercentage:
		sign := ""
		if value >= 0 {
			sign = "+"
		}
		return fmt.Sprintf("%s%.2f%%", sign, value)
	case FormatRatio:
		return fmt.Sprintf("%.2f", value)
	case FormatNumber:
		return fmt.Sprintf("%.0f", value)
	default:
		return fmt.Sprint(value)
	}
}

func sanitize(m models.RiskMetrics) models.RiskMetrics {
	m.VaR95 = features.Finite(m.VaR95)
	m.VaR99 = features.Finite(m.VaR99)
	m.CVaR95 = features.Finite(m.CVaR95)
	m.SharpeRatio = features.Finite(m.SharpeRatio)
	m.SortinoRatio = features.Finite(m.SortinoRatio)
	m.Volatility = features.Finite(m.Volatility)
	m.DailyVolatility = features.Finite(m.DailyVolatility)
	m.MaxDrawdown = features.Finite(m.MaxDrawdown)
	m.CurrentDrawdown = features.Finite(m.CurrentDrawdown)
	m.TotalReturn = features.Finite(m.TotalReturn)
	m.AvgReturn = features.Finite(m.AvgReturn)
	m.WinRate = features.Finite(m.WinRate)
	return m
}
