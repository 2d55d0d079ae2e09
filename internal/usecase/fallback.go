package usecase

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"MarketMonitor/internal/domain/models"
	"MarketMonitor/pkg/util"
)

const fallbackBars = 60

var basePrices = map[string]float64{
	"BTCUSDT": 93000,
	"ETHUSDT": 3450,
	"SOLUSDT": 190,
	"BNBUSDT": 710,
}

// FallbackGenerator synthesizes a plausible market when the upstream is down.
type FallbackGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewFallbackGenerator(seed int64) *FallbackGenerator {
	return &FallbackGenerator{rnd: rand.New(rand.NewSource(seed))}
}

func basePrice(symbol string) float64 {
	if p, ok := basePrices[symbol]; ok {
		return p
	}
	return 100
}

func volumeScale(symbol string) float64 {
	switch symbol {
	case "BTCUSDT":
		return 1
	case "ETHUSDT":
		return 10
	default:
		return 100
	}
}

// Generate builds fallbackBars one-minute bars ending at now.
func (g *FallbackGenerator) Generate(q models.MarketQuery, now time.Time) *models.MarketData {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.rnd.Float64

	base := basePrice(q.Symbol)
	current := base + math.Sin(float64(now.UnixMilli())/10000)*(base*0.001)
	change := (r() - 0.5) * (base * 0.01)

	orderbook := make([]models.OrderbookInterval, 0, fallbackBars)
	trades := make([]models.TradeInterval, 0, fallbackBars)
	var totalVolume, buyVolume float64

	for i := fallbackBars - 1; i >= 0; i-- {
		ts := util.FormatISO(now.Add(-time.Duration(i) * time.Minute))
		minutePrice := base + math.Sin(float64(fallbackBars-1-i)/10)*(base*0.005)
		variation := (r() - 0.5) * (base * 0.003)

		orderbook = append(orderbook, models.OrderbookInterval{
			Timestamp: ts,
			MidPrice: models.OHLC{
				Open:  minutePrice,
				Close: minutePrice + variation,
				High:  minutePrice + math.Abs(variation) + r()*(base*0.001),
				Low:   minutePrice - math.Abs(variation) - r()*(base*0.001),
			},
			SpreadBps:     models.SpreadBps{Mean: r() * 0.02, Max: r() * 0.5},
			AvgBidDepth:   2 + r()*4,
			AvgAskDepth:   2 + r()*4,
			AvgImbalance:  (r() - 0.5) * 0.8,
			SnapshotCount: 600,
		})

		volume := (5 + r()*50) * volumeScale(q.Symbol)
		buyRatio := 0.3 + r()*0.4
		trades = append(trades, models.TradeInterval{
			Timestamp: ts,
			OHLC: models.OHLC{
				Open:  minutePrice,
				High:  minutePrice + math.Abs(variation) + r()*(base*0.001),
				Low:   minutePrice - math.Abs(variation) - r()*(base*0.001),
				Close: minutePrice + variation,
			},
			Volume:     volume,
			Notional:   volume * minutePrice,
			VWAP:       minutePrice,
			TradeCount: 1000 + g.rnd.Intn(5000),
			BuySell: &models.BuySell{
				BuyVolume:  volume * buyRatio,
				SellVolume: volume * (1 - buyRatio),
				BuyRatio:   buyRatio,
				NetVolume:  volume * (buyRatio - 0.5) * 2,
			},
		})
		totalVolume += volume
		buyVolume += volume * buyRatio
	}

	return &models.MarketData{
		Exchange:         q.Exchange,
		Symbol:           q.Symbol,
		Interval:         q.Interval,
		LastUpdate:       util.FormatISO(now),
		DataSource:       models.DataSourceFallback,
		OrderbookSummary: orderbook,
		TradesSummary:    trades,
		Anomalies:        []models.Anomaly{},
		Stats: models.MarketStats{
			Price: models.PriceStats{
				Current:   current,
				Open:      base,
				High:      current * 1.02,
				Low:       current * 0.98,
				Change:    change,
				ChangePct: change / base * 100,
			},
			Volume: models.VolumeStats{
				Total:    totalVolume,
				Notional: totalVolume * current,
				BuyRatio: buyVolume / totalVolume,
			},
			Spread:    models.SpreadStats{Mean: 0.01, Max: 1.5},
			Imbalance: models.ImbalanceStats{Mean: 0, BuyPressure: 40, SellPressure: 45},
			Trades:    models.TradeStats{Count: 100000, AvgSize: 0.005},
		},
	}
}
