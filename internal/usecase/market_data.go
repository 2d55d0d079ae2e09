package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketMonitor/internal/domain/models"
	drepo "MarketMonitor/internal/domain/repository"
	"MarketMonitor/pkg/cache"
	"MarketMonitor/pkg/logger"
	"MarketMonitor/pkg/util"
)

var availability = models.Availability{
	Exchanges: []string{"binance", "gateio", "htx", "kucoin", "okx"},
	Symbols: map[string][]string{
		"binance": {"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT"},
		"gateio":  {"BTCUSDT", "ETHUSDT", "SOLUSDT"},
		"htx":     {"BTCUSDT", "ETHUSDT"},
		"kucoin":  {"BTCUSDT", "ETHUSDT", "SOLUSDT"},
		"okx":     {"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT"},
	},
}

// MarketDataUseCase serves merged market views, degrading to synthetic data.
type MarketDataUseCase struct {
	source   drepo.MarketDataSource
	cache    cache.Service
	ttl      time.Duration
	fallback *FallbackGenerator
	metrics  drepo.Metrics
	log      *logger.Logger
	now      func() time.Time
}

func NewMarketDataUseCase(
	source drepo.MarketDataSource,
	c cache.Service,
	ttl time.Duration,
	fallback *FallbackGenerator,
	metrics drepo.Metrics,
	log *logger.Logger,
) *MarketDataUseCase {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MarketDataUseCase{
		source:   source,
		cache:    c,
		ttl:      ttl,
		fallback: fallback,
		metrics:  metrics,
		log:      log.With("market_data"),
		now:      time.Now,
	}
}

func marketCacheKey(q models.MarketQuery) string {
	return cache.Key("market", q.Exchange, q.Symbol, q.Interval)
}

// Get never fails: upstream errors produce a fallback view, which is not cached.
func (uc *MarketDataUseCase) Get(ctx context.Context, q models.MarketQuery) *models.MarketData {
	key := marketCacheKey(q)

	var cached models.MarketData
	if err := uc.cache.Get(ctx, key, &cached); err == nil {
		uc.metrics.RecordCache("market", true)
		return &cached
	}
	uc.metrics.RecordCache("market", false)

	data, err := uc.fetch(ctx, q)
	if err != nil {
		uc.metrics.RecordError("market_data_upstream")
		uc.log.Warn("upstream unavailable, serving fallback",
			logger.String("market", q.Key()),
			logger.Error(err),
		)
		return uc.fallback.Generate(q, uc.now())
	}

	if err := uc.cache.Set(ctx, key, data, uc.ttl); err != nil {
		uc.log.Warn("market cache write failed", logger.String("key", key), logger.Error(err))
	}
	return data
}

// Invalidate drops the cached view so the next Get refetches.
func (uc *MarketDataUseCase) Invalidate(ctx context.Context, q models.MarketQuery) error {
	return uc.cache.Delete(ctx, marketCacheKey(q))
}

func (uc *MarketDataUseCase) Available() models.Availability {
	return availability
}

func (uc *MarketDataUseCase) fetch(ctx context.Context, q models.MarketQuery) (*models.MarketData, error) {
	var (
		wg       sync.WaitGroup
		ob       *models.OrderbookSummaryResult
		tr       *models.TradesSummaryResult
		obErr    error
		tradeErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ob, obErr = uc.source.OrderbookSummary(ctx, q)
	}()
	go func() {
		defer wg.Done()
		tr, tradeErr = uc.source.TradesSummary(ctx, q)
	}()
	wg.Wait()

	if obErr != nil {
		return nil, fmt.Errorf("orderbook summary: %w", obErr)
	}
	if tradeErr != nil {
		return nil, fmt.Errorf("trades summary: %w", tradeErr)
	}
	return Merge(q, ob, tr, uc.now()), nil
}

// Merge combines the two upstream summaries into one market view.
func Merge(q models.MarketQuery, ob *models.OrderbookSummaryResult, tr *models.TradesSummaryResult, now time.Time) *models.MarketData {
	if ob == nil {
		ob = &models.OrderbookSummaryResult{}
	}
	if tr == nil {
		tr = &models.TradesSummaryResult{}
	}

	anomalies := make([]models.Anomaly, 0, len(ob.Anomalies)+len(tr.Anomalies))
	anomalies = append(anomalies, ob.Anomalies...)
	anomalies = append(anomalies, tr.Anomalies...)

	orderbook := ob.Data
	if orderbook == nil {
		orderbook = []models.OrderbookInterval{}
	}
	trades := tr.Data
	if trades == nil {
		trades = []models.TradeInterval{}
	}

	return &models.MarketData{
		Exchange:         q.Exchange,
		Symbol:           q.Symbol,
		Interval:         q.Interval,
		LastUpdate:       util.FormatISO(now),
		DataSource:       models.DataSourceUpstream,
		OrderbookSummary: orderbook,
		TradesSummary:    trades,
		Anomalies:        anomalies,
		Stats:            buildStats(ob.Summary, tr.Summary, trades),
	}
}

func buildStats(obs *models.OrderbookSummaryStats, ts *models.TradesSummaryStats, trades []models.TradeInterval) models.MarketStats {
	var st models.MarketStats
	st.Volume.BuyRatio = 0.5

	if ts == nil {
		ts = &models.TradesSummaryStats{}
	}
	if p := ts.Price; p != nil {
		st.Price = models.PriceStats{
			Current:   p.Close,
			Open:      p.Open,
			High:      p.High,
			Low:       p.Low,
			Change:    p.Change,
			ChangePct: p.ChangePct,
		}
	}
	if n := len(trades); n > 0 && trades[n-1].OHLC.Close != 0 {
		st.Price.Current = trades[n-1].OHLC.Close
	}
	if v := ts.Volume; v != nil {
		st.Volume.Total = v.Total
		st.Volume.Notional = v.TotalNotional
		if v.BuyRatio != nil {
			st.Volume.BuyRatio = *v.BuyRatio
		}
	}
	if t := ts.Trades; t != nil {
		st.Trades = models.TradeStats{Count: t.TotalCount, AvgSize: t.AvgSize}
	}

	if obs == nil {
		return st
	}
	if s := obs.SpreadBps; s != nil {
		st.Spread = models.SpreadStats{Mean: s.Mean, Max: s.Max}
	}
	if im := obs.Imbalance; im != nil {
		st.Imbalance = models.ImbalanceStats{
			Mean:         im.Mean,
			BuyPressure:  im.BuyPressurePct,
			SellPressure: im.SellPressurePct,
		}
	}
	return st
}
