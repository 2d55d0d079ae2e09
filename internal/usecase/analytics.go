package usecase

import (
	"context"
	"sync"
	"time"

	"MarketMonitor/internal/domain/models"
	drepo "MarketMonitor/internal/domain/repository"
	dsvc "MarketMonitor/internal/domain/service"
	"MarketMonitor/pkg/logger"

	"github.com/google/uuid"
)

// MarketLoader yields market data for a query. MarketDataUseCase satisfies it.
type MarketLoader interface {
	Get(ctx context.Context, q models.MarketQuery) *models.MarketData
}

// SnapshotProcessor accepts snapshots for persistence or publishing.
type SnapshotProcessor interface {
	Process(ctx context.Context, s *models.AnalyticsSnapshot) error
}

// AnalyticsUseCase runs the analytics engines over market data.
type AnalyticsUseCase struct {
	market  MarketLoader
	micro   dsvc.MicrostructureEngine
	regime  dsvc.RegimeClassifier
	risk    dsvc.RiskEngine
	snaps   SnapshotProcessor
	metrics drepo.Metrics
	log     *logger.Logger
	now     func() time.Time
}

func NewAnalyticsUseCase(
	market MarketLoader,
	micro dsvc.MicrostructureEngine,
	regime dsvc.RegimeClassifier,
	risk dsvc.RiskEngine,
	snaps SnapshotProcessor,
	metrics drepo.Metrics,
	log *logger.Logger,
) *AnalyticsUseCase {
	return &AnalyticsUseCase{
		market:  market,
		micro:   micro,
		regime:  regime,
		risk:    risk,
		snaps:   snaps,
		metrics: metrics,
		log:     log.With("analytics"),
		now:     time.Now,
	}
}

func (uc *AnalyticsUseCase) timed(engine string, fn func()) {
	start := time.Now()
	fn()
	uc.metrics.RecordEngine(engine, time.Since(start).Seconds())
}

func (uc *AnalyticsUseCase) Metrics(ctx context.Context, q models.MarketQuery) models.TradeMetrics {
	data := uc.market.Get(ctx, q)
	var out models.TradeMetrics
	uc.timed("microstructure", func() { out = uc.micro.Compute(data.TradesSummary, data.OrderbookSummary) })
	return out
}

func (uc *AnalyticsUseCase) Regime(ctx context.Context, q models.MarketQuery) models.RegimeView {
	data := uc.market.Get(ctx, q)
	var analysis models.RegimeAnalysis
	uc.timed("regime", func() { analysis = uc.regime.Classify(data.TradesSummary, data.OrderbookSummary) })
	return models.RegimeView{RegimeAnalysis: analysis, Display: uc.regime.Display(analysis.Current.Type)}
}

func (uc *AnalyticsUseCase) RegimeTimeline(ctx context.Context, q models.TimelineQuery) []models.RegimeTimelinePoint {
	data := uc.market.Get(ctx, q.MarketQuery)
	var out []models.RegimeTimelinePoint
	uc.timed("regime_timeline", func() { out = uc.regime.Timeline(data.TradesSummary, data.OrderbookSummary, q.Limit) })
	return out
}

func (uc *AnalyticsUseCase) Risk(ctx context.Context, q models.MarketQuery) models.RiskAnalysis {
	data := uc.market.Get(ctx, q)
	var m models.RiskMetrics
	uc.timed("risk", func() { m = uc.risk.Compute(data.TradesSummary) })
	return models.RiskAnalysis{Metrics: m, Level: uc.risk.Level(m)}
}

func (uc *AnalyticsUseCase) Drawdown(ctx context.Context, q models.MarketQuery) []models.DrawdownPoint {
	data := uc.market.Get(ctx, q)
	var out []models.DrawdownPoint
	uc.timed("drawdown", func() { out = uc.risk.Drawdown(data.TradesSummary) })
	return out
}

// Report runs every engine over one market and hands the flattened snapshot
// to the snapshot processor. Snapshot failures are logged, not returned.
func (uc *AnalyticsUseCase) Report(ctx context.Context, q models.MarketQuery) *models.AnalyticsReport {
	data := uc.market.Get(ctx, q)

	report := uc.compute(data.TradesSummary, data.OrderbookSummary)
	report.Exchange = q.Exchange
	report.Symbol = q.Symbol
	report.Interval = q.Interval
	report.DataSource = data.DataSource

	snap := NewSnapshot(report, data.Stats.Price.Current)
	uc.metrics.RecordMarketState(snap.MarketKey(), string(snap.Regime), snap.Confidence, snap.RiskScore, snap.LastPrice)

	// synthetic data is not worth keeping
	if uc.snaps != nil && data.DataSource != models.DataSourceFallback {
		if err := uc.snaps.Process(ctx, snap); err != nil {
			uc.log.Warn("snapshot not recorded",
				logger.String("market", snap.MarketKey()),
				logger.Error(err),
			)
		}
	}
	return report
}

// Analyze runs every engine over caller-supplied series.
func (uc *AnalyticsUseCase) Analyze(req models.AnalyzeRequest) *models.AnalyticsReport {
	return uc.compute(req.Trades, req.Orderbook)
}

func (uc *AnalyticsUseCase) compute(trades []models.TradeInterval, orderbook []models.OrderbookInterval) *models.AnalyticsReport {
	report := &models.AnalyticsReport{ComputedAt: uc.now().UTC()}

	var wg sync.WaitGroup
	run := func(engine string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			uc.timed(engine, fn)
		}()
	}

	run("microstructure", func() { report.Metrics = uc.micro.Compute(trades, orderbook) })
	run("regime", func() { report.Regime = uc.regime.Classify(trades, orderbook) })
	run("regime_timeline", func() { report.Timeline = uc.regime.Timeline(trades, orderbook, 0) })
	run("risk", func() {
		m := uc.risk.Compute(trades)
		report.Risk = models.RiskAnalysis{Metrics: m, Level: uc.risk.Level(m)}
	})
	run("drawdown", func() { report.Drawdown = uc.risk.Drawdown(trades) })
	wg.Wait()

	report.Display = uc.regime.Display(report.Regime.Current.Type)
	return report
}

// NewSnapshot flattens a report into its persisted form.
func NewSnapshot(r *models.AnalyticsReport, lastPrice float64) *models.AnalyticsSnapshot {
	m := r.Metrics
	risk := r.Risk.Metrics
	return &models.AnalyticsSnapshot{
		ID:              uuid.NewString(),
		Exchange:        r.Exchange,
		Symbol:          r.Symbol,
		Interval:        r.Interval,
		DataSource:      r.DataSource,
		ComputedAt:      r.ComputedAt,
		Regime:          r.Regime.Current.Type,
		Confidence:      r.Regime.Current.Confidence,
		RiskLevel:       r.Risk.Level.Level,
		RiskScore:       r.Risk.Level.Score,
		LastPrice:       lastPrice,
		DVR:             m.DVR.Current.Value,
		TII:             m.TII.Current.Value,
		Lambda:          m.Lambda.Current.Value,
		Amihud:          m.Amihud.Current.Value,
		FPI:             m.FPI.Current.Value,
		VPIN:            m.VPIN.Current.Value,
		WAS:             m.WAS.Current.Value,
		LSI:             m.LSI.Current.Value,
		VaR95:           risk.VaR95,
		CVaR95:          risk.CVaR95,
		Volatility:      risk.Volatility,
		MaxDrawdown:     risk.MaxDrawdown,
		CurrentDrawdown: risk.CurrentDrawdown,
		SharpeRatio:     risk.SharpeRatio,
	}
}
