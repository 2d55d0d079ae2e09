package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"MarketMonitor/internal/domain/models"
	"MarketMonitor/internal/services/microstructure"
	"MarketMonitor/internal/services/regime"
	"MarketMonitor/internal/services/risk"
	"MarketMonitor/pkg/logger"
	"MarketMonitor/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLoader struct {
	data *models.MarketData
}

func (l staticLoader) Get(_ context.Context, q models.MarketQuery) *models.MarketData {
	d := *l.data
	d.Exchange, d.Symbol, d.Interval = q.Exchange, q.Symbol, q.Interval
	return &d
}

type captureProcessor struct {
	mu    sync.Mutex
	snaps []*models.AnalyticsSnapshot
	err   error
}

func (p *captureProcessor) Process(_ context.Context, s *models.AnalyticsSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, s)
	return p.err
}

func marketFixture(source string) *models.MarketData {
	trades := trendingTrades(40, 100, 0.5)
	return &models.MarketData{
		DataSource:       source,
		TradesSummary:    trades,
		OrderbookSummary: flatOrderbook(40, 110),
		Stats:            models.MarketStats{Price: models.PriceStats{Current: trades[len(trades)-1].OHLC.Close}},
	}
}

func newAnalyticsUC(data *models.MarketData, snaps SnapshotProcessor, m *metrics.Recorder) *AnalyticsUseCase {
	return NewAnalyticsUseCase(
		staticLoader{data: data},
		microstructure.NewEngine(),
		regime.NewClassifier(),
		risk.NewEngine(),
		snaps,
		m,
		logger.Nop(),
	)
}

func TestReportMatchesIndividualEngines(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewWithRegistry(reg)
	proc := &captureProcessor{}
	uc := newAnalyticsUC(marketFixture(models.DataSourceUpstream), proc, rec)
	ctx := context.Background()

	report := uc.Report(ctx, btc)

	assert.Equal(t, "binance", report.Exchange)
	assert.Equal(t, models.DataSourceUpstream, report.DataSource)
	assert.Equal(t, uc.Metrics(ctx, btc), report.Metrics)
	assert.Equal(t, uc.Regime(ctx, btc).RegimeAnalysis, report.Regime)
	assert.Equal(t, uc.Risk(ctx, btc), report.Risk)
	assert.Equal(t, uc.Drawdown(ctx, btc), report.Drawdown)
	assert.Equal(t, uc.RegimeTimeline(ctx, models.TimelineQuery{MarketQuery: btc}), report.Timeline)
	assert.Equal(t, report.Regime.Current.Type, report.Display.Type)

	require.Len(t, proc.snaps, 1)
	snap := proc.snaps[0]
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "binance:BTCUSDT", snap.MarketKey())
	assert.Equal(t, report.Metrics.VPIN.Current.Value, snap.VPIN)
	assert.Equal(t, report.Risk.Level.Level, snap.RiskLevel)
	assert.Equal(t, 119.5, snap.LastPrice)

	n, err := testutil.GatherAndCount(reg, "mmon_market_last_price", "mmon_engine_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestReportSkipsFallbackSnapshots(t *testing.T) {
	proc := &captureProcessor{}
	uc := newAnalyticsUC(marketFixture(models.DataSourceFallback), proc, metrics.NewWithRegistry(prometheus.NewRegistry()))

	report := uc.Report(context.Background(), btc)
	assert.Equal(t, models.DataSourceFallback, report.DataSource)
	assert.Empty(t, proc.snaps)
}

func TestReportSurvivesSnapshotFailure(t *testing.T) {
	proc := &captureProcessor{err: errors.New("kafka down")}
	uc := newAnalyticsUC(marketFixture(models.DataSourceUpstream), proc, metrics.NewWithRegistry(prometheus.NewRegistry()))

	report := uc.Report(context.Background(), btc)
	require.NotNil(t, report)
	assert.Len(t, proc.snaps, 1)
}

func TestTimelineLimit(t *testing.T) {
	uc := newAnalyticsUC(marketFixture(models.DataSourceUpstream), nil, metrics.NewWithRegistry(prometheus.NewRegistry()))
	points := uc.RegimeTimeline(context.Background(), models.TimelineQuery{MarketQuery: btc, Limit: 5})
	require.Len(t, points, 5)
	assert.Equal(t, "2025-01-01T00:39:00Z", points[4].Timestamp)
}

func TestAnalyzeEmptyInput(t *testing.T) {
	uc := newAnalyticsUC(marketFixture(models.DataSourceUpstream), nil, metrics.NewWithRegistry(prometheus.NewRegistry()))
	report := uc.Analyze(models.AnalyzeRequest{})

	assert.Equal(t, models.RegimeUnknown, report.Regime.Current.Type)
	assert.Equal(t, models.RiskLow, report.Risk.Level.Level)
	assert.Empty(t, report.Drawdown)
	assert.Empty(t, report.Timeline)
}
