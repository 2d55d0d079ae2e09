package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MarketMonitor/internal/domain/models"
	"MarketMonitor/internal/service/latency"
	"MarketMonitor/internal/services/microstructure"
	"MarketMonitor/internal/services/regime"
	"MarketMonitor/internal/services/risk"
	"MarketMonitor/internal/usecase"
	"MarketMonitor/pkg/cache"
	xhttp "MarketMonitor/pkg/http"
	"MarketMonitor/pkg/logger"
	"MarketMonitor/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource serves fixed summaries; err fails every call.
type stubSource struct {
	err    error
	trades []models.TradeInterval
}

func (s *stubSource) OrderbookSummary(context.Context, models.MarketQuery) (*models.OrderbookSummaryResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.OrderbookSummaryResult{
		Data:      []models.OrderbookInterval{{Timestamp: "2025-01-01T00:00:00Z", MidPrice: models.OHLC{Open: 100, High: 101, Low: 99, Close: 100.5}}},
		Anomalies: []models.Anomaly{{Timestamp: "2025-01-01T00:00:00Z", Type: "spread", Value: 9, ZScore: 3.1}},
	}, nil
}

func (s *stubSource) TradesSummary(context.Context, models.MarketQuery) (*models.TradesSummaryResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.TradesSummaryResult{Data: s.trades}, nil
}

func (s *stubSource) RecentPnl(context.Context, models.RecentPnlQuery) (json.RawMessage, error) {
	return json.RawMessage(`{"total_pnl":1}`), s.err
}

func (s *stubSource) InventoryPnl(context.Context, models.InventoryPnlQuery) (json.RawMessage, error) {
	return json.RawMessage(`[]`), s.err
}

func (s *stubSource) Markout(context.Context, models.MarkoutQuery) (json.RawMessage, error) {
	return json.RawMessage(`[]`), s.err
}

func (s *stubSource) Agents(context.Context, bool) (*models.UpstreamAgentsResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.UpstreamAgentsResult{}, nil
}

func (s *stubSource) MultiPairPnl(context.Context, string, []string, time.Time, time.Time) (*models.UpstreamMultiPairResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.UpstreamMultiPairResult{}, nil
}

func (s *stubSource) Tools(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`["query_recent_pnl"]`), s.err
}

func sampleTrades(n int) []models.TradeInterval {
	out := make([]models.TradeInterval, n)
	for i := range out {
		c := 100 + float64(i)
		out[i] = models.TradeInterval{
			Timestamp: time.Date(2025, 1, 1, 0, i, 0, 0, time.UTC).Format(time.RFC3339),
			OHLC:      models.OHLC{Open: c - 0.5, High: c + 1, Low: c - 1, Close: c},
			Volume:    10,
			Notional:  10 * c,
			VWAP:      c,
		}
	}
	return out
}

type fixture struct {
	server  *xhttp.Server
	tracker *latency.Tracker
}

func newFixture(t *testing.T, src *stubSource) *fixture {
	t.Helper()
	log := logger.Nop()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })

	market := usecase.NewMarketDataUseCase(src, mc, time.Minute, usecase.NewFallbackGenerator(1), metrics.Nop{}, log)
	analytics := usecase.NewAnalyticsUseCase(market, microstructure.NewEngine(), regime.NewClassifier(), risk.NewEngine(), nil, metrics.Nop{}, log)
	pnl := usecase.NewPnlUseCase(src, mc, time.Minute, log)
	tracker := latency.NewTracker(10)

	handlers := xhttp.Handlers{
		NewSystemHandler("http://upstream", tracker, HealthCheck{Name: "clickhouse", Check: func(context.Context) error { return errors.New("down") }}),
		NewMarketHandler(market, log),
		NewPnlHandler(pnl, log),
		NewAnalyticsHandler(analytics, usecase.NewHistoryUseCase(nil), nil, log),
	}
	return &fixture{server: xhttp.NewServer(handlers, log), tracker: tracker}
}

func (f *fixture) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, xhttp.APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Echo().ServeHTTP(rec, req)

	var res xhttp.APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	}
	return rec, res
}

func TestHealthReportsDegradedDependency(t *testing.T) {
	f := newFixture(t, &stubSource{})
	rec, res := f.do(t, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	data := res.Data.(map[string]interface{})
	assert.Equal(t, "degraded", data["status"])
	assert.Equal(t, "http://upstream", data["mcpApiBase"])
	assert.Equal(t, map[string]interface{}{"clickhouse": "down"}, data["checks"])
}

func TestMarketDataDefaultsAndValidation(t *testing.T) {
	f := newFixture(t, &stubSource{trades: sampleTrades(3)})

	rec, res := f.do(t, http.MethodGet, "/api/market-data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := res.Data.(map[string]interface{})
	assert.Equal(t, "binance", data["exchange"])
	assert.Equal(t, "BTCUSDT", data["symbol"])
	assert.Equal(t, models.DataSourceUpstream, data["dataSource"])

	rec, _ = f.do(t, http.MethodGet, "/api/market-data?interval=2h", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarketDataFallsBack(t *testing.T) {
	f := newFixture(t, &stubSource{err: errors.New("refused")})
	rec, res := f.do(t, http.MethodGet, "/api/market-data?symbol=ETHUSDT", "")

	require.Equal(t, http.StatusOK, rec.Code)
	data := res.Data.(map[string]interface{})
	assert.Equal(t, models.DataSourceFallback, data["dataSource"])
	assert.Len(t, data["tradesSummary"], 60)
}

func TestPnlUpstreamFailureIsBadGateway(t *testing.T) {
	f := newFixture(t, &stubSource{err: errors.New("refused")})

	for _, path := range []string{"/api/pnl/recent", "/api/pnl/inventory", "/api/markout", "/api/agents", "/api/mcp-tools"} {
		rec, res := f.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadGateway, rec.Code, path)
		assert.Equal(t, http.StatusBadGateway, res.Status, path)
	}
}

func TestMultiPairRequiresPairs(t *testing.T) {
	f := newFixture(t, &stubSource{})

	rec, _ := f.do(t, http.MethodGet, "/api/pnl/multi-pair", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/pnl/multi-pair?pairs=gate.io", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/pnl/multi-pair?pairs=gate.io:KYO-USDT-SPOT", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyticsRoutes(t *testing.T) {
	f := newFixture(t, &stubSource{trades: sampleTrades(40)})

	for _, path := range []string{
		"/api/analytics/metrics",
		"/api/analytics/regime",
		"/api/analytics/regime/timeline?limit=3",
		"/api/analytics/risk",
		"/api/analytics/risk/drawdown",
		"/api/analytics/report",
	} {
		rec, res := f.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotNil(t, res.Data, path)
	}

	_, res := f.do(t, http.MethodGet, "/api/analytics/regime/timeline?limit=3", "")
	assert.Len(t, res.Data, 3)
}

func TestAnalyzeBody(t *testing.T) {
	f := newFixture(t, &stubSource{})
	body, err := json.Marshal(models.AnalyzeRequest{Trades: sampleTrades(30)})
	require.NoError(t, err)

	rec, res := f.do(t, http.MethodPost, "/api/analytics/analyze", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	data := res.Data.(map[string]interface{})
	assert.Contains(t, data, "metrics")
	assert.Contains(t, data, "risk")
	assert.Len(t, data["drawdown"], 30)
}

func TestHistoryDisabledIsUnavailable(t *testing.T) {
	f := newFixture(t, &stubSource{})
	rec, res := f.do(t, http.MethodGet, "/api/analytics/history", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, http.StatusServiceUnavailable, res.Status)
}

func TestExportTradesCSV(t *testing.T) {
	f := newFixture(t, &stubSource{trades: sampleTrades(2)})
	rec, _ := f.do(t, http.MethodGet, "/api/export/trades.csv?exchange=okx&symbol=SOLUSDT", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	disposition := rec.Header().Get("Content-Disposition")
	assert.True(t, strings.HasPrefix(disposition, `attachment; filename="okx_SOLUSDT_`), disposition)
	assert.True(t, strings.HasSuffix(disposition, `_trades.csv"`), disposition)

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Timestamp,Open,High,Low,Close"))
}

func TestExportAnomaliesCSV(t *testing.T) {
	f := newFixture(t, &stubSource{trades: sampleTrades(2)})
	rec, _ := f.do(t, http.MethodGet, "/api/export/anomalies.csv", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Timestamp,Type,Value,Z-Score\n2025-01-01T00:00:00Z,spread,9,3.1\n", rec.Body.String())
}

func TestLatencyStats(t *testing.T) {
	f := newFixture(t, &stubSource{})
	f.tracker.Record("/api/market-data", 20*time.Millisecond, false)

	rec, res := f.do(t, http.MethodGet, "/api/latency", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, res.Data, 1)

	rec, _ = f.do(t, http.MethodGet, "/api/latency?route=/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
