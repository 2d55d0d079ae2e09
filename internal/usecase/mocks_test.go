package usecase

import (
	"context"
	"encoding/json"
	"time"

	"MarketMonitor/internal/domain/models"

	"github.com/stretchr/testify/mock"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) OrderbookSummary(ctx context.Context, q models.MarketQuery) (*models.OrderbookSummaryResult, error) {
	args := m.Called(ctx, q)
	res, _ := args.Get(0).(*models.OrderbookSummaryResult)
	return res, args.Error(1)
}

func (m *mockSource) TradesSummary(ctx context.Context, q models.MarketQuery) (*models.TradesSummaryResult, error) {
	args := m.Called(ctx, q)
	res, _ := args.Get(0).(*models.TradesSummaryResult)
	return res, args.Error(1)
}

func (m *mockSource) RecentPnl(ctx context.Context, q models.RecentPnlQuery) (json.RawMessage, error) {
	args := m.Called(ctx, q)
	res, _ := args.Get(0).(json.RawMessage)
	return res, args.Error(1)
}

func (m *mockSource) InventoryPnl(ctx context.Context, q models.InventoryPnlQuery) (json.RawMessage, error) {
	args := m.Called(ctx, q)
	res, _ := args.Get(0).(json.RawMessage)
	return res, args.Error(1)
}

func (m *mockSource) Markout(ctx context.Context, q models.MarkoutQuery) (json.RawMessage, error) {
	args := m.Called(ctx, q)
	res, _ := args.Get(0).(json.RawMessage)
	return res, args.Error(1)
}

func (m *mockSource) Agents(ctx context.Context, isLive bool) (*models.UpstreamAgentsResult, error) {
	args := m.Called(ctx, isLive)
	res, _ := args.Get(0).(*models.UpstreamAgentsResult)
	return res, args.Error(1)
}

func (m *mockSource) MultiPairPnl(ctx context.Context, exchange string, pairs []string, from, to time.Time) (*models.UpstreamMultiPairResult, error) {
	args := m.Called(ctx, exchange, pairs, from, to)
	res, _ := args.Get(0).(*models.UpstreamMultiPairResult)
	return res, args.Error(1)
}

func (m *mockSource) Tools(ctx context.Context) (json.RawMessage, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(json.RawMessage)
	return res, args.Error(1)
}

func ptr(v float64) *float64 { return &v }

// trendingTrades builds n bars with closes rising by step from start.
func trendingTrades(n int, start, step float64) []models.TradeInterval {
	out := make([]models.TradeInterval, n)
	for i := range out {
		c := start + float64(i)*step
		out[i] = models.TradeInterval{
			Timestamp: time.Date(2025, 1, 1, 0, i, 0, 0, time.UTC).Format(time.RFC3339),
			OHLC:      models.OHLC{Open: c - step/2, High: c + 1, Low: c - 1, Close: c},
			Volume:    10,
			Notional:  10 * c,
			VWAP:      c,
			BuySell:   &models.BuySell{BuyVolume: 6, SellVolume: 4, BuyRatio: 0.6, NetVolume: 2},
		}
	}
	return out
}

func flatOrderbook(n int, mid float64) []models.OrderbookInterval {
	out := make([]models.OrderbookInterval, n)
	for i := range out {
		out[i] = models.OrderbookInterval{
			Timestamp:    time.Date(2025, 1, 1, 0, i, 0, 0, time.UTC).Format(time.RFC3339),
			MidPrice:     models.OHLC{Open: mid, High: mid, Low: mid, Close: mid},
			SpreadBps:    models.SpreadBps{Mean: 1, Min: 0.5, Max: 2},
			AvgBidDepth:  5,
			AvgAskDepth:  5,
			AvgImbalance: 0.1,
		}
	}
	return out
}
