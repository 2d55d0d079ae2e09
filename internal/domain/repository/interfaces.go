package repository

import (
	"context"
	"encoding/json"
	"time"

	"MarketMonitor/internal/domain/models"
)

// MarketDataSource is the upstream analytics API.
type MarketDataSource interface {
	OrderbookSummary(ctx context.Context, q models.MarketQuery) (*models.OrderbookSummaryResult, error)
	TradesSummary(ctx context.Context, q models.MarketQuery) (*models.TradesSummaryResult, error)
	RecentPnl(ctx context.Context, q models.RecentPnlQuery) (json.RawMessage, error)
	InventoryPnl(ctx context.Context, q models.InventoryPnlQuery) (json.RawMessage, error)
	Markout(ctx context.Context, q models.MarkoutQuery) (json.RawMessage, error)
	Agents(ctx context.Context, isLive bool) (*models.UpstreamAgentsResult, error)
	MultiPairPnl(ctx context.Context, exchange string, pairs []string, from, to time.Time) (*models.UpstreamMultiPairResult, error)
	Tools(ctx context.Context) (json.RawMessage, error)
}

// SnapshotPublisher ships snapshots to a message bus.
type SnapshotPublisher interface {
	Publish(ctx context.Context, s *models.AnalyticsSnapshot) error
	PublishBatch(ctx context.Context, snaps []*models.AnalyticsSnapshot) error
	Close() error
}

// SnapshotStorage persists snapshots for history queries.
type SnapshotStorage interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, s *models.AnalyticsSnapshot) error
	StoreBatch(ctx context.Context, snaps []*models.AnalyticsSnapshot) error
	Query(ctx context.Context, exchange, symbol string, from, to time.Time, limit int) ([]*models.AnalyticsSnapshot, error)
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordUpstreamCall(tool string, seconds float64, err error)
	RecordCache(name string, hit bool)
	RecordEngine(engine string, seconds float64)
	RecordLatency(operation string, seconds float64)
	RecordSnapshotSent(backend, market string)
	RecordError(kind string)
	RecordMarketState(market, regime string, confidence, riskScore, lastPrice float64)
}
