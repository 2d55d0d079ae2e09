package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MarketMonitor/internal/domain/models"
	domrepo "MarketMonitor/internal/domain/repository"
	"MarketMonitor/pkg/logger"
)

const DefaultSnapshotTable = "analytics_snapshots"

// insert chunk for StoreBatch
const chunkSize = 1000

var snapshotColumns = []string{
	"id", "exchange", "symbol", "interval", "data_source", "computed_at",
	"regime", "confidence", "risk_level", "risk_score", "last_price",
	"dvr", "tii", "lambda", "amihud", "fpi", "vpin", "was", "lsi",
	"var95", "cvar95", "volatility", "max_drawdown", "current_drawdown", "sharpe_ratio",
}

// SnapshotSchema returns the DDL for the snapshot table.
func SnapshotSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id               String,
            exchange         LowCardinality(String),
            symbol           LowCardinality(String),
            interval         LowCardinality(String),
            data_source      LowCardinality(String),
            computed_at      DateTime64(3, 'UTC'),
            regime           LowCardinality(String),
            confidence       Float64,
            risk_level       LowCardinality(String),
            risk_score       Float64,
            last_price       Float64,
            dvr              Float64,
            tii              Float64,
            lambda           Float64,
            amihud           Float64,
            fpi              Float64,
            vpin             Float64,
            was              Float64,
            lsi              Float64,
            var95            Float64,
            cvar95           Float64,
            volatility       Float64,
            max_drawdown     Float64,
            current_drawdown Float64,
            sharpe_ratio     Float64
        )
        ENGINE = ReplacingMergeTree
        PARTITION BY toYYYYMM(computed_at)
        ORDER BY (exchange, symbol, computed_at, id)
        TTL toDateTime(computed_at) + INTERVAL 90 DAY
    `, table)}
}

// ClickHouseSnapshotStore implements SnapshotStorage.
type ClickHouseSnapshotStore struct {
	db    *sql.DB
	table string
	log   *logger.Logger
}

func NewClickHouseSnapshotStore(db *sql.DB, table string, log *logger.Logger) *ClickHouseSnapshotStore {
	if table == "" {
		table = DefaultSnapshotTable
	}
	return &ClickHouseSnapshotStore{db: db, table: table, log: log.With("snapshot-store")}
}

func (s *ClickHouseSnapshotStore) Init(ctx context.Context) error {
	for _, stmt := range SnapshotSchema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create %s: %w", s.table, err)
		}
	}
	return nil
}

func snapshotRow(v *models.AnalyticsSnapshot) []interface{} {
	return []interface{}{
		v.ID, v.Exchange, v.Symbol, v.Interval, v.DataSource, v.ComputedAt.UTC(),
		string(v.Regime), v.Confidence, string(v.RiskLevel), v.RiskScore, v.LastPrice,
		v.DVR, v.TII, v.Lambda, v.Amihud, v.FPI, v.VPIN, v.WAS, v.LSI,
		v.VaR95, v.CVaR95, v.Volatility, v.MaxDrawdown, v.CurrentDrawdown, v.SharpeRatio,
	}
}

func placeholders(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

func (s *ClickHouseSnapshotStore) insertPrefix() string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES ", s.table, strings.Join(snapshotColumns, ", "))
}

func (s *ClickHouseSnapshotStore) Store(ctx context.Context, v *models.AnalyticsSnapshot) error {
	return s.StoreBatch(ctx, []*models.AnalyticsSnapshot{v})
}

// StoreBatch inserts in multi-row chunks. Snapshots without a market are skipped.
func (s *ClickHouseSnapshotStore) StoreBatch(ctx context.Context, snaps []*models.AnalyticsSnapshot) error {
	row := placeholders(len(snapshotColumns))
	for start := 0; start < len(snaps); start += chunkSize {
		end := min(start+chunkSize, len(snaps))

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*len(snapshotColumns))
		for _, v := range snaps[start:end] {
			if v == nil || v.Exchange == "" || v.Symbol == "" {
				continue
			}
			values = append(values, row)
			args = append(args, snapshotRow(v)...)
		}
		if len(values) == 0 {
			continue
		}

		q := s.insertPrefix() + strings.Join(values, ", ")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.log.Error("snapshot insert failed",
				logger.String("table", s.table),
				logger.Int("rows", len(values)),
				logger.Error(err),
			)
			return fmt.Errorf("insert snapshots: %w", err)
		}
	}
	return nil
}

// Query returns snapshots of one market in [from, to], newest first.
func (s *ClickHouseSnapshotStore) Query(ctx context.Context, exchange, symbol string, from, to time.Time, limit int) ([]*models.AnalyticsSnapshot, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL
        WHERE exchange = ? AND symbol = ? AND computed_at >= ? AND computed_at <= ?
        ORDER BY computed_at DESC
        LIMIT ?`, strings.Join(snapshotColumns, ", "), s.table)

	rows, err := s.db.QueryContext(ctx, q, exchange, symbol, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]*models.AnalyticsSnapshot, 0, limit)
	for rows.Next() {
		var (
			v                 models.AnalyticsSnapshot
			regime, riskLevel string
		)
		if err := rows.Scan(
			&v.ID, &v.Exchange, &v.Symbol, &v.Interval, &v.DataSource, &v.ComputedAt,
			&regime, &v.Confidence, &riskLevel, &v.RiskScore, &v.LastPrice,
			&v.DVR, &v.TII, &v.Lambda, &v.Amihud, &v.FPI, &v.VPIN, &v.WAS, &v.LSI,
			&v.VaR95, &v.CVaR95, &v.Volatility, &v.MaxDrawdown, &v.CurrentDrawdown, &v.SharpeRatio,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		v.Regime = models.RegimeType(regime)
		v.RiskLevel = models.RiskLevelType(riskLevel)
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *ClickHouseSnapshotStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseSnapshotStore) Close() error { return nil }

var _ domrepo.SnapshotStorage = (*ClickHouseSnapshotStore)(nil)
