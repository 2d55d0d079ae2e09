package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"MarketMonitor/internal/domain/models"
	"MarketMonitor/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var computedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func snapshot(id string) *models.AnalyticsSnapshot {
	return &models.AnalyticsSnapshot{
		ID: id, Exchange: "binance", Symbol: "BTCUSDT", Interval: "1m", DataSource: "mcp",
		ComputedAt: computedAt, Regime: models.RegimeTrendingBull, Confidence: 0.7,
		RiskLevel: models.RiskMedium, RiskScore: 0.6, LastPrice: 93000, VPIN: 0.4,
	}
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func newStore(t *testing.T) (*ClickHouseSnapshotStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewClickHouseSnapshotStore(db, "", logger.Nop()), mock
}

func TestSnapshotStoreInit(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS analytics_snapshots").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStoreBatchSkipsInvalid(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO analytics_snapshots (id, exchange, symbol")).
		WithArgs(anyArgs(2 * len(snapshotColumns))...).
		WillReturnResult(sqlmock.NewResult(0, 2))

	bad := snapshot("x")
	bad.Symbol = ""
	err := store.StoreBatch(context.Background(), []*models.AnalyticsSnapshot{snapshot("a"), nil, bad, snapshot("b")})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStoreInsertError(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec("INSERT INTO analytics_snapshots").WillReturnError(errors.New("readonly"))

	err := store.Store(context.Background(), snapshot("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "readonly")
}

func TestSnapshotStoreEmptyBatch(t *testing.T) {
	store, mock := newStore(t)
	require.NoError(t, store.StoreBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStoreQuery(t *testing.T) {
	store, mock := newStore(t)

	cols := make([]string, len(snapshotColumns))
	copy(cols, snapshotColumns)
	rows := sqlmock.NewRows(cols).AddRow(
		"a", "binance", "BTCUSDT", "1m", "mcp", computedAt,
		"trending_bull", 0.7, "medium", 0.6, 93000.0,
		0.0, 0.0, 0.0, 0.0, 0.0, 0.4, 0.0, 0.0,
		0.0, 0.0, 0.0, 0.0, 0.0, 0.0,
	)
	mock.ExpectQuery("SELECT id, exchange, symbol").
		WithArgs("binance", "BTCUSDT", sqlmock.AnyArg(), sqlmock.AnyArg(), 10).
		WillReturnRows(rows)

	out, err := store.Query(context.Background(), "binance", "BTCUSDT", computedAt.Add(-time.Hour), computedAt, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, snapshot("a"), out[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}
