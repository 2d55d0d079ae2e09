package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"MarketMonitor/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Init(ctx context.Context) error { return nil }

func (m *mockStore) Store(ctx context.Context, s *models.AnalyticsSnapshot) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockStore) StoreBatch(ctx context.Context, snaps []*models.AnalyticsSnapshot) error {
	return m.Called(ctx, snaps).Error(0)
}

func (m *mockStore) Query(ctx context.Context, exchange, symbol string, from, to time.Time, limit int) ([]*models.AnalyticsSnapshot, error) {
	args := m.Called(ctx, exchange, symbol, from, to, limit)
	res, _ := args.Get(0).([]*models.AnalyticsSnapshot)
	return res, args.Error(1)
}

func (m *mockStore) Health(ctx context.Context) error { return nil }

func (m *mockStore) Close() error { return nil }

func historyQuery() models.HistoryQuery {
	return models.HistoryQuery{
		MarketQuery: models.MarketQuery{Exchange: "binance", Symbol: "BTCUSDT", Interval: "1m"},
		Hours:       2,
		Limit:       10,
	}
}

func TestHistoryDisabled(t *testing.T) {
	uc := NewHistoryUseCase(nil)
	assert.False(t, uc.Enabled())

	_, err := uc.History(context.Background(), historyQuery())
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestHistoryFiltersInterval(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &mockStore{}
	store.On("Query", mock.Anything, "binance", "BTCUSDT", now.Add(-2*time.Hour), now, 10).
		Return([]*models.AnalyticsSnapshot{
			{ID: "a", Interval: "1m"},
			{ID: "b", Interval: "5m"},
			{ID: "c"},
		}, nil)

	uc := NewHistoryUseCase(store)
	uc.now = func() time.Time { return now }

	rows, err := uc.History(context.Background(), historyQuery())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, "c", rows[1].ID)
	store.AssertExpectations(t)
}

func TestHistoryWrapsStoreError(t *testing.T) {
	store := &mockStore{}
	boom := errors.New("boom")
	store.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, boom)

	_, err := NewHistoryUseCase(store).History(context.Background(), historyQuery())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "binance:BTCUSDT:1m")
}
