package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"MarketMonitor/internal/domain/models"
	"MarketMonitor/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, s *models.AnalyticsSnapshot) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockPublisher) PublishBatch(ctx context.Context, snaps []*models.AnalyticsSnapshot) error {
	return m.Called(ctx, snaps).Error(0)
}

func (m *mockPublisher) Close() error { return nil }

func snapshot(id string) *models.AnalyticsSnapshot {
	return &models.AnalyticsSnapshot{
		ID:         id,
		Exchange:   "binance",
		Symbol:     "BTCUSDT",
		Interval:   "1m",
		ComputedAt: time.Now().UTC(),
		Regime:     models.RegimeTrendingBull,
	}
}

func TestRecorderRoutesByBackend(t *testing.T) {
	ctx := context.Background()
	s := snapshot("s1")

	pub := &mockPublisher{}
	pub.On("Publish", ctx, s).Return(nil).Once()
	require.NoError(t, NewSnapshotRecorder(pub, nil, metrics.Nop{}, BackendKafka).Process(ctx, s))
	pub.AssertExpectations(t)

	store := &mockStore{}
	store.On("Store", ctx, s).Return(nil).Once()
	require.NoError(t, NewSnapshotRecorder(nil, store, metrics.Nop{}, BackendClickHouse).Process(ctx, s))
	store.AssertExpectations(t)

	none := NewSnapshotRecorder(nil, nil, metrics.Nop{}, "")
	assert.Equal(t, BackendNone, none.Backend())
	assert.NoError(t, none.Process(ctx, s))
}

func TestRecorderErrors(t *testing.T) {
	ctx := context.Background()

	assert.ErrorIs(t, NewSnapshotRecorder(nil, nil, metrics.Nop{}, BackendKafka).Process(ctx, nil), ErrNilSnapshot)

	boom := errors.New("broker down")
	pub := &mockPublisher{}
	pub.On("Publish", ctx, mock.Anything).Return(boom)
	assert.ErrorIs(t, NewSnapshotRecorder(pub, nil, metrics.Nop{}, BackendKafka).Process(ctx, snapshot("s1")), boom)

	err := NewSnapshotRecorder(nil, nil, metrics.Nop{}, "s3").Process(ctx, snapshot("s1"))
	assert.EqualError(t, err, "record snapshot: unknown backend: s3")
}

func TestRecorderBatch(t *testing.T) {
	ctx := context.Background()
	batch := []*models.AnalyticsSnapshot{snapshot("a"), snapshot("b")}

	store := &mockStore{}
	store.On("StoreBatch", ctx, batch).Return(nil).Once()
	rec := NewSnapshotRecorder(nil, store, metrics.Nop{}, BackendClickHouse)

	require.NoError(t, rec.ProcessBatch(ctx, batch))
	require.NoError(t, rec.ProcessBatch(ctx, nil))
	store.AssertExpectations(t)
}

func TestSinkStoresDecodedSnapshot(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("Store", ctx, mock.MatchedBy(func(s *models.AnalyticsSnapshot) bool {
		return s.ID == "s1" && s.MarketKey() == "binance:BTCUSDT" && s.Regime == models.RegimeTrendingBull
	})).Return(nil).Once()

	sink := NewSnapshotSink("mmon.snapshots", store, metrics.Nop{})
	assert.Equal(t, "mmon.snapshots", sink.Topic())

	payload := `{"id":"s1","exchange":"binance","symbol":"BTCUSDT","interval":"1m","regime":"` +
		string(models.RegimeTrendingBull) + `","computed_at":"2025-01-01T00:00:00Z"}`
	require.NoError(t, sink.Handle(ctx, []byte(payload)))
	store.AssertExpectations(t)
}

func TestSinkRejectsBadPayloads(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	sink := NewSnapshotSink("t", store, metrics.Nop{})

	assert.Error(t, sink.Handle(ctx, []byte(`{not json`)))
	assert.Error(t, sink.Handle(ctx, []byte(`{"id":"x","symbol":"BTCUSDT"}`)))

	boom := errors.New("insert failed")
	store.On("Store", ctx, mock.Anything).Return(boom).Once()
	err := sink.Handle(ctx, []byte(`{"id":"s2","exchange":"okx","symbol":"ETHUSDT"}`))
	assert.ErrorIs(t, err, boom)
	store.AssertNumberOfCalls(t, "Store", 1)
}
