package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketMonitor/internal/domain/models"
	drepo "MarketMonitor/internal/domain/repository"
)

// ErrHistoryDisabled is returned when no snapshot store is configured.
var ErrHistoryDisabled = errors.New("snapshot history requires the clickhouse backend")

// HistoryUseCase reads persisted snapshots back.
type HistoryUseCase struct {
	store drepo.SnapshotStorage
	now   func() time.Time
}

// NewHistoryUseCase accepts a nil store, in which case every query fails
// with ErrHistoryDisabled.
func NewHistoryUseCase(store drepo.SnapshotStorage) *HistoryUseCase {
	return &HistoryUseCase{store: store, now: time.Now}
}

func (uc *HistoryUseCase) Enabled() bool { return uc.store != nil }

// History returns the market's snapshots of the last q.Hours, newest first,
// restricted to the requested interval.
func (uc *HistoryUseCase) History(ctx context.Context, q models.HistoryQuery) ([]*models.AnalyticsSnapshot, error) {
	if uc.store == nil {
		return nil, ErrHistoryDisabled
	}
	to := uc.now().UTC()
	from := to.Add(-time.Duration(q.Hours) * time.Hour)

	rows, err := uc.store.Query(ctx, q.Exchange, q.Symbol, from, to, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("query history %s: %w", q.Key(), err)
	}
	out := make([]*models.AnalyticsSnapshot, 0, len(rows))
	for _, r := range rows {
		if r.Interval == "" || r.Interval == q.Interval {
			out = append(out, r)
		}
	}
	return out, nil
}
